package utils

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRunLockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	first, err := NewRunLock(dir, "user@example")
	if err != nil {
		t.Fatalf("NewRunLock: %v", err)
	}
	if err := first.TryLock(); err != nil {
		t.Fatalf("TryLock: %v", err)
	}

	second, err := NewRunLock(dir, "user@example")
	if err != nil {
		t.Fatalf("NewRunLock: %v", err)
	}
	if err := second.TryLock(); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := second.TryLock(); err != nil {
		t.Fatalf("expected lock after release, got %v", err)
	}
	second.Unlock()

	if filepath.Base(first.Path()) != "user_example.lock" {
		t.Fatalf("unexpected lock name %s", first.Path())
	}
}

func TestGetAbsDBPath(t *testing.T) {
	dir := t.TempDir()
	got, err := GetAbsDBPath(filepath.Join(dir, "nested", "db.sqlite"))
	if err != nil {
		t.Fatalf("GetAbsDBPath: %v", err)
	}
	if !filepath.IsAbs(got) || !strings.HasSuffix(got, filepath.Join("nested", "db.sqlite")) {
		t.Fatalf("unexpected path %s", got)
	}
}

func TestSplitList(t *testing.T) {
	if got := SplitList(" a, ,b,"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected %v", got)
	}
}
