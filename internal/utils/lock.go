package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofrs/flock"
	"github.com/mitchellh/go-homedir"
)

const (
	lockFileSuffix = ".lock"
)

var ErrRunInProgress = errors.New("another courtrush run is using this account")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// RunLock keeps two racers from using the same account at once.
type RunLock struct {
	lock *flock.Flock
	path string
}

// NewRunLock creates the lock for account under dir (the config dir when
// empty).
func NewRunLock(dir, account string) (*RunLock, error) {
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return nil, fmt.Errorf("could not resolve config dir: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := unsafeChars.ReplaceAllString(account, "_")
	if name == "" {
		name = "default"
	}
	lockPath := filepath.Join(dir, name+lockFileSuffix)
	return &RunLock{
		lock: flock.New(lockPath),
		path: lockPath,
	}, nil
}

func (l *RunLock) Path() string {
	return l.path
}

// TryLock acquires the lock or fails with ErrRunInProgress. It never waits.
func (l *RunLock) TryLock() error {
	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	if !locked {
		return fmt.Errorf("%w (%s)", ErrRunInProgress, l.path)
	}
	return nil
}

// Unlock releases the run lock.
func (l *RunLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		// Suppress error if the lock file doesn't exist, as it means we don't hold the lock.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// ConfigDir is ~/.config/courtrush.
func ConfigDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "courtrush"), nil
}

// GetAbsDBPath resolves the database path and creates its directory.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		dbPath = filepath.Join(dir, "courtrush.sqlite")
	}
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
