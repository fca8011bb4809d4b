package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/courtrush/courtrush/pkg/facility"
	"github.com/courtrush/courtrush/pkg/facility/facilitytest"
)

func TestRunDropsFailedLogins(t *testing.T) {
	site := facilitytest.NewSite()
	site.FailLogin[2] = true
	ts := mkTargets(t, "2026-02-09/6/1", "2026-02-09/8/1", "2026-02-09/10/1")
	site.Outcomes["2026-02-09/10/1"] = facility.Result{Message: "이미 예약된 시간"}

	gate := &fakeGate{open: true}
	report, err := Run(context.Background(), testConfig(site, gate), ts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.TotalCount != 2 || report.Dropped != 1 {
		t.Fatalf("expected total 2 dropped 1, got total %d dropped %d", report.TotalCount, report.Dropped)
	}
	if report.SuccessCount != 1 || !report.Success() {
		t.Fatalf("expected 1 success, got %d", report.SuccessCount)
	}
	if report.Summary() != "1/2건 성공" {
		t.Fatalf("unexpected summary %q", report.Summary())
	}
	if site.Closed() != 3 {
		t.Fatalf("expected every session closed, got %d", site.Closed())
	}
	if site.Warmups() != 2 {
		t.Fatalf("expected 2 warm-ups, got %d", site.Warmups())
	}
	if gate.calls != 1 {
		t.Fatalf("expected the gate to be evaluated once, got %d", gate.calls)
	}
}

func TestRunSuccessNeedsOneWin(t *testing.T) {
	site := facilitytest.NewSite()
	ts := mkTargets(t, "2026-02-09/6/1", "2026-02-09/6/2")
	for _, tg := range ts {
		site.Outcomes[facilitytest.Key(tg)] = facility.Result{Message: "예약 마감"}
	}

	report, err := Run(context.Background(), testConfig(site, &fakeGate{open: true}), ts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Success() || report.TotalCount != 2 {
		t.Fatalf("expected 0/2, got %s", report.Summary())
	}
}

func TestRunAllLoginsFail(t *testing.T) {
	site := facilitytest.NewSite()
	site.Password = "right"
	ts := mkTargets(t, "2026-02-09/6/1", "2026-02-09/8/1")

	gate := &fakeGate{open: true}
	report, err := Run(context.Background(), testConfig(site, gate), ts)
	if !errors.Is(err, ErrAllLoginsFailed) {
		t.Fatalf("expected ErrAllLoginsFailed, got %v", err)
	}
	if report.Message != MsgAllLoginsFailed || report.Dropped != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if gate.calls != 0 || len(site.Reserved()) != 0 {
		t.Fatal("expected the batch to stop before the gate")
	}
}

func TestRunGateRejects(t *testing.T) {
	site := facilitytest.NewSite()
	ts := mkTargets(t, "2026-02-09/6/1", "2026-02-09/8/1", "2026-02-09/10/1")

	report, err := Run(context.Background(), testConfig(site, &fakeGate{open: false}), ts)
	if !errors.Is(err, ErrWindowClosed) {
		t.Fatalf("expected ErrWindowClosed, got %v", err)
	}
	if report.Message != MsgWindowClosed {
		t.Fatalf("unexpected message %q", report.Message)
	}
	if len(site.Reserved()) != 0 {
		t.Fatalf("expected no reservation, got %d", len(site.Reserved()))
	}
	if site.Closed() != 3 {
		t.Fatalf("expected every session closed, got %d", site.Closed())
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	site := facilitytest.NewSite()
	site.Delay = 20 * time.Millisecond
	ts := mkTargets(t,
		"2026-02-09/6/1", "2026-02-09/8/1", "2026-02-09/10/1",
		"2026-02-09/6/2", "2026-02-09/8/2", "2026-02-09/10/2",
	)

	cfg := testConfig(site, &fakeGate{open: true})
	cfg.Concurrency = 2
	var seen int
	cfg.OnResult = func(facility.Result) { seen++ }

	report, err := Run(context.Background(), cfg, ts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.TotalCount != 6 || seen != 6 {
		t.Fatalf("expected 6 results, got %d (callback %d)", report.TotalCount, seen)
	}
	if p := site.Peak(); p < 1 || p > 2 {
		t.Fatalf("expected at most 2 reservations in flight, got %d", p)
	}
}

func TestRunOneResultPerTarget(t *testing.T) {
	site := facilitytest.NewSite()
	ts := mkTargets(t, "2026-02-09/6/1", "2026-02-09/8/1", "2026-02-09/10/1", "2026-02-09/12/1")

	report, err := Run(context.Background(), testConfig(site, &fakeGate{open: true}), ts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := make(map[string]int)
	for _, r := range report.Results {
		got[facilitytest.Key(r.Target)]++
	}
	for _, tg := range ts {
		if got[facilitytest.Key(tg)] != 1 {
			t.Fatalf("expected one result for %s, got %d", tg, got[facilitytest.Key(tg)])
		}
	}
}

func TestRunDryRunIsForwarded(t *testing.T) {
	site := facilitytest.NewSite()
	ts := mkTargets(t, "2026-02-09/6/1", "2026-02-09/8/1")

	cfg := testConfig(site, &fakeGate{open: true})
	cfg.DryRun = true
	report, err := Run(context.Background(), cfg, ts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if site.DryRuns() != 2 || !report.DryRun {
		t.Fatalf("expected 2 dry runs, got %d", site.DryRuns())
	}
}

func TestRunSingleTarget(t *testing.T) {
	site := facilitytest.NewSite()
	ts := mkTargets(t, "2026-02-09/6/1")

	gate := &fakeGate{open: true}
	report, err := Run(context.Background(), testConfig(site, gate), ts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Summary() != "1/1건 성공" || gate.calls != 1 || site.Warmups() != 1 || site.Closed() != 1 {
		t.Fatalf("unexpected single run %+v (gate %d)", report, gate.calls)
	}

	site = facilitytest.NewSite()
	site.FailLogin[1] = true
	report, err = Run(context.Background(), testConfig(site, gate), ts)
	if !errors.Is(err, ErrLoginFailed) || report.Message != MsgLoginFailed {
		t.Fatalf("expected login failure, got %v (%q)", err, report.Message)
	}
}

func TestRunSkipsGateWithoutWait(t *testing.T) {
	site := facilitytest.NewSite()
	ts := mkTargets(t, "2026-02-09/6/1", "2026-02-09/8/1")

	gate := &fakeGate{open: false}
	cfg := testConfig(site, gate)
	cfg.WaitForOpen = false
	if _, err := Run(context.Background(), cfg, ts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gate.calls != 0 {
		t.Fatalf("expected the gate to be skipped, got %d calls", gate.calls)
	}
}

func TestRunNoTargets(t *testing.T) {
	site := facilitytest.NewSite()
	if _, err := Run(context.Background(), testConfig(site, &fakeGate{open: true}), nil); !errors.Is(err, ErrNoTargets) {
		t.Fatalf("expected ErrNoTargets, got %v", err)
	}
}

func TestReportJSON(t *testing.T) {
	site := facilitytest.NewSite()
	ts := mkTargets(t, "2026-02-09/6/1", "2026-02-09/8/1")
	report, err := Run(context.Background(), testConfig(site, &fakeGate{open: true}), ts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"success":true`, `"summary":"2/2건 성공"`, `"date":"2026-02-09"`, `"run_id":"` + report.RunID.String()} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("expected %s in %s", want, data)
		}
	}
}
