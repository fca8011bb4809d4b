// Package orchestrator races a batch of Targets: it pre-authenticates one
// Session per Target, waits once for the booking window, then runs every
// reservation through a bounded worker pool.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/courtrush/courtrush/pkg/facility"
	"github.com/courtrush/courtrush/pkg/schedule"
	"github.com/google/uuid"
)

const (
	MsgLoginFailed     = "로그인 실패"
	MsgAllLoginsFailed = "모든 로그인 실패"
	MsgWindowClosed    = "예약일이 아니거나 이미 지났습니다"
)

var (
	ErrNoTargets       = errors.New("no targets")
	ErrLoginFailed     = errors.New("login failed")
	ErrAllLoginsFailed = errors.New("all logins failed")
	ErrWindowClosed    = errors.New("booking window is not open")
)

// Logger abstracts logging so callers can use logrus or anything else
// that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Gate blocks until the booking window opens. *schedule.Waiter satisfies it.
type Gate interface {
	WaitUntilOpen(ctx context.Context, o schedule.Opening) bool
}

// Config holds everything Run needs for one batch.
type Config struct {
	NewSession  facility.SessionFactory
	Credentials facility.Credentials
	DryRun      bool
	WaitForOpen bool
	Opening     schedule.Opening
	Gate        Gate   // optional; nil = wall-clock schedule.Waiter
	Concurrency int    // defaults to 10 if <= 0
	Log         Logger // optional; nil = no logging

	// OnResult is called once per finished Target from the aggregating
	// goroutine. Nil = no callback.
	OnResult func(facility.Result)
}

type pair struct {
	worker  int
	target  facility.Target
	session facility.Session
}

// Run executes targets and returns the batch report. The report is never
// nil; a non-nil error means the batch failed as a whole before racing.
func Run(ctx context.Context, cfg Config, targets []facility.Target) (*BatchReport, error) {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	gate := cfg.Gate
	if gate == nil {
		gate = schedule.NewWaiter(log)
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	report := &BatchReport{RunID: uuid.New(), StartedAt: time.Now(), DryRun: cfg.DryRun}
	defer func() { report.FinishedAt = time.Now() }()

	if len(targets) == 0 {
		report.Message = "예약 대상 없음"
		return report, ErrNoTargets
	}
	if cfg.DryRun {
		log.Infof("Dry run: the final submission will be skipped")
	}

	if len(targets) == 1 {
		return report, runSingle(ctx, cfg, gate, log, targets[0], report)
	}
	return report, runBatch(ctx, cfg, gate, log, concurrency, targets, report)
}

func runSingle(ctx context.Context, cfg Config, gate Gate, log Logger, t facility.Target, report *BatchReport) error {
	log.Infof("Reserving %s", t)
	session, err := cfg.NewSession(1)
	if err != nil {
		log.Errorf("Could not create session: %v", err)
		report.Message = MsgLoginFailed
		return ErrLoginFailed
	}
	defer session.Close()

	if !session.Login(ctx, cfg.Credentials) {
		report.Message = MsgLoginFailed
		return ErrLoginFailed
	}
	if err := session.Warmup(ctx); err != nil {
		log.Warnf("Warm-up failed: %v", err)
	}
	if cfg.WaitForOpen && !gate.WaitUntilOpen(ctx, cfg.Opening) {
		report.Message = MsgWindowClosed
		return ErrWindowClosed
	}

	res := session.Reserve(ctx, t, cfg.DryRun)
	report.add(res)
	if cfg.OnResult != nil {
		cfg.OnResult(res)
	}
	report.finish()
	return nil
}

func runBatch(ctx context.Context, cfg Config, gate Gate, log Logger, concurrency int, targets []facility.Target, report *BatchReport) error {
	log.Infof("Pre-authenticating %d sessions", len(targets))

	// Each slot is written by exactly one worker.
	sessions := make([]facility.Session, len(targets))
	forEach(len(targets), concurrency, func(i int) {
		s, err := cfg.NewSession(i + 1)
		if err != nil {
			log.Errorf("[%d] Could not create session: %v", i+1, err)
			return
		}
		if !s.Login(ctx, cfg.Credentials) {
			log.Warnf("[%d] Login failed, dropping %s", i+1, targets[i])
			s.Close()
			return
		}
		sessions[i] = s
	})

	var pairs []pair
	for i, s := range sessions {
		if s != nil {
			pairs = append(pairs, pair{worker: i + 1, target: targets[i], session: s})
		}
	}
	defer func() {
		for _, p := range pairs {
			p.session.Close()
		}
	}()

	report.Dropped = len(targets) - len(pairs)
	if len(pairs) == 0 {
		report.Message = MsgAllLoginsFailed
		return ErrAllLoginsFailed
	}
	log.Infof("%d/%d sessions ready", len(pairs), len(targets))

	forEach(len(pairs), concurrency, func(i int) {
		if err := pairs[i].session.Warmup(ctx); err != nil {
			log.Warnf("[%d] Warm-up failed: %v", pairs[i].worker, err)
		}
	})

	if cfg.WaitForOpen && !gate.WaitUntilOpen(ctx, cfg.Opening) {
		report.Message = MsgWindowClosed
		return ErrWindowClosed
	}

	log.Infof("Racing %d targets with %d workers", len(pairs), min(concurrency, len(pairs)))
	results := make(chan facility.Result, len(pairs))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range results {
			report.add(res)
			if cfg.OnResult != nil {
				cfg.OnResult(res)
			}
		}
	}()

	forEach(len(pairs), concurrency, func(i int) {
		p := pairs[i]
		log.Debugf("[%d] Starting %s", p.worker, p.target)
		results <- p.session.Reserve(ctx, p.target, cfg.DryRun)
	})
	close(results)
	<-done

	report.finish()
	log.Infof("Batch finished: %s", report.Summary())
	return nil
}

// forEach calls fn for 0..n-1 from at most concurrency goroutines and
// waits for all of them.
func forEach(n, concurrency int, fn func(i int)) {
	if n == 0 {
		return
	}
	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < min(concurrency, n); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	wg.Wait()
}
