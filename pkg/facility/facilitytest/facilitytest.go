// Package facilitytest provides a scriptable in-memory facility for tests.
package facilitytest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/courtrush/courtrush/pkg/facility"
)

// Site is the shared state behind every fake Session it hands out.
type Site struct {
	mu sync.Mutex

	// FailLogin lists worker IDs whose login is refused.
	FailLogin map[int]bool
	// Password, when set, is the only password accepted.
	Password string
	// Outcomes maps a target key (see Key) to a scripted result.
	Outcomes map[string]facility.Result
	// Free maps "court/2006-01-02" to the free slots of that page.
	Free map[string][]facility.Slot
	// SlotErr makes Slots fail for the given page key.
	SlotErr map[string]error
	// Delay is added to every Reserve call.
	Delay time.Duration

	logins   atomic.Int32
	warmups  atomic.Int32
	closed   atomic.Int32
	active   atomic.Int32
	peak     atomic.Int32
	reserved []facility.Target
	dryRuns  int
	scans    []string
}

func NewSite() *Site {
	return &Site{
		FailLogin: make(map[int]bool),
		Outcomes:  make(map[string]facility.Result),
		Free:      make(map[string][]facility.Slot),
		SlotErr:   make(map[string]error),
	}
}

// Key identifies a target in Outcomes.
func Key(t facility.Target) string {
	return fmt.Sprintf("%s/%02d/%d", t.DateString(), t.Hour, t.Court)
}

// PageKey identifies a court page in Free and SlotErr.
func PageKey(court int, date time.Time) string {
	return fmt.Sprintf("%d/%s", court, date.Format(facility.DateLayout))
}

// SetFree publishes free slots for the given hours.
func (s *Site) SetFree(court int, date time.Time, hours ...int) {
	var slots []facility.Slot
	for _, h := range hours {
		slot, _ := facility.SlotFromToken(fmt.Sprintf("%02d00%02d00", h, h+facility.SlotHours))
		slots = append(slots, slot)
	}
	s.mu.Lock()
	s.Free[PageKey(court, date)] = slots
	s.mu.Unlock()
}

func (s *Site) Factory() facility.SessionFactory {
	return func(workerID int) (facility.Session, error) {
		return &Session{site: s, worker: workerID}, nil
	}
}

func (s *Site) ScannerFactory() facility.ScannerFactory {
	return func() (facility.Scanner, error) {
		return &Session{site: s, worker: -1}, nil
	}
}

func (s *Site) Logins() int  { return int(s.logins.Load()) }
func (s *Site) Warmups() int { return int(s.warmups.Load()) }
func (s *Site) Closed() int  { return int(s.closed.Load()) }

// Peak is the highest number of Reserve calls seen in flight at once.
func (s *Site) Peak() int { return int(s.peak.Load()) }

func (s *Site) Reserved() []facility.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]facility.Target(nil), s.reserved...)
}

func (s *Site) DryRuns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dryRuns
}

// Scans lists the page keys Slots was called with, in call order.
func (s *Site) Scans() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.scans...)
}

// Session is a fake actor bound to a Site.
type Session struct {
	site     *Site
	worker   int
	loggedIn bool
}

func (f *Session) Login(ctx context.Context, creds facility.Credentials) bool {
	f.site.logins.Add(1)
	f.site.mu.Lock()
	defer f.site.mu.Unlock()
	if f.site.FailLogin[f.worker] {
		return false
	}
	if f.site.Password != "" && creds.Password != f.site.Password {
		return false
	}
	f.loggedIn = true
	return true
}

func (f *Session) Warmup(ctx context.Context) error {
	f.site.warmups.Add(1)
	return nil
}

func (f *Session) Reserve(ctx context.Context, t facility.Target, dryRun bool) facility.Result {
	n := f.site.active.Add(1)
	defer f.site.active.Add(-1)
	for {
		p := f.site.peak.Load()
		if n <= p || f.site.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.site.Delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(f.site.Delay):
		}
	}

	f.site.mu.Lock()
	defer f.site.mu.Unlock()
	f.site.reserved = append(f.site.reserved, t)
	if !f.loggedIn {
		return facility.Result{Target: t, Message: "not logged in"}
	}
	if dryRun {
		f.site.dryRuns++
	}
	if r, ok := f.site.Outcomes[Key(t)]; ok {
		r.Target = t
		return r
	}
	return facility.Result{Target: t, Success: true, Message: "ok"}
}

func (f *Session) Slots(ctx context.Context, court int, date time.Time) ([]facility.Slot, error) {
	key := PageKey(court, date)
	f.site.mu.Lock()
	defer f.site.mu.Unlock()
	f.site.scans = append(f.site.scans, key)
	if err := f.site.SlotErr[key]; err != nil {
		return nil, err
	}
	return append([]facility.Slot(nil), f.site.Free[key]...), nil
}

func (f *Session) Close() {
	f.site.closed.Add(1)
}
