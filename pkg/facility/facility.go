// Package facility holds the vocabulary shared by the reservation racer:
// what a booking target is, what a free slot looks like, and what an actor
// must be able to do against a booking site.
package facility

import (
	"context"
	"encoding/json"
	"time"
)

// Credentials identify the member account used to book.
type Credentials struct {
	ID       string
	Password string
}

func (c Credentials) Empty() bool {
	return c.ID == "" || c.Password == ""
}

// Result is the outcome of one Target. Exactly one Result exists per
// Target that reached the reservation phase.
type Result struct {
	Target  Target
	Success bool
	Message string
}

type resultJSON struct {
	Date    string `json:"date"`
	Hour    int    `json:"hour"`
	Court   int    `json:"court"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Date:    r.Target.DateString(),
		Hour:    r.Target.Hour,
		Court:   r.Target.Court,
		Success: r.Success,
		Message: r.Message,
	})
}

// Session is one authenticated actor. It owns its connection exclusively
// and must not be shared between goroutines.
type Session interface {
	// Login returns false once its retries are exhausted; it never panics.
	Login(ctx context.Context, creds Credentials) bool
	// Warmup sends a lightweight request to keep the connection alive.
	Warmup(ctx context.Context) error
	Reserve(ctx context.Context, t Target, dryRun bool) Result
	Close()
}

// Scanner is the read-only side of a site, used by searches.
type Scanner interface {
	Login(ctx context.Context, creds Credentials) bool
	Slots(ctx context.Context, court int, date time.Time) ([]Slot, error)
	Close()
}

// SessionFactory builds a fresh, unauthenticated Session. workerID only
// tags log lines.
type SessionFactory func(workerID int) (Session, error)

// ScannerFactory builds a fresh, unauthenticated Scanner.
type ScannerFactory func() (Scanner, error)
