// Package schedule decides whether the monthly booking window is open and
// blocks until it opens.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// AlwaysOpen as Opening.Day disables the gate.
const AlwaysOpen = 0

// Opening is the monthly instant at which new reservations become bookable.
type Opening struct {
	Day    int
	Hour   int
	Minute int
}

var ErrInvalidOpening = errors.New("invalid opening")

func (o Opening) Validate() error {
	switch {
	case o.Day < 0 || o.Day > 31:
		return fmt.Errorf("%w: day %d", ErrInvalidOpening, o.Day)
	case o.Hour < 0 || o.Hour > 23:
		return fmt.Errorf("%w: hour %d", ErrInvalidOpening, o.Hour)
	case o.Minute < 0 || o.Minute > 59:
		return fmt.Errorf("%w: minute %d", ErrInvalidOpening, o.Minute)
	}
	return nil
}

// On returns the opening instant on the calendar day of t.
func (o Opening) On(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), o.Hour, o.Minute, 0, 0, t.Location())
}

func (o Opening) String() string {
	if o.Day == AlwaysOpen {
		return "always open"
	}
	return fmt.Sprintf("day %d at %02d:%02d", o.Day, o.Hour, o.Minute)
}

type Status int

const (
	StatusAlwaysOpen Status = iota
	// StatusOpen: today is the opening day and the instant has passed.
	StatusOpen
	// StatusPending: today is the opening day and the instant is ahead.
	StatusPending
	StatusTooEarly
	StatusPassed
)

func (s Status) String() string {
	switch s {
	case StatusAlwaysOpen:
		return "always-open"
	case StatusOpen:
		return "open"
	case StatusPending:
		return "pending"
	case StatusTooEarly:
		return "too-early"
	case StatusPassed:
		return "passed"
	}
	return "unknown"
}

// Runnable reports whether a gate in this state can let the batch through,
// possibly after waiting.
func (s Status) Runnable() bool {
	return s == StatusAlwaysOpen || s == StatusOpen || s == StatusPending
}

// Check evaluates o at now without blocking.
func Check(now time.Time, o Opening) Status {
	if o.Day == AlwaysOpen {
		return StatusAlwaysOpen
	}
	switch d := now.Day(); {
	case d < o.Day:
		return StatusTooEarly
	case d > o.Day:
		return StatusPassed
	}
	if now.Before(o.On(now)) {
		return StatusPending
	}
	return StatusOpen
}

// NextOpening returns the first opening instant at or after now. Months
// that lack the opening day are skipped.
func NextOpening(now time.Time, o Opening) time.Time {
	if o.Day == AlwaysOpen {
		return now
	}
	year, month := now.Year(), now.Month()
	for i := 0; i < 24; i++ {
		at := time.Date(year, month, o.Day, o.Hour, o.Minute, 0, 0, now.Location())
		if at.Day() == o.Day && !at.Before(now) {
			return at
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return time.Time{}
}

// CronSpec returns a five-field cron expression firing lead before the
// opening instant.
func CronSpec(o Opening, lead time.Duration) (string, error) {
	if o.Day == AlwaysOpen {
		return "", fmt.Errorf("%w: no fixed opening day", ErrInvalidOpening)
	}
	if err := o.Validate(); err != nil {
		return "", err
	}
	at := time.Date(2000, time.January, o.Day, o.Hour, o.Minute, 0, 0, time.UTC).Add(-lead)
	if at.Month() != time.January {
		return "", fmt.Errorf("%w: lead %s crosses into the previous month", ErrInvalidOpening, lead)
	}
	return fmt.Sprintf("%d %d %d * *", at.Minute(), at.Hour(), at.Day()), nil
}
