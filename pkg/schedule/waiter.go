package schedule

import (
	"context"
	"math"
	"time"
)

// Logger is satisfied by *logrus.Logger and *logrus.Entry.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Waiter blocks until an Opening is reached. Its clock and sleeper are
// injectable; the zero value uses the wall clock.
type Waiter struct {
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
	Log   Logger

	// CoarseInterval is the polling period while more than FineWindow
	// remains; FineInterval is used inside FineWindow.
	CoarseInterval time.Duration
	FineInterval   time.Duration
	FineWindow     time.Duration
}

func NewWaiter(log Logger) *Waiter {
	return &Waiter{Log: log}
}

func (w *Waiter) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Waiter) sleep(ctx context.Context, d time.Duration) error {
	if w.Sleep != nil {
		return w.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (w *Waiter) logger() Logger {
	if w.Log == nil {
		return nopLogger{}
	}
	return w.Log
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// WaitUntilOpen returns true once the opening instant of today is reached,
// and false at once when today is not the opening day. A cancelled context
// also yields false.
func (w *Waiter) WaitUntilOpen(ctx context.Context, o Opening) bool {
	log := w.logger()
	now := w.now()

	switch Check(now, o) {
	case StatusAlwaysOpen:
		return true
	case StatusOpen:
		log.Infof("Booking window already open (%s)", o)
		return true
	case StatusTooEarly:
		log.Warnf("Not the opening day yet: today is the %d, opening is %s", now.Day(), o)
		return false
	case StatusPassed:
		log.Warnf("Opening day has passed: today is the %d, opening is %s", now.Day(), o)
		return false
	}

	coarse := orDefault(w.CoarseInterval, time.Second)
	fine := orDefault(w.FineInterval, 50*time.Millisecond)
	window := orDefault(w.FineWindow, 10*time.Second)
	target := o.On(now)
	log.Infof("Waiting for opening at %s", target.Format("15:04:05"))

	lastSecond := -1
	for {
		remaining := target.Sub(w.now())
		if remaining <= 0 {
			log.Infof("Opening reached")
			return true
		}

		step := coarse
		if remaining <= window {
			step = fine
			// One countdown line per second at info, every tick at debug.
			if sec := int(math.Ceil(remaining.Seconds())); sec != lastSecond {
				lastSecond = sec
				log.Infof("%.2fs to opening", remaining.Seconds())
			} else {
				log.Debugf("%.2fs to opening", remaining.Seconds())
			}
		} else {
			log.Infof("%s to opening", remaining.Truncate(time.Second))
		}
		if step > remaining {
			step = remaining
		}
		if err := w.sleep(ctx, step); err != nil {
			return false
		}
	}
}
