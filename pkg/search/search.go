// Package search lists free slots over a month without booking anything.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/courtrush/courtrush/pkg/facility"
)

var (
	ErrInvalidMonth = errors.New("invalid month")
	ErrLoginFailed  = errors.New("login failed")
)

// WeekendHours are searched in weekend mode unless Options.Hours is set.
var WeekendHours = []int{6, 8, 10}

var dayNames = [...]string{"일", "월", "화", "수", "목", "금", "토"}

// Logger is satisfied by *logrus.Logger and *logrus.Entry.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{}) {}

type Options struct {
	Courts       []int
	Hours        []int
	WeekendsOnly bool
	// Pause separates two page fetches. Defaults to 100ms; negative disables it.
	Pause time.Duration
	Log   Logger
}

type Hit struct {
	Date      string `json:"date"`
	Day       string `json:"day"`
	Court     int    `json:"court"`
	Hour      int    `json:"hour"`
	Time      string `json:"time"`
	IsWeekend bool   `json:"is_weekend"`
}

type Report struct {
	Year         int      `json:"year"`
	Month        int      `json:"month"`
	Total        int      `json:"total"`
	Results      []Hit    `json:"results"`
	SkippedDates []string `json:"skipped_dates"`
	FailedPages  []string `json:"failed_pages,omitempty"`
}

// ParseMonth reads "M" or "YYYY-MM". A bare month that already passed this
// year refers to next year.
func ParseMonth(arg string, now time.Time) (int, time.Month, error) {
	arg = strings.TrimSpace(arg)
	if y, m, ok := strings.Cut(arg, "-"); ok {
		year, err := strconv.Atoi(y)
		if err != nil || year < 2000 {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonth, arg)
		}
		month, err := strconv.Atoi(m)
		if err != nil || month < 1 || month > 12 {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonth, arg)
		}
		return year, time.Month(month), nil
	}

	month, err := strconv.Atoi(arg)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonth, arg)
	}
	year := now.Year()
	if time.Month(month) < now.Month() {
		year++
	}
	return year, time.Month(month), nil
}

func IsWeekend(d time.Time) bool {
	return d.Weekday() == time.Saturday || d.Weekday() == time.Sunday
}

func DayName(d time.Time) string {
	return dayNames[d.Weekday()]
}

// AllDays lists every calendar day of the month.
func AllDays(year int, month time.Month) []time.Time {
	var days []time.Time
	for d := time.Date(year, month, 1, 0, 0, 0, 0, time.Local); d.Month() == month; d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Weekends lists the Saturdays and Sundays of the month.
func Weekends(year int, month time.Month) []time.Time {
	var days []time.Time
	for _, d := range AllDays(year, month) {
		if IsWeekend(d) {
			days = append(days, d)
		}
	}
	return days
}

// Search logs in a fresh Scanner and runs the month search with it.
func Search(ctx context.Context, newScanner facility.ScannerFactory, creds facility.Credentials, year int, month time.Month, opts Options) (*Report, error) {
	sc, err := newScanner()
	if err != nil {
		return nil, err
	}
	defer sc.Close()
	if !sc.Login(ctx, creds) {
		return nil, ErrLoginFailed
	}
	return Run(ctx, sc, year, month, opts)
}

// Run scans every (date, court) page of the month with a logged-in
// Scanner. When the closure heuristic fires on any court, the whole date
// is dropped from the results and listed in SkippedDates.
func Run(ctx context.Context, sc facility.Scanner, year int, month time.Month, opts Options) (*Report, error) {
	log := opts.Log
	if log == nil {
		log = nopLogger{}
	}
	courts := opts.Courts
	if len(courts) == 0 {
		courts = facility.Courts
	}
	hours := opts.Hours
	days := AllDays(year, month)
	if opts.WeekendsOnly {
		days = Weekends(year, month)
		if len(hours) == 0 {
			hours = WeekendHours
		}
	}
	if len(hours) == 0 {
		hours = facility.CanonicalHours
	}
	pause := opts.Pause
	if pause == 0 {
		pause = 100 * time.Millisecond
	}

	report := &Report{Year: year, Month: int(month), Results: []Hit{}, SkippedDates: []string{}}
	for _, d := range days {
		date := d.Format(facility.DateLayout)
		log.Infof("[search] %s (%s)", date, DayName(d))

		var hits []Hit
		closed := false
		for _, court := range courts {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			slots, err := sc.Slots(ctx, court, d)
			if err != nil {
				log.Warnf("  court %d: page failed: %v", court, err)
				report.FailedPages = append(report.FailedPages, fmt.Sprintf("%s/%d", date, court))
				continue
			}
			if facility.IsLikelyClosure(slots) {
				log.Infof("  likely closed (every slot free), skipping date")
				closed = true
				break
			}

			free := facility.FreeHours(slots)
			for _, h := range hours {
				if free[h] {
					hits = append(hits, Hit{
						Date:      date,
						Day:       DayName(d),
						Court:     court,
						Hour:      h,
						Time:      fmt.Sprintf("%02d:00~%02d:00", h, h+facility.SlotHours),
						IsWeekend: IsWeekend(d),
					})
				}
			}
			if pause > 0 {
				if err := sleep(ctx, pause); err != nil {
					return report, err
				}
			}
		}

		if closed {
			report.SkippedDates = append(report.SkippedDates, date)
			continue
		}
		report.Results = append(report.Results, hits...)
	}
	report.Total = len(report.Results)
	return report, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
