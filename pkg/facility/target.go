package facility

import (
	"errors"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// SlotHours is the length of one bookable slot.
const SlotHours = 2

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidHour  = errors.New("invalid hour")
	ErrInvalidCourt = errors.New("invalid court")
)

// CanonicalHours are the start hours of the daily slots.
var CanonicalHours = []int{6, 8, 10, 12, 14, 16, 18, 20}

// Courts are the bookable court numbers.
var Courts = []int{1, 2, 3, 4}

// Target is one desired booking. Build it with NewTarget.
type Target struct {
	Date  time.Time
	Hour  int
	Court int
}

func NewTarget(date string, hour, court int) (Target, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Target{}, err
	}
	if !ValidHour(hour) {
		return Target{}, fmt.Errorf("%w: %d (6, 8, 10 ... 20)", ErrInvalidHour, hour)
	}
	if !ValidCourt(court) {
		return Target{}, fmt.Errorf("%w: %d (1-4)", ErrInvalidCourt, court)
	}
	return Target{Date: d, Hour: hour, Court: court}, nil
}

// ParseDate parses a YYYY-MM-DD calendar date in local time.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (YYYY-MM-DD)", ErrInvalidDate, s)
	}
	return d, nil
}

func ValidHour(h int) bool {
	for _, c := range CanonicalHours {
		if c == h {
			return true
		}
	}
	return false
}

func ValidCourt(c int) bool {
	return c >= Courts[0] && c <= Courts[len(Courts)-1]
}

func (t Target) DateString() string {
	return t.Date.Format(DateLayout)
}

func (t Target) String() string {
	return fmt.Sprintf("%s %02d:00~%02d:00 court %d", t.DateString(), t.Hour, t.Hour+SlotHours, t.Court)
}
