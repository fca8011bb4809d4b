// Package targets turns an inbound reservation request into the flat list
// of (date, hour, court) Targets a batch races for.
package targets

import (
	"errors"
	"fmt"

	"github.com/courtrush/courtrush/pkg/facility"
)

type Reservation struct {
	Date  string `json:"date"`
	Hour  int    `json:"hour"`
	Court int    `json:"court"`
}

type CourtSchedule struct {
	Court int   `json:"court"`
	Hours []int `json:"hours"`
}

// Request is one of three equivalent shapes: an explicit Reservations
// list, per-court CourtSchedules over Dates, or the cartesian product of
// Dates, Hours and Courts. The first non-empty shape in that order wins.
type Request struct {
	Dates          []string        `json:"dates,omitempty"`
	Hours          []int           `json:"hours,omitempty"`
	Courts         []int           `json:"courts,omitempty"`
	Reservations   []Reservation   `json:"reservations,omitempty"`
	CourtSchedules []CourtSchedule `json:"court_schedules,omitempty"`

	DryRun      bool   `json:"test_mode"`
	WaitForOpen bool   `json:"wait_for_open"`
	UserID      string `json:"user_id,omitempty"`
	UserPW      string `json:"-"`
}

// Defaults fill the cartesian dimensions a request leaves out.
type Defaults struct {
	Dates  []string
	Hours  []int
	Courts []int
}

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func NewRequest() *Request {
	return &Request{WaitForOpen: true}
}

func (r *Request) ApplyDefaults(d Defaults) {
	if len(r.Dates) == 0 {
		r.Dates = append([]string(nil), d.Dates...)
	}
	if len(r.Hours) == 0 {
		r.Hours = append([]int(nil), d.Hours...)
	}
	if len(r.Courts) == 0 {
		r.Courts = append([]int(nil), d.Courts...)
	}
}

// Credentials returns the request's override credentials, falling back to
// fallback when either half is missing.
func (r *Request) Credentials(fallback facility.Credentials) facility.Credentials {
	c := fallback
	if r.UserID != "" {
		c.ID = r.UserID
	}
	if r.UserPW != "" {
		c.Password = r.UserPW
	}
	return c
}

func (r *Request) Mode() string {
	switch {
	case len(r.Reservations) > 0:
		return "reservations"
	case len(r.CourtSchedules) > 0:
		return "court_schedules"
	}
	return "cartesian"
}

// Expand flattens the request into Targets, validating every one.
func (r *Request) Expand() ([]facility.Target, error) {
	var out []facility.Target
	add := func(field, date string, hour, court int) error {
		t, err := facility.NewTarget(date, hour, court)
		if err != nil {
			return targetError(field, err, date, hour, court)
		}
		out = append(out, t)
		return nil
	}

	switch r.Mode() {
	case "reservations":
		for i, res := range r.Reservations {
			if err := add(fmt.Sprintf("reservations[%d]", i), res.Date, res.Hour, res.Court); err != nil {
				return nil, err
			}
		}

	case "court_schedules":
		if len(r.Dates) == 0 {
			return nil, invalid("dates", "dates 필드가 필요합니다.")
		}
		for i, s := range r.CourtSchedules {
			if len(s.Hours) == 0 {
				return nil, invalid(fmt.Sprintf("court_schedules[%d]", i), "court_schedules 항목에 court, hours 필드 필요")
			}
			for _, d := range r.Dates {
				for _, h := range s.Hours {
					if err := add(fmt.Sprintf("court_schedules[%d]", i), d, h, s.Court); err != nil {
						return nil, err
					}
				}
			}
		}

	default:
		switch {
		case len(r.Dates) == 0:
			return nil, invalid("dates", "dates 필드가 비어있습니다.")
		case len(r.Hours) == 0:
			return nil, invalid("hours", "hours 필드가 비어있습니다.")
		case len(r.Courts) == 0:
			return nil, invalid("courts", "courts 필드가 비어있습니다.")
		}
		for _, d := range r.Dates {
			for _, h := range r.Hours {
				for _, c := range r.Courts {
					if err := add("", d, h, c); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return out, nil
}

// targetError maps a Target validation error onto the request field. An
// empty field is derived from the failing dimension.
func targetError(field string, err error, date string, hour, court int) error {
	pick := func(dim string) string {
		if field == "" {
			return dim
		}
		return field
	}
	switch {
	case errors.Is(err, facility.ErrInvalidDate):
		return invalid(pick("dates"), "잘못된 날짜 형식: %s (YYYY-MM-DD 필요)", date)
	case errors.Is(err, facility.ErrInvalidHour):
		return invalid(pick("hours"), "잘못된 시간: %d (6, 8, 10 등 2시간 단위)", hour)
	case errors.Is(err, facility.ErrInvalidCourt):
		return invalid(pick("courts"), "잘못된 코트 번호: %d (1-4)", court)
	}
	return invalid(pick("body"), "%v", err)
}
