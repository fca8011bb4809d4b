package targets

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ParseRequest reads a JSON request body. An empty body is a valid empty
// request; the shapes are told apart by which keys are present.
func ParseRequest(body []byte) (*Request, error) {
	req := NewRequest()
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, invalid("body", "요청 본문이 올바른 JSON이 아닙니다.")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, invalid("body", "요청 본문은 JSON 객체여야 합니다.")
	}

	var err error
	if v := root.Get("reservations"); v.Exists() {
		if req.Reservations, err = parseReservations(v); err != nil {
			return nil, err
		}
	}
	if v := root.Get("court_schedules"); v.Exists() {
		if req.CourtSchedules, err = parseCourtSchedules(v); err != nil {
			return nil, err
		}
	}
	if v := root.Get("dates"); v.Exists() {
		if req.Dates, err = stringList("dates", v); err != nil {
			return nil, err
		}
	}
	if v := root.Get("hours"); v.Exists() {
		if req.Hours, err = intList("hours", v); err != nil {
			return nil, err
		}
	}

	// courts takes precedence; court may be a single number or a list.
	if v := root.Get("courts"); v.Exists() {
		if !v.IsArray() {
			return nil, invalid("courts", "courts는 배열이어야 합니다.")
		}
		if req.Courts, err = intList("courts", v); err != nil {
			return nil, err
		}
	} else if v := root.Get("court"); v.Exists() {
		if req.Courts, err = intList("court", v); err != nil {
			return nil, err
		}
	}

	req.DryRun = root.Get("test_mode").Bool()
	if v := root.Get("wait_for_open"); v.Exists() {
		req.WaitForOpen = v.Bool()
	}
	req.UserID = root.Get("user_id").String()
	req.UserPW = root.Get("user_pw").String()
	return req, nil
}

func parseReservations(v gjson.Result) ([]Reservation, error) {
	if !v.IsArray() {
		return nil, invalid("reservations", "reservations는 배열이어야 합니다.")
	}
	var out []Reservation
	for i, item := range v.Array() {
		field := fmt.Sprintf("reservations[%d]", i)
		date, hour, court := item.Get("date"), item.Get("hour"), item.Get("court")
		switch {
		case !date.Exists():
			return nil, invalid(field, "%s에 date 필드 필요", field)
		case !hour.Exists():
			return nil, invalid(field, "%s에 hour 필드 필요", field)
		case !court.Exists():
			return nil, invalid(field, "%s에 court 필드 필요", field)
		}
		h, ok := intOf(hour)
		if !ok {
			return nil, invalid(field, "잘못된 시간: %s (6, 8, 10 등 2시간 단위)", hour.Raw)
		}
		c, ok := intOf(court)
		if !ok {
			return nil, invalid(field, "잘못된 코트 번호: %s (1-4)", court.Raw)
		}
		out = append(out, Reservation{Date: date.String(), Hour: h, Court: c})
	}
	return out, nil
}

func parseCourtSchedules(v gjson.Result) ([]CourtSchedule, error) {
	if !v.IsArray() {
		return nil, invalid("court_schedules", "court_schedules는 배열이어야 합니다.")
	}
	var out []CourtSchedule
	for i, item := range v.Array() {
		field := fmt.Sprintf("court_schedules[%d]", i)
		court, hours := item.Get("court"), item.Get("hours")
		if !court.Exists() || !hours.Exists() {
			return nil, invalid(field, "court_schedules 항목에 court, hours 필드 필요")
		}
		c, ok := intOf(court)
		if !ok {
			return nil, invalid(field, "잘못된 코트 번호: %s (1-4)", court.Raw)
		}
		hs, err := intList(field+".hours", hours)
		if err != nil {
			return nil, err
		}
		out = append(out, CourtSchedule{Court: c, Hours: hs})
	}
	return out, nil
}

func intOf(v gjson.Result) (int, bool) {
	if v.Type != gjson.Number || v.Num != math.Trunc(v.Num) {
		return 0, false
	}
	return int(v.Int()), true
}

// intList accepts a number or an array of numbers.
func intList(field string, v gjson.Result) ([]int, error) {
	items := []gjson.Result{v}
	if v.IsArray() {
		items = v.Array()
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, ok := intOf(item)
		if !ok {
			return nil, invalid(field, "%s에 숫자가 아닌 값: %s", field, item.Raw)
		}
		out = append(out, n)
	}
	return out, nil
}

func stringList(field string, v gjson.Result) ([]string, error) {
	if !v.IsArray() {
		return nil, invalid(field, "%s는 배열이어야 합니다.", field)
	}
	var out []string
	for _, item := range v.Array() {
		if item.Type != gjson.String {
			return nil, invalid(field, "%s에 문자열이 아닌 값: %s", field, item.Raw)
		}
		out = append(out, item.Str)
	}
	return out, nil
}

// ParseReservation reads the CLI form DATE:HOUR:COURT.
func ParseReservation(s string) (Reservation, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Reservation{}, invalid("reservation", "잘못된 예약 형식: %q (DATE:HOUR:COURT)", s)
	}
	hour, err := strconv.Atoi(parts[1])
	if err != nil {
		return Reservation{}, invalid("reservation", "잘못된 시간: %s", parts[1])
	}
	court, err := strconv.Atoi(parts[2])
	if err != nil {
		return Reservation{}, invalid("reservation", "잘못된 코트 번호: %s", parts[2])
	}
	return Reservation{Date: parts[0], Hour: hour, Court: court}, nil
}

// ParseCourtSchedule reads the CLI form COURT:HOUR[,HOUR...].
func ParseCourtSchedule(s string) (CourtSchedule, error) {
	court, hours, ok := strings.Cut(s, ":")
	if !ok || hours == "" {
		return CourtSchedule{}, invalid("court_schedule", "잘못된 코트별 시간 형식: %q (COURT:HOUR,HOUR)", s)
	}
	c, err := strconv.Atoi(court)
	if err != nil {
		return CourtSchedule{}, invalid("court_schedule", "잘못된 코트 번호: %s", court)
	}
	sched := CourtSchedule{Court: c}
	for _, h := range strings.Split(hours, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(h))
		if err != nil {
			return CourtSchedule{}, invalid("court_schedule", "잘못된 시간: %s", h)
		}
		sched.Hours = append(sched.Hours, n)
	}
	return sched, nil
}
