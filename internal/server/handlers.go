package server

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/courtrush/courtrush/pkg/facility"
	"github.com/courtrush/courtrush/pkg/schedule"
	"github.com/courtrush/courtrush/pkg/search"
	"github.com/courtrush/courtrush/pkg/storage"
	"github.com/courtrush/courtrush/pkg/targets"
	"github.com/gorilla/mux"
	"github.com/tidwall/gjson"
)

const (
	msgMissingCredentials = "user_id 또는 user_pw 필요 (요청 본문 또는 환경변수 TENNIS_USER_ID, TENNIS_USER_PW)"
	msgLoginOK            = "로그인 성공"
	msgLoginFailed        = "로그인 실패"
	msgBadDate            = "잘못된 날짜 형식 (YYYY-MM-DD)"
	msgPageFailed         = "예약 페이지 조회 실패"
	msgBadBody            = "요청 본문이 올바른 JSON이 아닙니다."
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readBody parses a JSON object body. An empty body is an empty object.
func readBody(r *http.Request) (gjson.Result, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return gjson.Result{}, false
	}
	if len(body) == 0 {
		return gjson.Parse("{}"), true
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, false
	}
	root := gjson.ParseBytes(body)
	return root, root.IsObject()
}

func intField(root gjson.Result, key string) (int, bool) {
	v := root.Get(key)
	if v.Type != gjson.Number || v.Num != math.Trunc(v.Num) {
		return 0, false
	}
	return int(v.Int()), true
}

func intsField(root gjson.Result, key string, def []int) []int {
	v := root.Get(key)
	if !v.IsArray() {
		return def
	}
	out := []int{}
	for _, item := range v.Array() {
		if item.Type == gjson.Number {
			out = append(out, int(item.Int()))
		}
	}
	return out
}

func (s *Server) credentials(root gjson.Result) facility.Credentials {
	c := s.Credentials
	if id := root.Get("user_id").String(); id != "" {
		c.ID = id
	}
	if pw := root.Get("user_pw").String(); pw != "" {
		c.Password = pw
	}
	return c
}

func (s *Server) defaultCourt() int {
	if len(s.Defaults.Courts) > 0 {
		return s.Defaults.Courts[0]
	}
	return facility.Courts[0]
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dates":        s.Defaults.Dates,
		"hours":        s.Defaults.Hours,
		"courts":       s.Defaults.Courts,
		"court_number": s.defaultCourt(),
		"site_url":     s.SiteURL,
		"opening":      s.Opening.String(),
		"concurrency":  s.Concurrency,
	})
}

func (s *Server) handleNextOpening(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	resp := map[string]interface{}{
		"opening":     s.Opening.String(),
		"status":      schedule.Check(now, s.Opening).String(),
		"always_open": s.Opening.Day == schedule.AlwaysOpen,
	}
	if s.Opening.Day != schedule.AlwaysOpen {
		resp["next"] = schedule.NextOpening(now, s.Opening).Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCheckLogin(w http.ResponseWriter, r *http.Request) {
	root, ok := readBody(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	creds := s.credentials(root)
	if creds.Empty() {
		writeError(w, http.StatusBadRequest, msgMissingCredentials)
		return
	}

	sc, err := s.NewScanner()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer sc.Close()

	success := sc.Login(r.Context(), creds)
	msg := msgLoginOK
	if !success {
		msg = msgLoginFailed
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": success,
		"message": msg,
	})
}

func (s *Server) handleCheckSlots(w http.ResponseWriter, r *http.Request) {
	root, ok := readBody(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	dateStr := root.Get("date").String()
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date 필드 필요 (YYYY-MM-DD)")
		return
	}
	date, err := facility.ParseDate(dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgBadDate)
		return
	}
	court := s.defaultCourt()
	if root.Get("court").Exists() {
		c, ok := intField(root, "court")
		if !ok || !facility.ValidCourt(c) {
			writeError(w, http.StatusBadRequest, "잘못된 코트 번호: "+root.Get("court").Raw+" (1-4)")
			return
		}
		court = c
	}
	creds := s.credentials(root)
	if creds.Empty() {
		writeError(w, http.StatusBadRequest, msgMissingCredentials)
		return
	}

	sc, err := s.NewScanner()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer sc.Close()

	if !sc.Login(r.Context(), creds) {
		writeError(w, http.StatusUnauthorized, msgLoginFailed)
		return
	}
	slots, err := sc.Slots(r.Context(), court, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgPageFailed)
		return
	}
	if slots == nil {
		slots = []facility.Slot{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":            dateStr,
		"court":           court,
		"available_slots": slots,
	})
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := targets.ParseRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ApplyDefaults(s.Defaults)

	creds := req.Credentials(s.Credentials)
	if creds.Empty() {
		writeError(w, http.StatusBadRequest, msgMissingCredentials)
		return
	}
	tg, err := req.Expand()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.Log != nil {
		s.Log.Infof("Reservation request: %d target(s), mode=%s, test_mode=%v, wait_for_open=%v", len(tg), req.Mode(), req.DryRun, req.WaitForOpen)
	}
	report, err := s.race(r.Context(), req, creds, tg)
	if errors.Is(err, errRaceInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleReserveSingle(w http.ResponseWriter, r *http.Request) {
	root, ok := readBody(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	dateStr := root.Get("date").String()
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date 필드 필요")
		return
	}
	if !root.Get("hour").Exists() {
		writeError(w, http.StatusBadRequest, "hour 필드 필요")
		return
	}
	hour, _ := intField(root, "hour")
	court := s.defaultCourt()
	if root.Get("court").Exists() {
		court, _ = intField(root, "court")
	}
	t, err := facility.NewTarget(dateStr, hour, court)
	switch {
	case errors.Is(err, facility.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, msgBadDate)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	creds := s.credentials(root)
	if creds.Empty() {
		writeError(w, http.StatusBadRequest, msgMissingCredentials)
		return
	}

	session, err := s.NewSession(1)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer session.Close()

	if !session.Login(r.Context(), creds) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"message": msgLoginFailed,
		})
		return
	}
	res := session.Reserve(r.Context(), t, root.Get("test_mode").Bool())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": res.Success,
		"message": res.Message,
		"date":    t.DateString(),
		"hour":    t.Hour,
		"court":   t.Court,
	})
}

func (s *Server) handleSearchWeekend(w http.ResponseWriter, r *http.Request) {
	s.handleSearch(w, r, true)
}

func (s *Server) handleSearchAll(w http.ResponseWriter, r *http.Request) {
	s.handleSearch(w, r, false)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, weekendsOnly bool) {
	root, ok := readBody(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	year, okY := intField(root, "year")
	month, okM := intField(root, "month")
	if !okY || !okM || year == 0 || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "year, month 필드 필요")
		return
	}
	creds := s.credentials(root)
	if creds.Empty() {
		writeError(w, http.StatusBadRequest, msgMissingCredentials)
		return
	}

	opts := search.Options{
		Courts:       intsField(root, "courts", nil),
		WeekendsOnly: weekendsOnly,
		Pause:        s.SearchPause,
	}
	if weekendsOnly {
		opts.Hours = intsField(root, "hours", nil)
	}
	if s.Log != nil {
		opts.Log = s.Log
	}

	report, err := search.Search(r.Context(), s.NewScanner, creds, year, time.Month(month), opts)
	if errors.Is(err, search.ErrLoginFailed) {
		writeError(w, http.StatusUnauthorized, msgLoginFailed)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}
	q := r.URL.Query()
	opts := storage.ListOptions{OnlySuccess: q.Get("success") == "true"}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		opts.Since = since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		opts.Limit = n
	}

	runs, err := s.DB.ListRuns(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}
	run, err := s.DB.GetRun(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}
