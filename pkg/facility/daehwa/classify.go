package daehwa

import "strings"

// OutcomeKind is the class of a final submission answer.
type OutcomeKind int

const (
	OutcomeCommitted OutcomeKind = iota
	OutcomeCompleted
	OutcomeAlreadyBookedForDay
	OutcomeSlotTaken
	OutcomeWindowClosed
	OutcomeMalformedTime
	OutcomeAcceptedRedirect
	OutcomeUnclassified
	OutcomeDryRun
)

const (
	MsgCommitted          = "대관접수 완료"
	MsgCompleted          = "예약 완료"
	MsgAlreadyBookedToday = "이미 예약 있음 (1일 1건 제한)"
	MsgSlotTaken          = "이미 예약된 시간"
	MsgWindowClosed       = "예약 마감"
	MsgMalformedTime      = "시간 데이터 오류"
	MsgUnclassified       = "예약 제출 완료"
	MsgDryRun             = "테스트 모드 - 최종 신청 건너뜀"
	MsgRetriesExhausted   = "예약 신청 실패 (재시도 초과)"
	MsgPageFailed         = "예약 페이지 조회 실패"
	MsgNoSlots            = "예약 가능 시간대 없음"
)

type Outcome struct {
	Kind    OutcomeKind
	Success bool
	Message string
}

// Heuristic reports whether the outcome was inferred rather than matched
// on an explicit message. Both heuristic kinds count as success, which can
// report a booking that did not happen.
func (o Outcome) Heuristic() bool {
	return o.Kind == OutcomeAcceptedRedirect || o.Kind == OutcomeUnclassified
}

type rule struct {
	outcome Outcome
	match   func(body string) bool
}

func containsAny(subs ...string) func(string) bool {
	return func(body string) bool {
		for _, s := range subs {
			if strings.Contains(body, s) {
				return true
			}
		}
		return false
	}
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{Outcome{OutcomeCommitted, true, MsgCommitted}, containsAny("정상적으로 완료")},
	{Outcome{OutcomeCompleted, true, MsgCompleted}, containsAny("완료", ", 0)")},
	{Outcome{OutcomeAlreadyBookedForDay, false, MsgAlreadyBookedToday}, containsAny("한 건 이상 예약")},
	{Outcome{OutcomeSlotTaken, false, MsgSlotTaken}, containsAny("이미", "중복")},
	{Outcome{OutcomeWindowClosed, false, MsgWindowClosed}, containsAny("마감")},
	{Outcome{OutcomeMalformedTime, false, MsgMalformedTime}, containsAny("존재하지않는")},
	{Outcome{OutcomeAcceptedRedirect, true, MsgCompleted}, func(body string) bool {
		return strings.Contains(body, "alert") && strings.Contains(body, "submit")
	}},
}

// Classify maps the free-text answer of the final submission onto an
// Outcome. Answers that match nothing are treated as accepted.
func Classify(body string) Outcome {
	for _, r := range rules {
		if r.match(body) {
			return r.outcome
		}
	}
	return Outcome{OutcomeUnclassified, true, MsgUnclassified}
}
