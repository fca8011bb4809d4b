package facility

import "strconv"

// Slot is a free time window as published by the site. Token is the raw
// checkbox value; it carries the server's record identity and must be sent
// back byte for byte.
type Slot struct {
	Token     string `json:"value"`
	Start     string `json:"start"`
	End       string `json:"end"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`
}

// SlotFromToken reads the HHMM start and HHMM end blocks at the head of a
// token. Tokens shorter than 8 characters or without numeric blocks are
// rejected.
func SlotFromToken(token string) (Slot, bool) {
	if len(token) < 8 {
		return Slot{}, false
	}
	for _, r := range token[:8] {
		if r < '0' || r > '9' {
			return Slot{}, false
		}
	}
	startHour, _ := strconv.Atoi(token[:2])
	endHour, _ := strconv.Atoi(token[4:6])
	return Slot{
		Token:     token,
		Start:     token[:2] + ":" + token[2:4],
		End:       token[4:6] + ":" + token[6:8],
		StartHour: startHour,
		EndHour:   endHour,
	}, true
}

// FindHour returns the first slot starting at hour.
func FindHour(slots []Slot, hour int) (Slot, bool) {
	for _, s := range slots {
		if s.StartHour == hour {
			return s, true
		}
	}
	return Slot{}, false
}

// FreeHours returns the set of start hours among slots.
func FreeHours(slots []Slot) map[int]bool {
	hours := make(map[int]bool, len(slots))
	for _, s := range slots {
		hours[s.StartHour] = true
	}
	return hours
}

// IsLikelyClosure is a heuristic: a date whose every canonical slot is
// free at once is assumed to be a closure day, because real operating days
// always have something booked. Searches use it to drop false positives;
// reservations ignore it.
func IsLikelyClosure(slots []Slot) bool {
	free := FreeHours(slots)
	for _, h := range CanonicalHours {
		if !free[h] {
			return false
		}
	}
	return true
}
