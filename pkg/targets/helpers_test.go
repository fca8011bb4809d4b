package targets

import (
	"fmt"
	"testing"

	"github.com/courtrush/courtrush/pkg/facility"
)

func mustParse(t *testing.T, body string) *Request {
	t.Helper()
	req, err := ParseRequest([]byte(body))
	if err != nil {
		t.Fatalf("ParseRequest(%s): %v", body, err)
	}
	return req
}

func keys(ts []facility.Target) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, fmt.Sprintf("%s/%d/%d", t.DateString(), t.Hour, t.Court))
	}
	return out
}
