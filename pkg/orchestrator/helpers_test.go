package orchestrator

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/courtrush/courtrush/pkg/facility"
	"github.com/courtrush/courtrush/pkg/facility/facilitytest"
	"github.com/courtrush/courtrush/pkg/schedule"
)

type fakeGate struct {
	mu    sync.Mutex
	open  bool
	calls int
}

func (g *fakeGate) WaitUntilOpen(ctx context.Context, o schedule.Opening) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.open
}

func testConfig(site *facilitytest.Site, gate Gate) Config {
	return Config{
		NewSession:  site.Factory(),
		Credentials: facility.Credentials{ID: "tester", Password: "secret"},
		WaitForOpen: true,
		Opening:     schedule.Opening{Day: 25, Hour: 10},
		Gate:        gate,
		Concurrency: 4,
	}
}

// mkTargets builds Targets from "date/hour/court" keys.
func mkTargets(t *testing.T, keys ...string) []facility.Target {
	t.Helper()
	var out []facility.Target
	for _, k := range keys {
		parts := strings.Split(k, "/")
		hour, _ := strconv.Atoi(parts[1])
		court, _ := strconv.Atoi(parts[2])
		tg, err := facility.NewTarget(parts[0], hour, court)
		if err != nil {
			t.Fatalf("NewTarget(%s): %v", k, err)
		}
		out = append(out, tg)
	}
	return out
}
