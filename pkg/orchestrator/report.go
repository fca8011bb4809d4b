package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/courtrush/courtrush/pkg/facility"
	"github.com/google/uuid"
)

// BatchReport aggregates one run. Dropped Targets (failed logins) have no
// Result and do not count in TotalCount.
type BatchReport struct {
	RunID        uuid.UUID
	StartedAt    time.Time
	FinishedAt   time.Time
	DryRun       bool
	Results      []facility.Result
	SuccessCount int
	TotalCount   int
	Dropped      int
	Message      string
}

func (r *BatchReport) add(res facility.Result) {
	r.Results = append(r.Results, res)
	r.TotalCount++
	if res.Success {
		r.SuccessCount++
	}
}

func (r *BatchReport) finish() {
	r.Message = r.Summary()
}

// Success is true iff at least one Target succeeded.
func (r *BatchReport) Success() bool {
	return r.SuccessCount > 0
}

func (r *BatchReport) Summary() string {
	return fmt.Sprintf("%d/%d건 성공", r.SuccessCount, r.TotalCount)
}

type reportJSON struct {
	RunID        string            `json:"run_id"`
	Success      bool              `json:"success"`
	DryRun       bool              `json:"test_mode"`
	Results      []facility.Result `json:"results"`
	Summary      string            `json:"summary"`
	Message      string            `json:"message,omitempty"`
	SuccessCount int               `json:"success_count"`
	TotalCount   int               `json:"total_count"`
	Dropped      int               `json:"dropped"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
}

func (r *BatchReport) MarshalJSON() ([]byte, error) {
	results := r.Results
	if results == nil {
		results = []facility.Result{}
	}
	return json.Marshal(reportJSON{
		RunID:        r.RunID.String(),
		Success:      r.Success(),
		DryRun:       r.DryRun,
		Results:      results,
		Summary:      r.Summary(),
		Message:      r.Message,
		SuccessCount: r.SuccessCount,
		TotalCount:   r.TotalCount,
		Dropped:      r.Dropped,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	})
}
