package storage

import "time"

// Run is one stored batch.
type Run struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	DryRun       bool      `json:"test_mode"`
	Success      bool      `json:"success"`
	SuccessCount int       `json:"success_count"`
	TotalCount   int       `json:"total_count"`
	Dropped      int       `json:"dropped"`
	Message      string    `json:"message"`

	// Results is only filled by GetRun.
	Results []Result `json:"results,omitempty"`
}

// Result is the stored outcome of one Target.
type Result struct {
	Date    string `json:"date"`
	Hour    int    `json:"hour"`
	Court   int    `json:"court"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ListOptions struct {
	Since       time.Time
	Limit       int
	OnlySuccess bool
}

type Stats struct {
	Runs           int       `json:"runs"`
	SuccessfulRuns int       `json:"successful_runs"`
	Attempts       int       `json:"attempts"`
	Booked         int       `json:"booked"`
	LastRunAt      time.Time `json:"last_run_at"`
}
