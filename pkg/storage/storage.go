package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/courtrush/courtrush/pkg/orchestrator"
	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("run not found")

// timeLayout is fixed-width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  id            TEXT PRIMARY KEY,
  started_at    TEXT NOT NULL,
  finished_at   TEXT NOT NULL,
  dry_run       INTEGER NOT NULL CHECK (dry_run IN (0,1)),
  success       INTEGER NOT NULL CHECK (success IN (0,1)),
  success_count INTEGER NOT NULL,
  total_count   INTEGER NOT NULL,
  dropped_count INTEGER NOT NULL,
  message       TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE TABLE IF NOT EXISTS run_results (
  id      INTEGER PRIMARY KEY,
  run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  date    TEXT NOT NULL,
  hour    INTEGER NOT NULL,
  court   INTEGER NOT NULL,
  success INTEGER NOT NULL CHECK (success IN (0,1)),
  message TEXT
);
CREATE INDEX IF NOT EXISTS idx_results_run ON run_results(run_id);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SaveReport stores a finished batch and its per-target results in one
// transaction.
func (d *DB) SaveReport(ctx context.Context, r *orchestrator.BatchReport) (err error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	finished := r.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO runs(id, started_at, finished_at, dry_run, success, success_count, total_count, dropped_count, message) VALUES(?,?,?,?,?,?,?,?,?)`,
		r.RunID.String(), formatTime(r.StartedAt), formatTime(finished), boolToInt(r.DryRun), boolToInt(r.Success()),
		r.SuccessCount, r.TotalCount, r.Dropped, nullIfEmpty(r.Message))
	if err != nil {
		return err
	}

	for _, res := range r.Results {
		_, err = tx.ExecContext(ctx, `INSERT INTO run_results(run_id, date, hour, court, success, message) VALUES(?,?,?,?,?,?)`,
			r.RunID.String(), res.Target.DateString(), res.Target.Hour, res.Target.Court, boolToInt(res.Success), nullIfEmpty(res.Message))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRuns returns runs newest first.
func (d *DB) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if !opts.Since.IsZero() {
		where += " AND started_at >= ?"
		args = append(args, formatTime(opts.Since))
	}
	if opts.OnlySuccess {
		where += " AND success = 1"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	q := "SELECT id, started_at, finished_at, dry_run, success, success_count, total_count, dropped_count, message FROM runs " + where + " ORDER BY started_at DESC LIMIT ?"
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun returns one run with its results.
func (d *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := d.sql.QueryRowContext(ctx, "SELECT id, started_at, finished_at, dry_run, success, success_count, total_count, dropped_count, message FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := d.sql.QueryContext(ctx, "SELECT date, hour, court, success, message FROM run_results WHERE run_id = ? ORDER BY id", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var res Result
		var success int
		var msg sql.NullString
		if err := rows.Scan(&res.Date, &res.Hour, &res.Court, &success, &msg); err != nil {
			return nil, err
		}
		res.Success = success == 1
		res.Message = msg.String
		run.Results = append(run.Results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &run, nil
}

func (d *DB) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	var last sql.NullString
	err := d.sql.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(success), 0),
			COALESCE(SUM(total_count), 0),
			COALESCE(SUM(success_count), 0),
			MAX(started_at)
		FROM
			runs
		WHERE
			dry_run = 0;
	`).Scan(&s.Runs, &s.SuccessfulRuns, &s.Attempts, &s.Booked, &last)
	if err != nil {
		return s, err
	}
	if last.Valid {
		s.LastRunAt = parseTime(last.String)
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                 Run
		started, finished string
		dryRun, success   int
		msg               sql.NullString
	)
	if err := sc.Scan(&r.ID, &started, &finished, &dryRun, &success, &r.SuccessCount, &r.TotalCount, &r.Dropped, &msg); err != nil {
		return r, err
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	r.DryRun = dryRun == 1
	r.Success = success == 1
	r.Message = msg.String
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts our own layout and SQLite's CURRENT_TIMESTAMP format.
func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
