package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id is not in the archive.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of an archived run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunCounts are the row counts of one run.
type RunCounts struct {
	RecorderRows   int
	RecorderKept   int
	LoggerReadings int
	LoggerRows     int
	LoggerKept     int
	Intervals      int
}

// Run is one archived invocation.
type Run struct {
	ID          string
	Machine     string
	DataRoot    string
	OutputDir   string
	FillScope   string
	EnrichStage string
	Version     string
	Status      RunStatus
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while running
	Counts      RunCounts
}

// IntervalRecord is the archived match result of one protocol interval.
type IntervalRecord struct {
	Index        int
	Start        time.Time
	End          time.Time
	RecorderRows int
	LoggerRows   int
}

// timeFormat stores timestamps as fixed-width UTC text so that string order
// is time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeFormat, s) }

// StartRun inserts run in the running state and returns its id. A new UUID
// is assigned when run.ID is empty.
func (db *DB) StartRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO runs (run_id, machine, data_root, output_dir, fill_scope, enrich_stage, version, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Machine, run.DataRoot, run.OutputDir, run.FillScope, run.EnrichStage, run.Version,
		string(RunRunning), formatTime(run.StartedAt))
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return run.ID, nil
}

// FinishRun marks a run succeeded and stores its counts, intervals and output
// paths in one transaction.
func (db *DB) FinishRun(ctx context.Context, id string, finishedAt time.Time, counts RunCounts, intervals []IntervalRecord, outputs []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE runs SET
			status = ?, finished_at = ?,
			recorder_rows = ?, recorder_kept = ?,
			logger_readings = ?, logger_rows = ?, logger_kept = ?,
			intervals = ?
		WHERE run_id = ?`,
		string(RunSucceeded), formatTime(finishedAt),
		counts.RecorderRows, counts.RecorderKept,
		counts.LoggerReadings, counts.LoggerRows, counts.LoggerKept,
		counts.Intervals, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if err := requireOneRow(res, id); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_intervals (run_id, interval_index, start_time, end_time, recorder_rows, logger_rows)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare interval insert: %w", err)
	}
	defer stmt.Close()
	for _, iv := range intervals {
		if _, err := stmt.ExecContext(ctx, id, iv.Index, formatTime(iv.Start), formatTime(iv.End), iv.RecorderRows, iv.LoggerRows); err != nil {
			return fmt.Errorf("failed to insert interval %d: %w", iv.Index, err)
		}
	}

	for _, path := range outputs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO run_outputs (run_id, path) VALUES (?, ?)`, id, path); err != nil {
			return fmt.Errorf("failed to insert output %s: %w", path, err)
		}
	}
	return tx.Commit()
}

// FailRun marks a run failed with the error that stopped it.
func (db *DB) FailRun(ctx context.Context, id string, finishedAt time.Time, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := db.ExecContext(ctx, `UPDATE runs SET status = ?, finished_at = ?, error = ? WHERE run_id = ?`,
		string(RunFailed), formatTime(finishedAt), msg, id)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return requireOneRow(res, id)
}

func requireOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

const runColumns = `run_id, machine, data_root, output_dir, fill_scope, enrich_stage, version, status, error,
	started_at, finished_at, recorder_rows, recorder_kept, logger_readings, logger_rows, logger_kept, intervals`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r        Run
		status   string
		started  string
		finished sql.NullString
	)
	err := row.Scan(&r.ID, &r.Machine, &r.DataRoot, &r.OutputDir, &r.FillScope, &r.EnrichStage, &r.Version,
		&status, &r.Error, &started, &finished,
		&r.Counts.RecorderRows, &r.Counts.RecorderKept,
		&r.Counts.LoggerReadings, &r.Counts.LoggerRows, &r.Counts.LoggerKept, &r.Counts.Intervals)
	if err != nil {
		return Run{}, err
	}
	r.Status = RunStatus(status)
	if r.StartedAt, err = parseTime(started); err != nil {
		return Run{}, fmt.Errorf("run %s: bad started_at: %w", r.ID, err)
	}
	if finished.Valid {
		if r.FinishedAt, err = parseTime(finished.String); err != nil {
			return Run{}, fmt.Errorf("run %s: bad finished_at: %w", r.ID, err)
		}
	}
	return r, nil
}

// GetRun returns the run with the given id.
func (db *DB) GetRun(ctx context.Context, id string) (Run, error) {
	r, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. An empty machine lists every
// machine; limit <= 0 means no limit.
func (db *DB) ListRuns(ctx context.Context, machine string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE (? = '' OR machine = ?) ORDER BY started_at DESC`
	args := []any{machine, machine}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunIntervals returns the archived intervals of a run in index order.
func (db *DB) RunIntervals(ctx context.Context, id string) ([]IntervalRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT interval_index, start_time, end_time, recorder_rows, logger_rows
		FROM run_intervals WHERE run_id = ? ORDER BY interval_index`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query intervals: %w", err)
	}
	defer rows.Close()

	var out []IntervalRecord
	for rows.Next() {
		var (
			iv         IntervalRecord
			start, end string
		)
		if err := rows.Scan(&iv.Index, &start, &end, &iv.RecorderRows, &iv.LoggerRows); err != nil {
			return nil, fmt.Errorf("failed to scan interval: %w", err)
		}
		if iv.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if iv.End, err = parseTime(end); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// RunOutputs returns the files a run wrote, in path order.
func (db *DB) RunOutputs(ctx context.Context, id string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT path FROM run_outputs WHERE run_id = ? ORDER BY path`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query outputs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan output: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
