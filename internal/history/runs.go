package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hdvapourize/internal/batch"
	"hdvapourize/internal/job"
	"hdvapourize/internal/services"
)

// RunMeta is what the report itself does not know about a run.
type RunMeta struct {
	Input    string
	Output   string
	TestMode bool
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID             string        `json:"run_id"`
	Input             string        `json:"input"`
	Output            string        `json:"output"`
	StartedAt         time.Time     `json:"started_at"`
	FinishedAt        time.Time     `json:"finished_at"`
	Duration          time.Duration `json:"duration"`
	Succeeded         int           `json:"succeeded"`
	Failed            int           `json:"failed"`
	Skipped           int           `json:"skipped"`
	Cancelled         int           `json:"cancelled"`
	FramesProcessed   int64         `json:"frames_processed"`
	FramesPerSecond   float64       `json:"frames_per_second"`
	AvgSecondsPerFile float64       `json:"avg_seconds_per_file"`
	PeakConcurrency   int           `json:"peak_concurrency"`
	TestMode          bool          `json:"test_mode"`
}

// Total is the number of jobs in the run.
func (r RunRecord) Total() int {
	return r.Succeeded + r.Failed + r.Skipped + r.Cancelled
}

// Save records a finalized report and its job summaries in one transaction.
func (s *Store) Save(ctx context.Context, report *batch.Report, meta RunMeta) error {
	if report == nil {
		return errors.New("nil report")
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin save tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx, `INSERT INTO runs (
			run_id, input_path, output_path, started_at, finished_at, duration_ms,
			succeeded, failed, skipped, cancelled, frames_processed, frames_per_second,
			avg_seconds_per_file, peak_concurrency, test_mode
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, meta.Input, meta.Output,
			formatTime(report.StartedAt), formatTime(report.FinishedAt), report.Duration.Milliseconds(),
			report.Succeeded, report.Failed, report.Skipped, report.Cancelled,
			report.FramesProcessed, report.FramesPerSecond, report.AvgSecondsPerFile,
			report.PeakConcurrency, boolToInt(meta.TestMode),
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_jobs (
			run_id, job_id, input_path, output_path, source_class, state, failed_stage,
			failure_kind, error_message, skip_reason, frames, truncated, elapsed_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare job insert: %w", err)
		}
		defer stmt.Close()
		for _, j := range report.Jobs {
			if _, err := stmt.ExecContext(ctx,
				report.RunID, j.ID, j.Input, j.Output, j.SourceClass, string(j.State), string(j.FailedStage),
				string(j.FailureKind), j.Error, j.SkipReason, j.Frames, boolToInt(j.Truncated), j.Elapsed.Milliseconds(),
			); err != nil {
				return fmt.Errorf("insert job %s: %w", j.ID, err)
			}
		}
		return tx.Commit()
	})
}

// Recent lists the newest runs first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// Run loads a single run and its jobs, sorted by input path.
func (s *Store) Run(ctx context.Context, runID string) (RunRecord, []batch.JobSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return RunRecord{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT job_id, input_path, output_path, source_class, state,
		failed_stage, failure_kind, error_message, skip_reason, frames, truncated, elapsed_ms
		FROM run_jobs WHERE run_id = ? ORDER BY input_path`, runID)
	if err != nil {
		return RunRecord{}, nil, fmt.Errorf("list run jobs: %w", err)
	}
	defer rows.Close()

	var jobs []batch.JobSummary
	for rows.Next() {
		var (
			j                  batch.JobSummary
			state, stage, kind string
			truncated          int
			elapsedMS          int64
		)
		if err := rows.Scan(&j.ID, &j.Input, &j.Output, &j.SourceClass, &state, &stage, &kind,
			&j.Error, &j.SkipReason, &j.Frames, &truncated, &elapsedMS); err != nil {
			return RunRecord{}, nil, err
		}
		j.State = job.State(state)
		j.FailedStage = job.StageID(stage)
		j.FailureKind = services.FailureKind(kind)
		j.Truncated = truncated != 0
		j.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		jobs = append(jobs, j)
	}
	return rec, jobs, rows.Err()
}

// Prune deletes runs started before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, formatTime(cutoff))
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return affected, nil
}

const runColumns = `run_id, input_path, output_path, started_at, finished_at, duration_ms,
	succeeded, failed, skipped, cancelled, frames_processed, frames_per_second,
	avg_seconds_per_file, peak_concurrency, test_mode`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		rec               RunRecord
		started, finished string
		durationMS        int64
		testMode          int
	)
	if err := row.Scan(&rec.RunID, &rec.Input, &rec.Output, &started, &finished, &durationMS,
		&rec.Succeeded, &rec.Failed, &rec.Skipped, &rec.Cancelled, &rec.FramesProcessed,
		&rec.FramesPerSecond, &rec.AvgSecondsPerFile, &rec.PeakConcurrency, &testMode); err != nil {
		return RunRecord{}, err
	}
	rec.StartedAt = parseTime(started)
	rec.FinishedAt = parseTime(finished)
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	rec.TestMode = testMode != 0
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
