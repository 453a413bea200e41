package batch

import (
	"sort"
	"sync"
	"time"

	"hdvapourize/internal/job"
	"hdvapourize/internal/services"
)

// JobSummary is the archived view of one terminal job.
type JobSummary struct {
	ID          string               `json:"id"`
	Input       string               `json:"input"`
	RelPath     string               `json:"rel_path"`
	Output      string               `json:"output"`
	SourceClass string               `json:"source_class"`
	State       job.State            `json:"state"`
	FailedStage job.StageID          `json:"failed_stage,omitempty"`
	FailureKind services.FailureKind `json:"failure_kind,omitempty"`
	Error       string               `json:"error,omitempty"`
	SkipReason  string               `json:"skip_reason,omitempty"`
	Frames      int64                `json:"frames"`
	Truncated   bool                 `json:"truncated"`
	Elapsed     time.Duration        `json:"elapsed"`
}

// Summarize captures j. j should be terminal.
func Summarize(j *job.Job) JobSummary {
	s := JobSummary{
		ID:          j.ID,
		Input:       j.Input,
		RelPath:     j.RelPath,
		Output:      j.Output,
		SourceClass: string(j.Profile.Class),
		State:       j.State,
		FailureKind: j.FailureKind,
		Error:       j.ErrorText(),
		SkipReason:  j.SkipReason,
		Frames:      j.FramesProcessed(),
		Truncated:   j.Truncated,
		Elapsed:     j.Elapsed(),
	}
	if j.State == job.StateFailed || j.State == job.StateCancelled {
		s.FailedStage = j.Stage
	}
	return s
}

// Report aggregates a batch run. Add is safe for concurrent use; the
// exported fields are only meaningful after Finalize.
type Report struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Cancelled int `json:"cancelled"`

	Jobs []JobSummary `json:"jobs"`

	FramesProcessed   int64   `json:"frames_processed"`
	FramesPerSecond   float64 `json:"frames_per_second"`
	FilesPerHour      float64 `json:"files_per_hour"`
	AvgSecondsPerFile float64 `json:"avg_seconds_per_file"`
	PeakConcurrency   int     `json:"peak_concurrency"`

	mu  sync.Mutex
	now func() time.Time
}

// NewReport starts a report clock.
func NewReport(runID string) *Report {
	r := &Report{RunID: runID, now: time.Now}
	r.StartedAt = r.now()
	return r
}

// Add archives a terminal job.
func (r *Report) Add(j *job.Job) {
	s := Summarize(j)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Jobs = append(r.Jobs, s)
}

// Finalize computes counts and throughput, sorting summaries by input.
func (r *Report) Finalize(peak int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.FinishedAt = r.now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
	r.PeakConcurrency = peak
	sort.SliceStable(r.Jobs, func(a, b int) bool { return r.Jobs[a].Input < r.Jobs[b].Input })

	r.Succeeded, r.Failed, r.Skipped, r.Cancelled = 0, 0, 0, 0
	r.FramesProcessed = 0
	var succeededTime time.Duration
	for _, s := range r.Jobs {
		switch s.State {
		case job.StateSucceeded:
			r.Succeeded++
			succeededTime += s.Elapsed
		case job.StateSkipped:
			r.Skipped++
		case job.StateCancelled:
			r.Cancelled++
		default:
			r.Failed++
		}
		r.FramesProcessed += s.Frames
	}

	r.FramesPerSecond, r.FilesPerHour, r.AvgSecondsPerFile = 0, 0, 0
	if secs := r.Duration.Seconds(); secs > 0 {
		r.FramesPerSecond = float64(r.FramesProcessed) / secs
		r.FilesPerHour = float64(r.Succeeded) / (secs / 3600)
	}
	if r.Succeeded > 0 {
		r.AvgSecondsPerFile = succeededTime.Seconds() / float64(r.Succeeded)
	}
}

// Total is the number of jobs in the report.
func (r *Report) Total() int {
	return len(r.Jobs)
}

// Successful reports whether every job that was not skipped succeeded.
func (r *Report) Successful() bool {
	return r.Failed == 0 && r.Cancelled == 0
}

// ExitCode is 0 when Successful, else 1.
func (r *Report) ExitCode() int {
	if r.Successful() {
		return 0
	}
	return 1
}
