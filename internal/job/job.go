package job

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"hdvapourize/internal/media/profile"
	"hdvapourize/internal/services"
)

// StageResult is the immutable record of one stage execution.
type StageResult struct {
	Stage       StageID
	Started     time.Time
	Finished    time.Time
	FramesDone  int64
	FramesTotal int64
	BytesDone   int64
	ExitCode    int
	// Diagnostic is the tail of tool output, at most 4 KiB.
	Diagnostic  string
	FailureKind services.FailureKind
	Error       string
	Artifact    string
	// Truncated marks a run stopped at the test-mode frame ceiling.
	Truncated bool
}

// Duration is how long the stage ran.
func (r StageResult) Duration() time.Duration {
	if r.Finished.IsZero() || r.Started.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Succeeded reports whether the stage completed without error.
func (r StageResult) Succeeded() bool {
	return r.Error == "" && r.FailureKind == services.KindNone
}

// Job is one input file moving through the pipeline.
type Job struct {
	ID      string
	Input   string
	RelPath string
	Output  string
	// TempDir holds intermediates for this job only.
	TempDir string

	Profile     profile.FormatProfile
	FramesTotal int64
	Truncated   bool

	Stage   StageID
	State   State
	Results []StageResult

	Err         error
	FailureKind services.FailureKind
	// SkipReason explains a Skipped job that carries no error.
	SkipReason string

	artifacts map[StageID]string

	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// New creates a pending Job with a fresh ID.
func New(input, relPath, output string) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Input:     input,
		RelPath:   relPath,
		Output:    output,
		Profile:   profile.Unknown(),
		State:     StatePending,
		artifacts: make(map[StageID]string),
		CreatedAt: time.Now(),
	}
}

// ShortID is the first eight characters of the ID, for logs.
func (j *Job) ShortID() string {
	if len(j.ID) > 8 {
		return j.ID[:8]
	}
	return j.ID
}

// Transition moves the Job to state, enforcing forward-only movement.
func (j *Job) Transition(to State) error {
	if !CanTransition(j.State, to) {
		return services.Wrap(services.ErrValidation, "job", "transition",
			fmt.Sprintf("invalid transition %s -> %s", j.State, to), nil)
	}
	now := time.Now()
	if j.State == StatePending && to.Running() {
		j.StartedAt = now
	}
	j.State = to
	if to.Terminal() {
		j.FinishedAt = now
	}
	return nil
}

// Begin moves the Job into the running state of stage.
func (j *Job) Begin(stage StageID) error {
	to := stage.RunningState()
	if to == "" {
		return services.Wrap(services.ErrValidation, "job", "begin",
			fmt.Sprintf("unknown stage %q", stage), nil)
	}
	if err := j.Transition(to); err != nil {
		return err
	}
	j.Stage = stage
	return nil
}

// Record appends a StageResult. Stages must be recorded exactly once, in
// pipeline order, and never after a failed stage or a terminal state.
func (j *Job) Record(result StageResult) error {
	if j.State.Terminal() {
		return services.Wrap(services.ErrValidation, "job", "record",
			fmt.Sprintf("job already %s", j.State), nil)
	}
	want := len(j.Results)
	if idx := result.Stage.Index(); idx != want {
		return services.Wrap(services.ErrValidation, "job", "record",
			fmt.Sprintf("stage %q recorded out of order", result.Stage), nil)
	}
	if want > 0 && !j.Results[want-1].Succeeded() {
		return services.Wrap(services.ErrValidation, "job", "record",
			"previous stage failed", nil)
	}
	j.Results = append(j.Results, result)
	if result.Artifact != "" {
		j.SetArtifact(result.Stage, result.Artifact)
	}
	if result.Truncated {
		j.Truncated = true
	}
	return nil
}

// Finish moves the Job to a terminal state and records the cause.
func (j *Job) Finish(state State, cause error) error {
	if !state.Terminal() {
		return services.Wrap(services.ErrValidation, "job", "finish",
			fmt.Sprintf("%s is not terminal", state), nil)
	}
	if err := j.Transition(state); err != nil {
		return err
	}
	j.Err = cause
	if cause != nil {
		j.FailureKind = services.KindOf(cause)
	}
	return nil
}

// Terminal reports whether the Job has finished.
func (j *Job) Terminal() bool {
	return j.State.Terminal()
}

// SetArtifact stores the file produced by stage.
func (j *Job) SetArtifact(stage StageID, path string) {
	if j.artifacts == nil {
		j.artifacts = make(map[StageID]string)
	}
	j.artifacts[stage] = path
}

// Artifact returns the file produced by stage, or "".
func (j *Job) Artifact(stage StageID) string {
	return j.artifacts[stage]
}

// Result returns the recorded result for stage.
func (j *Job) Result(stage StageID) (StageResult, bool) {
	for _, r := range j.Results {
		if r.Stage == stage {
			return r, true
		}
	}
	return StageResult{}, false
}

// PartialOutput is where processing writes before finalize renames it.
func (j *Job) PartialOutput() string {
	return PartialPath(j.Output)
}

// FramesProcessed is the frame count the processing engine delivered.
func (j *Job) FramesProcessed() int64 {
	if r, ok := j.Result(StageProcess); ok && r.Succeeded() {
		return r.FramesDone
	}
	return 0
}

// Elapsed is the wall-clock time from first stage to terminal state.
func (j *Job) Elapsed() time.Duration {
	if j.StartedAt.IsZero() || j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// ErrorText renders the terminal error, or "".
func (j *Job) ErrorText() string {
	if j.Err == nil {
		return ""
	}
	return j.Err.Error()
}

// PartialPath maps an output path to its in-progress name, such as
// clip_prores.mov -> clip_prores.partial.mov.
func PartialPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + ".partial" + ext
}
