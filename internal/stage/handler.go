package stage

import (
	"context"

	"hdvapourize/internal/job"
	"hdvapourize/internal/runner"
)

//go:generate mockgen -destination=mocks/handler.go -package=mocks hdvapourize/internal/stage Handler,Reporter

// Handler describes the contract the pipeline needs from each stage.
type Handler interface {
	Prepare(context.Context, *job.Job) error
	Execute(context.Context, *job.Job, Reporter) (Outcome, error)
	HealthCheck(context.Context) Health
}

// Reporter receives frame progress for the running stage.
type Reporter interface {
	Report(done, total int64)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(done, total int64)

// Report implements Reporter.
func (f ReporterFunc) Report(done, total int64) { f(done, total) }

// NopReporter discards progress.
var NopReporter Reporter = ReporterFunc(func(int64, int64) {})

// Outcome is what a stage hands back to the pipeline. It is populated on
// failure too, so diagnostics reach the stage result.
type Outcome struct {
	Artifact    string
	FramesDone  int64
	FramesTotal int64
	BytesDone   int64
	ExitCode    int
	Diagnostic  string
	Truncated   bool
	// Skip ends the job as Skipped without error, e.g. an up-to-date output.
	Skip       bool
	SkipReason string
}

// FromRunner copies the process result into an Outcome.
func FromRunner(res runner.Result, artifact string) Outcome {
	return Outcome{
		Artifact:    artifact,
		FramesDone:  res.FramesDone,
		FramesTotal: res.FramesTotal,
		BytesDone:   res.OutputBytes,
		ExitCode:    res.ExitCode,
		Diagnostic:  res.Diagnostic,
		Truncated:   res.Truncated,
	}
}

// ProgressCallback adapts a Reporter for runner.Spec.OnProgress.
func ProgressCallback(r Reporter) func(runner.Progress) {
	if r == nil {
		return nil
	}
	return func(p runner.Progress) { r.Report(p.FramesDone, p.FramesTotal) }
}
