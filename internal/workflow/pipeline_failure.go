package workflow

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"hdvapourize/internal/fileutil"
	"hdvapourize/internal/job"
	"hdvapourize/internal/logging"
	"hdvapourize/internal/services"
)

func (p *Pipeline) handleStageFailure(logger *slog.Logger, step Step, j *job.Job, result job.StageResult, stageErr error) {
	state := p.terminalState(step.ID, stageErr)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("stage_label", stageLabel(step.ID)),
		logging.String("resolved_state", string(state)),
		logging.String(logging.FieldFailureKind, string(services.KindOf(stageErr))),
		logging.Int("exit_code", result.ExitCode),
		logging.Duration("stage_duration", result.Duration()),
		logging.Error(stageErr),
	}
	switch state {
	case job.StateCancelled:
		logger.Info("stage cancelled", logging.Args(attrs...)...)
	case job.StateSkipped:
		logger.Warn("stage skipped job", logging.Args(attrs...)...)
	default:
		if tail := lastLine(result.Diagnostic); tail != "" {
			attrs = append(attrs, logging.String("diagnostic", tail))
		}
		attrs = append(attrs,
			logging.Alert("stage_failure"),
			logging.String(logging.FieldErrorHint, failureHint(stageErr)),
		)
		logger.Error("stage failed", logging.Args(attrs...)...)
	}
	p.finish(logger, j, state, stageErr)
}

func (p *Pipeline) terminalState(stageID job.StageID, err error) job.State {
	switch {
	case services.KindOf(err) == services.KindCancelled:
		return job.StateCancelled
	case errors.Is(err, services.ErrUnclassifiedFormat) && stageID == job.StageAnalyze && p.opts.SkipUnclassified:
		return job.StateSkipped
	default:
		return job.StateFailed
	}
}

// finish moves j to state, falling back to Failed when the transition is
// not allowed from the current state.
func (p *Pipeline) finish(logger *slog.Logger, j *job.Job, state job.State, cause error) {
	if err := j.Finish(state, cause); err != nil {
		logger.Warn("terminal transition rejected; marking failed",
			logging.String("requested_state", string(state)),
			logging.Error(err),
		)
		if cause == nil {
			cause = err
		}
		_ = j.Finish(job.StateFailed, cause)
	}
	p.tracker.Finish(j.ID, j.State)
	logger.Info("job finished",
		logging.String(logging.FieldEventType, "job_finished"),
		logging.String("state", string(j.State)),
		logging.String(logging.FieldFailureKind, string(j.FailureKind)),
		logging.String("skip_reason", j.SkipReason),
		logging.Duration("elapsed", j.Elapsed()),
	)
}

// discardArtifact deletes what a failed or cancelled stage left behind. It
// runs even when intermediates are retained; a finished deliverable is never
// touched.
func (p *Pipeline) discardArtifact(logger *slog.Logger, j *job.Job, path string) {
	if strings.TrimSpace(path) == "" || path == j.Output {
		return
	}
	if err := fileutil.RemoveIfExists(path); err != nil {
		logger.Warn("failed to remove stage artifact", logging.String("path", path), logging.Error(err))
	}
}

// cleanup removes the partial deliverable unless the job succeeded, and the
// work directory unless intermediates are retained.
func (p *Pipeline) cleanup(logger *slog.Logger, j *job.Job) {
	if j.State != job.StateSucceeded && j.Output != "" {
		if err := fileutil.RemoveIfExists(j.PartialOutput()); err != nil {
			logger.Warn("failed to remove partial output", logging.String("path", j.PartialOutput()), logging.Error(err))
		}
	}
	if p.opts.RetainIntermediates || strings.TrimSpace(j.TempDir) == "" {
		return
	}
	if err := os.RemoveAll(j.TempDir); err != nil {
		logger.Warn("failed to remove work directory", logging.String("path", j.TempDir), logging.Error(err))
	}
}

func failureHint(err error) string {
	switch services.KindOf(err) {
	case services.KindEnvironment:
		return "run `hdvapourize check` to verify tools, plugins and the processing script"
	case services.KindTimeout:
		return "raise the stage timeout under [timeouts]"
	case services.KindUnclassified:
		return "set batch.unclassified_policy = \"best_effort\" to process unknown formats"
	case services.KindPathNotFound:
		return "the input disappeared during the run"
	default:
		return "see the diagnostic output in the run log"
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
