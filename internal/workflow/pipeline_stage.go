package workflow

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"hdvapourize/internal/job"
	"hdvapourize/internal/logging"
	"hdvapourize/internal/services"
	"hdvapourize/internal/stage"
)

// runStep executes one stage and reports whether the pipeline continues.
func (p *Pipeline) runStep(ctx context.Context, step Step, j *job.Job) bool {
	requestID := uuid.NewString()
	stageCtx := services.WithStage(services.WithRequestID(ctx, requestID), string(step.ID))
	logger := logging.WithContext(stageCtx, p.logger)

	if err := j.Begin(step.ID); err != nil {
		p.finish(logger, j, job.StateFailed, err)
		return false
	}
	p.tracker.Update(j.ID, step.ID, 0, 0)

	started := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("stage_label", stageLabel(step.ID)),
		logging.String("input", j.RelPath),
	)

	outcome, err := p.execute(stageCtx, step, j)
	result := job.StageResult{
		Stage:       step.ID,
		Started:     started,
		Finished:    time.Now(),
		FramesDone:  outcome.FramesDone,
		FramesTotal: outcome.FramesTotal,
		BytesDone:   outcome.BytesDone,
		ExitCode:    outcome.ExitCode,
		Diagnostic:  outcome.Diagnostic,
		Truncated:   outcome.Truncated,
	}
	if err != nil {
		result.FailureKind = services.KindOf(err)
		result.Error = err.Error()
	} else {
		result.Artifact = outcome.Artifact
	}
	if recErr := j.Record(result); recErr != nil {
		logger.Error("stage result rejected", logging.Error(recErr))
		if err == nil {
			err = recErr
		}
	}

	if err != nil {
		p.discardArtifact(logger, j, outcome.Artifact)
		p.handleStageFailure(logger, step, j, result, err)
		return false
	}

	p.tracker.Update(j.ID, step.ID, 1, 1)
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("stage_label", stageLabel(step.ID)),
		logging.Duration("stage_duration", result.Duration()),
		logging.Int64("frames_done", result.FramesDone),
		logging.Bool("truncated", result.Truncated),
	)

	if outcome.Skip {
		j.SkipReason = outcome.SkipReason
		p.finish(logger, j, job.StateSkipped, nil)
		return false
	}
	return true
}

// execute runs Prepare and Execute, converting a handler panic into a tool
// failure.
func (p *Pipeline) execute(ctx context.Context, step Step, j *job.Job) (outcome stage.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logging.WithContext(ctx, p.logger), "stage handler panicked", "stage_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
			)
			outcome = stage.Outcome{}
			err = services.Wrap(services.ErrToolFailure, string(step.ID), "execute", fmt.Sprintf("handler panic: %v", r), nil)
		}
	}()

	if step.Handler == nil {
		return stage.Outcome{}, services.Wrap(services.ErrConfiguration, string(step.ID), "execute", "stage handler unavailable", nil)
	}
	if err := step.Handler.Prepare(ctx, j); err != nil {
		return stage.Outcome{}, err
	}
	return step.Handler.Execute(ctx, j, p.reporter(ctx, step, j))
}

func (p *Pipeline) reporter(ctx context.Context, step Step, j *job.Job) stage.Reporter {
	return stage.ReporterFunc(func(done, total int64) {
		p.tracker.Update(j.ID, step.ID, done, total)
		percent := -1.0
		if total > 0 {
			percent = float64(done) / float64(total) * 100
		}
		if p.sampler.ShouldLog(j.ID, string(step.ID), percent) {
			logging.WithContext(ctx, p.logger).Debug("stage progress",
				logging.String(logging.FieldEventType, "stage_progress"),
				logging.Int64("frames_done", done),
				logging.Int64("frames_total", total),
				logging.Float64("percent", percent),
			)
		}
	})
}
