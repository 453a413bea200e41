package workflow

import (
	"context"
	"log/slog"

	"hdvapourize/internal/analysis"
	"hdvapourize/internal/config"
	"hdvapourize/internal/finalize"
	"hdvapourize/internal/job"
	"hdvapourize/internal/logging"
	"hdvapourize/internal/processing"
	"hdvapourize/internal/rewrap"
	"hdvapourize/internal/runner"
	"hdvapourize/internal/services"
	"hdvapourize/internal/stage"
)

// Step binds a handler to its pipeline position.
type Step struct {
	ID      job.StageID
	Handler stage.Handler
}

// Tracker receives progress and terminal states. progress.Aggregator
// satisfies it.
type Tracker interface {
	Update(id string, stage job.StageID, done, total int64)
	Finish(id string, state job.State)
}

type nopTracker struct{}

func (nopTracker) Update(string, job.StageID, int64, int64) {}
func (nopTracker) Finish(string, job.State)                 {}

// Options tune terminal-state and cleanup behaviour.
type Options struct {
	RetainIntermediates bool
	// SkipUnclassified ends jobs with unrecognized sources as Skipped
	// rather than Failed.
	SkipUnclassified bool
}

// Pipeline runs the stages for one job at a time. It is safe to call Run
// concurrently for different jobs.
type Pipeline struct {
	steps   []Step
	tracker Tracker
	logger  *slog.Logger
	opts    Options
	sampler *logging.ProgressSampler
}

// New assembles a Pipeline from explicit steps.
func New(steps []Step, tracker Tracker, logger *slog.Logger, opts Options) *Pipeline {
	if tracker == nil {
		tracker = nopTracker{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		steps:   steps,
		tracker: tracker,
		logger:  logging.NewComponentLogger(logger, "workflow"),
		opts:    opts,
		sampler: logging.NewProgressSampler(5),
	}
}

// NewFromConfig wires the standard analyze, rewrap, process and finalize
// handlers.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, tracker Tracker) *Pipeline {
	r := runner.New(logger)
	steps := []Step{
		{ID: job.StageAnalyze, Handler: analysis.NewHandler(cfg, logger)},
		{ID: job.StageRewrap, Handler: rewrap.NewHandler(cfg, logger, r)},
		{ID: job.StageProcess, Handler: processing.NewHandler(cfg, logger, r)},
		{ID: job.StageFinalize, Handler: finalize.NewHandler(cfg, logger)},
	}
	return New(steps, tracker, logger, Options{
		RetainIntermediates: cfg.Batch.RetainIntermediates,
		SkipUnclassified:    !cfg.BestEffortUnclassified(),
	})
}

// Steps returns the configured steps in order.
func (p *Pipeline) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// HealthCheck collects the readiness of every stage.
func (p *Pipeline) HealthCheck(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(p.steps))
	for _, step := range p.steps {
		h := step.Handler.HealthCheck(ctx)
		if h.Name == "" {
			h.Name = string(step.ID)
		}
		out = append(out, h)
	}
	return out
}

// Run drives j to a terminal state. It never returns an error: every
// outcome is recorded on the job.
func (p *Pipeline) Run(ctx context.Context, j *job.Job) {
	ctx = services.WithJobID(ctx, j.ID)
	logger := logging.WithContext(ctx, p.logger)
	defer p.sampler.Forget(j.ID)
	defer p.cleanup(logger, j)

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.finish(logger, j, job.StateCancelled,
				services.Wrap(services.ErrCancelled, string(step.ID), "schedule", "cancelled before stage start", err))
			return
		}
		if !p.runStep(ctx, step, j) {
			return
		}
	}
	p.finish(logger, j, job.StateSucceeded, nil)
}
