package batch

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"hdvapourize/internal/job"
	"hdvapourize/internal/logging"
	"hdvapourize/internal/services"
)

// Pipeline drives a single job to a terminal state.
type Pipeline interface {
	Run(ctx context.Context, j *job.Job)
}

// Tracker is told about jobs that end without running.
type Tracker interface {
	Finish(id string, state job.State)
}

// Scheduler runs jobs with at most Concurrency in flight.
type Scheduler struct {
	pipeline    Pipeline
	tracker     Tracker
	concurrency int
	logger      *slog.Logger

	running atomic.Int32
	peak    atomic.Int32
}

// NewScheduler builds a Scheduler. A concurrency below 1 is treated as 1.
func NewScheduler(pipeline Pipeline, concurrency int, tracker Tracker, logger *slog.Logger) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		pipeline:    pipeline,
		tracker:     tracker,
		concurrency: concurrency,
		logger:      logging.NewComponentLogger(logger, "batch"),
	}
}

// Run processes jobs and returns the finished report. It returns only after
// every job is terminal.
func (s *Scheduler) Run(ctx context.Context, runID string, jobs []*job.Job) *Report {
	report := NewReport(runID)
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("jobs", len(jobs)),
		logging.Int("concurrency", s.concurrency),
	)

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, j := range jobs {
		if ctx.Err() != nil {
			s.cancelUnstarted(ctx, j)
			report.Add(j)
			continue
		}
		g.Go(func() error {
			defer report.Add(j)
			if ctx.Err() != nil {
				s.cancelUnstarted(ctx, j)
				return nil
			}
			s.enter()
			defer s.running.Add(-1)
			s.pipeline.Run(ctx, j)
			return nil
		})
	}
	_ = g.Wait()

	report.Finalize(int(s.peak.Load()))
	logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Int("skipped", report.Skipped),
		logging.Int("cancelled", report.Cancelled),
		logging.Int("peak_concurrency", report.PeakConcurrency),
		logging.Duration("wall_clock", report.Duration),
	)
	return report
}

// Peak is the highest number of jobs observed in flight at once.
func (s *Scheduler) Peak() int {
	return int(s.peak.Load())
}

func (s *Scheduler) enter() {
	n := s.running.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (s *Scheduler) cancelUnstarted(ctx context.Context, j *job.Job) {
	if j.Terminal() {
		return
	}
	cause := services.Wrap(services.ErrCancelled, "batch", "schedule", "batch cancelled before job started", ctx.Err())
	if err := j.Finish(job.StateCancelled, cause); err != nil {
		s.logger.Warn("could not cancel unstarted job", logging.String(logging.FieldJobID, j.ID), logging.Error(err))
		return
	}
	if s.tracker != nil {
		s.tracker.Finish(j.ID, j.State)
	}
}
