package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"hdvapourize/internal/batch"
	"hdvapourize/internal/config"
	"hdvapourize/internal/discover"
	"hdvapourize/internal/history"
	"hdvapourize/internal/job"
	"hdvapourize/internal/logging"
	"hdvapourize/internal/notifications"
	"hdvapourize/internal/progress"
	"hdvapourize/internal/services"
	"hdvapourize/internal/workdir"
	"hdvapourize/internal/workflow"
)

// LockName is the file created in the output root while a run is active.
const LockName = ".hdvapourize.lock"

// ErrOutputLocked is returned when another invocation holds the output root.
var ErrOutputLocked = errors.New("output directory is in use by another run")

// Options configures a run. Config is required.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	// Progress receives per-job progress. One is created when nil.
	Progress *progress.Aggregator
	// Pipeline replaces the standard stage pipeline.
	Pipeline batch.Pipeline
	// RunID overrides the generated run identifier.
	RunID string
	// Notifier receives run milestones. Built from Config when nil.
	Notifier notifications.Service
	// OnPlanned is called with the jobs once they are created, before any
	// of them runs.
	OnPlanned func(runID string, jobs []*job.Job)
}

// Run converts every input under input into output. It returns an error only
// when the run cannot start (missing input, unusable output, lock held);
// per-file failures are reported in the returned Report.
func Run(ctx context.Context, input, output string, opts Options) (*batch.Report, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "orchestrator", "run", "configuration is required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	if strings.TrimSpace(output) == "" {
		output = cfg.Paths.OutputDir
	}
	outputRoot, err := config.ExpandPath(strings.TrimSpace(output))
	if err != nil || outputRoot == "" {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "resolve output", "invalid output directory", err)
	}

	candidates, err := discover.Discover(input, discover.Options{
		Recursive:  cfg.Batch.Recursive,
		Extensions: cfg.Batch.Extensions,
		ExcludeDir: outputRoot,
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, services.Wrap(services.ErrEnvironment, "orchestrator", "create output", outputRoot, err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrEnvironment, "orchestrator", "create directories", "working directories", err)
	}

	lock := flock.New(filepath.Join(outputRoot, LockName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrEnvironment, "orchestrator", "lock output", outputRoot, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "lock output", outputRoot, ErrOutputLocked)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release output lock", logging.Error(err))
		}
		_ = os.Remove(lock.Path())
	}()

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = services.WithRunID(ctx, runID)
	runLogger := logging.WithContext(ctx, logging.NewComponentLogger(logger, "orchestrator"))

	workdir.CleanStale(ctx, cfg.Paths.TempDir, cfg.StaleWorkAge(), []string{runID}, runLogger)

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	agg := opts.Progress
	if agg == nil {
		agg = progress.NewAggregator(Weights(cfg))
	}

	runTemp := filepath.Join(cfg.Paths.TempDir, runID)
	assignments := discover.AssignOutputs(candidates, outputRoot, cfg.Output.Suffix, cfg.Output.Container)
	jobs := make([]*job.Job, 0, len(assignments))
	for _, a := range assignments {
		j := job.New(a.Path, a.RelPath, a.Output)
		j.TempDir = filepath.Join(runTemp, j.ID)
		agg.Register(j.ID, a.RelPath)
		jobs = append(jobs, j)
	}

	runLogger.Info("run planned",
		logging.String(logging.FieldEventType, "run_planned"),
		logging.String("input", input),
		logging.String("output", outputRoot),
		logging.Int("files", len(jobs)),
		logging.Bool("test_mode", cfg.TestMode.Enabled),
		logging.Int64("frame_ceiling", cfg.FrameCeiling()),
	)
	if len(jobs) == 0 {
		logging.WarnWithContext(runLogger, "no input files found", "run_empty",
			logging.String(logging.FieldErrorHint, "check the input path, --recursive and batch.extensions"),
		)
	}
	if opts.OnPlanned != nil {
		opts.OnPlanned(runID, jobs)
	}
	if len(jobs) > 0 {
		notify(runLogger, "run_started", notifier.NotifyRunStarted(ctx, runID, len(jobs)))
	}

	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = workflow.NewFromConfig(cfg, logger, agg)
	}
	scheduler := batch.NewScheduler(pipeline, cfg.EffectiveConcurrency(), agg, logger)
	report := scheduler.Run(ctx, runID, jobs)

	if !cfg.Batch.RetainIntermediates {
		_ = os.Remove(runTemp)
	}
	finalCtx := context.WithoutCancel(ctx)
	if cfg.History.Enabled {
		saveHistory(finalCtx, runLogger, cfg, report, history.RunMeta{
			Input:    input,
			Output:   outputRoot,
			TestMode: cfg.TestMode.Enabled,
		})
	}
	if len(jobs) > 0 {
		for _, s := range report.Jobs {
			if s.State == job.StateFailed {
				notify(runLogger, "job_failed", notifier.NotifyJobFailed(finalCtx, s))
			}
		}
		notify(runLogger, "run_completed", notifier.NotifyRunCompleted(finalCtx, report))
	}
	return report, nil
}

func notify(logger *slog.Logger, event string, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logger, "notification failed", "notification_failed",
		logging.String("notification", event),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
	)
}

// Weights converts the configured stage weights.
func Weights(cfg *config.Config) progress.Weights {
	return progress.Weights{
		job.StageAnalyze:  cfg.Progress.AnalyzeWeight,
		job.StageRewrap:   cfg.Progress.RewrapWeight,
		job.StageProcess:  cfg.Progress.ProcessWeight,
		job.StageFinalize: cfg.Progress.FinalizeWeight,
	}
}

func saveHistory(ctx context.Context, logger *slog.Logger, cfg *config.Config, report *batch.Report, meta history.RunMeta) {
	store, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run will not appear in `hdvapourize history`"),
		)
		return
	}
	defer store.Close()
	if err := store.Save(ctx, report, meta); err != nil {
		logging.WarnWithContext(logger, "failed to record run history", "history_save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, fmt.Sprintf("run %s will not appear in history", report.RunID)),
		)
		return
	}
	logger.Debug("run recorded in history", logging.String("db", store.Path()))
}
