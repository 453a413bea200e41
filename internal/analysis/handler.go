package analysis

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"

	"hdvapourize/internal/config"
	"hdvapourize/internal/fileutil"
	"hdvapourize/internal/job"
	"hdvapourize/internal/logging"
	"hdvapourize/internal/media/ffprobe"
	"hdvapourize/internal/media/profile"
	"hdvapourize/internal/services"
	"hdvapourize/internal/stage"
)

const stageName = "analyze"

// Prober matches ffprobe.Inspect.
type Prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Handler implements stage.Handler for analysis.
type Handler struct {
	cfg    *config.Config
	logger *slog.Logger
	probe  Prober
}

// NewHandler constructs the analysis handler.
func NewHandler(cfg *config.Config, logger *slog.Logger) *Handler {
	return NewHandlerWithProber(cfg, logger, ffprobe.Inspect)
}

// NewHandlerWithProber allows injecting a custom probe (used in tests).
func NewHandlerWithProber(cfg *config.Config, logger *slog.Logger, probe Prober) *Handler {
	if probe == nil {
		probe = ffprobe.Inspect
	}
	return &Handler{cfg: cfg, logger: logging.NewComponentLogger(logger, "analysis"), probe: probe}
}

// Prepare confirms the input is still present.
func (h *Handler) Prepare(_ context.Context, j *job.Job) error {
	info, err := os.Stat(j.Input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrPathNotFound, stageName, "stat input", j.Input, err)
		}
		return services.Wrap(services.ErrValidation, stageName, "stat input", j.Input, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, stageName, "stat input", "input is a directory", nil)
	}
	return nil
}

// Execute probes the input and records its profile on the job.
func (h *Handler) Execute(ctx context.Context, j *job.Job, reporter stage.Reporter) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, h.logger)

	if h.cfg.Batch.SkipExisting && fileutil.UpToDate(j.Input, j.Output, h.cfg.Output.MinBytes) {
		logger.Info("output already up to date; skipping",
			logging.String("output", j.Output),
			logging.String(logging.FieldEventType, "skip_existing"),
		)
		return stage.Outcome{Skip: true, SkipReason: "output already up to date"}, nil
	}

	probeCtx := ctx
	if timeout := h.cfg.StageTimeout(stageName); timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := h.probe(probeCtx, h.cfg.Tools.FFprobe, j.Input)
	if err != nil {
		outcome := stage.Outcome{ExitCode: exitCode(err)}
		var probeErr *ffprobe.Error
		if errors.As(err, &probeErr) {
			outcome.Diagnostic = probeErr.Stderr
		}
		return outcome, stage.ClassifyContext(probeCtx, services.ErrToolFailure, stageName, "ffprobe", err)
	}

	var size int64
	if info, statErr := os.Stat(j.Input); statErr == nil {
		size = info.Size()
	}
	prof, err := profile.Build(result, size)
	if err != nil {
		return stage.Outcome{}, err
	}
	j.Profile = prof

	if !prof.Classified() {
		if !h.cfg.BestEffortUnclassified() {
			logger.Warn("unclassified source format",
				logging.String("profile", prof.Summary()),
				logging.String(logging.FieldEventType, "unclassified_format"),
				logging.String(logging.FieldErrorHint, "set batch.unclassified_policy = \"best_effort\" to process it anyway"),
				logging.String(logging.FieldImpact, "job skipped"),
			)
			return stage.Outcome{}, services.Wrap(services.ErrUnclassifiedFormat, stageName, "classify",
				fmt.Sprintf("no known source class for %s", prof.Summary()), nil)
		}
		logger.Warn("unclassified source format; continuing with probed parameters",
			logging.String("profile", prof.Summary()),
			logging.String(logging.FieldEventType, "unclassified_best_effort"),
		)
	}

	frames := prof.FrameCount
	if ceiling := h.cfg.FrameCeiling(); ceiling > 0 && (frames <= 0 || frames > ceiling) {
		frames = ceiling
	}
	j.FramesTotal = frames

	logger.Info("source analyzed",
		logging.String("profile", prof.Summary()),
		logging.String("field_order", string(prof.FieldOrder)),
		logging.Int64("frames", frames),
		logging.String("frame_count_source", prof.FrameCountSource),
		logging.Bool("audio", prof.HasAudio),
		logging.String(logging.FieldEventType, "analysis_complete"),
	)
	if reporter != nil {
		reporter.Report(1, 1)
	}
	return stage.Outcome{FramesDone: 1, FramesTotal: 1, BytesDone: size}, nil
}

// HealthCheck verifies ffprobe can be found.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	return stage.RequireTools(stageName, h.cfg.Tools.FFprobe)
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

var _ stage.Handler = (*Handler)(nil)

