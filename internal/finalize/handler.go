package finalize

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"hdvapourize/internal/config"
	"hdvapourize/internal/fileutil"
	"hdvapourize/internal/job"
	"hdvapourize/internal/logging"
	"hdvapourize/internal/media/ffprobe"
	"hdvapourize/internal/services"
	"hdvapourize/internal/services/ffmpeg"
	"hdvapourize/internal/stage"
)

const (
	stageName = "finalize"
	// durationToleranceRatio and durationToleranceFloor bound how far the
	// encoded duration may drift from the expected one.
	durationToleranceRatio = 0.02
	durationToleranceFloor = 1.0
)

// Prober matches ffprobe.Inspect.
type Prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Handler implements stage.Handler for finalization.
type Handler struct {
	cfg    *config.Config
	logger *slog.Logger
	probe  Prober
}

// NewHandler constructs the finalize handler.
func NewHandler(cfg *config.Config, logger *slog.Logger) *Handler {
	return NewHandlerWithProber(cfg, logger, ffprobe.Inspect)
}

// NewHandlerWithProber allows injecting a custom probe (used in tests).
func NewHandlerWithProber(cfg *config.Config, logger *slog.Logger, probe Prober) *Handler {
	if probe == nil {
		probe = ffprobe.Inspect
	}
	return &Handler{cfg: cfg, logger: logging.NewComponentLogger(logger, "finalize"), probe: probe}
}

// Prepare is a no-op; verification happens in Execute.
func (h *Handler) Prepare(context.Context, *job.Job) error { return nil }

// Execute verifies the partial output and renames it to the final path.
func (h *Handler) Execute(ctx context.Context, j *job.Job, reporter stage.Reporter) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, h.logger)
	partial := j.Artifact(job.StageProcess)
	if partial == "" {
		partial = j.PartialOutput()
	}

	info, err := os.Stat(partial)
	if err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrToolFailure, stageName, "verify", "partial output missing", err)
	}
	if info.Size() < h.cfg.Output.MinBytes {
		return stage.Outcome{BytesDone: info.Size()}, services.Wrap(services.ErrToolFailure, stageName, "verify",
			fmt.Sprintf("output is %d bytes, below minimum %d", info.Size(), h.cfg.Output.MinBytes), nil)
	}

	probeCtx := ctx
	if timeout := h.cfg.StageTimeout(stageName); timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	result, err := h.probe(probeCtx, h.cfg.Tools.FFprobe, partial)
	if err != nil {
		return stage.Outcome{BytesDone: info.Size()}, stage.ClassifyContext(probeCtx, services.ErrToolFailure, stageName, "probe output", err)
	}
	if reporter != nil {
		reporter.Report(1, 2)
	}

	if !j.Truncated {
		if err := h.verifyDuration(j, result); err != nil {
			return stage.Outcome{BytesDone: info.Size()}, err
		}
	}
	h.checkColor(logger, result)

	if err := fileutil.MoveFile(partial, j.Output); err != nil {
		return stage.Outcome{BytesDone: info.Size()}, services.Wrap(services.ErrToolFailure, stageName, "move output", j.Output, err)
	}
	logger.Info("output finalized",
		logging.String("output", j.Output),
		logging.Int64("bytes", info.Size()),
		logging.Bool("truncated", j.Truncated),
		logging.String(logging.FieldEventType, "finalize_complete"),
	)
	if reporter != nil {
		reporter.Report(2, 2)
	}
	return stage.Outcome{
		Artifact:    j.Output,
		BytesDone:   info.Size(),
		FramesDone:  j.FramesProcessed(),
		FramesTotal: j.FramesTotal,
		Truncated:   j.Truncated,
	}, nil
}

func (h *Handler) verifyDuration(j *job.Job, result ffprobe.Result) error {
	expected := expectedDuration(j)
	if expected <= 0 {
		return nil
	}
	actual := result.DurationSeconds()
	if math.IsNaN(actual) || actual <= 0 {
		if video, ok := result.VideoStream(); ok {
			if n := video.FrameCount(); n > 0 && j.Profile.FrameRate() > 0 {
				actual = float64(n) / j.Profile.FrameRate()
			}
		}
	}
	if math.IsNaN(actual) || actual <= 0 {
		return services.Wrap(services.ErrToolFailure, stageName, "verify duration", "output duration unavailable", nil)
	}
	tolerance := math.Max(durationToleranceFloor, expected*durationToleranceRatio)
	if math.Abs(actual-expected) > tolerance {
		return services.Wrap(services.ErrToolFailure, stageName, "verify duration",
			fmt.Sprintf("output runs %.2fs, expected %.2fs", actual, expected), nil)
	}
	return nil
}

// expectedDuration prefers the delivered frame count over the source
// duration because the processing engine may drop a trailing frame.
func expectedDuration(j *job.Job) float64 {
	rate := j.Profile.FrameRate()
	if frames := j.FramesProcessed(); frames > 0 && rate > 0 {
		return float64(frames) / rate
	}
	return j.Profile.DurationSeconds
}

func (h *Handler) checkColor(logger *slog.Logger, result ffprobe.Result) {
	video, ok := result.VideoStream()
	if !ok {
		return
	}
	want := ffmpeg.ColorTagsFor(h.cfg.Processing.ColorSpace)
	got := strings.TrimSpace(video.ColorPrimaries)
	if got == "" || strings.EqualFold(got, want.Primaries) {
		return
	}
	logging.WarnWithContext(logger, "output color primaries differ from target", "color_mismatch",
		logging.String("expected", want.Primaries),
		logging.String("actual", got),
		logging.String(logging.FieldImpact, "deliverable may display with shifted colors"),
	)
}

// HealthCheck always reports ready; ffprobe is covered by analysis.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(stageName)
}

var _ stage.Handler = (*Handler)(nil)
