package rewrap

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"hdvapourize/internal/config"
	"hdvapourize/internal/job"
	"hdvapourize/internal/logging"
	"hdvapourize/internal/runner"
	"hdvapourize/internal/services"
	"hdvapourize/internal/services/ffmpeg"
	"hdvapourize/internal/stage"
)

const (
	stageName = "rewrap"
	// ArtifactName is the rewrapped master inside the job's work directory.
	ArtifactName = "rewrap.mov"
)

// Handler implements stage.Handler for the rewrap stage.
type Handler struct {
	cfg    *config.Config
	logger *slog.Logger
	runner *runner.Runner
}

// NewHandler constructs the rewrap handler.
func NewHandler(cfg *config.Config, logger *slog.Logger, r *runner.Runner) *Handler {
	if r == nil {
		r = runner.New(logger)
	}
	return &Handler{cfg: cfg, logger: logging.NewComponentLogger(logger, "rewrap"), runner: r}
}

// Prepare creates the job's work directory.
func (h *Handler) Prepare(_ context.Context, j *job.Job) error {
	if j.TempDir == "" {
		j.TempDir = filepath.Join(h.cfg.Paths.TempDir, j.ID)
	}
	if err := os.MkdirAll(j.TempDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "create work dir", j.TempDir, err)
	}
	return nil
}

// Execute runs ffmpeg and returns the rewrapped master as the artifact.
func (h *Handler) Execute(ctx context.Context, j *job.Job, reporter stage.Reporter) (stage.Outcome, error) {
	output := filepath.Join(j.TempDir, ArtifactName)
	prof := j.Profile
	args := ffmpeg.RewrapArgs(ffmpeg.RewrapOptions{
		Input:         j.Input,
		Output:        output,
		Interlaced:    prof.Interlaced(),
		TopFieldFirst: prof.TopFieldFirst(),
		HasAudio:      prof.HasAudio,
		AudioCodec:    h.cfg.Output.AudioCodec,
		ColorSpace:    h.cfg.Processing.ColorSpace,
		OutputFormat:  h.cfg.Processing.OutputFormat,
		FrameLimit:    h.cfg.FrameCeiling(),
	})

	logging.WithContext(ctx, h.logger).Info("rewrapping source",
		logging.String("input", j.Input),
		logging.String("output", output),
		logging.String("field_order", string(prof.FieldOrder)),
		logging.String(logging.FieldEventType, "rewrap_start"),
	)

	res, err := h.runner.Run(ctx, runner.Spec{
		Stage:          stageName,
		Command:        runner.Command{Binary: h.cfg.Tools.FFmpeg, Args: args},
		Parser:         ffmpeg.ProgressParser{Total: j.FramesTotal},
		FramesTotal:    j.FramesTotal,
		FrameCeiling:   h.cfg.FrameCeiling(),
		Timeout:        h.cfg.StageTimeout(stageName),
		StallTimeout:   h.cfg.StallTimeout(),
		GracePeriod:    h.cfg.GracePeriod(),
		ExpectedOutput: output,
		Signatures:     ffmpeg.Signatures,
		OnProgress:     stage.ProgressCallback(reporter),
	})
	return stage.FromRunner(res, output), err
}

// HealthCheck verifies ffmpeg can be found.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	return stage.RequireTools(stageName, h.cfg.Tools.FFmpeg)
}

var _ stage.Handler = (*Handler)(nil)
