package processing

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"hdvapourize/internal/config"
	"hdvapourize/internal/job"
	"hdvapourize/internal/logging"
	"hdvapourize/internal/runner"
	"hdvapourize/internal/services"
	"hdvapourize/internal/services/ffmpeg"
	"hdvapourize/internal/services/vspipe"
	"hdvapourize/internal/stage"
)

const stageName = "process"

// Handler implements stage.Handler for the process stage.
type Handler struct {
	cfg    *config.Config
	logger *slog.Logger
	runner *runner.Runner

	gpuOnce sync.Once
	gpu     bool
}

// NewHandler constructs the processing handler.
func NewHandler(cfg *config.Config, logger *slog.Logger, r *runner.Runner) *Handler {
	if r == nil {
		r = runner.New(logger)
	}
	return &Handler{cfg: cfg, logger: logging.NewComponentLogger(logger, "processing"), runner: r}
}

// Prepare checks the rewrapped master and the script exist, and creates the
// output directory.
func (h *Handler) Prepare(ctx context.Context, j *job.Job) error {
	master := j.Artifact(job.StageRewrap)
	if master == "" {
		return services.Wrap(services.ErrValidation, stageName, "prepare", "rewrapped master missing", nil)
	}
	if _, err := os.Stat(master); err != nil {
		return services.Wrap(services.ErrToolFailure, stageName, "prepare", "rewrapped master missing", err)
	}
	if _, err := os.Stat(h.cfg.Tools.Script); err != nil {
		return services.Wrap(services.ErrEnvironment, stageName, "prepare", "processing script not found", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.Output), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "prepare", "create output directory", err)
	}
	h.gpuOnce.Do(func() {
		h.gpu = vspipe.ResolveGPU(ctx, h.cfg.Processing.UseGPU, h.cfg.Tools.NvidiaSMI)
		h.logger.Info("gpu acceleration resolved",
			logging.Bool("use_gpu", h.gpu),
			logging.String("mode", h.cfg.Processing.UseGPU),
		)
	})
	return nil
}

// Execute runs vspipe into ffmpeg and returns the partial output as the
// artifact.
func (h *Handler) Execute(ctx context.Context, j *job.Job, reporter stage.Reporter) (stage.Outcome, error) {
	master := j.Artifact(job.StageRewrap)
	partial := j.PartialOutput()
	ceiling := h.cfg.FrameCeiling()

	params := ScriptParams(master, j.Profile, h.cfg.Processing, h.gpu)
	producer := runner.Command{
		Binary: h.cfg.Tools.VSPipe,
		Args:   vspipe.Args(vspipe.Options{Script: h.cfg.Tools.Script, Params: params, FrameLimit: ceiling}),
	}
	consumer := runner.Command{
		Binary: h.cfg.Tools.FFmpeg,
		Args: ffmpeg.EncodeArgs(ffmpeg.EncodeOptions{
			AudioSource:  master,
			HasAudio:     j.Profile.HasAudio,
			AudioCodec:   h.cfg.Output.AudioCodec,
			Output:       partial,
			ColorSpace:   h.cfg.Processing.ColorSpace,
			OutputFormat: h.cfg.Processing.OutputFormat,
			FrameLimit:   ceiling,
		}),
	}

	logging.WithContext(ctx, h.logger).Info("processing started",
		logging.String("script", h.cfg.Tools.Script),
		logging.String("deinterlace_preset", h.cfg.Processing.DeinterlacePreset),
		logging.Int("upscale_factor", h.cfg.Processing.UpscaleFactor),
		logging.Int64("frames", j.FramesTotal),
		logging.String("output", partial),
		logging.String(logging.FieldEventType, "process_start"),
	)

	signatures := make([]runner.Signature, 0, len(vspipe.Signatures)+len(ffmpeg.Signatures))
	signatures = append(signatures, vspipe.Signatures...)
	signatures = append(signatures, ffmpeg.Signatures...)

	res, err := h.runner.Run(ctx, runner.Spec{
		Stage:          stageName,
		Command:        producer,
		Pipe:           &consumer,
		Parser:         vspipe.ProgressParser{Total: j.FramesTotal},
		FramesTotal:    j.FramesTotal,
		FrameCeiling:   ceiling,
		Timeout:        h.cfg.StageTimeout(stageName),
		StallTimeout:   h.cfg.StallTimeout(),
		GracePeriod:    h.cfg.GracePeriod(),
		ExpectedOutput: partial,
		Signatures:     signatures,
		OnProgress:     stage.ProgressCallback(reporter),
	})
	return stage.FromRunner(res, partial), err
}

// HealthCheck verifies vspipe, ffmpeg and the script are present.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	return stage.Combine(stageName,
		stage.RequireTools(stageName, h.cfg.Tools.VSPipe, h.cfg.Tools.FFmpeg),
		stage.RequireFile(stageName, "script", h.cfg.Tools.Script),
	)
}

var _ stage.Handler = (*Handler)(nil)
