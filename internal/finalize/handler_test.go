package finalize_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdvapourize/internal/config"
	"hdvapourize/internal/finalize"
	"hdvapourize/internal/job"
	"hdvapourize/internal/logging"
	"hdvapourize/internal/media/ffprobe"
	"hdvapourize/internal/media/profile"
	"hdvapourize/internal/services"
	"hdvapourize/internal/stage"
	"hdvapourize/internal/testsupport"
)

func processedJob(t *testing.T, cfg *config.Config, frames int64, truncated bool) *job.Job {
	t.Helper()
	j := job.New("/in/tape.dv", "tape.dv", filepath.Join(cfg.Paths.OutputDir, "tape_prores.mov"))
	j.Profile = profile.FormatProfile{FrameRateNum: 25, FrameRateDen: 1, DurationSeconds: 4}
	j.FramesTotal = frames
	testsupport.WriteFile(t, j.PartialOutput(), 256)

	require.NoError(t, j.Begin(job.StageAnalyze))
	require.NoError(t, j.Record(job.StageResult{Stage: job.StageAnalyze}))
	require.NoError(t, j.Begin(job.StageRewrap))
	require.NoError(t, j.Record(job.StageResult{Stage: job.StageRewrap, Artifact: "/work/rewrap.mov"}))
	require.NoError(t, j.Begin(job.StageProcess))
	require.NoError(t, j.Record(job.StageResult{
		Stage: job.StageProcess, Artifact: j.PartialOutput(),
		FramesDone: frames, FramesTotal: frames, Truncated: truncated,
	}))
	require.NoError(t, j.Begin(job.StageFinalize))
	return j
}

func probeReturning(duration, primaries string) finalize.Prober {
	return func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "video", CodecName: "prores", ColorPrimaries: primaries}},
			Format:  ffprobe.Format{Duration: duration},
		}, nil
	}
}

func TestFinalizeMovesVerifiedOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	j := processedJob(t, cfg, 100, false)
	h := finalize.NewHandlerWithProber(cfg, logging.NewNop(), probeReturning("4.04", "smpte432"))

	out, err := h.Execute(context.Background(), j, stage.NopReporter)
	require.NoError(t, err)
	assert.Equal(t, j.Output, out.Artifact)
	assert.Equal(t, int64(100), out.FramesDone)
	assert.FileExists(t, j.Output)
	assert.NoFileExists(t, j.PartialOutput())
}

func TestFinalizeRejectsDurationMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	j := processedJob(t, cfg, 100, false)
	h := finalize.NewHandlerWithProber(cfg, logging.NewNop(), probeReturning("1.5", "smpte432"))

	_, err := h.Execute(context.Background(), j, stage.NopReporter)
	require.Error(t, err)
	assert.Equal(t, services.KindToolFailure, services.KindOf(err))
	assert.NoFileExists(t, j.Output)
	assert.FileExists(t, j.PartialOutput())
}

func TestFinalizeSkipsDurationCheckWhenTruncated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	j := processedJob(t, cfg, 100, true)
	h := finalize.NewHandlerWithProber(cfg, logging.NewNop(), probeReturning("0.4", "bt709"))

	_, err := h.Execute(context.Background(), j, stage.NopReporter)
	require.NoError(t, err)
	assert.FileExists(t, j.Output)
}

func TestFinalizeRejectsSmallOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Output.MinBytes = 1 << 20
	j := processedJob(t, cfg, 100, false)
	h := finalize.NewHandlerWithProber(cfg, logging.NewNop(), probeReturning("4.0", ""))

	out, err := h.Execute(context.Background(), j, stage.NopReporter)
	require.Error(t, err)
	assert.Equal(t, int64(256), out.BytesDone)
}

func TestFinalizeMissingPartial(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	j := processedJob(t, cfg, 100, false)
	require.NoError(t, os.Remove(j.PartialOutput()))
	h := finalize.NewHandlerWithProber(cfg, logging.NewNop(), probeReturning("4.0", ""))

	_, err := h.Execute(context.Background(), j, stage.NopReporter)
	assert.Equal(t, services.KindToolFailure, services.KindOf(err))
}
