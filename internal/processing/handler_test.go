package processing_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdvapourize/internal/config"
	"hdvapourize/internal/job"
	"hdvapourize/internal/logging"
	"hdvapourize/internal/media/profile"
	"hdvapourize/internal/processing"
	"hdvapourize/internal/services"
	"hdvapourize/internal/stage"
	"hdvapourize/internal/testsupport"
)

func rewrappedJob(t *testing.T, cfg *config.Config, frames int64) *job.Job {
	t.Helper()
	base := testsupport.BaseDir(cfg)
	input := filepath.Join(base, "in", "tape.dv")
	testsupport.WriteFile(t, input, 256)
	j := job.New(input, "tape.dv", filepath.Join(cfg.Paths.OutputDir, "sub", "tape_prores.mov"))
	j.Profile = profile.FormatProfile{
		Width: 720, Height: 480, FrameRateNum: 30000, FrameRateDen: 1001,
		Scan: profile.ScanInterlaced, FieldOrder: profile.FieldBFF, HasAudio: true,
		Class: profile.ClassNTSCDV, PixelAspect: "8:9",
	}
	j.FramesTotal = frames
	j.TempDir = filepath.Join(cfg.Paths.TempDir, j.ID)
	master := filepath.Join(j.TempDir, "rewrap.mov")
	testsupport.WriteFile(t, master, 512)

	require.NoError(t, j.Begin(job.StageAnalyze))
	require.NoError(t, j.Record(job.StageResult{Stage: job.StageAnalyze}))
	require.NoError(t, j.Begin(job.StageRewrap))
	require.NoError(t, j.Record(job.StageResult{Stage: job.StageRewrap, Artifact: master}))
	require.NoError(t, j.Begin(job.StageProcess))
	return j
}

func TestScriptParams(t *testing.T) {
	prof := profile.FormatProfile{
		Width: 1440, Height: 1080, FrameRateNum: 25, FrameRateDen: 1,
		Scan: profile.ScanInterlaced, FieldOrder: profile.FieldTFF, Class: profile.ClassHDV1080i,
	}
	proc := config.Default().Processing
	params := processing.ScriptParams("/w/rewrap.mov", prof, proc, true)
	assert.Equal(t, "/w/rewrap.mov", params["input_file"])
	assert.Equal(t, "hdv_1080i", params["source_class"])
	assert.Equal(t, "1", params["tff"])
	assert.Equal(t, "1", params["interlaced"])
	assert.Equal(t, "1", params["use_gpu"])
	assert.Equal(t, "Placebo", params["deinterlace_preset"])
	assert.Equal(t, "2", params["upscale_factor"])
	assert.Equal(t, "dci-p3", params["color_space"])
	assert.NotContains(t, params, "sar")
}

func TestProcessWritesPartialOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubTools(testsupport.StubOptions{Frames: 40}))
	h := processing.NewHandler(cfg, logging.NewNop(), nil)
	j := rewrappedJob(t, cfg, 40)

	require.NoError(t, h.Prepare(context.Background(), j))
	var maxDone int64
	out, err := h.Execute(context.Background(), j, stage.ReporterFunc(func(done, _ int64) {
		if done > maxDone {
			maxDone = done
		}
	}))
	require.NoError(t, err)
	assert.Equal(t, j.PartialOutput(), out.Artifact)
	assert.Equal(t, int64(40), out.FramesDone)
	assert.Equal(t, int64(40), maxDone)
	info, err := os.Stat(j.PartialOutput())
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestProcessStopsAtFrameCeiling(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithStubTools(testsupport.StubOptions{Frames: 5000}),
		testsupport.WithTestMode(50),
	)
	h := processing.NewHandler(cfg, logging.NewNop(), nil)
	j := rewrappedJob(t, cfg, 50)
	require.NoError(t, h.Prepare(context.Background(), j))

	out, err := h.Execute(context.Background(), j, stage.NopReporter)
	require.NoError(t, err)
	assert.LessOrEqual(t, out.FramesDone, int64(50))
	assert.FileExists(t, j.PartialOutput())
}

func TestProcessEnvironmentFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubTools(testsupport.StubOptions{
		ProcessError: "ModuleNotFoundError: No module named 'havsfunc'",
	}))
	h := processing.NewHandler(cfg, logging.NewNop(), nil)
	j := rewrappedJob(t, cfg, 40)
	require.NoError(t, h.Prepare(context.Background(), j))

	out, err := h.Execute(context.Background(), j, stage.NopReporter)
	require.Error(t, err)
	assert.Equal(t, services.KindEnvironment, services.KindOf(err))
	assert.Contains(t, out.Diagnostic, "havsfunc")
}

func TestProcessCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubTools(testsupport.StubOptions{ProcessSleep: 30}))
	h := processing.NewHandler(cfg, logging.NewNop(), nil)
	j := rewrappedJob(t, cfg, 40)
	require.NoError(t, h.Prepare(context.Background(), j))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	started := time.Now()
	_, err := h.Execute(ctx, j, stage.NopReporter)
	require.Error(t, err)
	assert.Equal(t, services.KindCancelled, services.KindOf(err))
	assert.Less(t, time.Since(started), 10*time.Second)
}

func TestPrepareRequiresMaster(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubTools(testsupport.StubOptions{}))
	h := processing.NewHandler(cfg, logging.NewNop(), nil)
	j := job.New("/in/a.dv", "a.dv", filepath.Join(cfg.Paths.OutputDir, "a_prores.mov"))
	err := h.Prepare(context.Background(), j)
	assert.Equal(t, services.KindValidation, services.KindOf(err))

	assert.True(t, h.HealthCheck(context.Background()).Ready)
}
