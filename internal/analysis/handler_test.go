package analysis_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdvapourize/internal/analysis"
	"hdvapourize/internal/config"
	"hdvapourize/internal/job"
	"hdvapourize/internal/logging"
	"hdvapourize/internal/media/ffprobe"
	"hdvapourize/internal/services"
	"hdvapourize/internal/stage"
	"hdvapourize/internal/testsupport"
)

func fixedProbe(result ffprobe.Result, err error) analysis.Prober {
	return func(context.Context, string, string) (ffprobe.Result, error) {
		return result, err
	}
}

func palResult() ffprobe.Result {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{
			{CodecType: "video", CodecName: "dvvideo", Width: 720, Height: 576, FieldOrder: "tb", RFrameRate: "25/1", NBFrames: "1500"},
			{CodecType: "audio", CodecName: "pcm_s16le", Channels: 2},
		},
		Format: ffprobe.Format{Duration: "60.0"},
	}
}

func newJob(t *testing.T, cfg *config.Config) *job.Job {
	t.Helper()
	input := filepath.Join(testsupport.BaseDir(cfg), "in", "tape.dv")
	testsupport.WriteFile(t, input, 128)
	return job.New(input, "tape.dv", filepath.Join(cfg.Paths.OutputDir, "tape_prores.mov"))
}

func TestExecuteClassifiesProfile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := analysis.NewHandlerWithProber(cfg, logging.NewNop(), fixedProbe(palResult(), nil))
	j := newJob(t, cfg)

	require.NoError(t, h.Prepare(context.Background(), j))
	var reported bool
	out, err := h.Execute(context.Background(), j, stage.ReporterFunc(func(done, total int64) { reported = done == total }))
	require.NoError(t, err)
	assert.False(t, out.Skip)
	assert.True(t, reported)
	assert.Equal(t, "pal_dv", string(j.Profile.Class))
	assert.True(t, j.Profile.TopFieldFirst())
	assert.Equal(t, int64(1500), j.FramesTotal)
}

func TestExecuteCapsFramesInTestMode(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTestMode(200))
	h := analysis.NewHandlerWithProber(cfg, logging.NewNop(), fixedProbe(palResult(), nil))
	j := newJob(t, cfg)
	_, err := h.Execute(context.Background(), j, stage.NopReporter)
	require.NoError(t, err)
	assert.Equal(t, int64(200), j.FramesTotal)
}

func TestExecuteUnclassifiedPolicy(t *testing.T) {
	odd := ffprobe.Result{Streams: []ffprobe.Stream{
		{CodecType: "video", Width: 640, Height: 360, RFrameRate: "15/1", NBFrames: "30"},
	}}

	cfg := testsupport.NewConfig(t)
	h := analysis.NewHandlerWithProber(cfg, logging.NewNop(), fixedProbe(odd, nil))
	_, err := h.Execute(context.Background(), newJob(t, cfg), stage.NopReporter)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrUnclassifiedFormat))

	cfg.Batch.UnclassifiedPolicy = config.UnclassifiedBestEffort
	j := newJob(t, cfg)
	_, err = h.Execute(context.Background(), j, stage.NopReporter)
	require.NoError(t, err)
	assert.Equal(t, int64(30), j.FramesTotal)
}

func TestExecuteNoVideoStream(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	audioOnly := ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "audio", Channels: 2}}}
	h := analysis.NewHandlerWithProber(cfg, logging.NewNop(), fixedProbe(audioOnly, nil))
	_, err := h.Execute(context.Background(), newJob(t, cfg), stage.NopReporter)
	assert.Equal(t, services.KindUnclassified, services.KindOf(err))
}

func TestExecuteSkipsUpToDateOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	probed := false
	h := analysis.NewHandlerWithProber(cfg, logging.NewNop(), func(context.Context, string, string) (ffprobe.Result, error) {
		probed = true
		return palResult(), nil
	})
	j := newJob(t, cfg)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(j.Input, past, past))
	testsupport.WriteFile(t, j.Output, cfg.Output.MinBytes)

	out, err := h.Execute(context.Background(), j, stage.NopReporter)
	require.NoError(t, err)
	assert.True(t, out.Skip)
	assert.False(t, probed)

	cfg.Batch.SkipExisting = false
	out, err = h.Execute(context.Background(), j, stage.NopReporter)
	require.NoError(t, err)
	assert.False(t, out.Skip)
}

func TestExecuteWithStubProbe(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubTools(testsupport.StubOptions{Frames: 90}))
	h := analysis.NewHandler(cfg, logging.NewNop())
	j := newJob(t, cfg)

	_, err := h.Execute(context.Background(), j, stage.NopReporter)
	require.NoError(t, err)
	assert.Equal(t, "ntsc_dv", string(j.Profile.Class))
	assert.False(t, j.Profile.TopFieldFirst())
	assert.Equal(t, int64(90), j.FramesTotal)
	assert.True(t, h.HealthCheck(context.Background()).Ready)

	bad := job.New(filepath.Join(testsupport.BaseDir(cfg), "in", "bad.dv"), "bad.dv", filepath.Join(cfg.Paths.OutputDir, "bad_prores.mov"))
	testsupport.WriteMalformed(t, bad.Input)
	out, err := h.Execute(context.Background(), bad, stage.NopReporter)
	require.Error(t, err)
	assert.Equal(t, services.KindToolFailure, services.KindOf(err))
	assert.Contains(t, out.Diagnostic, "Invalid data")
	assert.Equal(t, 1, out.ExitCode)
}

func TestExecuteMissingProbe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFprobe = "hdvapourize-no-such-ffprobe"
	h := analysis.NewHandler(cfg, logging.NewNop())
	_, err := h.Execute(context.Background(), newJob(t, cfg), stage.NopReporter)
	assert.Equal(t, services.KindEnvironment, services.KindOf(err))
	assert.False(t, h.HealthCheck(context.Background()).Ready)
}

func TestPrepareMissingInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := analysis.NewHandler(cfg, logging.NewNop())
	j := job.New(filepath.Join(t.TempDir(), "gone.dv"), "gone.dv", "/out/gone.mov")
	err := h.Prepare(context.Background(), j)
	assert.True(t, errors.Is(err, services.ErrPathNotFound))
}
