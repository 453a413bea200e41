package testsupport

import (
	"path/filepath"
	"testing"

	"hdvapourize/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Tool paths point at binaries that do not exist until WithStubTools is
// applied. Timeouts are short and GPU detection is off.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.TempDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.HistoryDB = filepath.Join(base, "history.db")
	cfgVal.Tools.FFmpeg = filepath.Join(base, "bin", "ffmpeg")
	cfgVal.Tools.FFprobe = filepath.Join(base, "bin", "ffprobe")
	cfgVal.Tools.VSPipe = filepath.Join(base, "bin", "vspipe")
	cfgVal.Tools.Script = filepath.Join(base, "bin", "process.vpy")
	cfgVal.Tools.NvidiaSMI = ""
	cfgVal.Processing.UseGPU = config.GPUOff
	cfgVal.Batch.Concurrency = 2
	cfgVal.Output.MinBytes = 64
	cfgVal.Timeouts.AnalyzeSeconds = 10
	cfgVal.Timeouts.RewrapSeconds = 20
	cfgVal.Timeouts.ProcessSeconds = 30
	cfgVal.Timeouts.FinalizeSeconds = 10
	cfgVal.Timeouts.GraceSeconds = 1
	cfgVal.History.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStubTools writes stub ffprobe, ffmpeg and vspipe executables into the
// config's bin directory and points the config at them.
func WithStubTools(opts StubOptions) ConfigOption {
	return func(b *configBuilder) {
		tools := WriteStubTools(b.t, filepath.Join(b.baseDir, "bin"), opts)
		b.cfg.Tools.FFprobe = tools.FFprobe
		b.cfg.Tools.FFmpeg = tools.FFmpeg
		b.cfg.Tools.VSPipe = tools.VSPipe
		b.cfg.Tools.Script = tools.Script
	}
}

// WithTestMode enables the frame ceiling.
func WithTestMode(frames int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TestMode.Enabled = true
		b.cfg.TestMode.Frames = frames
	}
}

// WithHistory enables the run ledger in the temp directory.
func WithHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
