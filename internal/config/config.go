package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	TempDir   string `toml:"temp_dir"`
	LogDir    string `toml:"log_dir"`
	HistoryDB string `toml:"history_db"`
}

// Tools locates the external executables and the processing script.
type Tools struct {
	FFmpeg    string `toml:"ffmpeg"`
	FFprobe   string `toml:"ffprobe"`
	VSPipe    string `toml:"vspipe"`
	Script    string `toml:"script"`
	NvidiaSMI string `toml:"nvidia_smi"`
}

// Batch contains scheduling and discovery settings. StaleWorkHours is the age
// after which leftover run directories in paths.temp_dir are swept at
// startup; zero disables the sweep.
type Batch struct {
	// Concurrency bounds the number of jobs running at once. Zero selects
	// DefaultConcurrency.
	Concurrency         int      `toml:"concurrency"`
	Recursive           bool     `toml:"recursive"`
	SkipExisting        bool     `toml:"skip_existing"`
	UnclassifiedPolicy  string   `toml:"unclassified_policy"`
	RetainIntermediates bool     `toml:"retain_intermediates"`
	StaleWorkHours      int      `toml:"stale_work_hours"`
	Extensions          []string `toml:"extensions"`
}

// TestMode limits every job to a fixed number of frames.
type TestMode struct {
	Enabled bool `toml:"enabled"`
	Frames  int  `toml:"frames"`
}

// Timeouts are expressed in seconds. A zero stage timeout disables it.
// StallSeconds bounds the silence between output lines of the rewrap and
// process tools; zero disables the watchdog.
type Timeouts struct {
	AnalyzeSeconds  int `toml:"analyze_seconds"`
	RewrapSeconds   int `toml:"rewrap_seconds"`
	ProcessSeconds  int `toml:"process_seconds"`
	FinalizeSeconds int `toml:"finalize_seconds"`
	StallSeconds    int `toml:"stall_seconds"`
	GraceSeconds    int `toml:"grace_seconds"`
}

// Progress holds the relative cost weight of each stage.
type Progress struct {
	AnalyzeWeight  float64 `toml:"analyze_weight"`
	RewrapWeight   float64 `toml:"rewrap_weight"`
	ProcessWeight  float64 `toml:"process_weight"`
	FinalizeWeight float64 `toml:"finalize_weight"`
}

// Processing carries the parameters forwarded to the processing script.
type Processing struct {
	DeinterlacePreset string `toml:"deinterlace_preset"`
	UpscaleFactor     int    `toml:"upscale_factor"`
	ColorSpace        string `toml:"color_space"`
	OutputFormat      string `toml:"output_format"`
	SourceFilter      string `toml:"source_filter"`
	NNEDI3NSize       int    `toml:"nnedi3_nsize"`
	NNEDI3NNS         int    `toml:"nnedi3_nns"`
	NNEDI3Qual        int    `toml:"nnedi3_qual"`
	Threads           int    `toml:"threads"`
	UseGPU            string `toml:"use_gpu"`
	ChromaCleanup     bool   `toml:"chroma_cleanup"`
}

// Output describes the deliverable written for each job.
type Output struct {
	Suffix     string `toml:"suffix"`
	Container  string `toml:"container"`
	MinBytes   int64  `toml:"min_bytes"`
	AudioCodec string `toml:"audio_codec"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// History toggles the SQLite run ledger.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Notifications configures ntfy push messages for run milestones.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	JobFailures           bool   `toml:"job_failures"`
}

// Status configures the optional HTTP status endpoint.
type Status struct {
	Bind string `toml:"bind"`
}

// Config encapsulates all configuration values for hdvapourize.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tools         Tools         `toml:"tools"`
	Batch         Batch         `toml:"batch"`
	TestMode      TestMode      `toml:"test_mode"`
	Timeouts      Timeouts      `toml:"timeouts"`
	Progress      Progress      `toml:"progress"`
	Processing    Processing    `toml:"processing"`
	Output        Output        `toml:"output"`
	Logging       Logging       `toml:"logging"`
	History       History       `toml:"history"`
	Status        Status        `toml:"status"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	if base, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && strings.TrimSpace(base) != "" {
		return expandPath(filepath.Join(base, "hdvapourize", "config.toml"))
	}
	return expandPath("~/.config/hdvapourize/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("hdvapourize.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working directories a batch run writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.TempDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StageTimeout returns the configured limit for the named stage, or zero when
// the stage is unbounded.
func (c *Config) StageTimeout(stage string) time.Duration {
	var seconds int
	switch stage {
	case "analyze":
		seconds = c.Timeouts.AnalyzeSeconds
	case "rewrap":
		seconds = c.Timeouts.RewrapSeconds
	case "process":
		seconds = c.Timeouts.ProcessSeconds
	case "finalize":
		seconds = c.Timeouts.FinalizeSeconds
	}
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// StaleWorkAge is the StaleWorkHours threshold as a duration.
func (c *Config) StaleWorkAge() time.Duration {
	return time.Duration(c.Batch.StaleWorkHours) * time.Hour
}

// NotifyTimeout bounds a single ntfy request.
func (c *Config) NotifyTimeout() time.Duration {
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		return defaultNotifyTimeout * time.Second
	}
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// StallTimeout is the longest a running tool may go without printing a line.
func (c *Config) StallTimeout() time.Duration {
	if c.Timeouts.StallSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Timeouts.StallSeconds) * time.Second
}

// GracePeriod is how long a signalled subprocess may take to exit before it is killed.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Timeouts.GraceSeconds) * time.Second
}

// FrameCeiling returns the test-mode frame limit, or zero when test mode is off.
func (c *Config) FrameCeiling() int64 {
	if !c.TestMode.Enabled {
		return 0
	}
	return int64(c.TestMode.Frames)
}

// EffectiveConcurrency resolves the worker limit, applying the CPU-based default.
func (c *Config) EffectiveConcurrency() int {
	if c.Batch.Concurrency > 0 {
		return c.Batch.Concurrency
	}
	return DefaultConcurrency()
}

// BestEffortUnclassified reports whether unclassified inputs still get processed.
func (c *Config) BestEffortUnclassified() bool {
	return c.Batch.UnclassifiedPolicy == UnclassifiedBestEffort
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
