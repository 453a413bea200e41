package config

import (
	"fmt"
	"sort"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTools(); err != nil {
		return err
	}
	c.normalizeBatch()
	c.normalizeProcessing()
	c.normalizeOutput()
	c.normalizeLogging()
	c.Status.Bind = strings.TrimSpace(c.Status.Bind)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = defaultHistoryDB
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

// normalizeTools expands tool values that look like paths and leaves bare
// executable names for PATH lookup.
func (c *Config) normalizeTools() error {
	fields := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"tools.ffmpeg", &c.Tools.FFmpeg, defaultFFmpegBinary},
		{"tools.ffprobe", &c.Tools.FFprobe, defaultFFprobeBinary},
		{"tools.vspipe", &c.Tools.VSPipe, defaultVSPipeBinary},
		{"tools.nvidia_smi", &c.Tools.NvidiaSMI, defaultNvidiaSMIBinary},
		{"tools.script", &c.Tools.Script, defaultScriptPath},
	}
	for _, field := range fields {
		value := strings.TrimSpace(*field.value)
		if value == "" {
			value = field.fallback
		}
		if strings.ContainsAny(value, `/\`) || strings.HasPrefix(value, "~") {
			expanded, err := expandPath(value)
			if err != nil {
				return fmt.Errorf("%s: %w", field.key, err)
			}
			value = expanded
		}
		*field.value = value
	}
	return nil
}

func (c *Config) normalizeBatch() {
	c.Batch.UnclassifiedPolicy = strings.ToLower(strings.TrimSpace(c.Batch.UnclassifiedPolicy))
	c.Batch.UnclassifiedPolicy = strings.ReplaceAll(c.Batch.UnclassifiedPolicy, "-", "_")
	if c.Batch.UnclassifiedPolicy == "" {
		c.Batch.UnclassifiedPolicy = defaultUnclassifiedPolicy
	}
	if len(c.Batch.Extensions) == 0 {
		c.Batch.Extensions = append([]string(nil), defaultExtensions...)
		return
	}
	seen := make(map[string]struct{}, len(c.Batch.Extensions))
	exts := make([]string, 0, len(c.Batch.Extensions))
	for _, ext := range c.Batch.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	c.Batch.Extensions = exts
}

func (c *Config) normalizeProcessing() {
	preset := strings.TrimSpace(c.Processing.DeinterlacePreset)
	if preset == "" {
		preset = defaultDeinterlacePreset
	}
	for _, candidate := range deinterlacePresets {
		if strings.EqualFold(candidate, preset) {
			preset = candidate
			break
		}
	}
	c.Processing.DeinterlacePreset = preset

	c.Processing.ColorSpace = strings.ToLower(strings.TrimSpace(c.Processing.ColorSpace))
	if c.Processing.ColorSpace == "" {
		c.Processing.ColorSpace = defaultColorSpace
	}
	c.Processing.OutputFormat = strings.ToUpper(strings.TrimSpace(c.Processing.OutputFormat))
	if c.Processing.OutputFormat == "" {
		c.Processing.OutputFormat = defaultOutputFormat
	}
	c.Processing.SourceFilter = strings.TrimSpace(c.Processing.SourceFilter)
	switch strings.ToLower(c.Processing.SourceFilter) {
	case "", "auto":
		c.Processing.SourceFilter = defaultSourceFilter
	case "ffms2":
		c.Processing.SourceFilter = "FFMS2"
	case "lsmash":
		c.Processing.SourceFilter = "LSMASH"
	}
	c.Processing.UseGPU = strings.ToLower(strings.TrimSpace(c.Processing.UseGPU))
	if c.Processing.UseGPU == "" {
		c.Processing.UseGPU = defaultUseGPU
	}
}

func (c *Config) normalizeOutput() {
	c.Output.Container = strings.ToLower(strings.TrimSpace(c.Output.Container))
	if c.Output.Container == "" {
		c.Output.Container = defaultOutputContainer
	}
	if !strings.HasPrefix(c.Output.Container, ".") {
		c.Output.Container = "." + c.Output.Container
	}
	c.Output.AudioCodec = strings.TrimSpace(c.Output.AudioCodec)
	if c.Output.AudioCodec == "" {
		c.Output.AudioCodec = defaultAudioCodec
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
