package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateTestMode(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateProgress(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaths() error {
	if c.Paths.TempDir == "" {
		return errors.New("paths.temp_dir must be set")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Concurrency < 0 {
		return errors.New("batch.concurrency must be zero (auto) or positive")
	}
	switch c.Batch.UnclassifiedPolicy {
	case UnclassifiedSkip, UnclassifiedBestEffort:
	default:
		return fmt.Errorf("batch.unclassified_policy: unsupported value %q (want %q or %q)", c.Batch.UnclassifiedPolicy, UnclassifiedSkip, UnclassifiedBestEffort)
	}
	if c.Batch.StaleWorkHours < 0 {
		return errors.New("batch.stale_work_hours must not be negative")
	}
	if len(c.Batch.Extensions) == 0 {
		return errors.New("batch.extensions must list at least one extension")
	}
	return nil
}

func (c *Config) validateTestMode() error {
	if c.TestMode.Frames <= 0 {
		return errors.New("test_mode.frames must be positive")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	values := map[string]int{
		"timeouts.analyze_seconds":  c.Timeouts.AnalyzeSeconds,
		"timeouts.rewrap_seconds":   c.Timeouts.RewrapSeconds,
		"timeouts.process_seconds":  c.Timeouts.ProcessSeconds,
		"timeouts.finalize_seconds": c.Timeouts.FinalizeSeconds,
		"timeouts.stall_seconds":    c.Timeouts.StallSeconds,
	}
	for key, value := range values {
		if value < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	if c.Timeouts.GraceSeconds <= 0 {
		return errors.New("timeouts.grace_seconds must be positive")
	}
	return nil
}

func (c *Config) validateProgress() error {
	weights := []float64{c.Progress.AnalyzeWeight, c.Progress.RewrapWeight, c.Progress.ProcessWeight, c.Progress.FinalizeWeight}
	var total float64
	for _, w := range weights {
		if w < 0 {
			return errors.New("progress weights must not be negative")
		}
		total += w
	}
	if total <= 0 {
		return errors.New("progress weights must sum to a positive value")
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if !slices.Contains(deinterlacePresets, c.Processing.DeinterlacePreset) {
		return fmt.Errorf("processing.deinterlace_preset: unsupported value %q", c.Processing.DeinterlacePreset)
	}
	if c.Processing.UpscaleFactor < 1 || c.Processing.UpscaleFactor > 4 {
		return errors.New("processing.upscale_factor: must be between 1 and 4")
	}
	switch c.Processing.ColorSpace {
	case ColorSpaceDCIP3, ColorSpaceBT709:
	default:
		return fmt.Errorf("processing.color_space: unsupported value %q", c.Processing.ColorSpace)
	}
	switch c.Processing.SourceFilter {
	case "auto", "FFMS2", "LSMASH":
	default:
		return fmt.Errorf("processing.source_filter: unsupported value %q", c.Processing.SourceFilter)
	}
	switch c.Processing.UseGPU {
	case GPUAuto, GPUOn, GPUOff:
	default:
		return fmt.Errorf("processing.use_gpu: unsupported value %q", c.Processing.UseGPU)
	}
	if c.Processing.NNEDI3NSize < 0 || c.Processing.NNEDI3NSize > 6 {
		return errors.New("processing.nnedi3_nsize: must be between 0 and 6")
	}
	if c.Processing.NNEDI3NNS < 0 || c.Processing.NNEDI3NNS > 4 {
		return errors.New("processing.nnedi3_nns: must be between 0 and 4")
	}
	if c.Processing.NNEDI3Qual < 1 || c.Processing.NNEDI3Qual > 2 {
		return errors.New("processing.nnedi3_qual: must be 1 or 2")
	}
	if c.Processing.Threads < 1 {
		return errors.New("processing.threads: must be positive")
	}
	return nil
}

func (c *Config) validateOutput() error {
	if c.Output.MinBytes < 0 {
		return errors.New("output.min_bytes must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic: %q is not an http(s) URL", topic)
	}
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must not be negative")
	}
	return nil
}
