package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.StagingDir == c.Paths.OutputDir {
		return errors.New("paths.staging_dir and paths.output_dir must differ")
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.DuckLevel < 0 || c.Audio.DuckLevel >= 1 {
		return errors.New("audio.duck_level must be in [0, 1)")
	}
	if c.Audio.FadeMillis < 0 {
		return errors.New("audio.fade_ms must be >= 0")
	}
	if c.Audio.MaxSpeedFactor < 1 {
		return errors.New("audio.max_speed_factor must be >= 1")
	}
	// Single-pass atempo degrades sharply past 3x.
	if c.Audio.MaxSpeedFactor > 3 {
		return errors.New("audio.max_speed_factor must be <= 3")
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	if strings.TrimSpace(c.Subtitles.FontName) == "" {
		return errors.New("subtitles.font_name must be set")
	}
	if c.Subtitles.FontSize <= 0 {
		return errors.New("subtitles.font_size must be positive")
	}
	if c.Subtitles.Outline < 0 {
		return errors.New("subtitles.outline must be >= 0")
	}
	if c.Subtitles.MarginV < 0 {
		return errors.New("subtitles.margin_v must be >= 0")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.max_concurrent_jobs":  c.Workflow.MaxConcurrentJobs,
		"workflow.download_timeout":     c.Workflow.DownloadTimeout,
		"output.encode_timeout":         c.Output.EncodeTimeout,
		"tts.timeout_seconds":           c.TTS.TimeoutSeconds,
	}); err != nil {
		return err
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
