package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTTS()
	c.normalizeOutput()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeTTS() {
	c.TTS.Binary = strings.TrimSpace(c.TTS.Binary)
	if c.TTS.Binary == "" {
		c.TTS.Binary = defaultTTSBinary
	}
	c.TTS.Voice = strings.TrimSpace(c.TTS.Voice)
	if c.TTS.Voice == "" {
		c.TTS.Voice = defaultVoice
	}
	if c.TTS.TimeoutSeconds <= 0 {
		c.TTS.TimeoutSeconds = defaultTTSTimeout
	}
}

func (c *Config) normalizeOutput() {
	c.Output.Container = strings.ToLower(strings.TrimSpace(c.Output.Container))
	if c.Output.Container == "" {
		c.Output.Container = defaultContainer
	}
	c.Output.VideoCodec = strings.TrimSpace(c.Output.VideoCodec)
	if c.Output.VideoCodec == "" {
		c.Output.VideoCodec = defaultVideoCodec
	}
	c.Output.AudioCodec = strings.TrimSpace(c.Output.AudioCodec)
	if c.Output.AudioCodec == "" {
		c.Output.AudioCodec = defaultAudioCodec
	}
	if c.Output.EncodeTimeout <= 0 {
		c.Output.EncodeTimeout = defaultEncodeTimeout
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
