package testsupport

import (
	"path/filepath"
	"testing"

	"narrate/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Workflow.QueuePollInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithVoice sets the default synthesis voice on the test config.
func WithVoice(voice string) ConfigOption {
	return func(c *config.Config) {
		c.TTS.Voice = voice
	}
}

// WithMaxSpeedFactor overrides the speed-up clamp on the test config.
func WithMaxSpeedFactor(factor float64) ConfigOption {
	return func(c *config.Config) {
		c.Audio.MaxSpeedFactor = factor
	}
}
