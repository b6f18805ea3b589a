package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"narrate/internal/config"
	"narrate/internal/services"
)

var commandContext = exec.CommandContext

// Synthesizer turns one line of text into a speech clip on disk.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, outputPath string) error
}

// Option configures the CLI engine.
type Option func(*Engine)

// WithBinary overrides the default synthesis binary.
func WithBinary(binary string) Option {
	return func(e *Engine) {
		if binary != "" {
			e.binary = binary
		}
	}
}

// WithTimeout caps the wall time allowed for a single synthesis call.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// Engine wraps the edge-tts command line synthesizer.
type Engine struct {
	binary  string
	timeout time.Duration
}

// NewEngine constructs an Engine using defaults.
func NewEngine(opts ...Option) *Engine {
	engine := &Engine{binary: "edge-tts", timeout: 2 * time.Minute}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// NewEngineFromConfig builds an Engine from the TTS section of the config.
func NewEngineFromConfig(cfg *config.Config) *Engine {
	return NewEngine(
		WithBinary(cfg.TTS.Binary),
		WithTimeout(time.Duration(cfg.TTS.TimeoutSeconds)*time.Second),
	)
}

// Synthesize renders text to outputPath using the configured voice. The
// clip is written atomically: a failed run leaves nothing behind at
// outputPath.
func (e *Engine) Synthesize(ctx context.Context, text, voice, outputPath string) error {
	if strings.TrimSpace(text) == "" {
		return services.Wrap(services.ErrSynthesis, "synthesize", "engine", "text is empty", nil)
	}
	if outputPath == "" {
		return services.Wrap(services.ErrSynthesis, "synthesize", "engine", "output path required", nil)
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := []string{"--voice", voice, "--text", text, "--write-media", outputPath}
	cmd := commandContext(runCtx, e.binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrSynthesis, "synthesize", e.binary, fmt.Sprintf("timed out after %s", e.timeout), err)
		}
		return services.Wrap(services.ErrSynthesis, "synthesize", e.binary, detail, err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return services.Wrap(services.ErrSynthesis, "synthesize", e.binary, "no clip produced", err)
	}
	if info.Size() == 0 {
		os.Remove(outputPath)
		return services.Wrap(services.ErrSynthesis, "synthesize", e.binary, "produced an empty clip", nil)
	}
	return nil
}

var _ Synthesizer = (*Engine)(nil)
