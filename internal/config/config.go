package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
}

// TTS contains configuration for the speech synthesis backend.
type TTS struct {
	Binary         string `toml:"binary"`
	Voice          string `toml:"voice"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Audio contains mixing parameters for the composite narration track.
type Audio struct {
	// DuckLevel is the fraction of original volume kept while narration plays.
	DuckLevel float64 `toml:"duck_level"`
	// FadeMillis is the attack/release ramp applied at ducking window edges.
	FadeMillis int `toml:"fade_ms"`
	// MaxSpeedFactor caps the atempo speed-up applied to overlong clips.
	MaxSpeedFactor float64 `toml:"max_speed_factor"`
}

// Subtitles contains the fixed caption style burned into the frame stream.
type Subtitles struct {
	FontName      string `toml:"font_name"`
	FontSize      int    `toml:"font_size"`
	PrimaryColour string `toml:"primary_colour"`
	OutlineColour string `toml:"outline_colour"`
	Outline       int    `toml:"outline"`
	MarginV       int    `toml:"margin_v"`
}

// Output contains container and codec parameters for the final artifact.
type Output struct {
	Container     string `toml:"container"`
	VideoCodec    string `toml:"video_codec"`
	AudioCodec    string `toml:"audio_codec"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	EncodeTimeout int    `toml:"encode_timeout"`
}

// Workflow contains configuration for daemon timing and concurrency.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	MaxConcurrentJobs  int `toml:"max_concurrent_jobs"`
	DownloadTimeout    int `toml:"download_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the narration daemon.
//
// Configuration sections by subsystem:
//   - Paths: staging/output/log directories and API bind address
//   - TTS: speech synthesis binary, default voice, timeout
//   - Audio: ducking level, edge fades, speed-up clamp
//   - Subtitles: burned-in caption style constants
//   - Output: container/codec parameters and media tool binaries
//   - Workflow: poll intervals and concurrent job bound
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	TTS       TTS       `toml:"tts"`
	Audio     Audio     `toml:"audio"`
	Subtitles Subtitles `toml:"subtitles"`
	Output    Output    `toml:"output"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/narrate/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a config file was found on disk.
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

	projectPath, err := filepath.Abs("narrate.toml")
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

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for mixing and encoding.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Output.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Output.FFprobeBinary); bin != "" {
		return bin
	}
	return "ffprobe"
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
