package render

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"narrate/internal/config"
	"narrate/internal/media/ffprobe"
	"narrate/internal/mixer"
	"narrate/internal/services"
)

var (
	commandContext = exec.CommandContext
	inspect        = ffprobe.Inspect
)

// Request describes one encode: the source video, the narration clips in
// plan order, and the assembled mixing graph.
type Request struct {
	VideoPath  string
	ClipPaths  []string
	Graph      mixer.Graph
	OutputName string
	StagingDir string
	OutputDir  string
}

// Renderer drives ffmpeg to produce the final artifact. The encode is
// written into the job staging directory and promoted into the output
// directory only after verification, so a completed job always has a
// playable artifact.
type Renderer struct {
	ffmpegBinary  string
	ffprobeBinary string
	videoCodec    string
	audioCodec    string
	timeout       time.Duration
}

// NewRenderer builds a Renderer from the output section of the config.
func NewRenderer(cfg *config.Config) *Renderer {
	return &Renderer{
		ffmpegBinary:  cfg.FFmpegBinary(),
		ffprobeBinary: cfg.FFprobeBinary(),
		videoCodec:    cfg.Output.VideoCodec,
		audioCodec:    cfg.Output.AudioCodec,
		timeout:       time.Duration(cfg.Output.EncodeTimeout) * time.Second,
	}
}

// Render runs the encode and returns the promoted output path.
func (r *Renderer) Render(ctx context.Context, req Request) (string, error) {
	if req.VideoPath == "" {
		return "", services.Wrap(services.ErrEncode, "render", "ffmpeg", "video path required", nil)
	}
	if req.OutputName == "" {
		return "", services.Wrap(services.ErrEncode, "render", "ffmpeg", "output name required", nil)
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	stagingPath := filepath.Join(req.StagingDir, req.OutputName)
	args := r.buildArgs(req, stagingPath)

	cmd := commandContext(runCtx, r.ffmpegBinary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(stagingPath)
		return "", services.Wrap(services.ErrEncode, "render", r.ffmpegBinary, tail(stderr.String(), 5), err)
	}

	if err := r.verify(runCtx, stagingPath); err != nil {
		os.Remove(stagingPath)
		return "", err
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrEncode, "render", "promote", "create output directory", err)
	}
	finalPath := filepath.Join(req.OutputDir, req.OutputName)
	if err := os.Rename(stagingPath, finalPath); err != nil {
		os.Remove(stagingPath)
		return "", services.Wrap(services.ErrEncode, "render", "promote", "move artifact to output directory", err)
	}
	return finalPath, nil
}

func (r *Renderer) buildArgs(req Request, stagingPath string) []string {
	args := []string{"-y", "-hide_banner", "-i", req.VideoPath}
	for _, clip := range req.ClipPaths {
		args = append(args, "-i", clip)
	}
	if req.Graph.FilterComplex != "" {
		args = append(args, "-filter_complex", req.Graph.FilterComplex)
	}
	args = append(args,
		"-map", req.Graph.VideoLabel,
		"-map", req.Graph.AudioLabel,
		"-c:v", r.videoCodec,
		"-c:a", r.audioCodec,
		"-shortest",
		stagingPath,
	)
	return args
}

// verify rejects encodes that exited zero but produced a broken file.
func (r *Renderer) verify(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrEncode, "render", "verify", "no artifact produced", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrEncode, "render", "verify", "artifact is empty", nil)
	}

	result, err := inspect(ctx, r.ffprobeBinary, path)
	if err != nil {
		return services.Wrap(services.ErrEncode, "render", "verify", "artifact failed inspection", err)
	}
	if result.VideoStreamCount() == 0 {
		return services.Wrap(services.ErrEncode, "render", "verify", "artifact has no video stream", nil)
	}
	if result.DurationSeconds() <= 0 {
		return services.Wrap(services.ErrEncode, "render", "verify", "artifact has no duration", nil)
	}
	return nil
}

func tail(output string, lines int) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return "ffmpeg exited with an error"
	}
	parts := strings.Split(trimmed, "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.Join(parts, " | ")
}
