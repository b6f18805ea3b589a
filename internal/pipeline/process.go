package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"narrate/internal/logging"
	"narrate/internal/mixer"
	"narrate/internal/queue"
	"narrate/internal/render"
	"narrate/internal/scheduler"
	"narrate/internal/script"
	"narrate/internal/services"
	"narrate/internal/subtitles"
)

// process runs one claimed job to a terminal state. The job workspace under
// the staging directory is removed on exit; by then the artifact has either
// been promoted to the output directory or the job has failed.
func (m *Manager) process(ctx context.Context, job *queue.Job) {
	logger := m.logger.With(logging.String(logging.FieldJobID, job.ID))
	started := time.Now()

	workdir := filepath.Join(m.cfg.Paths.StagingDir, job.ID)
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		m.fail(ctx, logger, job, "acquire", services.Wrap(services.ErrAcquisition, "acquire", "workspace", "create job workspace", err))
		return
	}
	defer os.RemoveAll(workdir)
	defer m.cleanupUpload(job)

	outputPath, err := m.runStages(ctx, job, workdir)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("job interrupted by shutdown")
			return
		}
		m.fail(ctx, logger, job, job.Stage, err)
		return
	}

	job.SetCompleted(outputPath)
	if err := m.store.Update(ctx, job); err != nil {
		logger.Error("failed to persist completion", logging.Error(err))
		return
	}
	logger.Info("job completed",
		logging.String("output_path", outputPath),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "job_completed"),
	)
}

func (m *Manager) runStages(ctx context.Context, job *queue.Job, workdir string) (string, error) {
	opts := decodeOptions(job.OptionsJSON)
	voice := opts.Voice
	if voice == "" {
		voice = m.cfg.TTS.Voice
	}

	// Plan. The script was validated at submission, but the row is re-read
	// here and decoded again before any stage spends work on it.
	if err := m.enterStage(ctx, job, "plan"); err != nil {
		return "", err
	}
	parsed, err := script.Parse([]byte(job.ScriptJSON))
	if err != nil {
		return "", err
	}
	if err := parsed.Validate(); err != nil {
		return "", err
	}

	// Acquire.
	if err := m.enterStage(ctx, job, "acquire"); err != nil {
		return "", err
	}
	videoPath, err := m.fetcher.Fetch(ctx, job.SourcePath, job.SourceURL, workdir)
	if err != nil {
		return "", err
	}
	sourceProbe, err := probeMedia(ctx, m.cfg.FFprobeBinary(), videoPath)
	if err != nil {
		return "", services.Wrap(services.ErrAcquisition, "acquire", "probe", "inspect source video", err)
	}
	if sourceProbe.VideoStreamCount() == 0 {
		return "", services.Wrap(services.ErrAcquisition, "acquire", "probe", "source has no video stream", nil)
	}

	// Synthesize and plan.
	if err := m.enterStage(ctx, job, "synthesize"); err != nil {
		return "", err
	}
	plans := make([]scheduler.Plan, 0, len(parsed))
	for i, utt := range parsed {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		clipPath := filepath.Join(workdir, fmt.Sprintf("clip%03d.mp3", i))
		if err := m.synth.Synthesize(ctx, utt.Text, voice, clipPath); err != nil {
			return "", err
		}
		natural, err := clipDuration(ctx, m.cfg.FFprobeBinary(), clipPath, i)
		if err != nil {
			return "", err
		}
		plan, err := scheduler.Fit(i, utt, clipPath, natural, m.cfg.Audio.MaxSpeedFactor)
		if err != nil {
			return "", err
		}
		plans = append(plans, plan)
	}

	// Mix and render.
	if err := m.enterStage(ctx, job, "render"); err != nil {
		return "", err
	}
	subtitleFilter := ""
	if opts.Subtitles {
		srtPath := filepath.Join(workdir, "cues.srt")
		if err := subtitles.WriteSRT(srtPath, parsed); err != nil {
			return "", services.Wrap(services.ErrEncode, "render", "subtitles", "write cue file", err)
		}
		subtitleFilter = subtitles.BurnInFilter(srtPath, subtitles.Style(m.cfg.Subtitles))
	}
	graph := mixer.Build(plans, mixer.Options{
		DuckLevel:      m.cfg.Audio.DuckLevel,
		Fade:           time.Duration(m.cfg.Audio.FadeMillis) * time.Millisecond,
		SourceHasAudio: sourceProbe.AudioStreamCount() > 0,
	}, subtitleFilter)

	clipPaths := make([]string, len(plans))
	for i, plan := range plans {
		clipPaths[i] = plan.ClipPath
	}
	return m.renderer.Render(ctx, render.Request{
		VideoPath:  videoPath,
		ClipPaths:  clipPaths,
		Graph:      graph,
		OutputName: job.ID + "." + m.cfg.Output.Container,
		StagingDir: workdir,
		OutputDir:  m.cfg.Paths.OutputDir,
	})
}

// enterStage persists the stage transition so pollers see progress.
func (m *Manager) enterStage(ctx context.Context, job *queue.Job, stage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	job.Stage = stage
	return m.store.Update(ctx, job)
}

func (m *Manager) fail(ctx context.Context, logger *slog.Logger, job *queue.Job, stage string, err error) {
	job.SetFailed(stage, services.Summary(err))
	logger.Error("job failed",
		logging.String(logging.FieldStage, stage),
		logging.Error(err),
		logging.String(logging.FieldEventType, "job_failed"),
	)
	if updateErr := m.store.Update(ctx, job); updateErr != nil && !errors.Is(updateErr, context.Canceled) {
		logger.Error("failed to persist job failure", logging.Error(updateErr))
	}
}

// cleanupUpload removes a daemon-managed upload once its job is terminal.
// Sources outside the staging uploads directory belong to the caller and are
// left alone.
func (m *Manager) cleanupUpload(job *queue.Job) {
	if job.SourcePath == "" {
		return
	}
	uploadDir := filepath.Join(m.cfg.Paths.StagingDir, "uploads")
	if filepath.Dir(job.SourcePath) == uploadDir {
		_ = os.Remove(job.SourcePath)
	}
}

func clipDuration(ctx context.Context, ffprobeBinary, clipPath string, index int) (time.Duration, error) {
	probe, err := probeMedia(ctx, ffprobeBinary, clipPath)
	if err != nil {
		return 0, services.Wrap(services.ErrSynthesis, "synthesize", fmt.Sprintf("utterance %d", index), "inspect synthesized clip", err)
	}
	seconds := probe.DurationSeconds()
	if seconds <= 0 {
		return 0, services.Wrap(services.ErrSynthesis, "synthesize", fmt.Sprintf("utterance %d", index), "synthesized clip has no duration", nil)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
