package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"narrate/internal/config"
	"narrate/internal/media/ffprobe"
	"narrate/internal/queue"
	"narrate/internal/render"
	"narrate/internal/services"
	"narrate/internal/testsupport"
)

type fakeSynth struct {
	calls []string
	err   error
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voice, outputPath string) error {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("clip"), 0o644)
}

type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Fetch(ctx context.Context, sourcePath, sourceURL, destDir string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(destDir, "source.mp4")
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeRenderer struct {
	lastRequest render.Request
	err         error
}

func (f *fakeRenderer) Render(ctx context.Context, req render.Request) (string, error) {
	f.lastRequest = req
	if f.err != nil {
		return "", f.err
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(req.OutputDir, req.OutputName)
	if err := os.WriteFile(out, []byte("artifact"), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

// setProbe routes clip probes to a fixed duration and reports the source as
// a video with one audio stream.
func setProbe(t *testing.T, clipSeconds float64) {
	t.Helper()
	original := probeMedia
	probeMedia = func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		if strings.HasSuffix(path, ".mp3") {
			return ffprobe.Result{
				Streams: []ffprobe.Stream{{CodecType: "audio"}},
				Format:  ffprobe.Format{Duration: fmt.Sprintf("%.3f", clipSeconds), Size: "100"},
			}, nil
		}
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "video"}, {CodecType: "audio"}},
			Format:  ffprobe.Format{Duration: "30.0", Size: "1000"},
		}, nil
	}
	t.Cleanup(func() {
		probeMedia = original
	})
}

func newTestManager(t *testing.T, cfg *config.Config, synth *fakeSynth, renderer *fakeRenderer) (*Manager, *queue.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	manager := NewManager(cfg, store, synth, &fakeFetcher{}, renderer, nil)
	return manager, store
}

const fittingScript = `[{"start":"00:00","end":"00:05","text":"A short line"}]`

func TestSubmitRejectsInvalidScriptSynchronously(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	manager, store := newTestManager(t, cfg, &fakeSynth{}, &fakeRenderer{})
	ctx := context.Background()

	_, err := manager.Submit(ctx, SubmitRequest{
		SourcePath: "/tmp/video.mp4",
		ScriptJSON: []byte(`[{"start":"00:10","end":"00:05","text":"backwards"}]`),
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}

	jobs, listErr := store.List(ctx)
	if listErr != nil {
		t.Fatalf("List: %v", listErr)
	}
	if len(jobs) != 0 {
		t.Fatalf("rejected submission must not create a job, found %d", len(jobs))
	}
}

func TestSubmitRequiresExactlyOneSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	manager, _ := newTestManager(t, cfg, &fakeSynth{}, &fakeRenderer{})
	ctx := context.Background()

	_, err := manager.Submit(ctx, SubmitRequest{ScriptJSON: []byte(fittingScript)})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker for missing source, got %v", err)
	}

	_, err = manager.Submit(ctx, SubmitRequest{
		SourcePath: "/tmp/a.mp4",
		SourceURL:  "http://example.com/a.mp4",
		ScriptJSON: []byte(fittingScript),
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker for double source, got %v", err)
	}
}

func TestProcessCompletesFittingJob(t *testing.T) {
	setProbe(t, 2.0)
	cfg := testsupport.NewConfig(t)
	synth := &fakeSynth{}
	renderer := &fakeRenderer{}
	manager, store := newTestManager(t, cfg, synth, renderer)
	ctx := context.Background()

	job, err := manager.Submit(ctx, SubmitRequest{
		SourcePath: "/tmp/video.mp4",
		ScriptJSON: []byte(fittingScript),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	claimed, err := store.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("Claim: %v %v", claimed, err)
	}
	manager.process(ctx, claimed)

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != queue.StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", loaded.Status, loaded.ErrorMessage)
	}
	if loaded.OutputPath == "" {
		t.Fatal("completed job must record an output path")
	}
	if len(synth.calls) != 1 || synth.calls[0] != "A short line" {
		t.Fatalf("unexpected synthesis calls: %v", synth.calls)
	}
	if len(renderer.lastRequest.ClipPaths) != 1 {
		t.Fatalf("renderer should receive 1 clip, got %d", len(renderer.lastRequest.ClipPaths))
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.StagingDir, job.ID)); !os.IsNotExist(err) {
		t.Fatalf("job workspace must be removed: %v", err)
	}

	path, err := manager.Output(ctx, job.ID)
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if path != loaded.OutputPath {
		t.Fatalf("output path = %q, want %q", path, loaded.OutputPath)
	}
}

func TestProcessFailsUnfittableClip(t *testing.T) {
	// 8s of speech against a 3s window needs more than the 2x clamp.
	setProbe(t, 8.0)
	cfg := testsupport.NewConfig(t)
	manager, store := newTestManager(t, cfg, &fakeSynth{}, &fakeRenderer{})
	ctx := context.Background()

	job, err := manager.Submit(ctx, SubmitRequest{
		SourcePath: "/tmp/video.mp4",
		ScriptJSON: []byte(`[{"start":"00:00","end":"00:03","text":"Far too much text for this window"}]`),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	claimed, err := store.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("Claim: %v %v", claimed, err)
	}
	manager.process(ctx, claimed)

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", loaded.Status)
	}
	if !strings.Contains(loaded.ErrorMessage, "speed-up") {
		t.Fatalf("failure message should name the fit problem: %q", loaded.ErrorMessage)
	}

	_, err = manager.Output(ctx, job.ID)
	if !errors.Is(err, services.ErrJobFailed) {
		t.Fatalf("expected job failed marker, got %v", err)
	}
	if got := services.Summary(err); got != loaded.ErrorMessage {
		t.Fatalf("output error %q should carry the stored failure %q", got, loaded.ErrorMessage)
	}
}

func TestProcessFailsCorruptedScriptInPlanStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	manager, store := newTestManager(t, cfg, &fakeSynth{}, &fakeRenderer{})
	ctx := context.Background()

	// Bypass Submit to simulate a row whose script no longer parses.
	job, err := store.NewJob(ctx, "/tmp/video.mp4", "", "not json", "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	claimed, err := store.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("Claim: %v %v", claimed, err)
	}
	manager.process(ctx, claimed)

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != queue.StatusFailed || loaded.Stage != "plan" {
		t.Fatalf("unexpected failure state: status=%s stage=%q", loaded.Status, loaded.Stage)
	}
}

func TestProcessFailsOnSynthesisError(t *testing.T) {
	setProbe(t, 2.0)
	cfg := testsupport.NewConfig(t)
	synth := &fakeSynth{err: services.Wrap(services.ErrSynthesis, "synthesize", "edge-tts", "backend unavailable", nil)}
	manager, store := newTestManager(t, cfg, synth, &fakeRenderer{})
	ctx := context.Background()

	job, err := manager.Submit(ctx, SubmitRequest{
		SourcePath: "/tmp/video.mp4",
		ScriptJSON: []byte(fittingScript),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	claimed, err := store.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("Claim: %v %v", claimed, err)
	}
	manager.process(ctx, claimed)

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != queue.StatusFailed || loaded.Stage != "synthesize" {
		t.Fatalf("unexpected failure state: %+v", loaded)
	}
}

func TestProcessRemovesManagedUpload(t *testing.T) {
	setProbe(t, 2.0)
	cfg := testsupport.NewConfig(t)
	manager, store := newTestManager(t, cfg, &fakeSynth{}, &fakeRenderer{})
	ctx := context.Background()

	uploadDir := filepath.Join(cfg.Paths.StagingDir, "uploads")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		t.Fatal(err)
	}
	upload := filepath.Join(uploadDir, "u1.mp4")
	if err := os.WriteFile(upload, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := manager.Submit(ctx, SubmitRequest{SourcePath: upload, ScriptJSON: []byte(fittingScript)}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	claimed, err := store.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("Claim: %v %v", claimed, err)
	}
	manager.process(ctx, claimed)

	if _, err := os.Stat(upload); !os.IsNotExist(err) {
		t.Fatalf("managed upload must be removed after the job finishes: %v", err)
	}
}

func TestOutputDistinguishesUnknownAndPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	manager, _ := newTestManager(t, cfg, &fakeSynth{}, &fakeRenderer{})
	ctx := context.Background()

	if _, err := manager.Output(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found marker, got %v", err)
	}

	job, err := manager.Submit(ctx, SubmitRequest{
		SourcePath: "/tmp/video.mp4",
		ScriptJSON: []byte(fittingScript),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := manager.Output(ctx, job.ID); !errors.Is(err, services.ErrNotReady) {
		t.Fatalf("expected not ready marker, got %v", err)
	}
	if _, err := manager.Status(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found marker from Status, got %v", err)
	}
}

func TestManagerRunLoopDrainsQueue(t *testing.T) {
	setProbe(t, 2.0)
	cfg := testsupport.NewConfig(t)
	manager, store := newTestManager(t, cfg, &fakeSynth{}, &fakeRenderer{})
	ctx := context.Background()

	job, err := manager.Submit(ctx, SubmitRequest{
		SourcePath: "/tmp/video.mp4",
		ScriptJSON: []byte(fittingScript),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	deadline := time.Now().Add(10 * time.Second)
	for {
		loaded, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if loaded.IsTerminal() {
			if loaded.Status != queue.StatusCompleted {
				t.Fatalf("job ended %s: %s", loaded.Status, loaded.ErrorMessage)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish in time, state %+v", loaded)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestStartTwiceFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	manager, _ := newTestManager(t, cfg, &fakeSynth{}, &fakeRenderer{})

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail")
	}
}
