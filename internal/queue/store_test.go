package queue_test

import (
	"context"
	"testing"

	"narrate/internal/queue"
	"narrate/internal/testsupport"
)

const scriptJSON = `[{"start":"00:00","end":"00:05","text":"Hi"}]`

func TestNewJobRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.NewJob(ctx, "/tmp/in.mp4", "", scriptJSON, `{"voice":"x"}`)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if job.ID == "" {
		t.Fatal("job id must be assigned")
	}
	if job.Status != queue.StatusQueued {
		t.Fatalf("new job status = %s, want queued", job.Status)
	}

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded == nil {
		t.Fatal("job not found after insert")
	}
	if loaded.ScriptJSON != scriptJSON {
		t.Fatalf("script round trip mismatch: %q", loaded.ScriptJSON)
	}
	if loaded.SourcePath != "/tmp/in.mp4" {
		t.Fatalf("source path mismatch: %q", loaded.SourcePath)
	}
}

func TestGetByIDUnknown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.GetByID(context.Background(), "no-such-job")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for unknown id, got %+v", job)
	}
}

func TestClaimTransitionsOldestQueued(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, err := store.NewJob(ctx, "/tmp/a.mp4", "", scriptJSON, "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if _, err := store.NewJob(ctx, "/tmp/b.mp4", "", scriptJSON, ""); err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	claimed, err := store.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected a claimed job")
	}
	if claimed.ID != first.ID {
		t.Fatalf("claimed %s, want oldest %s", claimed.ID, first.ID)
	}
	if claimed.Status != queue.StatusProcessing {
		t.Fatalf("claimed status = %s, want processing", claimed.Status)
	}
}

func TestClaimEmptyQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.Claim(context.Background())
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil on empty queue, got %+v", job)
	}
}

func TestClaimNeverHandsOutSameJobTwice(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.NewJob(ctx, "/tmp/a.mp4", "", scriptJSON, ""); err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	first, err := store.Claim(ctx)
	if err != nil || first == nil {
		t.Fatalf("first Claim: %v %v", first, err)
	}
	second, err := store.Claim(ctx)
	if err != nil {
		t.Fatalf("second Claim: %v", err)
	}
	if second != nil {
		t.Fatalf("second claim should find nothing, got %s", second.ID)
	}
}

func TestTerminalTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.NewJob(ctx, "/tmp/a.mp4", "", scriptJSON, "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	claimed, err := store.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("Claim: %v %v", claimed, err)
	}

	claimed.SetFailed("render", "ffmpeg exited with status 1")
	if err := store.Update(ctx, claimed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", loaded.Status)
	}
	if loaded.Stage != "render" || loaded.ErrorMessage == "" {
		t.Fatalf("failure detail not persisted: %+v", loaded)
	}
	if !loaded.IsTerminal() {
		t.Fatal("failed job must be terminal")
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.NewJob(ctx, "/tmp/a.mp4", "", scriptJSON, ""); err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if _, err := store.Claim(ctx); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	reset, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset %d jobs, want 1", reset)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Queued != 1 || health.Processing != 0 {
		t.Fatalf("unexpected health after reset: %+v", health)
	}
}

func TestFailProcessingOnShutdown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.NewJob(ctx, "/tmp/a.mp4", "", scriptJSON, "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if _, err := store.Claim(ctx); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	failed, err := store.FailProcessing(ctx, queue.ShutdownStopReason)
	if err != nil {
		t.Fatalf("FailProcessing: %v", err)
	}
	if failed != 1 {
		t.Fatalf("failed %d jobs, want 1", failed)
	}
	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != queue.StatusFailed || loaded.ErrorMessage != queue.ShutdownStopReason {
		t.Fatalf("unexpected shutdown state: %+v", loaded)
	}
}

func TestRetryFailedAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.NewJob(ctx, "/tmp/a.mp4", "", scriptJSON, "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	claimed, err := store.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("Claim: %v %v", claimed, err)
	}
	claimed.SetFailed("synthesize", "backend unavailable")
	if err := store.Update(ctx, claimed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	retried, err := store.RetryFailed(ctx, job.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("retried %d, want 1", retried)
	}
	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != queue.StatusQueued || loaded.ErrorMessage != "" {
		t.Fatalf("retry did not reset job: %+v", loaded)
	}

	// Complete it and clear.
	claimed, err = store.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("Claim: %v %v", claimed, err)
	}
	claimed.SetCompleted("/tmp/out.mp4")
	if err := store.Update(ctx, claimed); err != nil {
		t.Fatalf("Update: %v", err)
	}
	cleared, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("cleared %d, want 1", cleared)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.NewJob(ctx, "/tmp/a.mp4", "", scriptJSON, ""); err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if _, err := store.NewJob(ctx, "/tmp/b.mp4", "", scriptJSON, ""); err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if _, err := store.Claim(ctx); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	queued, err := store.List(ctx, queue.StatusQueued)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(queued) != 1 {
		t.Fatalf("queued list len = %d, want 1", len(queued))
	}
	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all list len = %d, want 2", len(all))
	}
}
