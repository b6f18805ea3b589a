package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"narrate/internal/config"
	"narrate/internal/logging"
	"narrate/internal/media/ffprobe"
	"narrate/internal/queue"
	"narrate/internal/render"
	"narrate/internal/tts"
)

var probeMedia = ffprobe.Inspect

// Fetcher materializes a job source into its workspace.
type Fetcher interface {
	Fetch(ctx context.Context, sourcePath, sourceURL, destDir string) (string, error)
}

// Renderer produces the final artifact for a job.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (string, error)
}

// Manager owns the narration workflow: it claims queued jobs, runs them
// through the stage sequence, and persists terminal states. At most
// MaxConcurrentJobs jobs run at once.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	synth    tts.Synthesizer
	fetcher  Fetcher
	renderer Renderer
	logger   *slog.Logger

	sem          *semaphore.Weighted
	pollInterval time.Duration
	errorRetry   time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager wires the workflow manager from its collaborators.
func NewManager(cfg *config.Config, store *queue.Store, synth tts.Synthesizer, fetcher Fetcher, renderer Renderer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workflow.MaxConcurrentJobs
	if workers < 1 {
		workers = 1
	}
	pollInterval := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	errorRetry := time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second
	if errorRetry <= 0 {
		errorRetry = pollInterval
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		synth:        synth,
		fetcher:      fetcher,
		renderer:     renderer,
		logger:       logging.NewComponentLogger(logger, "pipeline"),
		sem:          semaphore.NewWeighted(int64(workers)),
		pollInterval: pollInterval,
		errorRetry:   errorRetry,
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("pipeline already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for in-flight jobs to
// unwind.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.sem.Acquire(ctx, 1); err != nil {
			return
		}

		job, err := m.store.Claim(ctx)
		if err != nil {
			m.sem.Release(1)
			m.logger.Error("failed to claim next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_claim_failed"),
			)
			m.waitOrShutdown(ctx, m.errorRetry)
			continue
		}
		if job == nil {
			m.sem.Release(1)
			m.waitOrShutdown(ctx, m.pollInterval)
			continue
		}

		m.wg.Add(1)
		go func(job *queue.Job) {
			defer m.wg.Done()
			defer m.sem.Release(1)
			m.process(ctx, job)
		}(job)
	}
}

func (m *Manager) waitOrShutdown(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
