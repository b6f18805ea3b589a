package pipeline

import (
	"context"
	"encoding/json"

	"narrate/internal/logging"
	"narrate/internal/queue"
	"narrate/internal/script"
	"narrate/internal/services"
)

// Options carries the per-job knobs persisted alongside the script.
type Options struct {
	Voice     string `json:"voice,omitempty"`
	Subtitles bool   `json:"subtitles,omitempty"`
}

// SubmitRequest describes one narration job. Exactly one of SourcePath and
// SourceURL must be set.
type SubmitRequest struct {
	SourcePath string
	SourceURL  string
	ScriptJSON []byte
	Options    Options
}

// Submit validates the request and enqueues a job. Validation problems are
// reported synchronously; no job record is created for a rejected request.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*queue.Job, error) {
	if req.SourcePath == "" && req.SourceURL == "" {
		return nil, services.Wrap(services.ErrValidation, "submit", "source", "a source file or url is required", nil)
	}
	if req.SourcePath != "" && req.SourceURL != "" {
		return nil, services.Wrap(services.ErrValidation, "submit", "source", "provide either a source file or a url, not both", nil)
	}

	parsed, err := script.Parse(req.ScriptJSON)
	if err != nil {
		return nil, err
	}
	if err := parsed.Validate(); err != nil {
		return nil, err
	}

	optionsJSON, err := json.Marshal(req.Options)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "submit", "options", "encode job options", err)
	}

	job, err := m.store.NewJob(ctx, req.SourcePath, req.SourceURL, string(req.ScriptJSON), string(optionsJSON))
	if err != nil {
		return nil, err
	}
	m.logger.Info("job accepted",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("utterances", len(parsed)),
		logging.String(logging.FieldEventType, "job_accepted"),
	)
	return job, nil
}

// Status returns the job record for id.
func (m *Manager) Status(ctx context.Context, id string) (*queue.Job, error) {
	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "status", "job", id, nil)
	}
	return job, nil
}

// Output returns the artifact path for a completed job. Unknown ids, jobs
// still in flight, and failed jobs are each reported distinctly.
func (m *Manager) Output(ctx context.Context, id string) (string, error) {
	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", services.Wrap(services.ErrNotFound, "output", "job", id, nil)
	}
	switch job.Status {
	case queue.StatusCompleted:
		return job.OutputPath, nil
	case queue.StatusFailed:
		// The stored message already carries stage context; no extra detail.
		return "", services.Wrap(services.ErrJobFailed, "", "", job.ErrorMessage, nil)
	default:
		return "", services.Wrap(services.ErrNotReady, "output", "job", string(job.Status), nil)
	}
}

func decodeOptions(raw string) Options {
	var opts Options
	if raw == "" {
		return opts
	}
	_ = json.Unmarshal([]byte(raw), &opts)
	return opts
}
