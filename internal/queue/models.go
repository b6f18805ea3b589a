package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a narration job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ShutdownStopReason is the error message set when jobs are failed due to daemon shutdown.
const ShutdownStopReason = "daemon stopped"

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Job represents a narration job persisted in SQLite.
//
// Status transitions are monotonic: queued → processing → completed|failed.
// The store enforces the queued→processing edge via Claim; the pipeline owns
// the terminal edges.
type Job struct {
	ID           string
	Status       Status
	Stage        string
	SourcePath   string
	SourceURL    string
	ScriptJSON   string
	OptionsJSON  string
	OutputPath   string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the job has reached a final state.
func (j Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// SetFailed marks the job as failed, recording the failing stage and message.
func (j *Job) SetFailed(stage, message string) {
	j.Status = StatusFailed
	j.Stage = stage
	j.ErrorMessage = message
}

// SetCompleted marks the job as completed with its finished artifact path.
func (j *Job) SetCompleted(outputPath string) {
	j.Status = StatusCompleted
	j.Stage = "done"
	j.ErrorMessage = ""
	j.OutputPath = outputPath
}
