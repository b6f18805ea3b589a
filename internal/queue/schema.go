package queue

import (
	"context"
	"fmt"
)

const createJobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    stage TEXT,
    source_path TEXT,
    source_url TEXT,
    script_json TEXT NOT NULL,
    options_json TEXT,
    output_path TEXT,
    error_message TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
`

func (s *Store) applyMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createJobsTable); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
