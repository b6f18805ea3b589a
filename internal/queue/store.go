package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"narrate/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewJob inserts a queued job with a fresh identifier.
func (s *Store) NewJob(ctx context.Context, sourcePath, sourceURL, scriptJSON, optionsJSON string) (*Job, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, status, stage, source_path, source_url, script_json, options_json,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		StatusQueued,
		nil,
		nullableString(sourcePath),
		nullableString(sourceURL),
		scriptJSON,
		nullableString(optionsJSON),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Returns nil when unknown.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, stage = ?, source_path = ?, source_url = ?,
             script_json = ?, options_json = ?, output_path = ?, error_message = ?,
             updated_at = ?
         WHERE id = ?`,
		job.Status,
		nullableString(job.Stage),
		nullableString(job.SourcePath),
		nullableString(job.SourceURL),
		job.ScriptJSON,
		nullableString(job.OptionsJSON),
		nullableString(job.OutputPath),
		nullableString(job.ErrorMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// Claim atomically transitions the oldest queued job to processing and
// returns it. Returns nil when the queue is empty. Concurrent claimers never
// receive the same job: the guarded UPDATE is the single-winner edge of the
// state machine.
func (s *Store) Claim(ctx context.Context) (*Job, error) {
	for {
		row := s.db.QueryRowContext(
			ctx,
			`SELECT id FROM jobs WHERE status = ? ORDER BY created_at LIMIT 1`,
			StatusQueued,
		)
		var id string
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("next queued job: %w", err)
		}

		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			StatusProcessing,
			time.Now().UTC().Format(time.RFC3339Nano),
			id,
			StatusQueued,
		)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			// Lost the race; try the next queued job.
			continue
		}
		return s.GetByID(ctx, id)
	}
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ResetStuckProcessing re-queues jobs orphaned in processing by a previous
// daemon crash. Run once at boot, before the workflow manager starts.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, stage = NULL, error_message = NULL, updated_at = ?
         WHERE status = ?`,
		StatusQueued,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// FailProcessing marks all in-flight jobs as failed with the given reason.
// Used during daemon shutdown so no job is left permanently in processing.
func (s *Store) FailProcessing(ctx context.Context, reason string) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE status = ?`,
		StatusFailed,
		reason,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("fail processing jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to queued for reprocessing. With no ids,
// every failed job is re-queued.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs
            SET status = ?, stage = NULL, error_message = NULL, output_path = NULL, updated_at = ?
            WHERE status = ?`,
			StatusQueued,
			now,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusQueued, now)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE jobs
        SET status = ?, stage = NULL, error_message = NULL, output_path = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed jobs.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	return s.clearByStatus(ctx, StatusCompleted)
}

// ClearFailed removes only failed jobs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	return s.clearByStatus(ctx, StatusFailed)
}

func (s *Store) clearByStatus(ctx context.Context, status Status) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, status)
	if err != nil {
		return 0, fmt.Errorf("clear %s jobs: %w", status, err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, status, stage, source_path, source_url, script_json, options_json, output_path, error_message, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		statusStr    string
		stage        sql.NullString
		sourcePath   sql.NullString
		sourceURL    sql.NullString
		scriptJSON   string
		optionsJSON  sql.NullString
		outputPath   sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&stage,
		&sourcePath,
		&sourceURL,
		&scriptJSON,
		&optionsJSON,
		&outputPath,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		Status:       Status(statusStr),
		Stage:        stage.String,
		SourcePath:   sourcePath.String,
		SourceURL:    sourceURL.String,
		ScriptJSON:   scriptJSON,
		OptionsJSON:  optionsJSON.String,
		OutputPath:   outputPath.String,
		ErrorMessage: errorMessage.String,
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
