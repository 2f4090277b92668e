package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Compile-time check that SQLiteRepository implements Repository.
var _ Repository = (*SQLiteRepository)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS merge_jobs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_merge_jobs_created_at ON merge_jobs (created_at);
`

// SQLiteRepository persists jobs in a SQLite database so merge history
// survives restarts. Each job is stored as a JSON document next to its
// status and timestamps.
type SQLiteRepository struct {
	conn   *sql.DB
	logger *slog.Logger
}

// NewSQLiteRepository opens (or creates) the database at path. Jobs left
// IN_QUEUE or RUNNING by a previous process are marked FAILED.
func NewSQLiteRepository(path string, logger *slog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		schema,
	} {
		if _, err := conn.Exec(stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("initialize database: %w", err)
		}
	}

	r := &SQLiteRepository{conn: conn, logger: logger}
	if n, err := r.markInterrupted(context.Background()); err != nil {
		logger.Warn("failed to mark interrupted jobs", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("marked interrupted jobs as failed", slog.Int("count", n))
	}
	return r, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.conn.Close()
}

// Save inserts or replaces the job.
func (r *SQLiteRepository) Save(ctx context.Context, job *Job) error {
	snapshot := job.Clone()
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	_, err = r.conn.ExecContext(ctx,
		`INSERT INTO merge_jobs (id, status, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, payload = excluded.payload, updated_at = excluded.updated_at`,
		snapshot.ID, string(snapshot.Status), string(payload),
		snapshot.CreatedAt.UnixNano(), snapshot.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save job %s: %w", snapshot.ID, err)
	}
	return nil
}

// FindByID retrieves a job by its ID.
func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	var payload string
	err := r.conn.QueryRowContext(ctx, `SELECT payload FROM merge_jobs WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}
	return decodeJob(payload)
}

// List returns all jobs, oldest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Job, error) {
	rows, err := r.conn.QueryContext(ctx, `SELECT payload FROM merge_jobs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	jobs := make([]*Job, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		job, err := decodeJob(payload)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Delete removes a job.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.conn.ExecContext(ctx, `DELETE FROM merge_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// markInterrupted fails every job a previous process left unfinished.
func (r *SQLiteRepository) markInterrupted(ctx context.Context) (int, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT payload FROM merge_jobs WHERE status IN (?, ?)`, string(StatusInQueue), string(StatusRunning))
	if err != nil {
		return 0, err
	}
	var stale []*Job
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			_ = rows.Close()
			return 0, err
		}
		job, err := decodeJob(payload)
		if err != nil {
			_ = rows.Close()
			return 0, err
		}
		stale = append(stale, job)
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}

	for _, job := range stale {
		if err := job.Fail("interrupted by restart"); err != nil {
			return 0, err
		}
		if err := r.Save(ctx, job); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

func decodeJob(payload string) (*Job, error) {
	job := &Job{}
	if err := json.Unmarshal([]byte(payload), job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if job.Outputs == nil {
		job.Outputs = make([]Output, 0)
	}
	return job, nil
}
