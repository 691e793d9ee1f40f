// Package storage persists login sessions and the export job log in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("storage: not found")

// Export job statuses.
const (
	ExportQueued = "queued"
	ExportDone   = "done"
	ExportFailed = "failed"
)

// SessionRow is a stored session. User holds the serialized user record.
type SessionRow struct {
	Token     string
	User      []byte
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ExportJob is one entry of the export log.
type ExportJob struct {
	ID          string
	Page        string
	RequestedBy string
	Target      string
	Status      string
	Rows        int
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// NewWithDB wraps an already migrated database handle.
func NewWithDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func (r *SQLiteRepository) SaveSession(ctx context.Context, s SessionRow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_json, expires_at, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(token) DO UPDATE SET user_json = excluded.user_json, expires_at = excluded.expires_at`,
		s.Token, s.User, millis(s.ExpiresAt), millis(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, token string) (SessionRow, error) {
	var (
		s                  SessionRow
		expires, createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_json, expires_at, created_at FROM sessions WHERE token = ?`, token).
		Scan(&s.Token, &s.User, &expires, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRow{}, ErrNotFound
	}
	if err != nil {
		return SessionRow{}, fmt.Errorf("get session: %w", err)
	}
	s.ExpiresAt = fromMillis(expires)
	s.CreatedAt = fromMillis(createdAt)
	return s, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired at or before now.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, millis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}

// RecordExport inserts a queued export job.
func (r *SQLiteRepository) RecordExport(ctx context.Context, job ExportJob) error {
	status := job.Status
	if status == "" {
		status = ExportQueued
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO export_jobs (id, page, requested_by, target, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.Page, job.RequestedBy, job.Target, status, millis(job.CreatedAt))
	if err != nil {
		return fmt.Errorf("record export %s: %w", job.ID, err)
	}
	return nil
}

// CompleteExport marks a job done or failed.
func (r *SQLiteRepository) CompleteExport(ctx context.Context, id, status string, rows int, errMsg string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE export_jobs SET status = ?, row_count = ?, error = ?, completed_at = ? WHERE id = ?`,
		status, rows, errMsg, millis(at), id)
	if err != nil {
		return fmt.Errorf("complete export %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete export %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("complete export %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListExports returns the most recent jobs first.
func (r *SQLiteRepository) ListExports(ctx context.Context, limit int) ([]ExportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, page, requested_by, target, status, row_count, error, created_at, completed_at
		 FROM export_jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	var jobs []ExportJob
	for rows.Next() {
		var (
			j         ExportJob
			createdAt int64
			completed sql.NullInt64
		)
		if err := rows.Scan(&j.ID, &j.Page, &j.RequestedBy, &j.Target, &j.Status, &j.Rows, &j.Error, &createdAt, &completed); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		j.CreatedAt = fromMillis(createdAt)
		if completed.Valid {
			t := fromMillis(completed.Int64)
			j.CompletedAt = &t
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	return jobs, nil
}
