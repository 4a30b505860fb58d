// Package history records every render attempt in a local SQLite
// database so a batch's outcomes can be inspected after the fact.
// Writes are best-effort: a failing history insert never fails a render.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS renders (
	id          TEXT PRIMARY KEY,
	input       TEXT NOT NULL,
	status      TEXT NOT NULL,
	ssim        REAL NOT NULL DEFAULT 0,
	path        TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_renders_created ON renders(created_at DESC);
`

// Record is one render attempt.
type Record struct {
	ID        string        `json:"id"`
	Input     string        `json:"input"`
	Status    string        `json:"status"`
	SSIM      float64       `json:"ssim"`
	Path      string        `json:"path,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"-"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Store persists render records.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (or creates) the history database at path and applies the
// schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	return New(db, logger)
}

// New wraps an already-open database, applying the schema. Used directly
// by tests with an in-memory database.
func New(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// Single connection keeps pragma state and in-memory databases
	// coherent across callers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("history: wal pragma failed", "error", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &Store{db: db, log: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records a render. Errors are logged, never returned.
func (s *Store) Append(ctx context.Context, rec Record) {
	if rec.ID == "" {
		rec.ID = "run_" + uuid.Must(uuid.NewV7()).String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO renders (id, input, status, ssim, path, error, duration_ms, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Input, rec.Status, rec.SSIM, rec.Path, rec.Error,
		rec.Duration.Milliseconds(), rec.CreatedAt.Unix())
	if err != nil {
		s.log.Warn("history: append failed", "input", rec.Input, "error", err)
	}
}

// Recent returns the latest records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, input, status, ssim, path, error, duration_ms, created_at
		FROM renders ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var durMS, created int64
		if err := rows.Scan(&rec.ID, &rec.Input, &rec.Status, &rec.SSIM,
			&rec.Path, &rec.Error, &durMS, &created); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		rec.Duration = time.Duration(durMS) * time.Millisecond
		rec.CreatedAt = time.Unix(created, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}
