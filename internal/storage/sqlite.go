package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"soundwatch/internal/logger"
	"soundwatch/internal/models"
)

const createFailuresTable = `
CREATE TABLE IF NOT EXISTS failures (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	date TEXT NOT NULL,
	time TEXT NOT NULL,
	status TEXT NOT NULL,
	confidence_pct REAL NOT NULL
)`

const insertFailure = `
INSERT INTO failures (event_id, session_id, date, time, status, confidence_pct)
VALUES (?, ?, ?, ?, ?, ?)`

// SQLite stores failure records in a local database file
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (and creates) the database and its schema
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createFailuresTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create failures table: %w", err)
	}

	log := logger.WithComponent("sqlite_sink")
	log.Info().Str("path", path).Msg("sqlite sink ready")
	return &SQLite{db: db, path: path}, nil
}

// Name implements FailureLogger
func (s *SQLite) Name() string { return "sqlite" }

// LogFailure implements FailureLogger
func (s *SQLite) LogFailure(ctx context.Context, d models.Decision) error {
	_, err := s.db.ExecContext(ctx, insertFailure,
		d.ID, d.SessionID, d.Date(), d.TimeOfDay(), d.Status.String(), d.ConfidencePercent())
	if err != nil {
		return fmt.Errorf("insert failure: %w", err)
	}
	return nil
}

// Close implements FailureLogger
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Record is one stored failure row
type Record struct {
	ID            int64
	EventID       string
	SessionID     string
	Date          string
	Time          string
	Status        string
	ConfidencePct float64
}

// Recent returns up to limit rows, newest first
func (s *SQLite) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_id, session_id, date, time, status, confidence_pct
		 FROM failures ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.EventID, &r.SessionID, &r.Date, &r.Time, &r.Status, &r.ConfidencePct); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
