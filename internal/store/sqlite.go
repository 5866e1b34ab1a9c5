package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"github.com/platformbuilds/dashbridge/internal/models"
	"github.com/platformbuilds/dashbridge/internal/monitoring"
)

// migrations are applied in order; applied versions are tracked in
// schema_versions.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS conversions (
    id                 TEXT PRIMARY KEY,
    status             TEXT NOT NULL,
    title              TEXT NOT NULL DEFAULT '',
    error_message      TEXT NOT NULL DEFAULT '',
    conversion_time_ms INTEGER NOT NULL DEFAULT 0,
    payload            TEXT NOT NULL,
    created_at         TEXT NOT NULL,
    completed_at       TEXT
);
CREATE INDEX IF NOT EXISTS idx_conversions_created_at ON conversions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_conversions_status ON conversions(status);

CREATE TABLE IF NOT EXISTS batches (
    id         TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    total      INTEGER NOT NULL DEFAULT 0,
    completed  INTEGER NOT NULL DEFAULT 0,
    failed     INTEGER NOT NULL DEFAULT 0,
    payload    TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS progress (
    job_id     TEXT PRIMARY KEY,
    progress   INTEGER NOT NULL DEFAULT 0,
    status     TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL
);
`,
	},
}

// SQLiteStore keeps conversion history in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// migrations. ":memory:" is supported for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection: serialises writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}

		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}

		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// observe records the operation in the DB metrics and passes err through.
func observe(op, table string, start time.Time, err error) error {
	monitoring.RecordDBOperation(op, table, time.Since(start), err == nil || errors.Is(err, ErrNotFound))
	return err
}

func (s *SQLiteStore) SaveConversion(ctx context.Context, rec *models.ConversionResult) (err error) {
	start := time.Now()
	defer func() { err = observe("upsert", "conversions", start, err) }()

	if rec == nil || rec.ID == "" {
		return fmt.Errorf("conversion record requires an id")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode conversion %s: %w", rec.ID, err)
	}
	title := ""
	if rec.GrafanaDashboard != nil {
		title = rec.GrafanaDashboard.Title
	}
	var completed interface{}
	if rec.CompletedAt != nil {
		completed = formatTime(*rec.CompletedAt)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO conversions (id, status, title, error_message, conversion_time_ms, payload, created_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status = excluded.status,
    title = excluded.title,
    error_message = excluded.error_message,
    conversion_time_ms = excluded.conversion_time_ms,
    payload = excluded.payload,
    completed_at = excluded.completed_at`,
		rec.ID, string(rec.Status), title, rec.ErrorMessage, rec.ConversionTimeMs,
		string(payload), formatTime(rec.CreatedAt), completed)
	if err != nil {
		return fmt.Errorf("save conversion %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetConversion(ctx context.Context, id string) (_ *models.ConversionResult, err error) {
	start := time.Now()
	defer func() { err = observe("select", "conversions", start, err) }()

	var payload string
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM conversions WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: conversion %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get conversion %s: %w", id, err)
	}
	var rec models.ConversionResult
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode conversion %s: %w", id, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) DeleteConversion(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { err = observe("delete", "conversions", start, err) }()
	return s.deleteRow(ctx, "conversions", id)
}

func (s *SQLiteStore) ListConversions(ctx context.Context, limit int) (_ []models.ConversionResult, err error) {
	start := time.Now()
	defer func() { err = observe("select", "conversions", start, err) }()

	q := `SELECT payload FROM conversions ORDER BY created_at DESC, id ASC`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversions: %w", err)
	}
	defer rows.Close()

	out := []models.ConversionResult{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		var rec models.ConversionResult
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decode conversion: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountConversions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count conversions: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) SaveBatch(ctx context.Context, rec *models.BatchResult) (err error) {
	start := time.Now()
	defer func() { err = observe("upsert", "batches", start, err) }()

	if rec == nil || rec.BatchID == "" {
		return fmt.Errorf("batch record requires an id")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode batch %s: %w", rec.BatchID, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO batches (id, status, total, completed, failed, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status = excluded.status,
    total = excluded.total,
    completed = excluded.completed,
    failed = excluded.failed,
    payload = excluded.payload`,
		rec.BatchID, string(rec.Status), rec.TotalDashboards, rec.Completed, rec.Failed,
		string(payload), formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("save batch %s: %w", rec.BatchID, err)
	}
	return nil
}

func (s *SQLiteStore) GetBatch(ctx context.Context, id string) (_ *models.BatchResult, err error) {
	start := time.Now()
	defer func() { err = observe("select", "batches", start, err) }()

	var payload string
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM batches WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: batch %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get batch %s: %w", id, err)
	}
	var rec models.BatchResult
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", id, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) DeleteBatch(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { err = observe("delete", "batches", start, err) }()
	return s.deleteRow(ctx, "batches", id)
}

func (s *SQLiteStore) SetProgress(ctx context.Context, p models.Progress) error {
	if p.JobID == "" {
		return fmt.Errorf("progress requires a job id")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO progress (job_id, progress, status, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(job_id) DO UPDATE SET
    progress = excluded.progress,
    status = excluded.status,
    updated_at = excluded.updated_at`,
		p.JobID, p.Progress, p.Status, formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save progress %s: %w", p.JobID, err)
	}
	return nil
}

func (s *SQLiteStore) GetProgress(ctx context.Context, jobID string) (*models.Progress, error) {
	p := models.Progress{JobID: jobID}
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT progress, status, updated_at FROM progress WHERE job_id = ?`, jobID,
	).Scan(&p.Progress, &p.Status, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: progress %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get progress %s: %w", jobID, err)
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("decode progress %s: %w", jobID, err)
	}
	return &p, nil
}

// deleteRow deletes by primary key; table is always a package constant.
func (s *SQLiteStore) deleteRow(ctx context.Context, table, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, table, id)
	}
	return nil
}

// formatTime uses a fixed-width layout so lexical order matches time order.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func parseTime(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05.000000000Z", s)
}
