package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const visitColumns = `id, url, normalized_url, final_url, status_code, content_type, charset, title,
	error_message, opened_external, response_time_ms, visited_at`

// Database handles all database operations.
type Database struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDatabase opens (creating if needed) the SQLite file at path.
func NewDatabase(path string) (*Database, error) {
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return &Database{db: db}, nil
}

// Open is NewDatabase followed by Initialize.
func Open(path string) (*Database, error) {
	d, err := NewDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := d.Initialize(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Initialize creates tables.
func (d *Database) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// RecordVisit inserts v and sets its ID. A zero VisitedAt is set to now.
func (d *Database) RecordVisit(ctx context.Context, v *Visit) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if v.VisitedAt.IsZero() {
		v.VisitedAt = time.Now()
	}
	v.VisitedAt = v.VisitedAt.UTC()

	result, err := d.db.ExecContext(ctx, `
		INSERT INTO visits (url, normalized_url, final_url, status_code, content_type, charset, title,
			error_message, opened_external, response_time_ms, visited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.URL, v.NormalizedURL, v.FinalURL, v.StatusCode, v.ContentType, v.Charset, v.Title,
		v.ErrorMessage, v.OpenedExternal, v.ResponseTime.Milliseconds(), v.VisitedAt)
	if err != nil {
		return fmt.Errorf("failed to insert visit: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = id
	return nil
}

// ListVisits returns the most recent visits first. limit <= 0 returns all.
func (d *Database) ListVisits(ctx context.Context, limit int) ([]*Visit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}

	rows, err := d.db.QueryContext(ctx, `SELECT `+visitColumns+` FROM visits ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// VisitsFor returns every visit whose normalized URL matches, newest first.
func (d *Database) VisitsFor(ctx context.Context, normalizedURL string) ([]*Visit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE normalized_url = ? ORDER BY id DESC`, normalizedURL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// CountVisits returns the number of recorded visits.
func (d *Database) CountVisits(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits`).Scan(&n)
	return n, err
}

// GetStats returns aggregate counts over the visit log.
func (d *Database) GetStats(ctx context.Context) (*Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var stats Stats
	err := d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT normalized_url),
			COALESCE(SUM(CASE WHEN opened_external THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN error_message != '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status_code >= 400 THEN 1 ELSE 0 END), 0)
		FROM visits
	`).Scan(&stats.TotalVisits, &stats.DistinctURLs, &stats.OpenedExternal, &stats.Failed, &stats.ErrorStatuses)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ClearVisits deletes the whole log and returns how many rows were removed.
func (d *Database) ClearVisits(ctx context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	result, err := d.db.ExecContext(ctx, `DELETE FROM visits`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVisit(row scanner) (*Visit, error) {
	var v Visit
	var finalURL, contentType, charset, title, errorMessage sql.NullString
	var responseMS int64
	if err := row.Scan(
		&v.ID, &v.URL, &v.NormalizedURL, &finalURL, &v.StatusCode, &contentType, &charset, &title,
		&errorMessage, &v.OpenedExternal, &responseMS, &v.VisitedAt,
	); err != nil {
		return nil, err
	}

	v.FinalURL = finalURL.String
	v.ContentType = contentType.String
	v.Charset = charset.String
	v.Title = title.String
	v.ErrorMessage = errorMessage.String
	v.ResponseTime = time.Duration(responseMS) * time.Millisecond
	return &v, nil
}
