// Package store persists scraped attendees in a local SQLite database:
// one row per attendee upserted by external id, plus a run-metadata
// table linking each record to the runs that first and last observed it.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"allinattendees/pkg/swapcard"
)

//go:embed schema.sql
var schema string

// Store wraps the attendee database.
type Store struct {
	db *sql.DB
}

// SyncStats summarizes one upsert pass.
type SyncStats struct {
	Inserted int
	Updated  int
}

// Open opens (creating if needed) the attendee database at path and
// applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun records the start of a sync and returns the run id.
// Re-syncing the same timestamp returns the existing run.
func (s *Store) CreateRun(ctx context.Context, timestamp time.Time, total int) (int64, error) {
	stamp := timestamp.UTC().Format(time.RFC3339)

	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM scraper_runs WHERE run_timestamp = ?`, stamp).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to look up run: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scraper_runs (run_timestamp, total_attendees, status) VALUES (?, ?, 'running')`,
		stamp, total)
	if err != nil {
		return 0, fmt.Errorf("failed to create run: %w", err)
	}
	return res.LastInsertId()
}

// UpsertAttendees inserts or updates every record, keyed by external
// id, inside a single transaction.
func (s *Store) UpsertAttendees(ctx context.Context, runID int64, records []swapcard.Attendee) (SyncStats, error) {
	var stats SyncStats

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existsStmt, err := tx.PrepareContext(ctx, `SELECT 1 FROM attendees WHERE id = ?`)
	if err != nil {
		return stats, fmt.Errorf("failed to prepare exists query: %w", err)
	}
	defer existsStmt.Close()

	upsertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attendees (id, first_name, last_name, job_title, organization, photo_url, biography, user_id, first_seen_run, last_seen_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			job_title = excluded.job_title,
			organization = excluded.organization,
			photo_url = excluded.photo_url,
			biography = excluded.biography,
			user_id = excluded.user_id,
			last_seen_run = excluded.last_seen_run`)
	if err != nil {
		return stats, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer upsertStmt.Close()

	for _, r := range records {
		if r.ID == "" {
			continue
		}

		var one int
		err := existsStmt.QueryRowContext(ctx, r.ID).Scan(&one)
		switch err {
		case nil:
			stats.Updated++
		case sql.ErrNoRows:
			stats.Inserted++
		default:
			return stats, fmt.Errorf("failed to check attendee %s: %w", r.ID, err)
		}

		if _, err := upsertStmt.ExecContext(ctx,
			r.ID, r.FirstName, r.LastName, r.JobTitle, r.Organization,
			r.PhotoURL, r.Biography, r.UserID, runID, runID); err != nil {
			return stats, fmt.Errorf("failed to upsert attendee %s: %w", r.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE scraper_runs SET new_attendees = ?, updated_attendees = ? WHERE id = ?`,
		stats.Inserted, stats.Updated, runID); err != nil {
		return stats, fmt.Errorf("failed to update run counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit: %w", err)
	}
	return stats, nil
}

// CompleteRun marks a run finished with its termination reason.
func (s *Store) CompleteRun(ctx context.Context, runID int64, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scraper_runs SET status = 'completed', termination_reason = ? WHERE id = ?`,
		reason, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// CountAttendees returns the total number of stored attendees.
func (s *Store) CountAttendees(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendees`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count attendees: %w", err)
	}
	return count, nil
}

// CountOrganizations returns the number of distinct non-empty
// organizations, used in the sync summary.
func (s *Store) CountOrganizations(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT organization) FROM attendees WHERE organization IS NOT NULL AND organization != ''`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count organizations: %w", err)
	}
	return count, nil
}
