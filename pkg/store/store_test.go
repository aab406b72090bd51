package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"allinattendees/pkg/swapcard"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "attendees.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecords() []swapcard.Attendee {
	return []swapcard.Attendee{
		{ID: "person-1", FirstName: "Ada", LastName: "Lovelace", Organization: "Analytical Engines Ltd"},
		{ID: "person-2", FirstName: "Grace", LastName: "Hopper", Organization: "Navy"},
		{ID: "person-3", FirstName: "Alan", LastName: "Turing", Organization: "Navy"},
	}
}

func TestOpenAppliesSchema(t *testing.T) {
	s := openTestStore(t)

	count, err := s.CountAttendees(context.Background())
	if err != nil {
		t.Fatalf("CountAttendees failed: %v", err)
	}
	if count != 0 {
		t.Errorf("fresh database has %d attendees, want 0", count)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendees.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	runID, err := s1.CreateRun(context.Background(), time.Now(), 1)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if _, err := s1.UpsertAttendees(context.Background(), runID, sampleRecords()[:1]); err != nil {
		t.Fatalf("UpsertAttendees failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	count, err := s2.CountAttendees(context.Background())
	if err != nil {
		t.Fatalf("CountAttendees failed: %v", err)
	}
	if count != 1 {
		t.Errorf("reopened database has %d attendees, want 1", count)
	}
}

func TestCreateRunDeduplicatesByTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	stamp := time.Date(2025, 5, 14, 9, 30, 0, 0, time.UTC)

	first, err := s.CreateRun(ctx, stamp, 100)
	if err != nil {
		t.Fatalf("first CreateRun failed: %v", err)
	}
	second, err := s.CreateRun(ctx, stamp, 100)
	if err != nil {
		t.Fatalf("second CreateRun failed: %v", err)
	}
	if first != second {
		t.Errorf("same timestamp produced runs %d and %d", first, second)
	}

	other, err := s.CreateRun(ctx, stamp.Add(time.Hour), 100)
	if err != nil {
		t.Fatalf("third CreateRun failed: %v", err)
	}
	if other == first {
		t.Error("different timestamp reused an existing run id")
	}
}

func TestUpsertAttendeesInsertsThenUpdates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run1, err := s.CreateRun(ctx, time.Date(2025, 5, 14, 9, 0, 0, 0, time.UTC), 3)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	stats, err := s.UpsertAttendees(ctx, run1, sampleRecords())
	if err != nil {
		t.Fatalf("first UpsertAttendees failed: %v", err)
	}
	if stats.Inserted != 3 || stats.Updated != 0 {
		t.Errorf("first pass: inserted=%d updated=%d, want 3/0", stats.Inserted, stats.Updated)
	}

	run2, err := s.CreateRun(ctx, time.Date(2025, 5, 14, 10, 0, 0, 0, time.UTC), 4)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	records := append(sampleRecords(), swapcard.Attendee{ID: "person-4", FirstName: "Margaret"})
	records[0].JobTitle = "Mathematician"
	stats, err = s.UpsertAttendees(ctx, run2, records)
	if err != nil {
		t.Fatalf("second UpsertAttendees failed: %v", err)
	}
	if stats.Inserted != 1 || stats.Updated != 3 {
		t.Errorf("second pass: inserted=%d updated=%d, want 1/3", stats.Inserted, stats.Updated)
	}

	count, err := s.CountAttendees(ctx)
	if err != nil {
		t.Fatalf("CountAttendees failed: %v", err)
	}
	if count != 4 {
		t.Errorf("got %d attendees, want 4", count)
	}

	var jobTitle string
	var firstSeen, lastSeen int64
	err = s.db.QueryRowContext(ctx,
		`SELECT job_title, first_seen_run, last_seen_run FROM attendees WHERE id = ?`,
		"person-1").Scan(&jobTitle, &firstSeen, &lastSeen)
	if err != nil {
		t.Fatalf("failed to query attendee: %v", err)
	}
	if jobTitle != "Mathematician" {
		t.Errorf("job title not updated, got %q", jobTitle)
	}
	if firstSeen != run1 {
		t.Errorf("first_seen_run = %d, want %d", firstSeen, run1)
	}
	if lastSeen != run2 {
		t.Errorf("last_seen_run = %d, want %d", lastSeen, run2)
	}
}

func TestUpsertAttendeesSkipsEmptyIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, time.Now(), 2)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	stats, err := s.UpsertAttendees(ctx, runID, []swapcard.Attendee{
		{ID: "", FirstName: "Nameless"},
		{ID: "person-1", FirstName: "Ada"},
	})
	if err != nil {
		t.Fatalf("UpsertAttendees failed: %v", err)
	}
	if stats.Inserted != 1 {
		t.Errorf("inserted=%d, want 1", stats.Inserted)
	}
}

func TestUpsertAttendeesUpdatesRunCounters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, time.Now(), 3)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if _, err := s.UpsertAttendees(ctx, runID, sampleRecords()); err != nil {
		t.Fatalf("UpsertAttendees failed: %v", err)
	}

	var newCount, updatedCount int
	err = s.db.QueryRowContext(ctx,
		`SELECT new_attendees, updated_attendees FROM scraper_runs WHERE id = ?`,
		runID).Scan(&newCount, &updatedCount)
	if err != nil {
		t.Fatalf("failed to query run: %v", err)
	}
	if newCount != 3 || updatedCount != 0 {
		t.Errorf("run counters new=%d updated=%d, want 3/0", newCount, updatedCount)
	}
}

func TestCompleteRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, time.Now(), 0)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if err := s.CompleteRun(ctx, runID, "exhausted"); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}

	var status, reason string
	err = s.db.QueryRowContext(ctx,
		`SELECT status, termination_reason FROM scraper_runs WHERE id = ?`,
		runID).Scan(&status, &reason)
	if err != nil {
		t.Fatalf("failed to query run: %v", err)
	}
	if status != "completed" {
		t.Errorf("status = %q, want completed", status)
	}
	if reason != "exhausted" {
		t.Errorf("termination_reason = %q, want exhausted", reason)
	}
}

func TestCountOrganizations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, time.Now(), 4)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	records := append(sampleRecords(), swapcard.Attendee{ID: "person-4", FirstName: "Margaret"})
	if _, err := s.UpsertAttendees(ctx, runID, records); err != nil {
		t.Fatalf("UpsertAttendees failed: %v", err)
	}

	count, err := s.CountOrganizations(ctx)
	if err != nil {
		t.Fatalf("CountOrganizations failed: %v", err)
	}
	if count != 2 {
		t.Errorf("got %d organizations, want 2", count)
	}
}
