package storage

import (
	"context"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(handle, old, newID string) AllowlistRecord {
	return AllowlistRecord{
		ContactHandle:     handle,
		OldIdentifier:     old,
		OldIdentifierNorm: old,
		NewIdentifier:     newID,
	}
}

func TestReplaceAllowlistBasic(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()

	stats, err := s.ReplaceAllowlist(ctx, "admin@example.com", "", []AllowlistRecord{
		record("alicetg", "alice", "alice2"),
		record("bobtg", "bob", "bob2"),
	})
	if err != nil {
		t.Fatalf("ReplaceAllowlist failed: %v", err)
	}

	if stats.Created != 2 || stats.Updated != 0 || stats.DuplicatesInFile != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	rec, err := s.LookupByContactHandle(ctx, "alicetg")
	if err != nil {
		t.Fatalf("LookupByContactHandle failed: %v", err)
	}
	if rec.OldIdentifier != "alice" || rec.NewIdentifier != "alice2" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

// TestReplaceAllowlistFirstOccurrenceWins verifies the in-file duplicate
// policy: the first row for a handle is kept, later ones counted and
// dropped.
func TestReplaceAllowlistFirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()

	stats, err := s.ReplaceAllowlist(ctx, "admin@example.com", "", []AllowlistRecord{
		record("alicetg", "alice", "alice2"),
		record("alicetg", "impostor", "impostor2"),
	})
	if err != nil {
		t.Fatalf("ReplaceAllowlist failed: %v", err)
	}

	if stats.DuplicatesInFile != 1 {
		t.Errorf("expected 1 in-file duplicate, got %d", stats.DuplicatesInFile)
	}
	if stats.Created != 1 {
		t.Errorf("expected 1 created, got %d", stats.Created)
	}

	rec, err := s.LookupByContactHandle(ctx, "alicetg")
	if err != nil {
		t.Fatalf("LookupByContactHandle failed: %v", err)
	}
	if rec.OldIdentifier != "alice" {
		t.Errorf("expected first occurrence kept, got %q", rec.OldIdentifier)
	}
}

// TestReplaceAllowlistReplacesNotMerges checks that a second upload for the
// same admin fully replaces the first.
func TestReplaceAllowlistReplacesNotMerges(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.ReplaceAllowlist(ctx, "admin@example.com", "", []AllowlistRecord{
		record("alicetg", "alice", "alice2"),
		record("bobtg", "bob", "bob2"),
	})
	if err != nil {
		t.Fatalf("first upload failed: %v", err)
	}

	stats, err := s.ReplaceAllowlist(ctx, "admin@example.com", "", []AllowlistRecord{
		record("alicetg", "alice", "alice3"),
		record("caroltg", "carol", "carol2"),
	})
	if err != nil {
		t.Fatalf("second upload failed: %v", err)
	}

	if stats.Updated != 1 || stats.Created != 1 {
		t.Errorf("expected 1 updated + 1 created, got %+v", stats)
	}

	// bob's row must be gone: replacement, not merge.
	if _, err := s.LookupByContactHandle(ctx, "bobtg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected bobtg to be removed, got %v", err)
	}

	rec, err := s.LookupByContactHandle(ctx, "alicetg")
	if err != nil {
		t.Fatalf("LookupByContactHandle failed: %v", err)
	}
	if rec.NewIdentifier != "alice3" {
		t.Errorf("expected replaced record, got %+v", rec)
	}
}

// TestReplaceAllowlistScopedByUploader checks that an upload only replaces
// the uploading admin's subset.
func TestReplaceAllowlistScopedByUploader(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()

	if _, err := s.ReplaceAllowlist(ctx, "a@example.com", "", []AllowlistRecord{
		record("alicetg", "alice", "alice2"),
	}); err != nil {
		t.Fatalf("upload for a@ failed: %v", err)
	}

	stats, err := s.ReplaceAllowlist(ctx, "b@example.com", "", []AllowlistRecord{
		record("alicetg", "alice", "alice9"),
		record("bobtg", "bob", "bob2"),
	})
	if err != nil {
		t.Fatalf("upload for b@ failed: %v", err)
	}

	if stats.DuplicatesExisting != 1 {
		t.Errorf("expected 1 existing duplicate reported, got %d", stats.DuplicatesExisting)
	}

	// a@'s record survives b@'s upload.
	rec, err := s.LookupByContactHandle(ctx, "alicetg")
	if err != nil {
		t.Fatalf("LookupByContactHandle failed: %v", err)
	}
	if rec.UploadedBy != "a@example.com" {
		t.Errorf("expected a@'s record first, got %+v", rec)
	}
}

func TestLookupByIdentifier(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.ReplaceAllowlist(ctx, "admin@example.com", "", []AllowlistRecord{
		record("alicetg", "alice", "alice2"),
		record("alice2tg", "alice", "alice3"),
	})
	if err != nil {
		t.Fatalf("ReplaceAllowlist failed: %v", err)
	}

	rec, count, err := s.LookupByIdentifier(ctx, "alice")
	if err != nil {
		t.Fatalf("LookupByIdentifier failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 matches, got %d", count)
	}
	if rec.ContactHandle != "alicetg" {
		t.Errorf("expected first inserted record, got %+v", rec)
	}

	if _, _, err := s.LookupByIdentifier(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupByPublicKey(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()

	withKey := record("alicetg", "alice", "alice2")
	withKey.NpubKey = "npub1testkey"
	_, err := s.ReplaceAllowlist(ctx, "admin@example.com", "", []AllowlistRecord{
		withKey,
		record("bobtg", "bob", "bob2"),
	})
	if err != nil {
		t.Fatalf("ReplaceAllowlist failed: %v", err)
	}

	rec, err := s.LookupByPublicKey(ctx, "npub1testkey")
	if err != nil {
		t.Fatalf("LookupByPublicKey failed: %v", err)
	}
	if rec.OldIdentifier != "alice" {
		t.Errorf("unexpected record: %+v", rec)
	}

	// Empty keys never match.
	if _, err := s.LookupByPublicKey(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty key, got %v", err)
	}
}

func TestListRecordsForUpload(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()

	upload := &Upload{ID: "up-1", UploadName: "batch one", FileName: "a.csv", UploadedBy: "admin@example.com", UploadedAt: testTime(), RecordCount: 2}
	if err := s.CreateUpload(ctx, upload); err != nil {
		t.Fatalf("CreateUpload failed: %v", err)
	}

	_, err := s.ReplaceAllowlist(ctx, "admin@example.com", "up-1", []AllowlistRecord{
		record("alicetg", "alice", "alice2"),
		record("bobtg", "bob", "bob2"),
	})
	if err != nil {
		t.Fatalf("ReplaceAllowlist failed: %v", err)
	}

	records, err := s.ListRecordsForUpload(ctx, "up-1")
	if err != nil {
		t.Fatalf("ListRecordsForUpload failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].OldIdentifier != "alice" || records[1].OldIdentifier != "bob" {
		t.Errorf("unexpected order: %+v", records)
	}
}
