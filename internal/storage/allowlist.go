package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ReplaceAllowlist replaces the uploading admin's allowlist subset with the
// given records as one transaction. Incoming records are first deduplicated
// by normalized contact handle - the first occurrence wins and later
// duplicates are counted, not inserted. The previous rows for the same
// uploader are deleted wholesale; this is a bulk replace, not a merge.
//
// Records must arrive with ContactHandle and OldIdentifierNorm already
// normalized. Returned stats report created rows, rows whose handle existed
// in the uploader's previous batch (updated), in-file duplicates, and
// handles that already exist under other uploaders.
func (s *SQLiteStorage) ReplaceAllowlist(ctx context.Context, uploadedBy string, uploadID string, records []AllowlistRecord) (*ReplaceStats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck

	// Handles present in the uploader's previous batch.
	previous, err := handleSet(ctx, tx,
		"SELECT contact_handle FROM allowlist WHERE uploaded_by = ?", uploadedBy)
	if err != nil {
		return nil, err
	}

	// Handles present under any other uploader, reported for visibility.
	foreign, err := handleSet(ctx, tx,
		"SELECT contact_handle FROM allowlist WHERE uploaded_by != ?", uploadedBy)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM allowlist WHERE uploaded_by = ?", uploadedBy); err != nil {
		return nil, fmt.Errorf("failed to clear previous allowlist: %w", err)
	}

	stats := &ReplaceStats{}
	seen := make(map[string]bool, len(records))
	now := time.Now().UnixMilli()

	for _, rec := range records {
		if seen[rec.ContactHandle] {
			stats.DuplicatesInFile++
			continue
		}
		seen[rec.ContactHandle] = true

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO allowlist
				(contact_handle, old_identifier, old_identifier_norm, new_identifier, npub_key, uploaded_by, upload_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ContactHandle, rec.OldIdentifier, rec.OldIdentifierNorm,
			rec.NewIdentifier, rec.NpubKey, uploadedBy, uploadID, now); err != nil {
			return nil, fmt.Errorf("failed to insert allowlist record: %w", err)
		}

		switch {
		case previous[rec.ContactHandle]:
			stats.Updated++
		default:
			stats.Created++
		}
		if foreign[rec.ContactHandle] {
			stats.DuplicatesExisting++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit allowlist replacement: %w", err)
	}

	return stats, nil
}

func handleSet(ctx context.Context, tx *sql.Tx, query string, args ...any) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query handles: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	set := make(map[string]bool)
	for rows.Next() {
		var handle string
		if err := rows.Scan(&handle); err != nil {
			return nil, fmt.Errorf("failed to scan handle: %w", err)
		}
		set[handle] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating handles: %w", err)
	}
	return set, nil
}

const allowlistColumns = "id, contact_handle, old_identifier, old_identifier_norm, new_identifier, npub_key, uploaded_by, COALESCE(upload_id, ''), created_at"

func scanAllowlistRecord(row interface{ Scan(...any) error }) (*AllowlistRecord, error) {
	var rec AllowlistRecord
	var createdAt int64
	err := row.Scan(&rec.ID, &rec.ContactHandle, &rec.OldIdentifier, &rec.OldIdentifierNorm,
		&rec.NewIdentifier, &rec.NpubKey, &rec.UploadedBy, &rec.UploadID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan allowlist record: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(createdAt)
	return &rec, nil
}

// LookupByIdentifier finds the first allowlist record whose normalized old
// identifier equals the given key, along with the number of records sharing
// that identifier across uploader scopes.
// Returns ErrNotFound if no record matches.
func (s *SQLiteStorage) LookupByIdentifier(ctx context.Context, normalizedID string) (*AllowlistRecord, int, error) {
	rec, err := scanAllowlistRecord(s.db.QueryRowContext(ctx,
		"SELECT "+allowlistColumns+" FROM allowlist WHERE old_identifier_norm = ? ORDER BY id ASC LIMIT 1",
		normalizedID))
	if err != nil {
		return nil, 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM allowlist WHERE old_identifier_norm = ?",
		normalizedID).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("failed to count matches: %w", err)
	}

	return rec, count, nil
}

// LookupByPublicKey finds the allowlist record carrying the given npub key.
// Returns ErrNotFound if no record matches.
func (s *SQLiteStorage) LookupByPublicKey(ctx context.Context, key string) (*AllowlistRecord, error) {
	return scanAllowlistRecord(s.db.QueryRowContext(ctx,
		"SELECT "+allowlistColumns+" FROM allowlist WHERE npub_key = ? AND npub_key != '' ORDER BY id ASC LIMIT 1",
		key))
}

// LookupByContactHandle finds the allowlist record keyed by a normalized
// telegram handle. Returns ErrNotFound if no record matches.
func (s *SQLiteStorage) LookupByContactHandle(ctx context.Context, handle string) (*AllowlistRecord, error) {
	return scanAllowlistRecord(s.db.QueryRowContext(ctx,
		"SELECT "+allowlistColumns+" FROM allowlist WHERE contact_handle = ? ORDER BY id ASC LIMIT 1",
		handle))
}

// ListAllowlistKeys returns the normalized old identifiers uploaded by one
// admin. Used to scope analytics for non-superadmins.
func (s *SQLiteStorage) ListAllowlistKeys(ctx context.Context, uploadedBy string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT old_identifier_norm FROM allowlist WHERE uploaded_by = ?", uploadedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to query allowlist keys: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan allowlist key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allowlist keys: %w", err)
	}
	return keys, nil
}

// ListRecordsForUpload returns all allowlist records belonging to an upload
// batch, in insertion order. Used by the CSV download endpoint.
func (s *SQLiteStorage) ListRecordsForUpload(ctx context.Context, uploadID string) ([]*AllowlistRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+allowlistColumns+" FROM allowlist WHERE upload_id = ? ORDER BY id ASC", uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query upload records: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	records := make([]*AllowlistRecord, 0)
	for rows.Next() {
		rec, err := scanAllowlistRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upload records: %w", err)
	}
	return records, nil
}
