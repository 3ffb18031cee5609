package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const updateColumns = `id, old_username, npub_key, current_new_username, attempt_count,
	COALESCE(first_attempt, ''), COALESCE(second_attempt, ''), COALESCE(third_attempt, ''),
	tracking_id, submitted_at, last_updated_at`

func scanAttempt(row interface{ Scan(...any) error }) (*MigrationAttempt, error) {
	var a MigrationAttempt
	var submittedAt, lastUpdatedAt int64
	err := row.Scan(&a.ID, &a.OldUsername, &a.NpubKey, &a.CurrentNewUsername, &a.AttemptCount,
		&a.FirstAttempt, &a.SecondAttempt, &a.ThirdAttempt,
		&a.TrackingID, &submittedAt, &lastUpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan migration attempt: %w", err)
	}
	a.SubmittedAt = time.UnixMilli(submittedAt)
	a.LastUpdatedAt = time.UnixMilli(lastUpdatedAt)
	return &a, nil
}

// GetAttemptByOldUsername retrieves the attempt record for a normalized
// legacy username. Returns ErrNotFound if no submission exists yet.
func (s *SQLiteStorage) GetAttemptByOldUsername(ctx context.Context, oldUsername string) (*MigrationAttempt, error) {
	return scanAttempt(s.db.QueryRowContext(ctx,
		"SELECT "+updateColumns+" FROM user_updates WHERE old_username = ?", oldUsername))
}

// GetAttemptByTrackingID retrieves the attempt record matching a tracking
// token. Matching is case-insensitive since tokens are shown upper-cased.
func (s *SQLiteStorage) GetAttemptByTrackingID(ctx context.Context, trackingID string) (*MigrationAttempt, error) {
	return scanAttempt(s.db.QueryRowContext(ctx,
		"SELECT "+updateColumns+" FROM user_updates WHERE UPPER(tracking_id) = UPPER(?)", trackingID))
}

// NewUsernameTaken reports whether a proposed new username is already the
// current choice of a different legacy identifier.
func (s *SQLiteStorage) NewUsernameTaken(ctx context.Context, newUsername, exceptOldUsername string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_updates WHERE current_new_username = ? AND old_username != ?",
		newUsername, exceptOldUsername).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check new username: %w", err)
	}
	return count > 0, nil
}

// RecordAttempt appends one accepted submission to the attempt record for a
// legacy identifier, creating the record on the first submission. The whole
// read-increment-write sequence runs in a single transaction so two
// concurrent submissions cannot both observe the same attempt count.
//
// The trackingID parameter is used only when the record is created; later
// attempts keep the original token. Returns ErrAttemptLimit once three
// attempts have been recorded.
func (s *SQLiteStorage) RecordAttempt(ctx context.Context, oldUsername, npubKey, newUsername, trackingID string) (*MigrationAttempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck

	now := time.Now().UnixMilli()

	existing, err := scanAttempt(tx.QueryRowContext(ctx,
		"SELECT "+updateColumns+" FROM user_updates WHERE old_username = ?", oldUsername))
	switch {
	case errors.Is(err, ErrNotFound):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO user_updates
				(old_username, npub_key, current_new_username, attempt_count, first_attempt, tracking_id, submitted_at, last_updated_at)
			VALUES (?, ?, ?, 1, ?, ?, ?, ?)`,
			oldUsername, npubKey, newUsername, newUsername, trackingID, now, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert attempt record: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		if existing.AttemptCount >= 3 {
			return nil, ErrAttemptLimit
		}

		var slot string
		switch existing.AttemptCount + 1 {
		case 2:
			slot = "second_attempt"
		case 3:
			slot = "third_attempt"
		default:
			slot = "first_attempt"
		}

		//nolint:gosec // slot is one of three fixed column names
		query := fmt.Sprintf(
			`UPDATE user_updates
				SET current_new_username = ?, attempt_count = attempt_count + 1, %s = ?, last_updated_at = ?
			WHERE old_username = ? AND attempt_count = ?`, slot)

		res, err := tx.ExecContext(ctx, query, newUsername, newUsername, now, oldUsername, existing.AttemptCount)
		if err != nil {
			return nil, fmt.Errorf("failed to update attempt record: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		// The guard on attempt_count makes the increment a compare-and-set;
		// losing the race surfaces as zero affected rows.
		if affected == 0 {
			return nil, ErrAttemptLimit
		}
	}

	updated, err := scanAttempt(tx.QueryRowContext(ctx,
		"SELECT "+updateColumns+" FROM user_updates WHERE old_username = ?", oldUsername))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit attempt record: %w", err)
	}

	return updated, nil
}

// ListAttempts returns all migration attempt records ordered oldest first.
func (s *SQLiteStorage) ListAttempts(ctx context.Context) ([]*MigrationAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+updateColumns+" FROM user_updates ORDER BY submitted_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	attempts := make([]*MigrationAttempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}
	return attempts, nil
}
