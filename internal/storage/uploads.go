package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateUpload records the metadata of one CSV upload batch.
func (s *SQLiteStorage) CreateUpload(ctx context.Context, upload *Upload) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO uploads (id, upload_name, file_name, uploaded_by, uploaded_at, record_count) VALUES (?, ?, ?, ?, ?, ?)",
		upload.ID, upload.UploadName, upload.FileName, upload.UploadedBy,
		upload.UploadedAt.UnixMilli(), upload.RecordCount)
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}
	return nil
}

func scanUpload(row interface{ Scan(...any) error }) (*Upload, error) {
	var u Upload
	var uploadedAt int64
	err := row.Scan(&u.ID, &u.UploadName, &u.FileName, &u.UploadedBy, &uploadedAt, &u.RecordCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan upload: %w", err)
	}
	u.UploadedAt = time.UnixMilli(uploadedAt)
	return &u, nil
}

// GetUpload retrieves upload metadata by ID.
// Returns ErrNotFound if the upload doesn't exist.
func (s *SQLiteStorage) GetUpload(ctx context.Context, id string) (*Upload, error) {
	return scanUpload(s.db.QueryRowContext(ctx,
		"SELECT id, upload_name, file_name, uploaded_by, uploaded_at, record_count FROM uploads WHERE id = ?", id))
}

// ListUploads returns all upload batches, newest first.
func (s *SQLiteStorage) ListUploads(ctx context.Context) ([]*Upload, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, upload_name, file_name, uploaded_by, uploaded_at, record_count FROM uploads ORDER BY uploaded_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	uploads := make([]*Upload, 0)
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating uploads: %w", err)
	}
	return uploads, nil
}

// RenameUpload changes the display name of an upload batch.
// Returns ErrNotFound if the upload doesn't exist.
func (s *SQLiteStorage) RenameUpload(ctx context.Context, id, name string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE uploads SET upload_name = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("failed to rename upload: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUpload removes an upload batch. Its allowlist rows cascade via the
// foreign key constraint.
// Returns ErrNotFound if the upload doesn't exist.
func (s *SQLiteStorage) DeleteUpload(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM uploads WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
