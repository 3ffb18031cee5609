package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// CreateAdmin creates a new admin principal. The email is stored lowercased
// and the access code arrives pre-hashed (bcrypt), or empty for admins
// gated by email alone.
// Returns ErrDuplicate if the email is already registered.
func (s *SQLiteStorage) CreateAdmin(ctx context.Context, email, role, accessCodeHash string) (*Admin, error) {
	if role != RoleAdmin && role != RoleSuperadmin {
		return nil, fmt.Errorf("invalid role: %s", role)
	}

	email = strings.ToLower(strings.TrimSpace(email))
	now := time.Now().UnixMilli()

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO admins (email, role, access_code_hash, created_at) VALUES (?, ?, ?, ?)",
		email, role, accessCodeHash, now)
	if err != nil {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) {
			if sqliteErr.Code() == 2067 || (sqliteErr.Code()&0xFF) == sqlite3.SQLITE_CONSTRAINT {
				return nil, ErrDuplicate
			}
		}
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get insert ID: %w", err)
	}

	return &Admin{
		ID:             id,
		Email:          email,
		Role:           role,
		AccessCodeHash: accessCodeHash,
		CreatedAt:      time.UnixMilli(now),
	}, nil
}

// GetAdminByEmail retrieves an admin principal by (case-insensitive) email.
// Returns ErrNotFound if the email is not registered.
func (s *SQLiteStorage) GetAdminByEmail(ctx context.Context, email string) (*Admin, error) {
	var a Admin
	var createdAt int64

	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, role, access_code_hash, created_at FROM admins WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email))).
		Scan(&a.ID, &a.Email, &a.Role, &a.AccessCodeHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get admin by email: %w", err)
	}

	a.CreatedAt = time.UnixMilli(createdAt)
	return &a, nil
}

// ListAdmins returns all admin principals ordered by creation time.
func (s *SQLiteStorage) ListAdmins(ctx context.Context) ([]*Admin, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, email, role, access_code_hash, created_at FROM admins ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query admins: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	admins := make([]*Admin, 0)
	for rows.Next() {
		var a Admin
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.Email, &a.Role, &a.AccessCodeHash, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin row: %w", err)
		}
		a.CreatedAt = time.UnixMilli(createdAt)
		admins = append(admins, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating admins: %w", err)
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one admin principal exists.
// Used by the startup bootstrap to decide whether to seed the first
// superadmin.
func (s *SQLiteStorage) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM admins").Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count admins: %w", err)
	}
	return count > 0, nil
}
