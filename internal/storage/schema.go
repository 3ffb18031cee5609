// Package storage handles all database operations for the migration API.
package storage

import (
	"database/sql"
	"fmt"
)

// InitSchema creates all required tables and indexes.
// This is idempotent - safe to call multiple times.
func InitSchema(db *sql.DB) error {
	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	ddlStatements := []string{
		// uploads table: one row per admin CSV upload action
		`CREATE TABLE IF NOT EXISTS uploads (
			id TEXT PRIMARY KEY,
			upload_name TEXT NOT NULL,
			file_name TEXT NOT NULL,
			uploaded_by TEXT NOT NULL,
			uploaded_at INTEGER NOT NULL,
			record_count INTEGER NOT NULL DEFAULT 0
		)`,

		// allowlist table: migration records derived from CSV uploads,
		// keyed by normalized telegram handle within an uploader scope
		`CREATE TABLE IF NOT EXISTS allowlist (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			contact_handle TEXT NOT NULL,
			old_identifier TEXT NOT NULL,
			old_identifier_norm TEXT NOT NULL,
			new_identifier TEXT NOT NULL,
			npub_key TEXT NOT NULL DEFAULT '',
			uploaded_by TEXT NOT NULL,
			upload_id TEXT,
			created_at INTEGER NOT NULL,
			UNIQUE (contact_handle, uploaded_by),
			FOREIGN KEY (upload_id) REFERENCES uploads(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_allowlist_old_identifier ON allowlist(old_identifier_norm)`,
		`CREATE INDEX IF NOT EXISTS idx_allowlist_npub ON allowlist(npub_key)`,
		`CREATE INDEX IF NOT EXISTS idx_allowlist_uploader ON allowlist(uploaded_by)`,

		// user_updates table: one row per legacy identifier with up to
		// three attempt slots
		`CREATE TABLE IF NOT EXISTS user_updates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			old_username TEXT NOT NULL UNIQUE,
			npub_key TEXT NOT NULL DEFAULT '',
			current_new_username TEXT NOT NULL,
			attempt_count INTEGER NOT NULL DEFAULT 0 CHECK (attempt_count <= 3),
			first_attempt TEXT,
			second_attempt TEXT,
			third_attempt TEXT,
			tracking_id TEXT NOT NULL UNIQUE,
			submitted_at INTEGER NOT NULL,
			last_updated_at INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_user_updates_tracking ON user_updates(tracking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_user_updates_new_username ON user_updates(current_new_username)`,

		// admins table: admin principals gating the dashboard endpoints
		`CREATE TABLE IF NOT EXISTS admins (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			role TEXT NOT NULL CHECK (role IN ('admin', 'superadmin')),
			access_code_hash TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
	}

	for _, stmt := range ddlStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}

	return nil
}
