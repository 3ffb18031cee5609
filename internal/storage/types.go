package storage

import "time"

// AllowlistRecord is one migration record derived from an uploaded CSV row.
// ContactHandle and OldIdentifierNorm hold normalized keys; OldIdentifier
// keeps the original casing for display and mismatch messages.
type AllowlistRecord struct {
	ID                int64
	ContactHandle     string
	OldIdentifier     string
	OldIdentifierNorm string
	NewIdentifier     string
	NpubKey           string
	UploadedBy        string
	UploadID          string
	CreatedAt         time.Time
}

// Upload is the metadata of one CSV upload batch.
type Upload struct {
	ID          string
	UploadName  string
	FileName    string
	UploadedBy  string
	UploadedAt  time.Time
	RecordCount int
}

// ReplaceStats summarizes the outcome of a bulk allowlist replacement.
type ReplaceStats struct {
	Created            int
	Updated            int
	DuplicatesInFile   int
	DuplicatesExisting int
}

// MigrationAttempt is the per-identifier submission record. AttemptCount
// never exceeds 3; the three attempt slots record the new identifier
// proposed at each accepted submission.
type MigrationAttempt struct {
	ID                 int64
	OldUsername        string
	NpubKey            string
	CurrentNewUsername string
	AttemptCount       int
	FirstAttempt       string
	SecondAttempt      string
	ThirdAttempt       string
	TrackingID         string
	SubmittedAt        time.Time
	LastUpdatedAt      time.Time
}

// Admin is one admin principal.
type Admin struct {
	ID             int64
	Email          string
	Role           string
	AccessCodeHash string
	CreatedAt      time.Time
}

// Admin roles.
const (
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)
