// Package mockstore provides a configurable mock implementation of storage interfaces for testing.
//
// The MockStorage type uses function fields for each method, allowing tests to customize behavior
// as needed while providing sensible defaults for methods that aren't customized.
package mockstore

import (
	"context"

	"github.com/bitmaskhq/migration-api/internal/storage"
)

// MockStorage is a configurable mock covering the allowlist lookups of the
// verification pipeline, the attempt operations of the submission service,
// and the readiness ping. Each method can be customized by setting the
// corresponding function field; nil fields return not-found or zero values.
type MockStorage struct {
	// Allowlist lookups
	LookupByIdentifierFunc    func(ctx context.Context, normalizedID string) (*storage.AllowlistRecord, int, error)
	LookupByPublicKeyFunc     func(ctx context.Context, key string) (*storage.AllowlistRecord, error)
	LookupByContactHandleFunc func(ctx context.Context, handle string) (*storage.AllowlistRecord, error)

	// Attempt operations
	GetAttemptByOldUsernameFunc func(ctx context.Context, oldUsername string) (*storage.MigrationAttempt, error)
	GetAttemptByTrackingIDFunc  func(ctx context.Context, trackingID string) (*storage.MigrationAttempt, error)
	NewUsernameTakenFunc        func(ctx context.Context, newUsername, exceptOldUsername string) (bool, error)
	RecordAttemptFunc           func(ctx context.Context, oldUsername, npubKey, newUsername, trackingID string) (*storage.MigrationAttempt, error)
	ListAttemptsFunc            func(ctx context.Context) ([]*storage.MigrationAttempt, error)

	// Lifecycle
	PingFunc func(ctx context.Context) error
}

// LookupByIdentifier looks up one allowlist record by normalized identifier.
func (m *MockStorage) LookupByIdentifier(ctx context.Context, normalizedID string) (*storage.AllowlistRecord, int, error) {
	if m.LookupByIdentifierFunc != nil {
		return m.LookupByIdentifierFunc(ctx, normalizedID)
	}
	return nil, 0, storage.ErrNotFound
}

// LookupByPublicKey looks up one allowlist record by public key.
func (m *MockStorage) LookupByPublicKey(ctx context.Context, key string) (*storage.AllowlistRecord, error) {
	if m.LookupByPublicKeyFunc != nil {
		return m.LookupByPublicKeyFunc(ctx, key)
	}
	return nil, storage.ErrNotFound
}

// LookupByContactHandle looks up one allowlist record by contact handle.
func (m *MockStorage) LookupByContactHandle(ctx context.Context, handle string) (*storage.AllowlistRecord, error) {
	if m.LookupByContactHandleFunc != nil {
		return m.LookupByContactHandleFunc(ctx, handle)
	}
	return nil, storage.ErrNotFound
}

// GetAttemptByOldUsername returns the attempt record for a legacy identifier.
func (m *MockStorage) GetAttemptByOldUsername(ctx context.Context, oldUsername string) (*storage.MigrationAttempt, error) {
	if m.GetAttemptByOldUsernameFunc != nil {
		return m.GetAttemptByOldUsernameFunc(ctx, oldUsername)
	}
	return nil, storage.ErrNotFound
}

// GetAttemptByTrackingID returns the attempt record for a tracking token.
func (m *MockStorage) GetAttemptByTrackingID(ctx context.Context, trackingID string) (*storage.MigrationAttempt, error) {
	if m.GetAttemptByTrackingIDFunc != nil {
		return m.GetAttemptByTrackingIDFunc(ctx, trackingID)
	}
	return nil, storage.ErrNotFound
}

// NewUsernameTaken reports whether a proposed new username is claimed elsewhere.
func (m *MockStorage) NewUsernameTaken(ctx context.Context, newUsername, exceptOldUsername string) (bool, error) {
	if m.NewUsernameTakenFunc != nil {
		return m.NewUsernameTakenFunc(ctx, newUsername, exceptOldUsername)
	}
	return false, nil
}

// RecordAttempt records one accepted submission.
func (m *MockStorage) RecordAttempt(ctx context.Context, oldUsername, npubKey, newUsername, trackingID string) (*storage.MigrationAttempt, error) {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, oldUsername, npubKey, newUsername, trackingID)
	}
	return &storage.MigrationAttempt{
		OldUsername:        oldUsername,
		NpubKey:            npubKey,
		CurrentNewUsername: newUsername,
		AttemptCount:       1,
		FirstAttempt:       newUsername,
		TrackingID:         trackingID,
	}, nil
}

// ListAttempts returns all attempt records.
func (m *MockStorage) ListAttempts(ctx context.Context) ([]*storage.MigrationAttempt, error) {
	if m.ListAttemptsFunc != nil {
		return m.ListAttemptsFunc(ctx)
	}
	return nil, nil
}

// Ping reports storage liveness.
func (m *MockStorage) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}
