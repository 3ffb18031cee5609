// Package verify implements the two-step verification pipeline end users
// walk through before submitting a migration: identifier-exists-in-allowlist
// and contact-handle-matches-record. The two checks are independent and each
// can be called on its own.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bitmaskhq/migration-api/internal/identity"
	"github.com/bitmaskhq/migration-api/internal/storage"
)

// AllowlistStore defines the lookups the pipeline needs.
// This interface enables testing with mock implementations.
type AllowlistStore interface {
	LookupByIdentifier(ctx context.Context, normalizedID string) (*storage.AllowlistRecord, int, error)
	LookupByPublicKey(ctx context.Context, key string) (*storage.AllowlistRecord, error)
	LookupByContactHandle(ctx context.Context, handle string) (*storage.AllowlistRecord, error)
}

// Pipeline runs verification checks against the allowlist store.
type Pipeline struct {
	store  AllowlistStore
	logger *slog.Logger
}

// NewPipeline creates a verification pipeline.
// If logger is nil, slog.Default() will be used.
func NewPipeline(store AllowlistStore, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{store: store, logger: logger}
}

// IdentifierResult is the outcome of the identifier-exists check.
type IdentifierResult struct {
	Valid          bool
	IdentifierType identity.IdentifierType
	MatchCount     int
	Message        string
	Record         *storage.AllowlistRecord
}

// ContactResult is the outcome of the contact-handle check.
type ContactResult struct {
	Valid              bool
	Message            string
	ExpectedIdentifier string
	Record             *storage.AllowlistRecord
}

// CheckIdentifier classifies, validates, and looks up a raw legacy
// identifier. Malformed input returns an *identity.ValidationError; an
// absent identifier returns a non-error result with Valid=false, keeping
// the check idempotent and cacheable.
func (p *Pipeline) CheckIdentifier(ctx context.Context, raw string) (*IdentifierResult, error) {
	idType, err := identity.ClassifyIdentifier(raw)
	if err != nil {
		return nil, err
	}

	var (
		rec   *storage.AllowlistRecord
		count int
	)
	switch idType {
	case identity.TypePublicKey:
		rec, err = p.store.LookupByPublicKey(ctx, strings.TrimSpace(raw))
		count = 1
	default:
		rec, count, err = p.store.LookupByIdentifier(ctx, identity.NormalizeUsername(raw))
	}

	if errors.Is(err, storage.ErrNotFound) {
		p.logger.Debug("identifier not found", "type", string(idType))
		return &IdentifierResult{
			Valid:          false,
			IdentifierType: idType,
			Message:        fmt.Sprintf("Identifier %q not found in campaign records. Please verify you entered the correct username or nPUB key from the campaign.", raw),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("allowlist lookup failed: %w", err)
	}

	return &IdentifierResult{
		Valid:          true,
		IdentifierType: idType,
		MatchCount:     count,
		Message:        "Identifier verified",
		Record:         rec,
	}, nil
}

// CheckContact verifies that a telegram handle belongs to the allowlist
// record for the given legacy identifier. Both fields are required; a
// missing one returns a field-specific *identity.ValidationError. An absent
// or mismatching record returns a non-error result with Valid=false.
func (p *Pipeline) CheckContact(ctx context.Context, legacyIdentifier, contactHandle string) (*ContactResult, error) {
	if contactHandle == "" {
		return nil, &identity.ValidationError{Field: "telegramAccount", Message: "Telegram account is required"}
	}
	if legacyIdentifier == "" {
		return nil, &identity.ValidationError{Field: "oldUsername", Message: "Old username is required"}
	}
	if err := identity.ValidateContactHandle(contactHandle); err != nil {
		return nil, err
	}

	handle := identity.NormalizeContactHandle(contactHandle)
	rec, err := p.store.LookupByContactHandle(ctx, handle)
	if errors.Is(err, storage.ErrNotFound) {
		// Fall back to the legacy identifier in case the handle column
		// and identifier column disagree on which row is canonical.
		rec, _, err = p.store.LookupByIdentifier(ctx, identity.NormalizeUsername(legacyIdentifier))
		if errors.Is(err, storage.ErrNotFound) || (err == nil && rec.ContactHandle != handle) {
			return &ContactResult{
				Valid:   false,
				Message: "Telegram account not found in campaign records",
			}, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("allowlist lookup failed: %w", err)
	}

	if !identity.UsernamesMatch(rec.OldIdentifier, legacyIdentifier) {
		return &ContactResult{
			Valid: false,
			Message: fmt.Sprintf("Telegram account does not match the old username %q. Expected username for this account: %q",
				legacyIdentifier, rec.OldIdentifier),
			ExpectedIdentifier: rec.OldIdentifier,
		}, nil
	}

	return &ContactResult{
		Valid:   true,
		Message: "Telegram account verified and matches old username",
		Record:  rec,
	}, nil
}
