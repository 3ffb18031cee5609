// Package migrate implements the submission state machine: accepting a new
// identifier against a verified allowlist record, enforcing the 3-attempt
// ceiling, and deriving status for tracking lookups.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bitmaskhq/migration-api/internal/identity"
	"github.com/bitmaskhq/migration-api/internal/storage"
	"github.com/bitmaskhq/migration-api/internal/verify"
)

// MaxAttempts is the per-identifier submission ceiling.
const MaxAttempts = 3

// ErrAttemptLimit is returned once all attempts for an identifier are used.
// It is distinct from validation failures so clients can show a terminal
// "no attempts left" message instead of a retry prompt.
var ErrAttemptLimit = storage.ErrAttemptLimit

// ErrConflict is returned when the proposed new username is already claimed
// by a different legacy identifier.
var ErrConflict = storage.ErrConflict

// ErrNotFound is returned for unknown tracking IDs.
var ErrNotFound = storage.ErrNotFound

// MismatchError reports a contact handle that resolves to a record for a
// different legacy identifier.
type MismatchError struct {
	Message            string
	ExpectedIdentifier string
}

func (e *MismatchError) Error() string {
	return e.Message
}

// Store defines the persistence operations the service needs.
type Store interface {
	GetAttemptByOldUsername(ctx context.Context, oldUsername string) (*storage.MigrationAttempt, error)
	GetAttemptByTrackingID(ctx context.Context, trackingID string) (*storage.MigrationAttempt, error)
	NewUsernameTaken(ctx context.Context, newUsername, exceptOldUsername string) (bool, error)
	RecordAttempt(ctx context.Context, oldUsername, npubKey, newUsername, trackingID string) (*storage.MigrationAttempt, error)
}

// Service drives migration submissions.
type Service struct {
	store    Store
	pipeline *verify.Pipeline
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a submission service.
// If logger is nil, slog.Default() will be used.
func NewService(store Store, pipeline *verify.Pipeline, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		pipeline: pipeline,
		logger:   logger,
		now:      time.Now,
	}
}

// Submission is the outcome of one accepted submission.
type Submission struct {
	Record            *storage.MigrationAttempt
	AttemptNumber     int
	RemainingAttempts int
}

// Submit validates a (legacy identifier, contact handle, new identifier)
// triple against the allowlist and records one attempt. Validation failures
// never mutate state. Returned errors:
//
//   - *identity.ValidationError for missing/malformed fields
//   - *MismatchError when the handle belongs to a different identifier
//   - ErrConflict when the new username is already claimed elsewhere
//   - ErrAttemptLimit once three attempts are recorded
func (s *Service) Submit(ctx context.Context, oldUsername, telegramAccount, newUsername string) (*Submission, error) {
	if oldUsername == "" {
		return nil, &identity.ValidationError{Field: "oldUsername", Message: "Old username is required"}
	}
	if telegramAccount == "" {
		return nil, &identity.ValidationError{Field: "telegramAccount", Message: "Telegram account is required"}
	}
	if newUsername == "" {
		return nil, &identity.ValidationError{Field: "newUsername", Message: "New username is required"}
	}
	if err := identity.ValidateUsername(newUsername); err != nil {
		verr := &identity.ValidationError{Field: "newUsername", Message: err.Error()}
		return nil, verr
	}

	contact, err := s.pipeline.CheckContact(ctx, oldUsername, telegramAccount)
	if err != nil {
		return nil, err
	}
	if !contact.Valid {
		if contact.ExpectedIdentifier != "" {
			return nil, &MismatchError{Message: contact.Message, ExpectedIdentifier: contact.ExpectedIdentifier}
		}
		return nil, &identity.ValidationError{Field: "telegramAccount", Message: contact.Message}
	}

	oldKey := identity.NormalizeUsername(contact.Record.OldIdentifier)
	newKey := identity.NormalizeUsername(newUsername)

	// Check the attempt ceiling before anything else so exhausted users get
	// the terminal message rather than a collision error.
	existing, err := s.store.GetAttemptByOldUsername(ctx, oldKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load attempt record: %w", err)
	}
	if existing != nil && existing.AttemptCount >= MaxAttempts {
		return nil, ErrAttemptLimit
	}

	taken, err := s.store.NewUsernameTaken(ctx, newKey, oldKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check username availability: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("new username %q: %w", newUsername, ErrConflict)
	}

	trackingID := newTrackingID(s.now())
	record, err := s.store.RecordAttempt(ctx, oldKey, contact.Record.NpubKey, newKey, trackingID)
	if err != nil {
		if errors.Is(err, storage.ErrAttemptLimit) {
			return nil, ErrAttemptLimit
		}
		return nil, fmt.Errorf("failed to record attempt: %w", err)
	}

	s.logger.Info("migration attempt recorded",
		"attempt", record.AttemptCount,
		"tracking_id", record.TrackingID,
	)

	return &Submission{
		Record:            record,
		AttemptNumber:     record.AttemptCount,
		RemainingAttempts: MaxAttempts - record.AttemptCount,
	}, nil
}

// Remaining reports how many attempts are left for a legacy identifier
// without mutating anything.
func (s *Service) Remaining(ctx context.Context, oldUsername string) (int, error) {
	rec, err := s.store.GetAttemptByOldUsername(ctx, identity.NormalizeUsername(oldUsername))
	if errors.Is(err, storage.ErrNotFound) {
		return MaxAttempts, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load attempt record: %w", err)
	}
	return MaxAttempts - rec.AttemptCount, nil
}
