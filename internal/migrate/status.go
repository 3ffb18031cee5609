package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/bitmaskhq/migration-api/internal/storage"
)

// Status values derived from elapsed time since submission. There is no
// real processing pipeline behind these; the heuristic matches what the
// campaign operators communicate to users (picked up within two hours,
// done within two days).
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

const (
	processingAfter = 2 * time.Hour
	completedAfter  = 48 * time.Hour
)

// StatusResult is the answer to a tracking lookup.
type StatusResult struct {
	Status string
	Record *storage.MigrationAttempt
}

// Status resolves a tracking token to its submission and a derived status.
// Returns ErrNotFound for unknown tokens.
func (s *Service) Status(ctx context.Context, trackingID string) (*StatusResult, error) {
	sanitized := SanitizeTrackingID(trackingID)
	if sanitized == "" {
		return nil, ErrNotFound
	}

	rec, err := s.store.GetAttemptByTrackingID(ctx, sanitized)
	if err != nil {
		return nil, fmt.Errorf("tracking lookup failed: %w", err)
	}

	elapsed := s.now().Sub(rec.SubmittedAt)
	status := StatusPending
	switch {
	case elapsed > completedAfter:
		status = StatusCompleted
	case elapsed > processingAfter:
		status = StatusProcessing
	}

	return &StatusResult{Status: status, Record: rec}, nil
}
