package storage

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicate is returned when attempting to create a resource that already exists.
	ErrDuplicate = errors.New("resource already exists")

	// ErrAttemptLimit is returned when a migration record has already used
	// all three submission attempts.
	ErrAttemptLimit = errors.New("attempt limit reached")

	// ErrConflict is returned when a proposed new identifier is already
	// claimed by a different legacy identifier.
	ErrConflict = errors.New("new identifier already in use")
)
