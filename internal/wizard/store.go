package wizard

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// maxAge is how long saved form state survives before being discarded on
// load.
const maxAge = 24 * time.Hour

// FileStore persists form state as JSON in a single file. Stale state older
// than 24 hours is discarded on load.
type FileStore struct {
	path string
	now  func() time.Time
}

// NewFileStore creates a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Save writes the form state, stamping SavedAt.
func (s *FileStore) Save(state FormState) error {
	state.SavedAt = s.now()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode form state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write form state: %w", err)
	}
	return nil
}

// Load returns the saved state, or nil if none exists or it has expired.
// Unreadable state is treated as absent, not as an error: recovering a saved
// draft is best effort.
func (s *FileStore) Load() (*FormState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read form state: %w", err)
	}

	var state FormState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, nil
	}
	if s.now().Sub(state.SavedAt) > maxAge {
		_ = s.Clear()
		return nil, nil
	}
	return &state, nil
}

// Clear removes the saved state.
func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemStore is an in-memory Store for tests and embedded use.
type MemStore struct {
	state *FormState
	now   func() time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{now: time.Now}
}

// Save stores a copy of the form state, stamping SavedAt.
func (s *MemStore) Save(state FormState) error {
	state.SavedAt = s.now()
	s.state = &state
	return nil
}

// Load returns the saved state, or nil if absent or expired.
func (s *MemStore) Load() (*FormState, error) {
	if s.state == nil {
		return nil, nil
	}
	if s.now().Sub(s.state.SavedAt) > maxAge {
		s.state = nil
		return nil, nil
	}
	saved := *s.state
	return &saved, nil
}

// Clear discards the saved state.
func (s *MemStore) Clear() error {
	s.state = nil
	return nil
}
