package memory

import (
	"context"
	"sync"

	"github.com/albarami/Whale-hunter/internal/storage"
)

// SystemStateStore is an in-memory implementation of
// storage.SystemStateStore.
type SystemStateStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewSystemStateStore creates a new in-memory state store.
func NewSystemStateStore() *SystemStateStore {
	return &SystemStateStore{data: make(map[string]string)}
}

// Get returns the value for key or ErrNotFound.
func (s *SystemStateStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

// Set stores the value for key, overwriting any previous value.
func (s *SystemStateStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// Verify interface compliance at compile time.
var _ storage.SystemStateStore = (*SystemStateStore)(nil)
