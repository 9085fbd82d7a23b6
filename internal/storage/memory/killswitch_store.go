package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// KillSwitchEventStore is an in-memory implementation of
// storage.KillSwitchEventStore.
type KillSwitchEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.KillSwitchEvent
}

// NewKillSwitchEventStore creates a new in-memory event store.
func NewKillSwitchEventStore() *KillSwitchEventStore {
	return &KillSwitchEventStore{
		data: make(map[string]*domain.KillSwitchEvent),
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if the ID exists.
func (s *KillSwitchEventStore) Insert(_ context.Context, e *domain.KillSwitchEvent) error {
	if e == nil || e.ID == "" || !e.Mode.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ID]; exists {
		return storage.ErrDuplicateKey
	}
	eventCopy := *e
	s.data[e.ID] = &eventCopy
	return nil
}

// Unresolved returns open events, oldest first.
func (s *KillSwitchEventStore) Unresolved(_ context.Context) ([]*domain.KillSwitchEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.KillSwitchEvent
	for _, e := range s.data {
		if !e.Resolved {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// Resolve closes an event with resolution notes.
func (s *KillSwitchEventStore) Resolve(_ context.Context, id, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	e.Resolved = true
	e.ResolutionNotes = notes
	return nil
}

// Count returns the number of events ever recorded.
func (s *KillSwitchEventStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}

// Verify interface compliance at compile time.
var _ storage.KillSwitchEventStore = (*KillSwitchEventStore)(nil)
