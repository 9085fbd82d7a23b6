package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.Signal
	nextID int64
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data:   make(map[int64]*domain.Signal),
		nextID: 1,
	}
}

// Insert adds a new signal. The store assigns the ID and defaults the
// outcome to PENDING.
func (s *SignalStore) Insert(_ context.Context, sig *domain.Signal) error {
	if sig == nil || sig.Wallet == "" || sig.Token == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	signalCopy := *sig
	signalCopy.ID = s.nextID
	if signalCopy.Outcome == "" {
		signalCopy.Outcome = domain.OutcomePending
	}
	s.nextID++
	s.data[signalCopy.ID] = &signalCopy
	sig.ID = signalCopy.ID
	sig.Outcome = signalCopy.Outcome
	return nil
}

// Get retrieves a signal by ID. Returns ErrNotFound if not exists.
func (s *SignalStore) Get(_ context.Context, id int64) (*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	signalCopy := *sig
	return &signalCopy, nil
}

// SetSimulation records the honeypot probe result for a signal.
func (s *SignalStore) SetSimulation(_ context.Context, id int64, passed bool, taxPct float64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	sig.SimulationPassed = &passed
	sig.SimulationTax = &taxPct
	sig.SimulationReason = reason
	return nil
}

// SetCheckpointPrice records the one-hour price mark. A mark already
// set is kept.
func (s *SignalStore) SetCheckpointPrice(_ context.Context, id int64, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	if sig.Price1H == nil {
		sig.Price1H = &price
	}
	return nil
}

// SetOutcome resolves a signal with its realized result and the
// resolution-time price.
func (s *SignalStore) SetOutcome(_ context.Context, id int64, outcome domain.Outcome, price, pnl float64, magnitude domain.LossMagnitude) error {
	if outcome == domain.OutcomePending {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	sig.Outcome = outcome
	sig.Price24H = &price
	sig.PnL = &pnl
	sig.LossMagnitude = magnitude
	return nil
}

// Pending returns unresolved signals observed before cutoff, oldest
// first.
func (s *SignalStore) Pending(_ context.Context, cutoff time.Time) ([]*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Signal
	for _, sig := range s.data {
		if sig.Outcome == domain.OutcomePending && sig.Timestamp.Before(cutoff) {
			signalCopy := *sig
			result = append(result, &signalCopy)
		}
	}
	sortSignals(result)
	return result, nil
}

// Resolved returns all signals with a terminal outcome, oldest first.
func (s *SignalStore) Resolved(_ context.Context) ([]*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Signal
	for _, sig := range s.data {
		if sig.Outcome != domain.OutcomePending {
			signalCopy := *sig
			result = append(result, &signalCopy)
		}
	}
	sortSignals(result)
	return result, nil
}

// CountByWalletSince counts signals from one wallet after since.
func (s *SignalStore) CountByWalletSince(_ context.Context, wallet string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, sig := range s.data {
		if sig.Wallet == wallet && sig.Timestamp.After(since) {
			count++
		}
	}
	return count, nil
}

func sortSignals(signals []*domain.Signal) {
	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Timestamp.Equal(signals[j].Timestamp) {
			return signals[i].ID < signals[j].ID
		}
		return signals[i].Timestamp.Before(signals[j].Timestamp)
	})
}

// Verify interface compliance at compile time.
var _ storage.SignalStore = (*SignalStore)(nil)
