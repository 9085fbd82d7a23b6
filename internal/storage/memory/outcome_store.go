package memory

import (
	"context"
	"sync"
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// OutcomeStore is an in-memory implementation of storage.OutcomeStore.
type OutcomeStore struct {
	mu   sync.RWMutex
	rows []*domain.ResolvedOutcome
}

// NewOutcomeStore creates a new in-memory outcome store.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{}
}

// Compile-time interface check.
var _ storage.OutcomeStore = (*OutcomeStore)(nil)

// InsertResolved appends one resolved signal.
func (s *OutcomeStore) InsertResolved(_ context.Context, o *domain.ResolvedOutcome) error {
	if o == nil || o.SignalID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rowCopy := *o
	s.rows = append(s.rows, &rowCopy)
	return nil
}

// WinRateByCluster returns win rates keyed by mother wallet over the
// given window. Outcomes without a mother wallet are excluded, as are
// neutral resolutions.
func (s *OutcomeStore) WinRateByCluster(_ context.Context, since time.Time) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wins := make(map[string]int)
	totals := make(map[string]int)
	for _, o := range s.rows {
		if o.MotherWallet == "" || o.Timestamp.Before(since) {
			continue
		}
		if o.Outcome != domain.OutcomeWin && o.Outcome != domain.OutcomeLoss {
			continue
		}
		totals[o.MotherWallet]++
		if o.Outcome == domain.OutcomeWin {
			wins[o.MotherWallet]++
		}
	}

	rates := make(map[string]float64, len(totals))
	for mother, total := range totals {
		rates[mother] = float64(wins[mother]) / float64(total)
	}
	return rates, nil
}
