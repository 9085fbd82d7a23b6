package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletStore.
type WalletStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Wallet // keyed by address
}

// NewWalletStore creates a new in-memory wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{
		data: make(map[string]*domain.Wallet),
	}
}

// Upsert inserts the wallet or merges it into an existing row. On
// conflict the better tier wins; trust counters of the stored row are
// preserved.
func (s *WalletStore) Upsert(_ context.Context, w *domain.Wallet) error {
	if w == nil || w.Address == "" || !w.Tier.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[w.Address]
	if !ok {
		walletCopy := *w
		s.data[w.Address] = &walletCopy
		return nil
	}

	if w.Tier.Better(existing.Tier) {
		existing.Tier = w.Tier
	}
	if w.CEXFunded {
		existing.CEXFunded = true
		existing.CEXSource = w.CEXSource
	}
	return nil
}

// Get retrieves a wallet by address. Returns ErrNotFound if not exists.
func (s *WalletStore) Get(_ context.Context, address string) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.data[address]
	if !ok {
		return nil, storage.ErrNotFound
	}

	walletCopy := *w
	return &walletCopy, nil
}

// Save overwrites the mutable trust fields of an existing wallet.
func (s *WalletStore) Save(_ context.Context, w *domain.Wallet) error {
	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}
	if err := w.CheckConfidence(); err != nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[w.Address]
	if !ok {
		return storage.ErrNotFound
	}

	existing.Tier = w.Tier
	existing.TotalPnL = w.TotalPnL
	existing.WinCount = w.WinCount
	existing.LossCount = w.LossCount
	existing.LastWin = w.LastWin
	existing.Confidence = w.Confidence
	existing.TrustScore = w.TrustScore
	existing.CEXFunded = w.CEXFunded
	existing.CEXSource = w.CEXSource
	existing.DecayedAt = w.DecayedAt
	return nil
}

// ListByTier returns wallets at or above minTier, sorted by address.
func (s *WalletStore) ListByTier(_ context.Context, minTier domain.Tier) ([]*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Wallet
	for _, w := range s.data {
		if !w.Tier.Better(minTier) && w.Tier != minTier {
			continue
		}
		walletCopy := *w
		result = append(result, &walletCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// ApplyDecay multiplies each wallet's confidence by the half-life
// factor accumulated since its decay anchor, then advances the anchor
// to now. A second run at the same clock changes nothing.
func (s *WalletStore) ApplyDecay(_ context.Context, now time.Time, halfLife time.Duration, floor float64) (int, error) {
	if halfLife <= 0 {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	touched := 0
	for _, w := range s.data {
		anchor := w.DecayReference()
		if w.DecayedAt != nil && w.DecayedAt.After(anchor) {
			anchor = *w.DecayedAt
		}
		elapsed := now.Sub(anchor)
		if elapsed <= 0 {
			continue
		}

		factor := math.Pow(0.5, elapsed.Hours()/halfLife.Hours())
		w.Confidence = math.Max(w.Confidence*factor, floor)
		decayedAt := now
		w.DecayedAt = &decayedAt
		touched++
	}

	return touched, nil
}

// Verify interface compliance at compile time.
var _ storage.WalletStore = (*WalletStore)(nil)
