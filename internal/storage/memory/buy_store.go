package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// BuyStore is an in-memory implementation of storage.BuyStore. The
// early-buyer join reads reputation from a WalletStore snapshot.
type BuyStore struct {
	mu      sync.RWMutex
	buys    []*domain.Buy
	nextID  int64
	wallets *WalletStore
}

// NewBuyStore creates a new in-memory buy store. wallets may be nil
// if EarlyBuyers is not needed.
func NewBuyStore(wallets *WalletStore) *BuyStore {
	return &BuyStore{nextID: 1, wallets: wallets}
}

// Insert adds a raw buy observation.
func (s *BuyStore) Insert(_ context.Context, b *domain.Buy) error {
	if b == nil || b.Wallet == "" || b.Token == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buyCopy := *b
	buyCopy.ID = s.nextID
	s.nextID++
	s.buys = append(s.buys, &buyCopy)
	b.ID = buyCopy.ID
	return nil
}

// EarlyBuyers returns the first limit buyers of a token joined with
// their wallet trust state, earliest first.
func (s *BuyStore) EarlyBuyers(_ context.Context, token string, limit int) ([]*domain.EarlyBuyer, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.Buy
	for _, b := range s.buys {
		if b.Token == token {
			matched = append(matched, b)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}

	result := make([]*domain.EarlyBuyer, 0, len(matched))
	for _, b := range matched {
		eb := &domain.EarlyBuyer{Buy: *b, Tier: domain.TierC}
		if s.wallets != nil {
			if w, err := s.wallets.Get(context.Background(), b.Wallet); err == nil {
				eb.Tier = w.Tier
				eb.Confidence = w.Confidence
				eb.CEXFunded = w.CEXFunded
			}
		}
		result = append(result, eb)
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.BuyStore = (*BuyStore)(nil)
