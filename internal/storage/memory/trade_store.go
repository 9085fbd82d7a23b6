package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
// Trade numbers are assigned under the write lock, so they are gap
// free in insertion order.
type TradeStore struct {
	mu      sync.RWMutex
	data    map[int64]*domain.Trade
	nextID  int64
	nextNum int64
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data:    make(map[int64]*domain.Trade),
		nextID:  1,
		nextNum: 1,
	}
}

// Insert adds a new trade, assigning its ID and trade number.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.Token == "" || t.AmountUSD <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tradeCopy := *t
	tradeCopy.ID = s.nextID
	tradeCopy.TradeNumber = s.nextNum
	if tradeCopy.Status == "" {
		tradeCopy.Status = domain.TradeOpen
	}
	s.nextID++
	s.nextNum++
	s.data[tradeCopy.ID] = &tradeCopy
	t.ID = tradeCopy.ID
	t.TradeNumber = tradeCopy.TradeNumber
	t.Status = tradeCopy.Status
	return nil
}

// Get retrieves a trade by ID. Returns ErrNotFound if not exists.
func (s *TradeStore) Get(_ context.Context, id int64) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	tradeCopy := *t
	return &tradeCopy, nil
}

// Close marks an open trade closed with its exit price and pnl.
func (s *TradeStore) Close(_ context.Context, id int64, exitPrice, pnl float64, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	if t.Status != domain.TradeOpen {
		return storage.ErrInvalidInput
	}
	t.Status = domain.TradeClosed
	t.ExitPrice = &exitPrice
	t.PnL = &pnl
	t.ClosedAt = &closedAt
	return nil
}

// Open returns all open trades ordered by trade number.
func (s *TradeStore) Open(_ context.Context) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Status == domain.TradeOpen {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TradeNumber < result[j].TradeNumber
	})
	return result, nil
}

// Count returns the number of trades ever opened.
func (s *TradeStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}

// CountSince counts trades opened after since.
func (s *TradeStore) CountSince(_ context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, t := range s.data {
		if t.Timestamp.After(since) {
			count++
		}
	}
	return count, nil
}

// ConsecutiveLosses returns the length of the current closing loss
// streak, walking closed trades from newest to oldest.
func (s *TradeStore) ConsecutiveLosses(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var closed []*domain.Trade
	for _, t := range s.data {
		if t.Status == domain.TradeClosed && t.PnL != nil {
			closed = append(closed, t)
		}
	}
	sort.Slice(closed, func(i, j int) bool {
		return closed[i].ClosedAt.After(*closed[j].ClosedAt)
	})

	streak := 0
	for _, t := range closed {
		if *t.PnL >= 0 {
			break
		}
		streak++
	}
	return streak, nil
}

// RealizedPnLSince sums pnl of trades closed after since.
func (s *TradeStore) RealizedPnLSince(_ context.Context, since time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum float64
	for _, t := range s.data {
		if t.Status == domain.TradeClosed && t.PnL != nil && t.ClosedAt != nil && t.ClosedAt.After(since) {
			sum += *t.PnL
		}
	}
	return sum, nil
}

// Verify interface compliance at compile time.
var _ storage.TradeStore = (*TradeStore)(nil)
