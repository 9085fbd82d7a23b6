package memory

import (
	"context"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// StatsStore aggregates over the other in-memory stores.
type StatsStore struct {
	wallets    *WalletStore
	signals    *SignalStore
	trades     *TradeStore
	funding    *FundingStore
	minWinners int
	edgeFloor  float64
}

// NewStatsStore creates a stats view over the given stores. minWinners
// and edgeFloor are the mother-wallet thresholds used for the mother
// count.
func NewStatsStore(w *WalletStore, s *SignalStore, t *TradeStore, f *FundingStore, minWinners int, edgeFloor float64) *StatsStore {
	return &StatsStore{wallets: w, signals: s, trades: t, funding: f, minWinners: minWinners, edgeFloor: edgeFloor}
}

// LedgerStats returns ledger-wide counts.
func (s *StatsStore) LedgerStats(ctx context.Context) (*domain.LedgerStats, error) {
	stats := &domain.LedgerStats{
		WalletsByTier:    make(map[domain.Tier]int64),
		SignalsByOutcome: make(map[domain.Outcome]int64),
	}

	wallets, err := s.wallets.ListByTier(ctx, domain.TierC)
	if err != nil {
		return nil, err
	}
	for _, w := range wallets {
		stats.TotalWallets++
		stats.WalletsByTier[w.Tier]++
	}

	s.signals.mu.RLock()
	for _, sig := range s.signals.data {
		stats.TotalSignals++
		stats.SignalsByOutcome[sig.Outcome]++
	}
	s.signals.mu.RUnlock()

	s.trades.mu.RLock()
	for _, t := range s.trades.data {
		stats.TotalTrades++
		if t.PnL != nil {
			stats.TotalPnL += *t.PnL
		}
	}
	s.trades.mu.RUnlock()

	mothers, err := s.funding.MotherWallets(ctx, s.minWinners, s.edgeFloor)
	if err != nil {
		return nil, err
	}
	stats.MotherCount = int64(len(mothers))

	return stats, nil
}

// Verify interface compliance at compile time.
var _ storage.StatsStore = (*StatsStore)(nil)
