package postgres

import (
	"context"
	"fmt"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// StatsStore implements storage.StatsStore using PostgreSQL.
type StatsStore struct {
	pool       *Pool
	minWinners int
	edgeFloor  float64
}

// NewStatsStore creates a new StatsStore. minWinners and edgeFloor are
// the mother-wallet thresholds used for the mother count.
func NewStatsStore(pool *Pool, minWinners int, edgeFloor float64) *StatsStore {
	return &StatsStore{pool: pool, minWinners: minWinners, edgeFloor: edgeFloor}
}

// Compile-time interface check.
var _ storage.StatsStore = (*StatsStore)(nil)

// LedgerStats returns ledger-wide counts.
func (s *StatsStore) LedgerStats(ctx context.Context) (*domain.LedgerStats, error) {
	stats := &domain.LedgerStats{
		WalletsByTier:    make(map[domain.Tier]int64),
		SignalsByOutcome: make(map[domain.Outcome]int64),
	}

	rows, err := s.pool.Query(ctx, `SELECT tier, COUNT(*) FROM wallets GROUP BY tier`)
	if err != nil {
		return nil, fmt.Errorf("count wallets by tier: %w", err)
	}
	for rows.Next() {
		var tier domain.Tier
		var count int64
		if err := rows.Scan(&tier, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan wallet tier count: %w", err)
		}
		stats.WalletsByTier[tier] = count
		stats.TotalWallets += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate wallet tier counts: %w", err)
	}
	rows.Close()

	rows, err = s.pool.Query(ctx, `SELECT outcome, COUNT(*) FROM signals GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("count signals by outcome: %w", err)
	}
	for rows.Next() {
		var outcome domain.Outcome
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan signal outcome count: %w", err)
		}
		stats.SignalsByOutcome[outcome] = count
		stats.TotalSignals += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate signal outcome counts: %w", err)
	}
	rows.Close()

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(pnl), 0) FROM trades
	`).Scan(&stats.TotalTrades, &stats.TotalPnL)
	if err != nil {
		return nil, fmt.Errorf("count trades: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		WITH children AS (
			SELECT DISTINCT e.funder, e.funded
			FROM funding_edges e
			JOIN wallets w ON w.address = e.funded
			WHERE w.win_count > 0
			  AND w.cex_funded = FALSE
			  AND e.edge_confidence > $2
		)
		SELECT COUNT(*) FROM (
			SELECT funder FROM children GROUP BY funder HAVING COUNT(*) >= $1
		) mothers
	`, s.minWinners, s.edgeFloor).Scan(&stats.MotherCount)
	if err != nil {
		return nil, fmt.Errorf("count mother wallets: %w", err)
	}

	return stats, nil
}
