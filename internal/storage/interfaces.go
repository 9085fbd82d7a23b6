// Package storage defines persistence contracts for the trading
// ledger. Implementations live in the postgres, memory and clickhouse
// subpackages; callers depend on these interfaces only.
package storage

import (
	"context"
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
)

// WalletStore persists tracked wallets and their trust state.
type WalletStore interface {
	// Upsert inserts the wallet or merges it into an existing row.
	// On conflict the better tier wins and counters are preserved.
	Upsert(ctx context.Context, w *domain.Wallet) error

	// Get returns the wallet or ErrNotFound.
	Get(ctx context.Context, address string) (*domain.Wallet, error)

	// Save overwrites the mutable trust fields of an existing wallet.
	Save(ctx context.Context, w *domain.Wallet) error

	// ListByTier returns wallets at or above the given tier.
	ListByTier(ctx context.Context, minTier domain.Tier) ([]*domain.Wallet, error)

	// ApplyDecay multiplies every wallet's confidence by the half-life
	// factor accumulated since its decay anchor, then advances the
	// anchor to now. Running it twice at the same clock is a no-op.
	// Returns the number of wallets touched.
	ApplyDecay(ctx context.Context, now time.Time, halfLife time.Duration, floor float64) (int, error)
}

// FundingStore persists the funding-provenance graph.
type FundingStore interface {
	// AddEdge records one funding transfer. Duplicate (funder, funded,
	// tx_ref) tuples return ErrDuplicateKey.
	AddEdge(ctx context.Context, e *domain.FundingEdge) error

	// Funders returns all edges into the given wallet.
	Funders(ctx context.Context, funded string) ([]*domain.FundingEdge, error)

	// FundedBy returns all edges out of the given funder.
	FundedBy(ctx context.Context, funder string) ([]*domain.FundingEdge, error)

	// TraceFunders walks the funding graph upward from funded. Result
	// index i holds the incoming edges i+1 hops above the wallet; an
	// already-visited funder is not expanded again.
	TraceFunders(ctx context.Context, funded string, maxHops int) ([][]*domain.FundingEdge, error)

	// MotherWallets returns funders with at least minWinners funded
	// children that have a recorded win, are not CEX-funded, and are
	// connected by an edge above minEdgeConfidence. Ordered by winner
	// count, then average child confidence, descending.
	MotherWallets(ctx context.Context, minWinners int, minEdgeConfidence float64) ([]*domain.MotherWallet, error)

	// NewMotherCount counts funders that first crossed the mother
	// threshold after since.
	NewMotherCount(ctx context.Context, since time.Time, minWinners int) (int, error)

	// EdgesSince returns edges observed after since, oldest first.
	EdgesSince(ctx context.Context, since time.Time) ([]*domain.FundingEdge, error)

	// ApplyEdgeDecay decays edge confidence by the half-life factor
	// since each edge's anchor and prunes edges below pruneFloor.
	// Returns edges decayed and edges pruned.
	ApplyEdgeDecay(ctx context.Context, now time.Time, halfLife time.Duration, pruneFloor float64) (decayed, pruned int, err error)
}

// SignalStore persists observed signals and their resolutions.
type SignalStore interface {
	Insert(ctx context.Context, s *domain.Signal) error
	Get(ctx context.Context, id int64) (*domain.Signal, error)

	// SetSimulation records the honeypot probe result for a signal.
	SetSimulation(ctx context.Context, id int64, passed bool, taxPct float64, reason string) error

	// SetCheckpointPrice records the one-hour price mark. A mark
	// already set is kept.
	SetCheckpointPrice(ctx context.Context, id int64, price float64) error

	// SetOutcome resolves a signal with its realized result and the
	// resolution-time price.
	SetOutcome(ctx context.Context, id int64, outcome domain.Outcome, price, pnl float64, magnitude domain.LossMagnitude) error

	// Pending returns unresolved signals observed before cutoff.
	Pending(ctx context.Context, cutoff time.Time) ([]*domain.Signal, error)

	// Resolved returns all signals with a terminal outcome.
	Resolved(ctx context.Context) ([]*domain.Signal, error)

	// CountByWalletSince counts signals from one wallet after since.
	CountByWalletSince(ctx context.Context, wallet string, since time.Time) (int, error)
}

// TradeStore persists executed trades. Trade numbers are assigned by
// the store inside the insert transaction and are gap free.
type TradeStore interface {
	Insert(ctx context.Context, t *domain.Trade) error
	Get(ctx context.Context, id int64) (*domain.Trade, error)
	Close(ctx context.Context, id int64, exitPrice, pnl float64, closedAt time.Time) error
	Open(ctx context.Context) ([]*domain.Trade, error)

	// Count returns the number of trades ever opened.
	Count(ctx context.Context) (int64, error)

	// CountSince counts trades opened after since.
	CountSince(ctx context.Context, since time.Time) (int64, error)

	// ConsecutiveLosses returns the length of the current closing loss
	// streak.
	ConsecutiveLosses(ctx context.Context) (int, error)

	// RealizedPnLSince sums pnl of trades closed after since.
	RealizedPnLSince(ctx context.Context, since time.Time) (float64, error)
}

// BuyStore persists raw buy observations used for early-buyer scans.
type BuyStore interface {
	Insert(ctx context.Context, b *domain.Buy) error

	// EarlyBuyers returns the first limit buyers of a token joined
	// with their wallet trust state, earliest first.
	EarlyBuyers(ctx context.Context, token string, limit int) ([]*domain.EarlyBuyer, error)
}

// KillSwitchEventStore persists protective-mode transitions.
type KillSwitchEventStore interface {
	Insert(ctx context.Context, e *domain.KillSwitchEvent) error
	Unresolved(ctx context.Context) ([]*domain.KillSwitchEvent, error)
	Resolve(ctx context.Context, id, notes string) error

	// Count returns the number of events ever recorded, resolved or not.
	Count(ctx context.Context) (int64, error)
}

// SystemStateStore is a small durable key/value map for engine state
// such as capital marks and the active risk mode.
type SystemStateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// StatsStore aggregates ledger-wide counts for reporting.
type StatsStore interface {
	LedgerStats(ctx context.Context) (*domain.LedgerStats, error)
}

// OutcomeStore is the analytical sink for resolved outcomes. It is
// append only and backed by a columnar store.
type OutcomeStore interface {
	InsertResolved(ctx context.Context, o *domain.ResolvedOutcome) error

	// WinRateByCluster returns win rates keyed by mother wallet over
	// the given window.
	WinRateByCluster(ctx context.Context, since time.Time) (map[string]float64, error)
}
