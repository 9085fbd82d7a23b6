package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL. Trade
// numbers are assigned under a transaction-scoped advisory lock, so
// the sequence has no gaps even across concurrent writers.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	id, opened_at, signal_id, token, direction, amount_usd, entry_price,
	exit_price, pnl, closed_at, status, wallet_used, trade_number,
	graph_boosted, entropy_applied, notes
`

// Insert adds a new trade, assigning its ID and trade number.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.Token == "" || t.AmountUSD <= 0 {
		return storage.ErrInvalidInput
	}
	if t.Status == "" {
		t.Status = domain.TradeOpen
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize number assignment across writers for the tx lifetime.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('trades.trade_number'))`); err != nil {
		return fmt.Errorf("acquire trade number lock: %w", err)
	}

	query := `
		INSERT INTO trades (
			opened_at, signal_id, token, direction, amount_usd, entry_price,
			exit_price, pnl, closed_at, status, wallet_used, trade_number,
			graph_boosted, entropy_applied, notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			(SELECT COALESCE(MAX(trade_number), 0) + 1 FROM trades),
			$12, $13, $14
		)
		RETURNING id, trade_number
	`

	err = tx.QueryRow(ctx, query,
		t.Timestamp, t.SignalID, t.Token, string(t.Direction), t.AmountUSD, t.EntryPrice,
		t.ExitPrice, t.PnL, t.ClosedAt, string(t.Status), t.WalletUsed,
		t.GraphBoosted, t.EntropyApplied, t.Notes,
	).Scan(&t.ID, &t.TradeNumber)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Get retrieves a trade by ID. Returns ErrNotFound if not exists.
func (s *TradeStore) Get(ctx context.Context, id int64) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade: %w", err)
	}
	return t, nil
}

// Close marks an open trade closed with its exit price and pnl.
func (s *TradeStore) Close(ctx context.Context, id int64, exitPrice, pnl float64, closedAt time.Time) error {
	query := `
		UPDATE trades SET status = 'CLOSED', exit_price = $2, pnl = $3, closed_at = $4
		WHERE id = $1 AND status = 'OPEN'
	`

	tag, err := s.pool.Exec(ctx, query, id, exitPrice, pnl, closedAt)
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing trade from one already closed.
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return storage.ErrInvalidInput
	}
	return nil
}

// Open returns all open trades ordered by trade number.
func (s *TradeStore) Open(ctx context.Context) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE status = 'OPEN'
		ORDER BY trade_number ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get open trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// Count returns the number of trades ever opened.
func (s *TradeStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return count, nil
}

// CountSince counts trades opened after since.
func (s *TradeStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades WHERE opened_at > $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count trades since: %w", err)
	}
	return count, nil
}

// ConsecutiveLosses returns the length of the current closing loss
// streak. Closed trades are walked newest first; the scan stops at the
// first non-loss.
func (s *TradeStore) ConsecutiveLosses(ctx context.Context) (int, error) {
	query := `
		SELECT pnl FROM trades
		WHERE status = 'CLOSED' AND pnl IS NOT NULL AND closed_at IS NOT NULL
		ORDER BY closed_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("get closed trade pnl: %w", err)
	}
	defer rows.Close()

	streak := 0
	for rows.Next() {
		var pnl float64
		if err := rows.Scan(&pnl); err != nil {
			return 0, fmt.Errorf("scan trade pnl row: %w", err)
		}
		if pnl >= 0 {
			break
		}
		streak++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate trade pnl rows: %w", err)
	}
	return streak, nil
}

// RealizedPnLSince sums pnl of trades closed after since.
func (s *TradeStore) RealizedPnLSince(ctx context.Context, since time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(pnl), 0) FROM trades
		WHERE status = 'CLOSED' AND pnl IS NOT NULL AND closed_at > $1
	`

	var sum float64
	if err := s.pool.QueryRow(ctx, query, since).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum realized pnl: %w", err)
	}
	return sum, nil
}

func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	err := row.Scan(
		&t.ID, &t.Timestamp, &t.SignalID, &t.Token, &t.Direction, &t.AmountUSD, &t.EntryPrice,
		&t.ExitPrice, &t.PnL, &t.ClosedAt, &t.Status, &t.WalletUsed, &t.TradeNumber,
		&t.GraphBoosted, &t.EntropyApplied, &t.Notes,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		err := rows.Scan(
			&t.ID, &t.Timestamp, &t.SignalID, &t.Token, &t.Direction, &t.AmountUSD, &t.EntryPrice,
			&t.ExitPrice, &t.PnL, &t.ClosedAt, &t.Status, &t.WalletUsed, &t.TradeNumber,
			&t.GraphBoosted, &t.EntropyApplied, &t.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}
