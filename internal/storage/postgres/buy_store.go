package postgres

import (
	"context"
	"fmt"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// BuyStore implements storage.BuyStore using PostgreSQL.
type BuyStore struct {
	pool *Pool
}

// NewBuyStore creates a new BuyStore.
func NewBuyStore(pool *Pool) *BuyStore {
	return &BuyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BuyStore = (*BuyStore)(nil)

// Insert adds a raw buy observation.
func (s *BuyStore) Insert(ctx context.Context, b *domain.Buy) error {
	if b == nil || b.Wallet == "" || b.Token == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO buys (wallet, token, amount, price, observed_at, pnl, is_winner)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		b.Wallet, b.Token, b.Amount, b.Price, b.Timestamp, b.PnL, b.IsWinner,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("insert buy: %w", err)
	}
	return nil
}

// EarlyBuyers returns the first limit buyers of a token joined with
// their wallet trust state, earliest first. Buyers without a tracked
// wallet fall back to the lowest tier.
func (s *BuyStore) EarlyBuyers(ctx context.Context, token string, limit int) ([]*domain.EarlyBuyer, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT
			b.id, b.wallet, b.token, b.amount, b.price, b.observed_at, b.pnl, b.is_winner,
			COALESCE(w.tier, 'C_TIER'),
			COALESCE(w.confidence, 0),
			COALESCE(w.cex_funded, FALSE)
		FROM buys b
		LEFT JOIN wallets w ON w.address = b.wallet
		WHERE b.token = $1
		ORDER BY b.observed_at ASC, b.id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, token, limit)
	if err != nil {
		return nil, fmt.Errorf("get early buyers: %w", err)
	}
	defer rows.Close()

	var buyers []*domain.EarlyBuyer
	for rows.Next() {
		var eb domain.EarlyBuyer
		err := rows.Scan(
			&eb.ID, &eb.Wallet, &eb.Token, &eb.Amount, &eb.Price, &eb.Timestamp, &eb.PnL, &eb.IsWinner,
			&eb.Tier, &eb.Confidence, &eb.CEXFunded,
		)
		if err != nil {
			return nil, fmt.Errorf("scan early buyer row: %w", err)
		}
		buyers = append(buyers, &eb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate early buyer rows: %w", err)
	}
	return buyers, nil
}
