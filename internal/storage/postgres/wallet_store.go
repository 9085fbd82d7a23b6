package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

const walletColumns = `
	address, tier, first_seen, total_pnl, win_count, loss_count,
	last_win, confidence, trust_score, cex_funded, cex_source, decayed_at
`

// tierRankSQL maps tier labels to a comparable rank inside queries.
const tierRankSQL = `
	CASE %s
		WHEN 'S_TIER' THEN 4
		WHEN 'A_TIER' THEN 3
		WHEN 'B_TIER' THEN 2
		ELSE 1
	END
`

// Upsert inserts the wallet or merges it into an existing row. On
// conflict the better tier wins; counters and trust state of the
// stored row are preserved. A CEX flag is sticky once set.
func (s *WalletStore) Upsert(ctx context.Context, w *domain.Wallet) error {
	if w == nil || w.Address == "" || !w.Tier.Valid() {
		return storage.ErrInvalidInput
	}

	query := fmt.Sprintf(`
		INSERT INTO wallets (
			address, tier, first_seen, total_pnl, win_count, loss_count,
			last_win, confidence, trust_score, cex_funded, cex_source, decayed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (address) DO UPDATE SET
			tier = CASE
				WHEN `+tierRankSQL+` > `+tierRankSQL+`
				THEN EXCLUDED.tier ELSE wallets.tier
			END,
			cex_funded = wallets.cex_funded OR EXCLUDED.cex_funded,
			cex_source = CASE
				WHEN EXCLUDED.cex_funded THEN EXCLUDED.cex_source
				ELSE wallets.cex_source
			END
	`, "EXCLUDED.tier", "wallets.tier")

	_, err := s.pool.Exec(ctx, query,
		w.Address, string(w.Tier), w.FirstSeen, w.TotalPnL, w.WinCount, w.LossCount,
		w.LastWin, w.Confidence, w.TrustScore, w.CEXFunded, w.CEXSource, w.DecayedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert wallet: %w", err)
	}
	return nil
}

// Get retrieves a wallet by address. Returns ErrNotFound if not exists.
func (s *WalletStore) Get(ctx context.Context, address string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE address = $1`

	row := s.pool.QueryRow(ctx, query, address)
	w, err := scanWallet(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// Save overwrites the mutable trust fields of an existing wallet.
func (s *WalletStore) Save(ctx context.Context, w *domain.Wallet) error {
	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}
	if err := w.CheckConfidence(); err != nil {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE wallets SET
			tier = $2, total_pnl = $3, win_count = $4, loss_count = $5,
			last_win = $6, confidence = $7, trust_score = $8,
			cex_funded = $9, cex_source = $10, decayed_at = $11
		WHERE address = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		w.Address, string(w.Tier), w.TotalPnL, w.WinCount, w.LossCount,
		w.LastWin, w.Confidence, w.TrustScore, w.CEXFunded, w.CEXSource, w.DecayedAt,
	)
	if err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListByTier returns wallets at or above minTier, sorted by address.
func (s *WalletStore) ListByTier(ctx context.Context, minTier domain.Tier) ([]*domain.Wallet, error) {
	query := fmt.Sprintf(`
		SELECT `+walletColumns+`
		FROM wallets
		WHERE `+tierRankSQL+` >= `+tierRankSQL+`
		ORDER BY address ASC
	`, "tier", "$1")

	rows, err := s.pool.Query(ctx, query, string(minTier))
	if err != nil {
		return nil, fmt.Errorf("list wallets by tier: %w", err)
	}
	defer rows.Close()

	return scanWallets(rows)
}

// ApplyDecay multiplies each wallet's confidence by the half-life
// factor accumulated since its decay anchor, then advances the anchor
// to now. The anchor makes the pass idempotent at a fixed clock.
func (s *WalletStore) ApplyDecay(ctx context.Context, now time.Time, halfLife time.Duration, floor float64) (int, error) {
	if halfLife <= 0 {
		return 0, storage.ErrInvalidInput
	}

	query := `
		UPDATE wallets SET
			confidence = GREATEST(
				confidence * POWER(0.5, EXTRACT(EPOCH FROM (
					$1::timestamptz - GREATEST(COALESCE(last_win, first_seen), COALESCE(decayed_at, '-infinity'::timestamptz))
				)) / $2),
				$3
			),
			decayed_at = $1
		WHERE $1::timestamptz > GREATEST(COALESCE(last_win, first_seen), COALESCE(decayed_at, '-infinity'::timestamptz))
	`

	tag, err := s.pool.Exec(ctx, query, now, halfLife.Seconds(), floor)
	if err != nil {
		return 0, fmt.Errorf("apply wallet decay: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(
		&w.Address, &w.Tier, &w.FirstSeen, &w.TotalPnL, &w.WinCount, &w.LossCount,
		&w.LastWin, &w.Confidence, &w.TrustScore, &w.CEXFunded, &w.CEXSource, &w.DecayedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func scanWallets(rows pgx.Rows) ([]*domain.Wallet, error) {
	var wallets []*domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		err := rows.Scan(
			&w.Address, &w.Tier, &w.FirstSeen, &w.TotalPnL, &w.WinCount, &w.LossCount,
			&w.LastWin, &w.Confidence, &w.TrustScore, &w.CEXFunded, &w.CEXSource, &w.DecayedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}
