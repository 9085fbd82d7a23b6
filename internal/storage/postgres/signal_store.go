package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

const signalColumns = `
	id, observed_at, wallet, token, price, amount_usd, signal_type, confidence,
	simulation_passed, simulation_tax, simulation_reason,
	price_1h, price_24h, outcome, pnl, loss_magnitude, notes
`

// Insert adds a new signal. The store assigns the ID and defaults the
// outcome to PENDING.
func (s *SignalStore) Insert(ctx context.Context, sig *domain.Signal) error {
	if sig == nil || sig.Wallet == "" || sig.Token == "" {
		return storage.ErrInvalidInput
	}
	if sig.Outcome == "" {
		sig.Outcome = domain.OutcomePending
	}
	if sig.LossMagnitude == "" {
		sig.LossMagnitude = domain.LossNone
	}

	query := `
		INSERT INTO signals (
			observed_at, wallet, token, price, amount_usd, signal_type, confidence,
			simulation_passed, simulation_tax, simulation_reason,
			price_1h, price_24h, outcome, pnl, loss_magnitude, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		sig.Timestamp, sig.Wallet, sig.Token, sig.Price, sig.AmountUSD, sig.SignalType, sig.Confidence,
		sig.SimulationPassed, sig.SimulationTax, sig.SimulationReason,
		sig.Price1H, sig.Price24H, string(sig.Outcome), sig.PnL, string(sig.LossMagnitude), sig.Notes,
	).Scan(&sig.ID)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// Get retrieves a signal by ID. Returns ErrNotFound if not exists.
func (s *SignalStore) Get(ctx context.Context, id int64) (*domain.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	sig, err := scanSignal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal: %w", err)
	}
	return sig, nil
}

// SetSimulation records the honeypot probe result for a signal.
func (s *SignalStore) SetSimulation(ctx context.Context, id int64, passed bool, taxPct float64, reason string) error {
	query := `
		UPDATE signals SET simulation_passed = $2, simulation_tax = $3, simulation_reason = $4
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, passed, taxPct, reason)
	if err != nil {
		return fmt.Errorf("set signal simulation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetCheckpointPrice records the one-hour price mark. A mark already
// set is kept.
func (s *SignalStore) SetCheckpointPrice(ctx context.Context, id int64, price float64) error {
	query := `UPDATE signals SET price_1h = COALESCE(price_1h, $2) WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, price)
	if err != nil {
		return fmt.Errorf("set signal checkpoint price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetOutcome resolves a signal with its realized result and the
// resolution-time price.
func (s *SignalStore) SetOutcome(ctx context.Context, id int64, outcome domain.Outcome, price, pnl float64, magnitude domain.LossMagnitude) error {
	if outcome == domain.OutcomePending {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE signals SET outcome = $2, price_24h = $3, pnl = $4, loss_magnitude = $5
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, string(outcome), price, pnl, string(magnitude))
	if err != nil {
		return fmt.Errorf("set signal outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Pending returns unresolved signals observed before cutoff, oldest
// first.
func (s *SignalStore) Pending(ctx context.Context, cutoff time.Time) ([]*domain.Signal, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE outcome = 'PENDING' AND observed_at < $1
		ORDER BY observed_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("get pending signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// Resolved returns all signals with a terminal outcome, oldest first.
func (s *SignalStore) Resolved(ctx context.Context) ([]*domain.Signal, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE outcome != 'PENDING'
		ORDER BY observed_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get resolved signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// CountByWalletSince counts signals from one wallet after since.
func (s *SignalStore) CountByWalletSince(ctx context.Context, wallet string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM signals WHERE wallet = $1 AND observed_at > $2`

	var count int
	if err := s.pool.QueryRow(ctx, query, wallet, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count signals by wallet: %w", err)
	}
	return count, nil
}

func scanSignal(row pgx.Row) (*domain.Signal, error) {
	var sig domain.Signal
	err := row.Scan(
		&sig.ID, &sig.Timestamp, &sig.Wallet, &sig.Token, &sig.Price, &sig.AmountUSD,
		&sig.SignalType, &sig.Confidence,
		&sig.SimulationPassed, &sig.SimulationTax, &sig.SimulationReason,
		&sig.Price1H, &sig.Price24H, &sig.Outcome, &sig.PnL, &sig.LossMagnitude, &sig.Notes,
	)
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

func scanSignals(rows pgx.Rows) ([]*domain.Signal, error) {
	var signals []*domain.Signal
	for rows.Next() {
		var sig domain.Signal
		err := rows.Scan(
			&sig.ID, &sig.Timestamp, &sig.Wallet, &sig.Token, &sig.Price, &sig.AmountUSD,
			&sig.SignalType, &sig.Confidence,
			&sig.SimulationPassed, &sig.SimulationTax, &sig.SimulationReason,
			&sig.Price1H, &sig.Price24H, &sig.Outcome, &sig.PnL, &sig.LossMagnitude, &sig.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		signals = append(signals, &sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}
	return signals, nil
}
