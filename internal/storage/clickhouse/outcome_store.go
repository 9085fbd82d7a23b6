package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// OutcomeStore implements storage.OutcomeStore using ClickHouse.
type OutcomeStore struct {
	conn *Conn
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(conn *Conn) *OutcomeStore {
	return &OutcomeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.OutcomeStore = (*OutcomeStore)(nil)

// InsertResolved appends one resolved signal to the timeseries.
func (s *OutcomeStore) InsertResolved(ctx context.Context, o *domain.ResolvedOutcome) error {
	if o == nil || o.SignalID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO resolved_outcomes (
			signal_id, ts, token, wallet, mother_wallet,
			outcome, pnl, loss_magnitude, simulation_passed, graph_boosted
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	err := s.conn.Exec(ctx, query,
		o.SignalID, o.Timestamp, o.Token, o.Wallet, o.MotherWallet,
		string(o.Outcome), o.PnL, string(o.LossMagnitude),
		boolToUInt8(o.SimulationPassed), boolToUInt8(o.GraphBoosted),
	)
	if err != nil {
		return fmt.Errorf("insert resolved outcome: %w", err)
	}
	return nil
}

// WinRateByCluster returns win rates keyed by mother wallet over the
// given window. Outcomes without a mother wallet are excluded.
func (s *OutcomeStore) WinRateByCluster(ctx context.Context, since time.Time) (map[string]float64, error) {
	query := `
		SELECT
			mother_wallet,
			countIf(outcome = 'WIN') / count() AS win_rate
		FROM resolved_outcomes
		WHERE ts >= $1 AND mother_wallet != '' AND outcome IN ('WIN', 'LOSS')
		GROUP BY mother_wallet
	`

	rows, err := s.conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query cluster win rates: %w", err)
	}
	defer rows.Close()

	result := make(map[string]float64)
	for rows.Next() {
		var mother string
		var rate float64
		if err := rows.Scan(&mother, &rate); err != nil {
			return nil, fmt.Errorf("scan cluster win rate row: %w", err)
		}
		result[mother] = rate
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cluster win rate rows: %w", err)
	}
	return result, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
