package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// FundingStore implements storage.FundingStore using PostgreSQL.
type FundingStore struct {
	pool *Pool
}

// NewFundingStore creates a new FundingStore.
func NewFundingStore(pool *Pool) *FundingStore {
	return &FundingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FundingStore = (*FundingStore)(nil)

const edgeColumns = `
	id, funder, funded, amount, observed_at, tx_ref, edge_confidence, decayed_at
`

// AddEdge records one funding transfer. Returns ErrDuplicateKey if the
// (funder, funded, tx_ref) tuple exists.
func (s *FundingStore) AddEdge(ctx context.Context, e *domain.FundingEdge) error {
	if e == nil || e.Funder == "" || e.Funded == "" || e.Funder == e.Funded {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO funding_edges (funder, funded, amount, observed_at, tx_ref, edge_confidence, decayed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	if e.EdgeConfidence == 0 {
		e.EdgeConfidence = 1.0
	}
	err := s.pool.QueryRow(ctx, query,
		e.Funder, e.Funded, e.Amount, e.Timestamp, e.TxRef, e.EdgeConfidence, e.DecayedAt,
	).Scan(&e.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert funding edge: %w", err)
	}
	return nil
}

// Funders returns all edges into the given wallet, oldest first.
func (s *FundingStore) Funders(ctx context.Context, funded string) ([]*domain.FundingEdge, error) {
	query := `
		SELECT ` + edgeColumns + `
		FROM funding_edges
		WHERE funded = $1
		ORDER BY observed_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, funded)
	if err != nil {
		return nil, fmt.Errorf("get funders: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// FundedBy returns all edges out of the given funder, oldest first.
func (s *FundingStore) FundedBy(ctx context.Context, funder string) ([]*domain.FundingEdge, error) {
	query := `
		SELECT ` + edgeColumns + `
		FROM funding_edges
		WHERE funder = $1
		ORDER BY observed_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, funder)
	if err != nil {
		return nil, fmt.Errorf("get funded by: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// TraceFunders walks the funding graph upward from funded using a
// recursive traversal bounded at maxHops. An edge reachable through
// several paths is reported once, at its nearest hop.
func (s *FundingStore) TraceFunders(ctx context.Context, funded string, maxHops int) ([][]*domain.FundingEdge, error) {
	if funded == "" || maxHops <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		WITH RECURSIVE trace AS (
			SELECT id, funder, funded, amount, observed_at, tx_ref, edge_confidence, decayed_at, 1 AS hops
			FROM funding_edges
			WHERE funded = $1
			UNION ALL
			SELECT e.id, e.funder, e.funded, e.amount, e.observed_at, e.tx_ref, e.edge_confidence, e.decayed_at, t.hops + 1
			FROM funding_edges e
			JOIN trace t ON e.funded = t.funder
			WHERE t.hops < $2
		)
		SELECT id, funder, funded, amount, observed_at, tx_ref, edge_confidence, decayed_at, MIN(hops) AS hops
		FROM trace
		GROUP BY id, funder, funded, amount, observed_at, tx_ref, edge_confidence, decayed_at
		ORDER BY MIN(hops) ASC, observed_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, funded, maxHops)
	if err != nil {
		return nil, fmt.Errorf("trace funders: %w", err)
	}
	defer rows.Close()

	var levels [][]*domain.FundingEdge
	for rows.Next() {
		var e domain.FundingEdge
		var hops int
		err := rows.Scan(
			&e.ID, &e.Funder, &e.Funded, &e.Amount, &e.Timestamp,
			&e.TxRef, &e.EdgeConfidence, &e.DecayedAt, &hops,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trace row: %w", err)
		}
		for len(levels) < hops {
			levels = append(levels, nil)
		}
		levels[hops-1] = append(levels[hops-1], &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace rows: %w", err)
	}
	return levels, nil
}

// MotherWallets returns funders with at least minWinners funded
// winning children, excluding CEX-funded children and edges at or
// below minEdgeConfidence. The aggregation deduplicates multiple
// edges to the same child. Strongest mothers first.
func (s *FundingStore) MotherWallets(ctx context.Context, minWinners int, minEdgeConfidence float64) ([]*domain.MotherWallet, error) {
	query := `
		WITH children AS (
			SELECT DISTINCT e.funder, e.funded
			FROM funding_edges e
			JOIN wallets w ON w.address = e.funded
			WHERE w.win_count > 0
			  AND w.cex_funded = FALSE
			  AND e.edge_confidence > $2
		)
		SELECT
			c.funder,
			COUNT(*) AS winner_count,
			ARRAY_AGG(c.funded ORDER BY c.funded) AS child_addresses,
			MAX(w.last_win) AS last_win,
			COALESCE(AVG(w.confidence), 0) AS avg_confidence,
			COALESCE(SUM(w.total_pnl), 0) AS children_pnl
		FROM children c
		JOIN wallets w ON w.address = c.funded
		GROUP BY c.funder
		HAVING COUNT(*) >= $1
		ORDER BY winner_count DESC, avg_confidence DESC, c.funder ASC
	`

	rows, err := s.pool.Query(ctx, query, minWinners, minEdgeConfidence)
	if err != nil {
		return nil, fmt.Errorf("get mother wallets: %w", err)
	}
	defer rows.Close()

	var mothers []*domain.MotherWallet
	for rows.Next() {
		var m domain.MotherWallet
		err := rows.Scan(
			&m.Address, &m.FundedWinnerCount, &m.Children,
			&m.LastWin, &m.AvgConfidence, &m.ChildrenPnL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan mother wallet row: %w", err)
		}
		mothers = append(mothers, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mother wallet rows: %w", err)
	}
	return mothers, nil
}

// NewMotherCount counts funders whose threshold-crossing winner, the
// minWinners-th earliest by last win, won after since.
func (s *FundingStore) NewMotherCount(ctx context.Context, since time.Time, minWinners int) (int, error) {
	query := `
		WITH winner_times AS (
			SELECT DISTINCT e.funder, w.address, w.last_win
			FROM funding_edges e
			JOIN wallets w ON w.address = e.funded
			WHERE w.win_count > 0 AND w.cex_funded = FALSE AND w.last_win IS NOT NULL
		), ranked AS (
			SELECT funder, last_win,
				ROW_NUMBER() OVER (PARTITION BY funder ORDER BY last_win ASC) AS rn
			FROM winner_times
		)
		SELECT COUNT(*) FROM ranked WHERE rn = $1 AND last_win > $2
	`

	var count int
	if err := s.pool.QueryRow(ctx, query, minWinners, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count new mothers: %w", err)
	}
	return count, nil
}

// EdgesSince returns edges observed after since, oldest first.
func (s *FundingStore) EdgesSince(ctx context.Context, since time.Time) ([]*domain.FundingEdge, error) {
	query := `
		SELECT ` + edgeColumns + `
		FROM funding_edges
		WHERE observed_at > $1
		ORDER BY observed_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("get edges since: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// ApplyEdgeDecay decays edge confidence since each edge's anchor and
// prunes edges below pruneFloor, atomically.
func (s *FundingStore) ApplyEdgeDecay(ctx context.Context, now time.Time, halfLife time.Duration, pruneFloor float64) (int, int, error) {
	if halfLife <= 0 {
		return 0, 0, storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	decayQuery := `
		UPDATE funding_edges SET
			edge_confidence = edge_confidence * POWER(0.5, EXTRACT(EPOCH FROM (
				$1::timestamptz - GREATEST(observed_at, COALESCE(decayed_at, '-infinity'::timestamptz))
			)) / $2),
			decayed_at = $1
		WHERE $1::timestamptz > GREATEST(observed_at, COALESCE(decayed_at, '-infinity'::timestamptz))
	`
	decayTag, err := tx.Exec(ctx, decayQuery, now, halfLife.Seconds())
	if err != nil {
		return 0, 0, fmt.Errorf("decay funding edges: %w", err)
	}

	pruneTag, err := tx.Exec(ctx, `DELETE FROM funding_edges WHERE edge_confidence < $1`, pruneFloor)
	if err != nil {
		return 0, 0, fmt.Errorf("prune funding edges: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit tx: %w", err)
	}
	return int(decayTag.RowsAffected()), int(pruneTag.RowsAffected()), nil
}

func scanEdges(rows pgx.Rows) ([]*domain.FundingEdge, error) {
	var edges []*domain.FundingEdge
	for rows.Next() {
		var e domain.FundingEdge
		err := rows.Scan(
			&e.ID, &e.Funder, &e.Funded, &e.Amount, &e.Timestamp,
			&e.TxRef, &e.EdgeConfidence, &e.DecayedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan funding edge row: %w", err)
		}
		edges = append(edges, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate funding edge rows: %w", err)
	}
	return edges, nil
}
