package postgres

import (
	"context"
	"fmt"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// KillSwitchEventStore implements storage.KillSwitchEventStore using
// PostgreSQL.
type KillSwitchEventStore struct {
	pool *Pool
}

// NewKillSwitchEventStore creates a new KillSwitchEventStore.
func NewKillSwitchEventStore(pool *Pool) *KillSwitchEventStore {
	return &KillSwitchEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.KillSwitchEventStore = (*KillSwitchEventStore)(nil)

// Insert adds a new event. Returns ErrDuplicateKey if the ID exists.
func (s *KillSwitchEventStore) Insert(ctx context.Context, e *domain.KillSwitchEvent) error {
	if e == nil || e.ID == "" || !e.Mode.Valid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO kill_switch_events (
			id, triggered_at, trigger, reason, mode, observation_end, resolved, resolution_notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.Timestamp, string(e.Trigger), e.Reason, string(e.Mode),
		e.ObservationEnd, e.Resolved, e.ResolutionNotes,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert kill switch event: %w", err)
	}
	return nil
}

// Unresolved returns open events, oldest first.
func (s *KillSwitchEventStore) Unresolved(ctx context.Context) ([]*domain.KillSwitchEvent, error) {
	query := `
		SELECT id, triggered_at, trigger, reason, mode, observation_end, resolved, resolution_notes
		FROM kill_switch_events
		WHERE NOT resolved
		ORDER BY triggered_at ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get unresolved kill switch events: %w", err)
	}
	defer rows.Close()

	var events []*domain.KillSwitchEvent
	for rows.Next() {
		var e domain.KillSwitchEvent
		err := rows.Scan(
			&e.ID, &e.Timestamp, &e.Trigger, &e.Reason, &e.Mode,
			&e.ObservationEnd, &e.Resolved, &e.ResolutionNotes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan kill switch event row: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kill switch event rows: %w", err)
	}
	return events, nil
}

// Resolve closes an event with resolution notes.
func (s *KillSwitchEventStore) Resolve(ctx context.Context, id, notes string) error {
	query := `UPDATE kill_switch_events SET resolved = TRUE, resolution_notes = $2 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, notes)
	if err != nil {
		return fmt.Errorf("resolve kill switch event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Count returns the number of events ever recorded.
func (s *KillSwitchEventStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM kill_switch_events`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count kill switch events: %w", err)
	}
	return count, nil
}
