package postgres

import (
	"context"
	"fmt"

	"github.com/albarami/Whale-hunter/internal/storage"
)

// SystemStateStore implements storage.SystemStateStore using
// PostgreSQL.
type SystemStateStore struct {
	pool *Pool
}

// NewSystemStateStore creates a new SystemStateStore.
func NewSystemStateStore(pool *Pool) *SystemStateStore {
	return &SystemStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SystemStateStore = (*SystemStateStore)(nil)

// Get returns the value for key or ErrNotFound.
func (s *SystemStateStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM system_state WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if isNotFoundError(err) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get system state: %w", err)
	}
	return value, nil
}

// Set stores the value for key, overwriting any previous value.
func (s *SystemStateStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO system_state (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`

	if _, err := s.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("set system state: %w", err)
	}
	return nil
}
