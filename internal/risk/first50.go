package risk

import (
	"context"
	"fmt"
	"time"
)

// First50Gate checks the early-account pacing rules. It returns false
// with a reason while the account is inside its first-50 window and a
// pacing rule blocks the trade.
func (m *Manager) First50Gate(ctx context.Context, now time.Time) (bool, string, error) {
	cfg := m.cfg.First50
	if !cfg.Enabled {
		return true, "", nil
	}

	total, err := m.trades.Count(ctx)
	if err != nil {
		return false, "", fmt.Errorf("trade count: %w", err)
	}
	if total >= cfg.TradeCount {
		return true, "", nil
	}

	weekly, err := m.trades.CountSince(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		return false, "", fmt.Errorf("weekly trade count: %w", err)
	}
	if weekly >= int64(cfg.MaxTradesFirstWeek) {
		return false, fmt.Sprintf("first-week trade cap reached (%d)", cfg.MaxTradesFirstWeek), nil
	}

	// After the fifth trade every further early trade waits out a
	// review interval.
	if total >= 5 {
		recent, err := m.trades.CountSince(ctx, now.Add(-cfg.ReviewInterval))
		if err != nil {
			return false, "", fmt.Errorf("review interval count: %w", err)
		}
		if recent > 0 {
			return false, fmt.Sprintf("review interval (%s) not elapsed since last trade", cfg.ReviewInterval), nil
		}
	}
	return true, "", nil
}
