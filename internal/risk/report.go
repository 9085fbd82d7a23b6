package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
)

// Report is a point-in-time risk snapshot for operator tooling.
type Report struct {
	Mode              domain.RiskMode
	Capital           float64
	PeakCapital       float64
	DrawdownPct       float64
	TradeCount        int64
	ConsecutiveLosses int
	HourlyPnL         float64
	OpenEvents        []*domain.KillSwitchEvent
}

// Snapshot assembles the current risk report.
func (m *Manager) Snapshot(ctx context.Context) (*Report, error) {
	mode := m.Mode(ctx)

	count, err := m.trades.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("trade count: %w", err)
	}
	losses, err := m.trades.ConsecutiveLosses(ctx)
	if err != nil {
		return nil, fmt.Errorf("loss streak: %w", err)
	}
	hourly, err := m.trades.RealizedPnLSince(ctx, m.now().Add(-time.Hour))
	if err != nil {
		return nil, fmt.Errorf("hourly pnl: %w", err)
	}
	open, err := m.events.Unresolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return &Report{
		Mode:              mode,
		Capital:           m.capital,
		PeakCapital:       m.peakCapital,
		DrawdownPct:       m.drawdownLocked() * 100,
		TradeCount:        count,
		ConsecutiveLosses: losses,
		HourlyPnL:         hourly,
		OpenEvents:        open,
	}, nil
}
