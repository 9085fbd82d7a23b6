package risk

import (
	"context"
	"math"

	"github.com/albarami/Whale-hunter/internal/domain"
)

// SizeInput carries the per-signal facts the sizing function needs.
type SizeInput struct {
	Confidence   float64
	GraphBoosted bool
	TradeCount   int64 // trades ever opened, for the first-50 rules
}

// SizeResult is a computed position size with the applied rules.
type SizeResult struct {
	SizeUSD      float64
	Pct          float64 // fraction of capital before clamps
	BoostApplied bool
	Zeroed       bool
	Reason       string
}

// PositionSize computes the USD position for an approved signal. The
// halt check runs before any tier or confidence math: EMERGENCY_STOP
// and an active kill switch always size to zero.
func (m *Manager) PositionSize(ctx context.Context, in SizeInput) SizeResult {
	mode := m.Mode(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch mode {
	case domain.ModeEmergencyStop:
		return SizeResult{Zeroed: true, Reason: "emergency stop active"}
	case domain.ModeObservation:
		return SizeResult{Zeroed: true, Reason: "kill switch observation window active"}
	}

	tier := m.cfg.Risk.SizingFor(m.capital)
	pct := tier.DefaultPositionPct
	capPct := tier.MaxPositionPct

	first50 := m.cfg.First50.Enabled && in.TradeCount < m.cfg.First50.TradeCount
	if first50 {
		capPct = math.Min(capPct, m.cfg.First50.MaxPositionPct)
		pct = math.Min(pct, capPct)
	}
	if mode == domain.ModeCapitalPreservation {
		pct *= m.cfg.Risk.PreservationSizeMultiplier
	}

	size := m.capital * pct * in.Confidence

	boostAllowed := in.GraphBoosted &&
		mode != domain.ModeCapitalPreservation &&
		!(first50 && m.cfg.First50.NoGraphBoost)
	if boostAllowed {
		size *= m.cfg.Risk.GraphBoostMultiplier
	}

	// The percentage cap binds after the boost, so a boost can never
	// push a position past the tier (or first-50) ceiling.
	size = math.Min(size, m.capital*capPct)
	size = math.Min(math.Max(size, m.cfg.Risk.MinPositionUSD), m.cfg.Risk.MaxPositionUSD)

	return SizeResult{
		SizeUSD:      size,
		Pct:          pct,
		BoostApplied: boostAllowed,
	}
}
