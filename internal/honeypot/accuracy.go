package honeypot

import (
	"fmt"

	"github.com/albarami/Whale-hunter/internal/domain"
)

// Loss magnitude weights for the weighted accuracy figure. Missing a
// rug matters far more than missing a marginal dip.
var magnitudeWeights = map[domain.LossMagnitude]float64{
	domain.LossRug:      3.0,
	domain.LossModest:   1.5,
	domain.LossMarginal: 1.0,
}

// AccuracyStats measures how well the blocker separates losers from
// winners over resolved signals.
type AccuracyStats struct {
	TotalSignals     int
	SimulatedSignals int

	Losers        int
	BlockedLosers int
	MissedLosers  int

	// Winners the blocker rejected. Lost upside, tracked separately
	// because a conservative blocker is acceptable and a leaky one is
	// not.
	FalsePositives int

	// RawAccuracy is blocked losers over all losers.
	RawAccuracy float64

	// WeightedAccuracy weights each loser by its magnitude, so a
	// missed rug drags the figure down three times as hard as a missed
	// marginal loss.
	WeightedAccuracy float64

	// Ready means the sample is big enough and the raw accuracy high
	// enough for live promotion.
	Ready bool
}

// ComputeAccuracy folds resolved signals into blocker statistics.
// minSignals and minAccuracy are the readiness bar.
func ComputeAccuracy(signals []*domain.Signal, minSignals int, minAccuracy float64) *AccuracyStats {
	stats := &AccuracyStats{}

	var weightedTotal, weightedBlocked float64
	for _, sig := range signals {
		stats.TotalSignals++
		if sig.SimulationPassed == nil {
			continue
		}
		stats.SimulatedSignals++
		blocked := !*sig.SimulationPassed

		switch sig.Outcome {
		case domain.OutcomeLoss:
			stats.Losers++
			weight, ok := magnitudeWeights[sig.LossMagnitude]
			if !ok {
				weight = 1.0
			}
			weightedTotal += weight
			if blocked {
				stats.BlockedLosers++
				weightedBlocked += weight
			} else {
				stats.MissedLosers++
			}
		case domain.OutcomeWin:
			if blocked {
				stats.FalsePositives++
			}
		}
	}

	if stats.Losers > 0 {
		stats.RawAccuracy = float64(stats.BlockedLosers) / float64(stats.Losers)
	}
	if weightedTotal > 0 {
		stats.WeightedAccuracy = weightedBlocked / weightedTotal
	}
	stats.Ready = stats.SimulatedSignals >= minSignals && stats.Losers > 0 && stats.RawAccuracy >= minAccuracy
	return stats
}

// Readiness explains why the blocker is or is not ready for live use.
func (s *AccuracyStats) Readiness(minSignals int, minAccuracy float64) string {
	if s.Ready {
		return fmt.Sprintf("ready: %.0f%% of %d losers blocked", s.RawAccuracy*100, s.Losers)
	}
	if s.SimulatedSignals < minSignals {
		return fmt.Sprintf("need %d more simulated signals", minSignals-s.SimulatedSignals)
	}
	if s.Losers == 0 {
		return "no resolved losers yet"
	}
	return fmt.Sprintf("accuracy %.0f%% below %.0f%% floor", s.RawAccuracy*100, minAccuracy*100)
}
