package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/feedback"
	"github.com/albarami/Whale-hunter/internal/honeypot"
)

// Outcome thresholds: a signal resolves WIN above +10%, LOSS below
// -10% and NEUTRAL in between.
const outcomeThresholdPct = 10.0

// resolutionWindow is how long a signal stays pending before its
// outcome is read from the market.
const resolutionWindow = 24 * time.Hour

// checkpointWindow is the age at which a pending signal gets its
// intermediate price mark.
const checkpointWindow = time.Hour

// ReconcileOutcomes resolves signals old enough to judge, closes
// their trades and feeds the results back into trust, risk and
// feedback. Price lookups that fail leave the signal pending for the
// next pass.
func (e *Engine) ReconcileOutcomes(ctx context.Context) error {
	now := e.now()

	e.checkpointPrices(ctx, now)

	pending, err := e.signals.Pending(ctx, now.Add(-resolutionWindow))
	if err != nil {
		return fmt.Errorf("pending signals: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	open, err := e.trades.Open(ctx)
	if err != nil {
		return fmt.Errorf("open trades: %w", err)
	}
	tradeBySignal := make(map[int64]*domain.Trade, len(open))
	for _, t := range open {
		if t.SignalID != nil {
			tradeBySignal[*t.SignalID] = t
		}
	}

	var resolved int
	for _, sig := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.resolveSignal(ctx, sig, tradeBySignal[sig.ID], now); err != nil {
			e.log.Warn("resolve signal failed", "signal", sig.ID, "error", err)
			continue
		}
		resolved++
	}

	if resolved > 0 {
		e.log.Info("outcomes reconciled", "resolved", resolved, "pending", len(pending)-resolved)
		if err := e.refreshAccuracy(ctx); err != nil {
			e.log.Warn("accuracy refresh failed", "error", err)
		}
		if err := e.risk.CheckEmergencyTriggers(ctx); err != nil {
			e.log.Warn("emergency trigger check failed", "error", err)
		}
	}
	return nil
}

// checkpointPrices records the one-hour price mark for signals past
// the checkpoint age but not yet due for resolution. A failed lookup
// just waits for the next pass.
func (e *Engine) checkpointPrices(ctx context.Context, now time.Time) {
	pending, err := e.signals.Pending(ctx, now.Add(-checkpointWindow))
	if err != nil {
		e.log.Warn("checkpoint scan failed", "error", err)
		return
	}
	for _, sig := range pending {
		if sig.Price1H != nil || now.Sub(sig.Timestamp) >= resolutionWindow {
			continue
		}
		price, err := e.prices.Price(ctx, sig.Token)
		if err != nil {
			continue
		}
		if err := e.signals.SetCheckpointPrice(ctx, sig.ID, price); err != nil {
			e.log.Warn("checkpoint price write failed", "signal", sig.ID, "error", err)
		}
	}
}

func (e *Engine) resolveSignal(ctx context.Context, sig *domain.Signal, trade *domain.Trade, now time.Time) error {
	price, err := e.prices.Price(ctx, sig.Token)
	if err != nil {
		return fmt.Errorf("price lookup: %w", err)
	}
	if sig.Price <= 0 {
		return fmt.Errorf("signal %d has no entry price", sig.ID)
	}

	pnlPct := (price - sig.Price) / sig.Price * 100

	outcome := domain.OutcomeNeutral
	switch {
	case pnlPct > outcomeThresholdPct:
		outcome = domain.OutcomeWin
	case pnlPct < -outcomeThresholdPct:
		outcome = domain.OutcomeLoss
	}

	magnitude := domain.LossNone
	if outcome == domain.OutcomeLoss {
		magnitude = domain.ClassifyLoss(math.Abs(pnlPct))
	}

	if err := e.signals.SetOutcome(ctx, sig.ID, outcome, price, pnlPct, magnitude); err != nil {
		return fmt.Errorf("set outcome: %w", err)
	}

	mu := e.locks.lock(sig.Wallet)
	mu.Lock()
	defer mu.Unlock()

	// Wallets are created lazily: the first resolved outcome starts
	// the reputation record.
	if _, err := e.trust.Track(ctx, sig.Wallet, domain.TierC); err != nil {
		return fmt.Errorf("track wallet: %w", err)
	}
	wallet, err := e.trust.RecordOutcome(ctx, sig.Wallet, outcome, sig.AmountUSD*pnlPct/100, now)
	if err != nil {
		return fmt.Errorf("trust outcome: %w", err)
	}

	ws, err := e.trust.Read(ctx, sig.Wallet, now)
	if err != nil {
		return fmt.Errorf("trust read: %w", err)
	}

	graphBoosted := false
	var pnlUSD float64
	if trade != nil {
		graphBoosted = trade.GraphBoosted
		pnlUSD = trade.AmountUSD * pnlPct / 100
		if err := e.trades.Close(ctx, trade.ID, price, pnlUSD, now); err != nil {
			return fmt.Errorf("close trade: %w", err)
		}
		if err := e.risk.RecordPnL(ctx, pnlUSD); err != nil {
			return fmt.Errorf("record pnl: %w", err)
		}
		e.metrics.RecordOutcome(pnlUSD)
		e.feedback.RecordExecuted(feedback.Outcome{
			TradeID:      trade.ID,
			Token:        sig.Token,
			PnL:          pnlUSD,
			PnLPct:       pnlPct / 100,
			Win:          outcome == domain.OutcomeWin,
			Timestamp:    now,
			GraphBoosted: graphBoosted,
			Cluster:      ws.Mother,
		})
	} else {
		e.feedback.RecordRejected(outcome == domain.OutcomeWin)
	}

	simPassed := sig.SimulationPassed != nil && *sig.SimulationPassed
	if err := e.outcomes.InsertResolved(ctx, &domain.ResolvedOutcome{
		SignalID:         sig.ID,
		Timestamp:        now,
		Token:            sig.Token,
		Wallet:           sig.Wallet,
		MotherWallet:     ws.Mother,
		Outcome:          outcome,
		PnL:              pnlUSD,
		LossMagnitude:    magnitude,
		SimulationPassed: simPassed,
		GraphBoosted:     graphBoosted,
	}); err != nil {
		e.log.Warn("outcome analytics write failed", "signal", sig.ID, "error", err)
	}

	e.log.Info("signal resolved",
		"signal", sig.ID,
		"token", sig.Token,
		"outcome", outcome,
		"pnl_pct", fmt.Sprintf("%+.1f", pnlPct),
		"wallet_tier", wallet.Tier)
	return nil
}

// refreshAccuracy recomputes the blocker's accuracy over every
// resolved signal and exports it.
func (e *Engine) refreshAccuracy(ctx context.Context) error {
	signals, err := e.signals.Resolved(ctx)
	if err != nil {
		return fmt.Errorf("resolved signals: %w", err)
	}
	stats := honeypot.ComputeAccuracy(signals, e.cfg.Honeypot.ReadinessSignals, e.cfg.Honeypot.ReadinessFloor)
	e.metrics.BlockerAccuracy.Set(stats.RawAccuracy)
	if stats.MissedLosers > 0 {
		e.log.Warn("blocker missing losers",
			"missed", stats.MissedLosers,
			"raw_accuracy", stats.RawAccuracy,
			"weighted_accuracy", stats.WeightedAccuracy,
			"readiness", stats.Readiness(e.cfg.Honeypot.ReadinessSignals, e.cfg.Honeypot.ReadinessFloor))
	}
	return nil
}
