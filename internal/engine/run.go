package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// Run starts the background loops and blocks until the context ends:
// outcome reconciliation, kill-switch monitoring and the daily decay
// pass. Signal handling stays caller-driven via HandleSignal.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.risk.Load(ctx); err != nil {
		return fmt.Errorf("restore risk state: %w", err)
	}
	e.publishRiskState(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.loop(ctx, e.reconcileInterval, e.ReconcileOutcomes) })
	g.Go(func() error { return e.loop(ctx, e.monitorInterval, e.monitorRisk) })
	g.Go(func() error { return e.loop(ctx, time.Hour, e.runDecayIfDue) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *Engine) loop(ctx context.Context, interval time.Duration, step func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := step(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.log.Error("background step failed", "error", err)
			}
		}
	}
}

// monitorRisk runs the kill-switch checks and refreshes the risk
// gauges. Graph triggers only arm in NORMAL; the risk manager skips
// them itself once a protective mode is active.
func (e *Engine) monitorRisk(ctx context.Context) error {
	if err := e.risk.CheckEmergencyTriggers(ctx); err != nil {
		return fmt.Errorf("emergency triggers: %w", err)
	}
	if err := e.risk.CheckGraphTriggers(ctx); err != nil {
		return fmt.Errorf("graph triggers: %w", err)
	}
	clusters, err := e.trust.DetectClusters(ctx, e.now().Add(-e.cfg.Trust.ClusterWindow))
	if err != nil {
		return fmt.Errorf("cluster detection: %w", err)
	}
	e.risk.ReportClusterCorrelation(ctx, len(clusters))
	e.publishRiskState(ctx)
	return nil
}

func (e *Engine) publishRiskState(ctx context.Context) {
	e.metrics.SetRiskMode(e.risk.Mode(ctx))
	e.metrics.CurrentCapital.Set(e.risk.Capital())
	e.metrics.DrawdownPct.Set(e.risk.Drawdown())
	e.metrics.AllocationMultiplier.Set(e.feedback.AllocationMultiplier())
}

// runDecayIfDue runs the trust decay pass when the persisted anchor is
// older than the decay interval. The pass itself is idempotent, so a
// crash between the pass and the anchor write costs one repeat, not a
// double decay.
func (e *Engine) runDecayIfDue(ctx context.Context) error {
	now := e.now()

	last, err := e.state.Get(ctx, domain.StateKeyLastDecayRun)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("last decay run: %w", err)
	}
	if last != "" {
		at, err := time.Parse(time.RFC3339, last)
		if err == nil && now.Sub(at) < e.decayInterval {
			return nil
		}
	}

	started := e.now()
	report, err := e.trust.RunDecay(ctx, now)
	if err != nil {
		return fmt.Errorf("decay pass: %w", err)
	}
	e.metrics.DecayRunDuration.Observe(e.now().Sub(started).Seconds())
	e.metrics.WalletsDecayed.Add(float64(report.WalletsTouched))
	e.metrics.EdgesPruned.Add(float64(report.EdgesPruned))

	if err := e.state.Set(ctx, domain.StateKeyLastDecayRun, now.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("persist decay anchor: %w", err)
	}
	return nil
}
