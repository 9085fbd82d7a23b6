// Package honeypot gates every signal behind a sell-side simulation.
// A token whose sell leg fails or carries a confiscatory tax never
// reaches execution, and the blocker's own accuracy is tracked from
// resolved outcomes so promotion to live trading is earned, not
// assumed.
package honeypot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/albarami/Whale-hunter/internal/config"
)

// SimResult is the outcome of one buy-then-sell probe.
type SimResult struct {
	SellSucceeded   bool
	EffectiveTaxPct float64 // round-trip value lost, 0-100
	Reason          string
}

// Simulator runs a round-trip swap probe against a token.
type Simulator interface {
	SimulateRoundTrip(ctx context.Context, token string, amountSOL float64) (*SimResult, error)
}

// Verdict is the checker's decision for one token.
type Verdict struct {
	Pass   bool
	TaxPct float64
	Reason string
}

// Checker classifies tokens with a simulator probe. It fails closed:
// a probe error blocks the token the same as a failed sell.
type Checker struct {
	sim Simulator
	cfg config.HoneypotConfig
	log *slog.Logger
}

// NewChecker creates a honeypot checker.
func NewChecker(sim Simulator, cfg config.HoneypotConfig, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{sim: sim, cfg: cfg, log: log}
}

// Check probes the token and classifies it. A failed sell counts as a
// 100% tax; any tax above the ceiling blocks the token.
func (c *Checker) Check(ctx context.Context, token string) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	res, err := c.sim.SimulateRoundTrip(ctx, token, c.cfg.ProbeAmountSOL)
	if err != nil {
		c.log.Warn("simulator probe failed, blocking token", "token", token, "error", err)
		return &Verdict{
			Pass:   false,
			TaxPct: 100,
			Reason: fmt.Sprintf("simulation unavailable: %v", err),
		}, nil
	}

	if !res.SellSucceeded {
		reason := res.Reason
		if reason == "" {
			reason = "sell leg reverted"
		}
		return &Verdict{Pass: false, TaxPct: 100, Reason: reason}, nil
	}

	if res.EffectiveTaxPct > c.cfg.MaxEffectiveTax {
		return &Verdict{
			Pass:   false,
			TaxPct: res.EffectiveTaxPct,
			Reason: fmt.Sprintf("effective tax %.1f%% above ceiling %.1f%%", res.EffectiveTaxPct, c.cfg.MaxEffectiveTax),
		}, nil
	}

	if res.EffectiveTaxPct >= c.cfg.HighTaxWarning {
		c.log.Warn("token passes with elevated tax", "token", token, "tax_pct", res.EffectiveTaxPct)
	}
	return &Verdict{Pass: true, TaxPct: res.EffectiveTaxPct}, nil
}
