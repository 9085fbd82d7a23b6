package pipeline

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/albarami/Whale-hunter/internal/config"
	"github.com/albarami/Whale-hunter/internal/domain"
)

// Evaluator applies the veto chain to signals.
type Evaluator struct {
	cfg       *config.Config
	cooldowns *CooldownTracker
	log       *slog.Logger
}

// NewEvaluator creates a pipeline evaluator.
func NewEvaluator(cfg *config.Config, cooldowns *CooldownTracker, log *slog.Logger) *Evaluator {
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{cfg: cfg, cooldowns: cooldowns, log: log}
}

// Evaluate runs the veto chain. Vetoes are ordered cheapest first; all
// of them are evaluated even after a failure so the checklist is
// complete, but the first failure names the rejection.
func (e *Evaluator) Evaluate(in *Input) *Evaluation {
	vetoes := make([]VetoResult, 0, 10)

	// 1. Kill switch. A halted mode rejects before anything else and,
	// because rejection never arms cooldowns, leaves the wallet ready
	// for when trading resumes.
	halted := in.RiskMode == domain.ModeEmergencyStop || in.RiskMode == domain.ModeObservation
	vetoes = append(vetoes, VetoResult{
		Name:      "Kill switch",
		Threshold: "trading not halted",
		Actual:    string(in.RiskMode),
		Pass:      !halted,
	})

	// 2. Honeypot verdict. No probe means no trade.
	switch {
	case in.Honeypot == nil:
		vetoes = append(vetoes, VetoResult{
			Name:      "Honeypot check",
			Threshold: "probe passed",
			Actual:    "no probe result",
			Pass:      false,
		})
	default:
		vetoes = append(vetoes, VetoResult{
			Name:      "Honeypot check",
			Threshold: fmt.Sprintf("effective tax <= %.1f%%", e.cfg.Honeypot.MaxEffectiveTax),
			Actual:    fmt.Sprintf("tax %.1f%% %s", in.Honeypot.TaxPct, in.Honeypot.Reason),
			Pass:      in.Honeypot.Pass,
		})
	}

	// 3. Liquidity floor.
	liquidity := 0.0
	if in.Token != nil {
		liquidity = in.Token.LiquidityUSD
	}
	vetoes = append(vetoes, VetoResult{
		Name:      "Liquidity floor",
		Threshold: fmt.Sprintf(">= $%.0f", e.cfg.Cooldowns.MinLiquidityUSD),
		Actual:    fmt.Sprintf("$%.0f", liquidity),
		Pass:      liquidity >= e.cfg.Cooldowns.MinLiquidityUSD,
	})

	// 4. Token freshness for its market-cap class.
	vetoes = append(vetoes, e.freshnessVeto(in))

	// 5. CEX provenance. A CEX-funded wallet trades only through an
	// insider connection.
	cexActual := "not CEX funded"
	if in.Wallet.CEXFunded {
		cexActual = "CEX funded, no insider link"
		if in.Wallet.Mother != "" {
			cexActual = fmt.Sprintf("CEX funded, insider link via %s", in.Wallet.Mother)
		}
	}
	vetoes = append(vetoes, VetoResult{
		Name:      "CEX funding",
		Threshold: "insider link required when CEX funded",
		Actual:    cexActual,
		Pass:      !in.Wallet.CEXFunded || in.Wallet.Mother != "",
	})

	// 6/7. Wallet and token cooldowns, armed by prior executions.
	walletReady, walletWait := e.cooldowns.WalletReady(in.Wallet.Wallet, in.Now)
	vetoes = append(vetoes, VetoResult{
		Name:      "Wallet cooldown",
		Threshold: fmt.Sprintf("%s since last execution", e.cfg.Cooldowns.WalletCooldown),
		Actual:    cooldownActual(walletReady, walletWait),
		Pass:      walletReady,
	})
	tokenReady, tokenWait := e.cooldowns.TokenReady(in.Signal.Token, in.Now)
	vetoes = append(vetoes, VetoResult{
		Name:      "Token cooldown",
		Threshold: fmt.Sprintf("%s since last execution", e.cfg.Cooldowns.TokenCooldown),
		Actual:    cooldownActual(tokenReady, tokenWait),
		Pass:      tokenReady,
	})

	// 8. Per-wallet signal rate.
	vetoes = append(vetoes, VetoResult{
		Name:      "Wallet signal rate",
		Threshold: fmt.Sprintf("<= %d/hour", e.cfg.Cooldowns.MaxSignalsPerHour),
		Actual:    fmt.Sprintf("%d/hour", in.RecentWalletSignals),
		Pass:      in.RecentWalletSignals <= e.cfg.Cooldowns.MaxSignalsPerHour,
	})

	// 9. First-50 pacing, precomputed by the risk manager.
	pacingActual := "clear"
	if in.PacingViolation != "" {
		pacingActual = in.PacingViolation
	}
	vetoes = append(vetoes, VetoResult{
		Name:      "First-50 pacing",
		Threshold: "pacing rules clear",
		Actual:    pacingActual,
		Pass:      in.PacingViolation == "",
	})

	// 10. Confidence floor after graph boost and decay.
	confidence, boosted := e.finalConfidence(in)
	vetoes = append(vetoes, VetoResult{
		Name:      "Confidence floor",
		Threshold: fmt.Sprintf(">= %.2f", in.MinConfidence),
		Actual:    fmt.Sprintf("%.3f (boosted=%t, decay=%.3f)", confidence, boosted, in.Wallet.DecayFactor),
		Pass:      confidence >= in.MinConfidence,
	})

	eval := &Evaluation{
		Decision:        DecisionExecute,
		FinalConfidence: confidence,
		Strength:        in.Wallet.Strength,
		GraphBoosted:    boosted,
		Vetoes:          vetoes,
	}
	for _, v := range vetoes {
		if !v.Pass {
			eval.Decision = DecisionReject
			eval.RejectReason = v.Name
			break
		}
	}

	if eval.Decision == DecisionExecute {
		// Arm cooldowns only for signals that will actually trade.
		e.cooldowns.MarkExecuted(in.Wallet.Wallet, in.Signal.Token, in.Now)
	} else {
		e.log.Debug("signal vetoed",
			"wallet", in.Wallet.Wallet, "token", in.Signal.Token, "veto", eval.RejectReason)
	}
	return eval
}

// finalConfidence composes the stored confidence, the funding-graph
// boost and the staleness decay. The boost is additive on the stored
// value and capped before decay applies, so a stale wallet cannot buy
// its way back with graph connections.
func (e *Evaluator) finalConfidence(in *Input) (float64, bool) {
	stored := in.Wallet.Confidence
	if in.Wallet.DecayFactor > 0 {
		stored = in.Wallet.Confidence / in.Wallet.DecayFactor
	}

	boost := 0.0
	if in.Wallet.Mother != "" && !in.SuppressGraphBoost {
		switch in.Wallet.MotherTier {
		case domain.TierS:
			boost = e.cfg.Confidence.STierBoost
		case domain.TierA:
			boost = e.cfg.Confidence.ATierBoost
		case domain.TierB:
			boost = e.cfg.Confidence.BTierBoost
		}
	}

	final := math.Min(stored+boost, 1.0) * in.Wallet.DecayFactor
	return final, boost > 0
}

// freshnessVeto checks the token's age against the window for its
// market-cap class. A missing token profile vetoes.
func (e *Evaluator) freshnessVeto(in *Input) VetoResult {
	if in.Token == nil {
		return VetoResult{
			Name:      "Token freshness",
			Threshold: "token profile available",
			Actual:    "no token profile",
			Pass:      false,
		}
	}

	class := ClassFor(in.Token.MarketCapUSD, e.cfg.MarketCap)
	window := e.cfg.Freshness.WindowFor(string(class))
	age := in.Token.Age(in.Now)

	return VetoResult{
		Name:      "Token freshness",
		Threshold: fmt.Sprintf("[%s, %s] for %s", window.MinAge, window.MaxAge, class),
		Actual:    fmt.Sprintf("age %s", age.Truncate(time.Minute)),
		Pass:      age >= window.MinAge && age <= window.MaxAge,
	}
}

func cooldownActual(ready bool, wait time.Duration) string {
	if ready {
		return "ready"
	}
	return fmt.Sprintf("%s remaining", wait)
}

// ClassFor buckets a market cap into its class.
func ClassFor(marketCapUSD float64, cfg config.MarketCapConfig) domain.MarketCapClass {
	switch {
	case marketCapUSD >= cfg.LargeCapMinUSD:
		return domain.ClassLargeCap
	case marketCapUSD >= cfg.MidCapMinUSD:
		return domain.ClassMidCap
	default:
		return domain.ClassMemeCoin
	}
}
