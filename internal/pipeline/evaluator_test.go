package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/albarami/Whale-hunter/internal/config"
	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/honeypot"
)

func newTestEvaluator() *Evaluator {
	cfg := config.Default()
	return NewEvaluator(cfg, NewCooldownTracker(cfg.Cooldowns), nil)
}

// cleanInput builds a signal that clears every veto.
func cleanInput(now time.Time) *Input {
	return &Input{
		Signal: &domain.Signal{Timestamp: now, Wallet: "w", Token: "tok"},
		Wallet: &domain.WalletSignal{
			Wallet:      "w",
			Tier:        domain.TierA,
			Confidence:  0.7,
			Strength:    domain.StrengthStrongBuy,
			DecayFactor: 1.0,
		},
		Token: &domain.TokenInfo{
			Address:      "tok",
			CreatedAt:    now.Add(-6 * time.Hour),
			MarketCapUSD: 2_000_000,
			LiquidityUSD: 50_000,
		},
		Honeypot:            &honeypot.Verdict{Pass: true, TaxPct: 1.0},
		RiskMode:            domain.ModeNormal,
		RecentWalletSignals: 1,
		MinConfidence:       0.60,
		Now:                 now,
	}
}

func TestEvaluate_CleanSignalExecutes(t *testing.T) {
	e := newTestEvaluator()
	now := time.Now()

	eval := e.Evaluate(cleanInput(now))
	if eval.Decision != DecisionExecute {
		t.Fatalf("decision = %s (%s), want EXECUTE", eval.Decision, eval.RejectReason)
	}
	if len(eval.Vetoes) != 10 {
		t.Errorf("vetoes = %d, want the full checklist of 10", len(eval.Vetoes))
	}
	if math.Abs(eval.FinalConfidence-0.7) > 1e-9 {
		t.Errorf("final confidence = %f, want 0.7", eval.FinalConfidence)
	}
}

func TestEvaluate_HoneypotVetoes(t *testing.T) {
	e := newTestEvaluator()
	now := time.Now()

	in := cleanInput(now)
	in.Honeypot = &honeypot.Verdict{Pass: false, TaxPct: 100, Reason: "sell reverted"}
	eval := e.Evaluate(in)
	if eval.Decision != DecisionReject || eval.RejectReason != "Honeypot check" {
		t.Errorf("unexpected: %s / %s", eval.Decision, eval.RejectReason)
	}

	// No probe at all also vetoes.
	in = cleanInput(now)
	in.Honeypot = nil
	eval = e.Evaluate(in)
	if eval.Decision != DecisionReject {
		t.Error("unprobed token executed")
	}
}

func TestEvaluate_LiquidityFloor(t *testing.T) {
	e := newTestEvaluator()
	now := time.Now()

	in := cleanInput(now)
	in.Token.LiquidityUSD = 9_999
	eval := e.Evaluate(in)
	if eval.Decision != DecisionReject || eval.RejectReason != "Liquidity floor" {
		t.Errorf("unexpected: %s / %s", eval.Decision, eval.RejectReason)
	}
}

func TestEvaluate_FreshnessWindows(t *testing.T) {
	e := newTestEvaluator()
	now := time.Now()

	cases := []struct {
		name      string
		marketCap float64
		age       time.Duration
		want      Decision
	}{
		{"meme_too_fresh", 2_000_000, 30 * time.Minute, DecisionReject},
		{"meme_in_window", 2_000_000, 6 * time.Hour, DecisionExecute},
		{"meme_too_old", 2_000_000, 72 * time.Hour, DecisionReject},
		{"mid_cap_wider_window", 50_000_000, 60 * time.Hour, DecisionExecute},
		{"large_cap_week_old", 200_000_000, 6 * 24 * time.Hour, DecisionExecute},
		{"large_cap_expired", 200_000_000, 8 * 24 * time.Hour, DecisionReject},
	}
	for _, tc := range cases {
		// Fresh evaluator per case so cooldowns never interfere.
		e = newTestEvaluator()
		in := cleanInput(now)
		in.Token.MarketCapUSD = tc.marketCap
		in.Token.CreatedAt = now.Add(-tc.age)
		eval := e.Evaluate(in)
		if eval.Decision != tc.want {
			t.Errorf("%s: decision = %s (%s), want %s", tc.name, eval.Decision, eval.RejectReason, tc.want)
		}
	}
}

func TestEvaluate_CooldownArmsOnlyOnExecute(t *testing.T) {
	e := newTestEvaluator()
	now := time.Now()

	// First execution arms the wallet and token cooldowns.
	if eval := e.Evaluate(cleanInput(now)); eval.Decision != DecisionExecute {
		t.Fatalf("first signal rejected: %s", eval.RejectReason)
	}

	// Same wallet, different token, 10 minutes later: wallet cooldown.
	in := cleanInput(now.Add(10 * time.Minute))
	in.Signal.Token = "tok2"
	in.Token.Address = "tok2"
	eval := e.Evaluate(in)
	if eval.RejectReason != "Wallet cooldown" {
		t.Errorf("reject reason = %s, want Wallet cooldown", eval.RejectReason)
	}

	// Different wallet, same token, 10 minutes later: token cooldown.
	in = cleanInput(now.Add(10 * time.Minute))
	in.Wallet.Wallet = "w2"
	in.Signal.Wallet = "w2"
	eval = e.Evaluate(in)
	if eval.RejectReason != "Token cooldown" {
		t.Errorf("reject reason = %s, want Token cooldown", eval.RejectReason)
	}

	// A rejection must not have armed anything: w2 stays cold.
	in = cleanInput(now.Add(45 * time.Minute))
	in.Wallet.Wallet = "w2"
	in.Signal.Wallet = "w2"
	in.Signal.Token = "tok3"
	in.Token.Address = "tok3"
	if eval := e.Evaluate(in); eval.Decision != DecisionExecute {
		t.Errorf("w2 blocked without a prior execution: %s", eval.RejectReason)
	}

	// Original wallet frees up after the full cooldown.
	in = cleanInput(now.Add(61 * time.Minute))
	in.Signal.Token = "tok4"
	in.Token.Address = "tok4"
	if eval := e.Evaluate(in); eval.Decision != DecisionExecute {
		t.Errorf("wallet still cooling after cooldown elapsed: %s", eval.RejectReason)
	}
}

func TestEvaluate_HaltedModesVetoFirst(t *testing.T) {
	e := newTestEvaluator()
	now := time.Now()

	for _, mode := range []domain.RiskMode{domain.ModeEmergencyStop, domain.ModeObservation} {
		in := cleanInput(now)
		in.RiskMode = mode
		eval := e.Evaluate(in)
		if eval.Decision != DecisionReject || eval.RejectReason != "Kill switch" {
			t.Errorf("%s: unexpected %s / %s", mode, eval.Decision, eval.RejectReason)
		}
	}

	// The halted rejections must not have armed cooldowns: the same
	// wallet and token trade once the mode clears.
	if eval := e.Evaluate(cleanInput(now)); eval.Decision != DecisionExecute {
		t.Errorf("wallet blocked after halted rejections: %s", eval.RejectReason)
	}

	// Capital preservation throttles sizing elsewhere; it does not veto.
	e = newTestEvaluator()
	in := cleanInput(now)
	in.RiskMode = domain.ModeCapitalPreservation
	if eval := e.Evaluate(in); eval.Decision != DecisionExecute {
		t.Errorf("capital preservation vetoed: %s", eval.RejectReason)
	}
}

func TestEvaluate_CEXFundingVeto(t *testing.T) {
	e := newTestEvaluator()
	now := time.Now()

	in := cleanInput(now)
	in.Wallet.CEXFunded = true
	eval := e.Evaluate(in)
	if eval.Decision != DecisionReject || eval.RejectReason != "CEX funding" {
		t.Errorf("unexpected: %s / %s", eval.Decision, eval.RejectReason)
	}

	// An insider connection redeems exchange provenance.
	e = newTestEvaluator()
	in = cleanInput(now)
	in.Wallet.CEXFunded = true
	in.Wallet.Mother = "whale"
	in.Wallet.MotherTier = domain.TierS
	if eval := e.Evaluate(in); eval.Decision != DecisionExecute {
		t.Errorf("linked CEX wallet rejected: %s", eval.RejectReason)
	}
}

func TestEvaluate_PacingVeto(t *testing.T) {
	e := newTestEvaluator()
	now := time.Now()

	in := cleanInput(now)
	in.PacingViolation = "max 3 concurrent positions in first 50"
	eval := e.Evaluate(in)
	if eval.Decision != DecisionReject || eval.RejectReason != "First-50 pacing" {
		t.Errorf("unexpected: %s / %s", eval.Decision, eval.RejectReason)
	}

	// A paced-out signal must not arm cooldowns for the next one.
	if eval := e.Evaluate(cleanInput(now)); eval.Decision != DecisionExecute {
		t.Errorf("wallet blocked after pacing rejection: %s", eval.RejectReason)
	}
}

func TestEvaluate_SignalRate(t *testing.T) {
	e := newTestEvaluator()
	now := time.Now()

	in := cleanInput(now)
	in.RecentWalletSignals = 11
	eval := e.Evaluate(in)
	if eval.RejectReason != "Wallet signal rate" {
		t.Errorf("reject reason = %s, want Wallet signal rate", eval.RejectReason)
	}

	// The count includes the signal under evaluation, so the tenth
	// signal of the hour is the last one through.
	e = newTestEvaluator()
	in = cleanInput(now)
	in.RecentWalletSignals = 10
	if eval := e.Evaluate(in); eval.Decision != DecisionExecute {
		t.Errorf("tenth signal of the hour rejected: %s", eval.RejectReason)
	}
}

func TestEvaluate_GraphBoostComposition(t *testing.T) {
	e := newTestEvaluator()
	now := time.Now()

	// Stored 0.45 is below the 0.60 floor. An S-tier mother adds 0.25,
	// then a 0.9 decay applies: (0.45+0.25)*0.9 = 0.63 clears it.
	in := cleanInput(now)
	in.Wallet.Confidence = 0.45 * 0.9
	in.Wallet.DecayFactor = 0.9
	in.Wallet.Mother = "mother"
	in.Wallet.MotherTier = domain.TierS

	eval := e.Evaluate(in)
	if eval.Decision != DecisionExecute {
		t.Fatalf("boosted signal rejected: %s", eval.RejectReason)
	}
	if !eval.GraphBoosted {
		t.Error("GraphBoosted not set")
	}
	if math.Abs(eval.FinalConfidence-0.63) > 1e-9 {
		t.Errorf("final confidence = %f, want 0.63", eval.FinalConfidence)
	}

	// The additive boost caps at 1.0 before decay.
	e = newTestEvaluator()
	in = cleanInput(now)
	in.Wallet.Confidence = 0.9 * 0.9
	in.Wallet.DecayFactor = 0.9
	in.Wallet.Mother = "mother"
	in.Wallet.MotherTier = domain.TierS
	eval = e.Evaluate(in)
	if math.Abs(eval.FinalConfidence-0.9) > 1e-9 {
		t.Errorf("final confidence = %f, want capped 1.0*0.9", eval.FinalConfidence)
	}
}

func TestEvaluate_SuppressGraphBoost(t *testing.T) {
	e := newTestEvaluator()
	now := time.Now()

	in := cleanInput(now)
	in.Wallet.Confidence = 0.45
	in.Wallet.Mother = "mother"
	in.Wallet.MotherTier = domain.TierS
	in.SuppressGraphBoost = true

	eval := e.Evaluate(in)
	if eval.Decision != DecisionReject || eval.RejectReason != "Confidence floor" {
		t.Errorf("unexpected: %s / %s", eval.Decision, eval.RejectReason)
	}
	if eval.GraphBoosted {
		t.Error("boost applied while suppressed")
	}
}

func TestClassFor(t *testing.T) {
	cfg := config.Default().MarketCap

	if got := ClassFor(200_000_000, cfg); got != domain.ClassLargeCap {
		t.Errorf("got %s, want large_cap", got)
	}
	if got := ClassFor(50_000_000, cfg); got != domain.ClassMidCap {
		t.Errorf("got %s, want mid_cap", got)
	}
	if got := ClassFor(900_000, cfg); got != domain.ClassMemeCoin {
		t.Errorf("got %s, want meme_coin", got)
	}
}
