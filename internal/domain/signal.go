package domain

import "time"

// Outcome is the resolved result of a signal.
type Outcome string

const (
	OutcomeWin     Outcome = "WIN"
	OutcomeLoss    Outcome = "LOSS"
	OutcomeNeutral Outcome = "NEUTRAL"
	OutcomePending Outcome = "PENDING"
)

// LossMagnitude buckets a loss by severity for accuracy weighting.
type LossMagnitude string

const (
	LossRug      LossMagnitude = "RUG"      // >= 90% loss
	LossModest   LossMagnitude = "MODEST"   // 10–90% loss
	LossMarginal LossMagnitude = "MARGINAL" // < 10% loss
	LossNone     LossMagnitude = "NONE"
)

// ClassifyLoss maps a loss percentage (0–100) to its magnitude bucket.
func ClassifyLoss(lossPct float64) LossMagnitude {
	switch {
	case lossPct >= 90:
		return LossRug
	case lossPct >= 10:
		return LossModest
	case lossPct > 0:
		return LossMarginal
	default:
		return LossNone
	}
}

// SignalStrength is the graded conviction of a wallet-derived signal.
type SignalStrength string

const (
	StrengthScreamingBuy SignalStrength = "SCREAMING_BUY"
	StrengthStrongBuy    SignalStrength = "STRONG_BUY"
	StrengthModerate     SignalStrength = "MODERATE"
	StrengthWeak         SignalStrength = "WEAK"
	StrengthNone         SignalStrength = "NONE"
)

// Downgrade returns the next weaker strength.
func (s SignalStrength) Downgrade() SignalStrength {
	switch s {
	case StrengthScreamingBuy:
		return StrengthStrongBuy
	case StrengthStrongBuy:
		return StrengthModerate
	case StrengthModerate:
		return StrengthWeak
	default:
		return StrengthNone
	}
}

// Signal is an observed opportunity. The observation fields are immutable
// once written; simulation and outcome fields are filled in later by the
// reconciliation step.
type Signal struct {
	ID         int64
	Timestamp  time.Time
	Wallet     string
	Token      string
	Price      float64
	AmountUSD  float64
	SignalType string
	Confidence float64

	// Simulation results, set after the honeypot check.
	SimulationPassed *bool
	SimulationTax    *float64
	SimulationReason string

	// Outcome tracking, set by reconciliation.
	Price1H       *float64
	Price24H      *float64
	Outcome       Outcome
	PnL           *float64
	LossMagnitude LossMagnitude
	Notes         string
}

// WalletSignal is the trust engine's read of a wallet at signal time.
type WalletSignal struct {
	Wallet      string
	Tier        Tier
	Confidence  float64 // stored confidence × decay factor
	Strength    SignalStrength
	Mother      string      // funding-graph mother, empty if none
	MotherTier  Tier        // derived tier of the mother, if any
	Hops        int
	CEXFunded   bool
	DecayFactor float64
	TrustScore  float64
}

// ResolvedOutcome is the analytics projection of a resolved signal,
// written to the outcome timeseries for reporting and backtesting.
type ResolvedOutcome struct {
	SignalID         int64
	Timestamp        time.Time
	Token            string
	Wallet           string
	MotherWallet     string
	Outcome          Outcome
	PnL              float64
	LossMagnitude    LossMagnitude
	SimulationPassed bool
	GraphBoosted     bool
}
