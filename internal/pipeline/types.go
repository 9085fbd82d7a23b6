// Package pipeline runs every incoming signal through an ordered veto
// chain. Any single veto rejects; only a signal that clears all of
// them reaches execution. The full checklist is kept on the result so
// a rejection can always be explained after the fact.
package pipeline

import (
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/honeypot"
)

// Decision is the pipeline's terminal ruling on a signal.
type Decision string

const (
	DecisionExecute Decision = "EXECUTE"
	DecisionReject  Decision = "REJECT"
)

// VetoResult records pass/fail for one veto. Pass=false vetoed the
// signal.
type VetoResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Input bundles everything the pipeline needs to rule on one signal.
type Input struct {
	Signal *domain.Signal
	Wallet *domain.WalletSignal
	Token  *domain.TokenInfo

	// Honeypot is the simulator verdict for the token. Nil means the
	// probe was not run, which vetoes: unprobed tokens never trade.
	Honeypot *honeypot.Verdict

	// RiskMode is the operating mode at evaluation time. A halted mode
	// (EMERGENCY_STOP or OBSERVATION) vetoes before anything else.
	RiskMode domain.RiskMode

	// RecentWalletSignals is how many signals this wallet produced in
	// the last hour, including this one.
	RecentWalletSignals int

	// PacingViolation names the violated first-50 pacing rule, empty
	// when pacing allows the trade.
	PacingViolation string

	// MinConfidence is the execution floor after any risk-mode
	// tightening.
	MinConfidence float64

	// SuppressGraphBoost disables the funding-graph boost, used during
	// the proving period.
	SuppressGraphBoost bool

	Now time.Time
}

// Evaluation is the pipeline output: the ruling, the confidence that
// survived boosting and decay, and the complete veto checklist.
type Evaluation struct {
	Decision        Decision
	FinalConfidence float64
	Strength        domain.SignalStrength
	GraphBoosted    bool
	Vetoes          []VetoResult

	// RejectReason names the first failed veto, empty on EXECUTE.
	RejectReason string
}
