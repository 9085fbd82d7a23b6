package domain

import "time"

// RiskMode is the system-wide operating mode.
type RiskMode string

const (
	ModeNormal              RiskMode = "NORMAL"
	ModeCapitalPreservation RiskMode = "CAPITAL_PRESERVATION"
	ModeEmergencyStop       RiskMode = "EMERGENCY_STOP"
	ModeObservation         RiskMode = "OBSERVATION"
)

// Valid reports whether m is a known mode.
func (m RiskMode) Valid() bool {
	switch m {
	case ModeNormal, ModeCapitalPreservation, ModeEmergencyStop, ModeObservation:
		return true
	}
	return false
}

// KillSwitchTrigger identifies what fired a kill-switch transition.
type KillSwitchTrigger string

const (
	TriggerMotherExplosion    KillSwitchTrigger = "MOTHER_EXPLOSION"
	TriggerWinRateCollapse    KillSwitchTrigger = "WIN_RATE_COLLAPSE"
	TriggerClusterCorrelation KillSwitchTrigger = "CLUSTER_CORRELATION"
	TriggerConsecutiveLosses  KillSwitchTrigger = "CONSECUTIVE_LOSSES"
	TriggerHourlyLoss         KillSwitchTrigger = "HOURLY_LOSS"
	TriggerDrawdown           KillSwitchTrigger = "DRAWDOWN"
	TriggerManual             KillSwitchTrigger = "MANUAL"
)

// KillSwitchEvent is an append-only audit record of a risk transition.
type KillSwitchEvent struct {
	ID              string // uuid
	Timestamp       time.Time
	Trigger         KillSwitchTrigger
	Reason          string
	Mode            RiskMode
	ObservationEnd  *time.Time // set for OBSERVATION cool-offs
	Resolved        bool
	ResolutionNotes string
}

// System state keys persisted across restarts.
const (
	StateKeyCurrentCapital = "current_capital"
	StateKeyPeakCapital    = "peak_capital"
	StateKeyRiskMode       = "risk_mode"
	StateKeyLastDecayRun   = "last_decay_run"
)
