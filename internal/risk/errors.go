package risk

import "errors"

var (
	// ErrManualApprovalRequired is returned when a protective mode can
	// only be left through an explicit operator action.
	ErrManualApprovalRequired = errors.New("risk: manual approval required")

	// ErrNotInPreservation is returned when a preservation exit is
	// requested outside CAPITAL_PRESERVATION.
	ErrNotInPreservation = errors.New("risk: not in capital preservation")

	// ErrNotStopped is returned when a manual reset is requested while
	// the engine is not in EMERGENCY_STOP.
	ErrNotStopped = errors.New("risk: not in emergency stop")
)
