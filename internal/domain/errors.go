package domain

import "errors"

// Invariant violations. These abort the offending operation; callers must
// not clamp and continue.
var (
	// ErrConfidenceRange is returned when an update would leave a
	// confidence value outside [0,1].
	ErrConfidenceRange = errors.New("confidence outside [0,1]")

	// ErrTradeNumber is returned when a trade number would be
	// non-positive or out of sequence.
	ErrTradeNumber = errors.New("invalid trade number")

	// ErrInvalidTier is returned for tier labels outside the known set.
	ErrInvalidTier = errors.New("invalid wallet tier")
)
