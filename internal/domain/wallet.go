package domain

import "time"

// Tier classifies a wallet by demonstrated performance.
// Ordering matters: S is the highest, C the default.
type Tier string

const (
	TierS Tier = "S_TIER"
	TierA Tier = "A_TIER"
	TierB Tier = "B_TIER"
	TierC Tier = "C_TIER"
)

// tierRank maps tiers to a comparable rank. Higher is better.
var tierRank = map[Tier]int{
	TierC: 0,
	TierB: 1,
	TierA: 2,
	TierS: 3,
}

// Better reports whether t outranks other.
func (t Tier) Better(other Tier) bool {
	return tierRank[t] > tierRank[other]
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// Wallet is a tracked address with its reputation state.
// Created on first reference, mutated on trade outcomes and decay,
// never deleted.
type Wallet struct {
	Address    string
	Tier       Tier
	FirstSeen  time.Time
	TotalPnL   float64
	WinCount   int
	LossCount  int
	LastWin    *time.Time // nil until the first win
	Confidence float64    // [0,1]
	TrustScore float64
	CEXFunded  bool
	CEXSource  string // exchange name when CEXFunded
	DecayedAt  *time.Time // anchor of the last persisted decay pass
}

// TotalTrades returns the number of resolved outcomes.
func (w *Wallet) TotalTrades() int {
	return w.WinCount + w.LossCount
}

// WinRate returns wins over resolved outcomes, 0 when none.
func (w *Wallet) WinRate() float64 {
	total := w.TotalTrades()
	if total == 0 {
		return 0
	}
	return float64(w.WinCount) / float64(total)
}

// DecayReference returns the timestamp trust decay is measured from:
// the last win, or first-seen when the wallet has never won.
func (w *Wallet) DecayReference() time.Time {
	if w.LastWin != nil {
		return *w.LastWin
	}
	return w.FirstSeen
}

// CheckConfidence returns ErrConfidenceRange if confidence left [0,1].
func (w *Wallet) CheckConfidence() error {
	if w.Confidence < 0 || w.Confidence > 1 {
		return ErrConfidenceRange
	}
	return nil
}
