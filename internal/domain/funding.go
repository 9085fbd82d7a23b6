package domain

import "time"

// FundingEdge is a directed funder→funded transfer observation.
// Uniqueness key is (funder, funded, tx_ref).
type FundingEdge struct {
	ID             int64
	Funder         string
	Funded         string
	Amount         float64
	Timestamp      time.Time
	TxRef          string
	EdgeConfidence float64 // [0,1], decays with a 60-day half-life
	DecayedAt      *time.Time
}

// MotherWallet is a derived cluster view: a funder whose funded children
// produced winning trades. Never stored; recomputed on demand.
type MotherWallet struct {
	Address           string
	FundedWinnerCount int
	Children          []string
	LastWin           *time.Time
	AvgConfidence     float64
	ChildrenPnL       float64
}

// InsiderLink describes a funding-graph connection from a wallet to a
// high-tier funder within two hops.
type InsiderLink struct {
	Wallet       string
	MotherWallet string
	MotherTier   Tier
	MotherWins   int
	Confidence   float64 // mother confidence, 0.8x decayed at 2 hops
	Strength     SignalStrength
	Hops         int
}

// FundingCluster is a group of wallets funded by one funder inside a
// narrow time window, a coordination indicator.
type FundingCluster struct {
	Funder  string
	Wallets []string
	Window  time.Time // start of the detection window
}
