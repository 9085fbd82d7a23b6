package domain

import "time"

// MarketCapClass buckets a token by market capitalization. Each class has
// its own signal-freshness window.
type MarketCapClass string

const (
	ClassLargeCap MarketCapClass = "large_cap"
	ClassMidCap   MarketCapClass = "mid_cap"
	ClassMemeCoin MarketCapClass = "meme_coin"
)

// TokenInfo is the metadata snapshot consumed by the veto pipeline.
type TokenInfo struct {
	Address      string
	Symbol       string
	CreatedAt    time.Time
	PriceUSD     float64
	MarketCapUSD float64
	LiquidityUSD float64
	HolderCount  int
	Volume24H    float64
}

// Age returns the token age at now.
func (t *TokenInfo) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// LedgerStats is the cross-table summary used by reporting and the
// Go/No-Go checklist.
type LedgerStats struct {
	TotalWallets     int64
	WalletsByTier    map[Tier]int64
	TotalSignals     int64
	SignalsByOutcome map[Outcome]int64
	TotalTrades      int64
	TotalPnL         float64
	MotherCount      int64
}
