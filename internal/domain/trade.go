package domain

import "time"

// TradeStatus is the lifecycle state of an executed trade.
type TradeStatus string

const (
	TradeOpen      TradeStatus = "OPEN"
	TradeClosed    TradeStatus = "CLOSED"
	TradeCancelled TradeStatus = "CANCELLED"
)

// TradeDirection is the side of an order.
type TradeDirection string

const (
	DirectionBuy  TradeDirection = "BUY"
	DirectionSell TradeDirection = "SELL"
)

// Trade is an executed order. TradeNumber is a strictly increasing
// gap-free sequence assigned at insert; it drives the first-50 rules.
type Trade struct {
	ID             int64
	Timestamp      time.Time
	SignalID       *int64
	Token          string
	Direction      TradeDirection
	AmountUSD      float64
	EntryPrice     float64
	ExitPrice      *float64
	PnL            *float64
	ClosedAt       *time.Time
	Status         TradeStatus
	WalletUsed     string
	TradeNumber    int64
	GraphBoosted   bool
	EntropyApplied bool
	Notes          string
}

// Buy is a raw token purchase observation used for early-buyer analysis.
type Buy struct {
	ID        int64
	Wallet    string
	Token     string
	Amount    float64
	Price     float64
	Timestamp time.Time
	PnL       *float64
	IsWinner  *bool
}

// EarlyBuyer joins a buy with the buyer's reputation at query time.
type EarlyBuyer struct {
	Buy
	Tier       Tier
	Confidence float64
	CEXFunded  bool
}
