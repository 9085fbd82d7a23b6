package clients

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/albarami/Whale-hunter/internal/honeypot"
)

// SwapSimulator dry-runs a buy-then-sell round trip over JSON-RPC. It
// satisfies honeypot.Simulator.
type SwapSimulator struct {
	rpc *RPCClient
}

var _ honeypot.Simulator = (*SwapSimulator)(nil)

// NewSwapSimulator creates a simulator client.
func NewSwapSimulator(endpoint string, opts ...RPCOption) *SwapSimulator {
	return &SwapSimulator{rpc: NewRPCClient(endpoint, opts...)}
}

type simulateResult struct {
	BuySucceeded  bool    `json:"buySucceeded"`
	SellSucceeded bool    `json:"sellSucceeded"`
	BuyTaxPct     float64 `json:"buyTaxPct"`
	SellTaxPct    float64 `json:"sellTaxPct"`
	Reason        string  `json:"reason"`
}

// SimulateRoundTrip probes a token with a fixed-size buy and sell.
// Each probe carries a fresh id so the backend can dedupe replays.
func (s *SwapSimulator) SimulateRoundTrip(ctx context.Context, token string, amountSOL float64) (*honeypot.SimResult, error) {
	params := []interface{}{
		map[string]interface{}{
			"probeId":   uuid.NewString(),
			"token":     token,
			"amountSol": amountSOL,
		},
	}

	var result simulateResult
	if err := s.rpc.Call(ctx, "simulateRoundTrip", params, &result); err != nil {
		return nil, fmt.Errorf("simulate %s: %w", token, err)
	}

	// A failed buy leg is the same class of token as a failed sell.
	if !result.BuySucceeded {
		reason := result.Reason
		if reason == "" {
			reason = "buy leg reverted"
		}
		return &honeypot.SimResult{SellSucceeded: false, EffectiveTaxPct: 100, Reason: reason}, nil
	}
	if !result.SellSucceeded {
		return &honeypot.SimResult{SellSucceeded: false, EffectiveTaxPct: 100, Reason: result.Reason}, nil
	}
	return &honeypot.SimResult{
		SellSucceeded:   true,
		EffectiveTaxPct: result.BuyTaxPct + result.SellTaxPct,
		Reason:          result.Reason,
	}, nil
}
