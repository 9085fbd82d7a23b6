package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
)

// PriceService returns token prices and the metadata snapshot the veto
// pipeline evaluates against.
type PriceService interface {
	TokenInfo(ctx context.Context, token string) (*domain.TokenInfo, error)
	Price(ctx context.Context, token string) (float64, error)
}

// HTTPPriceService implements PriceService over JSON-RPC.
type HTTPPriceService struct {
	rpc *RPCClient
}

// NewHTTPPriceService creates a price service client.
func NewHTTPPriceService(endpoint string, opts ...RPCOption) *HTTPPriceService {
	return &HTTPPriceService{rpc: NewRPCClient(endpoint, opts...)}
}

type tokenInfoResult struct {
	Address      string  `json:"address"`
	Symbol       string  `json:"symbol"`
	CreatedAt    int64   `json:"createdAt"` // unix seconds
	PriceUSD     float64 `json:"priceUsd"`
	MarketCapUSD float64 `json:"marketCapUsd"`
	LiquidityUSD float64 `json:"liquidityUsd"`
	HolderCount  int     `json:"holderCount"`
	Volume24H    float64 `json:"volume24h"`
}

// TokenInfo fetches the metadata snapshot for a token. An unknown
// token is an error, never an empty snapshot.
func (s *HTTPPriceService) TokenInfo(ctx context.Context, token string) (*domain.TokenInfo, error) {
	var result tokenInfoResult
	if err := s.rpc.Call(ctx, "getTokenInfo", []interface{}{token}, &result); err != nil {
		return nil, fmt.Errorf("token info %s: %w", token, err)
	}
	if result.Address == "" {
		return nil, fmt.Errorf("token info %s: empty response", token)
	}
	return &domain.TokenInfo{
		Address:      result.Address,
		Symbol:       result.Symbol,
		CreatedAt:    time.Unix(result.CreatedAt, 0).UTC(),
		PriceUSD:     result.PriceUSD,
		MarketCapUSD: result.MarketCapUSD,
		LiquidityUSD: result.LiquidityUSD,
		HolderCount:  result.HolderCount,
		Volume24H:    result.Volume24H,
	}, nil
}

// Price fetches the current USD price of a token.
func (s *HTTPPriceService) Price(ctx context.Context, token string) (float64, error) {
	var result struct {
		PriceUSD float64 `json:"priceUsd"`
	}
	if err := s.rpc.Call(ctx, "getPrice", []interface{}{token}, &result); err != nil {
		return 0, fmt.Errorf("price %s: %w", token, err)
	}
	if result.PriceUSD <= 0 {
		return 0, fmt.Errorf("price %s: non-positive price %f", token, result.PriceUSD)
	}
	return result.PriceUSD, nil
}
