package trust

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// BlackBookEntry is one ranked mother wallet in the monitoring list.
type BlackBookEntry struct {
	Rank              int
	Address           string
	FundedWinnerCount int
	Children          []string
	LastWin           *time.Time
	Confidence        float64
	ChildrenPnL       float64

	// TrustScore is the children's average confidence, halved when the
	// cluster's net PnL is not positive: a mother whose children lose
	// money is still worth watching, just not trusting.
	TrustScore float64
}

// BlackBook returns the mother wallets ranked by trust score, best
// first. This is the monitoring priority list for new funding edges.
func (e *Engine) BlackBook(ctx context.Context) ([]*BlackBookEntry, error) {
	mothers, err := e.funding.MotherWallets(ctx, e.cfg.MinFundedWinners, e.cfg.EdgeConfidenceFloor)
	if err != nil {
		return nil, fmt.Errorf("black book: %w", err)
	}

	entries := make([]*BlackBookEntry, 0, len(mothers))
	for _, m := range mothers {
		score := m.AvgConfidence
		if m.ChildrenPnL <= 0 {
			score *= 0.5
		}
		entries = append(entries, &BlackBookEntry{
			Address:           m.Address,
			FundedWinnerCount: m.FundedWinnerCount,
			Children:          m.Children,
			LastWin:           m.LastWin,
			Confidence:        m.AvgConfidence,
			ChildrenPnL:       m.ChildrenPnL,
			TrustScore:        score,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TrustScore != entries[j].TrustScore {
			return entries[i].TrustScore > entries[j].TrustScore
		}
		return entries[i].Address < entries[j].Address
	})
	for i, entry := range entries {
		entry.Rank = i + 1
	}
	return entries, nil
}
