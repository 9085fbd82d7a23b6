package trust

import (
	"context"
	"errors"
	"fmt"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// insiderMaxHops bounds how far up the funding graph the insider
// lookup walks. Two hops covers mother -> middleman -> wallet.
const insiderMaxHops = 2

// InsiderConnection walks the funding graph up to two hops looking for
// an S- or A-tier funder behind the given address. The nearer hop
// wins; within a hop the funder with the most wins wins. Each extra
// hop discounts the funder's confidence and downgrades the signal
// strength one notch. Returns nil when no qualifying funder exists.
func (e *Engine) InsiderConnection(ctx context.Context, address string) (*domain.InsiderLink, error) {
	levels, err := e.funding.TraceFunders(ctx, address, insiderMaxHops)
	if err != nil {
		return nil, fmt.Errorf("insider lookup for %s: %w", address, err)
	}

	for depth, edges := range levels {
		var best *domain.InsiderLink
		for _, edge := range edges {
			link, err := e.insiderLink(ctx, address, edge.Funder, depth+1)
			if err != nil {
				return nil, err
			}
			if link == nil {
				continue
			}
			if best == nil || link.MotherWins > best.MotherWins {
				best = link
			}
		}
		if best != nil {
			return best, nil
		}
	}
	return nil, nil
}

// insiderLink evaluates one funder as the insider source for a wallet.
// The funder qualifies on its own record: S or A tier, confidence
// above the insider floor, and not itself CEX-funded.
func (e *Engine) insiderLink(ctx context.Context, wallet, funder string, hops int) (*domain.InsiderLink, error) {
	if e.cex != nil && e.cex.IsCEX(funder) {
		return nil, nil
	}

	w, err := e.wallets.Get(ctx, funder)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("insider funder %s: %w", funder, err)
	}
	if w.Tier != domain.TierS && w.Tier != domain.TierA {
		return nil, nil
	}
	if w.Confidence <= e.cfg.InsiderMinConfidence {
		return nil, nil
	}
	if w.CEXFunded {
		return nil, nil
	}

	confidence := w.Confidence
	strength := StrengthForTier(w.Tier)
	for h := 1; h < hops; h++ {
		confidence *= e.cfg.HopDecay
		strength = strength.Downgrade()
	}

	return &domain.InsiderLink{
		Wallet:       wallet,
		MotherWallet: funder,
		MotherTier:   w.Tier,
		MotherWins:   w.WinCount,
		Confidence:   confidence,
		Strength:     strength,
		Hops:         hops,
	}, nil
}
