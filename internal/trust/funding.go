package trust

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// RecordFunding stores a funding transfer and updates provenance. A
// transfer from a known exchange wallet marks the funded wallet as
// CEX-funded instead of adding a graph edge; exchange hops carry no
// insider information.
func (e *Engine) RecordFunding(ctx context.Context, edge *domain.FundingEdge) error {
	if e.cex != nil && e.cex.IsCEX(edge.Funder) {
		label := e.cex.Label(edge.Funder)
		w := &domain.Wallet{
			Address:    edge.Funded,
			Tier:       domain.TierC,
			FirstSeen:  e.now(),
			Confidence: 0.5,
			CEXFunded:  true,
			CEXSource:  label,
		}
		if err := e.wallets.Upsert(ctx, w); err != nil {
			return fmt.Errorf("mark cex funded %s: %w", edge.Funded, err)
		}
		e.log.Debug("cex funding detected", "wallet", edge.Funded, "exchange", label)
		return nil
	}

	if edge.EdgeConfidence == 0 {
		edge.EdgeConfidence = 1.0
	}
	if err := e.funding.AddEdge(ctx, edge); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil
		}
		return fmt.Errorf("record funding %s -> %s: %w", edge.Funder, edge.Funded, err)
	}
	return nil
}

// DecayReport summarizes one decay pass.
type DecayReport struct {
	WalletsTouched int
	WalletsDemoted int
	EdgesDecayed   int
	EdgesPruned    int
}

// RunDecay applies the persisted half-life pass to wallets and funding
// edges, then re-derives the tier of every tiered wallet so tiers
// follow decayed confidence down. The pass is idempotent at a fixed
// clock; the scheduler may retry it safely.
func (e *Engine) RunDecay(ctx context.Context, now time.Time) (*DecayReport, error) {
	touched, err := e.wallets.ApplyDecay(ctx, now, e.cfg.ConfidenceHalfLife, e.cfg.ConfidenceFloor)
	if err != nil {
		return nil, fmt.Errorf("wallet decay pass: %w", err)
	}

	demoted, err := e.demoteStaleTiers(ctx)
	if err != nil {
		return nil, err
	}

	decayed, pruned, err := e.funding.ApplyEdgeDecay(ctx, now, e.cfg.EdgeHalfLife, e.cfg.EdgePruneFloor)
	if err != nil {
		return nil, fmt.Errorf("edge decay pass: %w", err)
	}

	report := &DecayReport{WalletsTouched: touched, WalletsDemoted: demoted, EdgesDecayed: decayed, EdgesPruned: pruned}
	e.log.Info("decay pass complete",
		"wallets", report.WalletsTouched,
		"demoted", report.WalletsDemoted,
		"edges_decayed", report.EdgesDecayed,
		"edges_pruned", report.EdgesPruned)
	return report, nil
}

// demoteStaleTiers recomputes the tier of every B-or-better wallet
// from its post-decay record. No wallet stays S-tier on confidence it
// no longer holds.
func (e *Engine) demoteStaleTiers(ctx context.Context) (int, error) {
	tiered, err := e.wallets.ListByTier(ctx, domain.TierB)
	if err != nil {
		return 0, fmt.Errorf("list tiered wallets: %w", err)
	}

	demoted := 0
	for _, w := range tiered {
		tier := e.TierFor(w)
		if tier == w.Tier {
			continue
		}
		e.log.Info("wallet tier demoted",
			"wallet", w.Address, "from", w.Tier, "to", tier, "confidence", w.Confidence)
		w.Tier = tier
		w.TrustScore = e.TrustScore(w)
		if err := e.wallets.Save(ctx, w); err != nil {
			return demoted, fmt.Errorf("demote wallet %s: %w", w.Address, err)
		}
		demoted++
	}
	return demoted, nil
}

// Provenance returns the funding edges behind a wallet grouped by hop,
// nearest first. Operator tooling uses it to inspect where a wallet's
// money came from.
func (e *Engine) Provenance(ctx context.Context, address string, maxHops int) ([][]*domain.FundingEdge, error) {
	levels, err := e.funding.TraceFunders(ctx, address, maxHops)
	if err != nil {
		return nil, fmt.Errorf("provenance for %s: %w", address, err)
	}
	return levels, nil
}

// DetectClusters finds groups of wallets funded by one funder inside a
// narrow time window. Coordinated batch funding is a sybil indicator:
// organic funding does not land on five fresh wallets in the same half
// minute.
func (e *Engine) DetectClusters(ctx context.Context, since time.Time) ([]*domain.FundingCluster, error) {
	edges, err := e.funding.EdgesSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("detect clusters: %w", err)
	}

	byFunder := make(map[string][]*domain.FundingEdge)
	for _, edge := range edges {
		byFunder[edge.Funder] = append(byFunder[edge.Funder], edge)
	}

	var clusters []*domain.FundingCluster
	for funder, group := range byFunder {
		if len(group) < e.cfg.ClusterMinWallets {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].Timestamp.Before(group[j].Timestamp)
		})

		// Slide a window over the sorted transfers; the first window
		// reaching the minimum yields the cluster for this funder.
		for start := 0; start+e.cfg.ClusterMinWallets <= len(group); start++ {
			end := start
			wallets := make(map[string]struct{})
			for end < len(group) && group[end].Timestamp.Sub(group[start].Timestamp) <= e.cfg.ClusterWindow {
				wallets[group[end].Funded] = struct{}{}
				end++
			}
			if len(wallets) >= e.cfg.ClusterMinWallets {
				cluster := &domain.FundingCluster{
					Funder: funder,
					Window: group[start].Timestamp,
				}
				for w := range wallets {
					cluster.Wallets = append(cluster.Wallets, w)
				}
				sort.Strings(cluster.Wallets)
				clusters = append(clusters, cluster)
				e.log.Warn("funding cluster detected",
					"funder", funder, "wallets", len(cluster.Wallets),
					"window_start", cluster.Window)
				break
			}
		}
	}

	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Funder < clusters[j].Funder })
	return clusters, nil
}
