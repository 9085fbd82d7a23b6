package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// FundingStore is an in-memory implementation of storage.FundingStore.
// Mother detection joins against a WalletStore snapshot supplied at
// construction.
type FundingStore struct {
	mu      sync.RWMutex
	edges   []*domain.FundingEdge
	nextID  int64
	keys    map[string]struct{} // funder|funded|tx_ref uniqueness
	wallets *WalletStore
}

// NewFundingStore creates a new in-memory funding store. wallets may
// be nil if mother queries are not needed.
func NewFundingStore(wallets *WalletStore) *FundingStore {
	return &FundingStore{
		nextID:  1,
		keys:    make(map[string]struct{}),
		wallets: wallets,
	}
}

func edgeKey(funder, funded, txRef string) string {
	return funder + "|" + funded + "|" + txRef
}

// AddEdge records one funding transfer.
func (s *FundingStore) AddEdge(_ context.Context, e *domain.FundingEdge) error {
	if e == nil || e.Funder == "" || e.Funded == "" || e.Funder == e.Funded {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey(e.Funder, e.Funded, e.TxRef)
	if _, exists := s.keys[key]; exists {
		return storage.ErrDuplicateKey
	}

	edgeCopy := *e
	if edgeCopy.EdgeConfidence == 0 {
		edgeCopy.EdgeConfidence = 1.0
	}
	edgeCopy.ID = s.nextID
	s.nextID++
	s.edges = append(s.edges, &edgeCopy)
	s.keys[key] = struct{}{}
	e.ID = edgeCopy.ID
	e.EdgeConfidence = edgeCopy.EdgeConfidence
	return nil
}

// Funders returns all edges into the given wallet, oldest first.
func (s *FundingStore) Funders(_ context.Context, funded string) ([]*domain.FundingEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FundingEdge
	for _, e := range s.edges {
		if e.Funded == funded {
			edgeCopy := *e
			result = append(result, &edgeCopy)
		}
	}
	sortEdges(result)
	return result, nil
}

// FundedBy returns all edges out of the given funder, oldest first.
func (s *FundingStore) FundedBy(_ context.Context, funder string) ([]*domain.FundingEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FundingEdge
	for _, e := range s.edges {
		if e.Funder == funder {
			edgeCopy := *e
			result = append(result, &edgeCopy)
		}
	}
	sortEdges(result)
	return result, nil
}

// MotherWallets returns funders with at least minWinners funded
// winning children, excluding CEX-funded children and edges at or
// below minEdgeConfidence. Strongest mothers first: winner count,
// then average child confidence.
func (s *FundingStore) MotherWallets(_ context.Context, minWinners int, minEdgeConfidence float64) ([]*domain.MotherWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mothers := s.motherWalletsLocked(minWinners, minEdgeConfidence, nil)
	sort.Slice(mothers, func(i, j int) bool {
		if mothers[i].FundedWinnerCount != mothers[j].FundedWinnerCount {
			return mothers[i].FundedWinnerCount > mothers[j].FundedWinnerCount
		}
		if mothers[i].AvgConfidence != mothers[j].AvgConfidence {
			return mothers[i].AvgConfidence > mothers[j].AvgConfidence
		}
		return mothers[i].Address < mothers[j].Address
	})
	return mothers, nil
}

// motherWalletsLocked aggregates qualifying children per funder
// against the wallet store. A child counts only when it has a win and
// is not CEX-funded; its funding edge must clear minEdgeConfidence.
// cutoff, when non-nil, requires the funder's threshold-crossing win
// to be after it.
func (s *FundingStore) motherWalletsLocked(minWinners int, minEdgeConfidence float64, cutoff *time.Time) []*domain.MotherWallet {
	children := make(map[string]map[string]struct{})
	for _, e := range s.edges {
		if e.EdgeConfidence <= minEdgeConfidence {
			continue
		}
		set, ok := children[e.Funder]
		if !ok {
			set = make(map[string]struct{})
			children[e.Funder] = set
		}
		set[e.Funded] = struct{}{}
	}

	var result []*domain.MotherWallet
	for funder, set := range children {
		m := &domain.MotherWallet{Address: funder}
		var confSum float64
		var wins []time.Time
		for child := range set {
			if s.wallets == nil {
				continue
			}
			w, err := s.wallets.Get(context.Background(), child)
			if err != nil || w.WinCount == 0 || w.CEXFunded {
				continue
			}
			m.Children = append(m.Children, child)
			m.FundedWinnerCount++
			m.ChildrenPnL += w.TotalPnL
			confSum += w.Confidence
			if w.LastWin != nil {
				wins = append(wins, *w.LastWin)
				if m.LastWin == nil || w.LastWin.After(*m.LastWin) {
					m.LastWin = w.LastWin
				}
			}
		}
		if m.FundedWinnerCount < minWinners {
			continue
		}
		if cutoff != nil {
			// The funder counts as new when its threshold-crossing win
			// happened after the cutoff.
			sort.Slice(wins, func(i, j int) bool { return wins[i].Before(wins[j]) })
			if len(wins) < minWinners || !wins[minWinners-1].After(*cutoff) {
				continue
			}
		}
		m.AvgConfidence = confSum / float64(m.FundedWinnerCount)
		sort.Strings(m.Children)
		result = append(result, m)
	}
	return result
}

// NewMotherCount counts funders that first crossed the mother
// threshold after since.
func (s *FundingStore) NewMotherCount(_ context.Context, since time.Time, minWinners int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.motherWalletsLocked(minWinners, 0, &since)), nil
}

// TraceFunders walks the funding graph upward from funded, one hop at
// a time. Funders already reached at a nearer hop are not expanded
// again, so a cycle cannot loop the walk.
func (s *FundingStore) TraceFunders(_ context.Context, funded string, maxHops int) ([][]*domain.FundingEdge, error) {
	if funded == "" || maxHops <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	visited := map[string]struct{}{funded: {}}
	frontier := []string{funded}
	var levels [][]*domain.FundingEdge

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		inFrontier := make(map[string]struct{}, len(frontier))
		for _, a := range frontier {
			inFrontier[a] = struct{}{}
		}

		var level []*domain.FundingEdge
		var next []string
		for _, e := range s.edges {
			if _, ok := inFrontier[e.Funded]; !ok {
				continue
			}
			edgeCopy := *e
			level = append(level, &edgeCopy)
			if _, seen := visited[e.Funder]; !seen {
				visited[e.Funder] = struct{}{}
				next = append(next, e.Funder)
			}
		}
		if len(level) == 0 {
			break
		}
		sortEdges(level)
		levels = append(levels, level)
		frontier = next
	}
	return levels, nil
}

// EdgesSince returns edges observed after since, oldest first.
func (s *FundingStore) EdgesSince(_ context.Context, since time.Time) ([]*domain.FundingEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FundingEdge
	for _, e := range s.edges {
		if e.Timestamp.After(since) {
			edgeCopy := *e
			result = append(result, &edgeCopy)
		}
	}
	sortEdges(result)
	return result, nil
}

// ApplyEdgeDecay decays edge confidence since each edge's anchor and
// prunes edges below pruneFloor.
func (s *FundingStore) ApplyEdgeDecay(_ context.Context, now time.Time, halfLife time.Duration, pruneFloor float64) (int, int, error) {
	if halfLife <= 0 {
		return 0, 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	decayed, pruned := 0, 0
	kept := s.edges[:0]
	for _, e := range s.edges {
		anchor := e.Timestamp
		if e.DecayedAt != nil && e.DecayedAt.After(anchor) {
			anchor = *e.DecayedAt
		}
		if elapsed := now.Sub(anchor); elapsed > 0 {
			factor := math.Pow(0.5, elapsed.Hours()/halfLife.Hours())
			e.EdgeConfidence *= factor
			decayedAt := now
			e.DecayedAt = &decayedAt
			decayed++
		}
		if e.EdgeConfidence < pruneFloor {
			delete(s.keys, edgeKey(e.Funder, e.Funded, e.TxRef))
			pruned++
			continue
		}
		kept = append(kept, e)
	}
	s.edges = kept
	return decayed, pruned, nil
}

func sortEdges(edges []*domain.FundingEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Timestamp.Equal(edges[j].Timestamp) {
			return edges[i].ID < edges[j].ID
		}
		return edges[i].Timestamp.Before(edges[j].Timestamp)
	})
}

// Verify interface compliance at compile time.
var _ storage.FundingStore = (*FundingStore)(nil)
