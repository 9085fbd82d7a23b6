// Package feedback tracks realized performance and turns it into an
// allocation multiplier: the more executed signals turn out to be
// losers, the less capital the strategy is allowed to deploy, down to
// a full disable.
package feedback

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/albarami/Whale-hunter/internal/config"
	"github.com/albarami/Whale-hunter/internal/domain"
)

// Outcome is one resolved, executed trade fed into the tracker.
type Outcome struct {
	TradeID      int64
	Token        string
	PnL          float64
	PnLPct       float64 // fractional return, -0.95 is a 95% loss
	Win          bool
	Timestamp    time.Time
	GraphBoosted bool
	Magnitude    domain.LossMagnitude
	Cluster      string // mother wallet, empty when unclustered
}

// FalsePositiveStats is the executed-but-lost accounting.
type FalsePositiveStats struct {
	TotalSignals    int
	ExecutedSignals int
	Wins            int
	Losses          int
	FalsePositives  int
	FalseNegatives  int

	RugLosses      int
	ModestLosses   int
	MarginalLosses int

	TotalGainUSD    float64
	TotalLossUSD    float64
	RugLossUSD      float64
	ModestLossUSD   float64
	MarginalLossUSD float64
}

// WinRate returns wins over resolved executions.
func (s *FalsePositiveStats) WinRate() float64 {
	total := s.Wins + s.Losses
	if total == 0 {
		return 0
	}
	return float64(s.Wins) / float64(total)
}

// FalsePositiveRate returns executed losers over executed signals.
func (s *FalsePositiveStats) FalsePositiveRate() float64 {
	if s.ExecutedSignals == 0 {
		return 0
	}
	return float64(s.FalsePositives) / float64(s.ExecutedSignals)
}

// NetPnL returns gains minus losses.
func (s *FalsePositiveStats) NetPnL() float64 {
	return s.TotalGainUSD - s.TotalLossUSD
}

// WeightedFalsePositiveCost weights losses by severity: rugs 3x,
// modest 1.5x, marginal 1x.
func (s *FalsePositiveStats) WeightedFalsePositiveCost() float64 {
	return s.RugLossUSD*3.0 + s.ModestLossUSD*1.5 + s.MarginalLossUSD*1.0
}

type clusterStats struct {
	signals    int
	wins       int
	losses     int
	totalPnL   float64
	lastSignal time.Time
}

func (c *clusterStats) winRate() float64 {
	total := c.wins + c.losses
	if total == 0 {
		return 0
	}
	return float64(c.wins) / float64(total)
}

// Tracker accumulates outcomes and derives the allocation multiplier.
type Tracker struct {
	cfg config.FeedbackConfig
	log *slog.Logger

	mu         sync.Mutex
	stats      FalsePositiveStats
	outcomes   []Outcome
	clusters   map[string]*clusterStats
	multiplier float64
}

// NewTracker creates a tracker at full allocation.
func NewTracker(cfg config.FeedbackConfig, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		cfg:        cfg,
		log:        log,
		clusters:   make(map[string]*clusterStats),
		multiplier: 1.0,
	}
}

// RecordExecuted records a resolved executed trade and re-derives the
// allocation multiplier.
func (t *Tracker) RecordExecuted(o Outcome) {
	if !o.Win && o.Magnitude == "" {
		o.Magnitude = domain.ClassifyLoss(math.Abs(o.PnLPct) * 100)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.outcomes = append(t.outcomes, o)
	t.stats.TotalSignals++
	t.stats.ExecutedSignals++
	if o.Win {
		t.stats.Wins++
		t.stats.TotalGainUSD += o.PnL
	} else {
		t.stats.Losses++
		t.stats.FalsePositives++
		loss := math.Abs(o.PnL)
		t.stats.TotalLossUSD += loss
		switch o.Magnitude {
		case domain.LossRug:
			t.stats.RugLosses++
			t.stats.RugLossUSD += loss
		case domain.LossModest:
			t.stats.ModestLosses++
			t.stats.ModestLossUSD += loss
		default:
			t.stats.MarginalLosses++
			t.stats.MarginalLossUSD += loss
		}
	}

	if o.Cluster != "" {
		c, ok := t.clusters[o.Cluster]
		if !ok {
			c = &clusterStats{}
			t.clusters[o.Cluster] = c
		}
		c.signals++
		c.totalPnL += o.PnL
		c.lastSignal = o.Timestamp
		if o.Win {
			c.wins++
		} else {
			c.losses++
		}
	}

	t.adjustAllocationLocked()
}

// RecordRejected records what happened to a signal that was never
// executed, for false-negative accounting.
func (t *Tracker) RecordRejected(wouldHaveWon bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.TotalSignals++
	if wouldHaveWon {
		t.stats.FalseNegatives++
	}
}

func (t *Tracker) adjustAllocationLocked() {
	rate := t.stats.FalsePositiveRate()
	old := t.multiplier

	switch {
	case rate >= t.cfg.DisableFPRate:
		t.multiplier = 0
		t.log.Warn("strategy disabled by false-positive rate", "fp_rate", rate)
	case rate >= t.cfg.ReduceFPRate:
		reduction := (rate - t.cfg.WarnFPRate) / (t.cfg.DisableFPRate - t.cfg.WarnFPRate)
		t.multiplier = math.Max(0.5, 1.0-reduction)
		t.log.Warn("allocation reduced", "fp_rate", rate, "multiplier", t.multiplier)
	case rate >= t.cfg.WarnFPRate:
		t.multiplier = 1.0
		t.log.Warn("false-positive rate approaching reduction threshold", "fp_rate", rate)
	default:
		t.multiplier = 1.0
	}

	if old != t.multiplier {
		t.log.Info("allocation multiplier changed", "from", old, "to", t.multiplier)
	}
}

// AllocationMultiplier returns the current multiplier in [0,1].
func (t *Tracker) AllocationMultiplier() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.multiplier
}

// AdjustedPosition scales a sized position by the multiplier.
func (t *Tracker) AdjustedPosition(baseUSD float64) float64 {
	return baseUSD * t.AllocationMultiplier()
}

// Stats returns a copy of the false-positive accounting.
func (t *Tracker) Stats() FalsePositiveStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// WinRateByType splits the win rate between graph-boosted and plain
// executions.
func (t *Tracker) WinRateByType() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var boostedWins, boosted, plainWins, plain int
	for _, o := range t.outcomes {
		if o.GraphBoosted {
			boosted++
			if o.Win {
				boostedWins++
			}
		} else {
			plain++
			if o.Win {
				plainWins++
			}
		}
	}
	ratio := func(wins, total int) float64 {
		if total == 0 {
			return 0
		}
		return float64(wins) / float64(total)
	}
	return map[string]float64{
		"overall":       t.stats.WinRate(),
		"graph_boosted": ratio(boostedWins, boosted),
		"baseline":      ratio(plainWins, plain),
	}
}

// ClusterWinRates returns win rates for every tracked cluster.
func (t *Tracker) ClusterWinRates() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]float64, len(t.clusters))
	for id, c := range t.clusters {
		out[id] = c.winRate()
	}
	return out
}

// CollapsingClusters returns clusters with enough signals whose win
// rate fell below threshold, sorted for stable output.
func (t *Tracker) CollapsingClusters(threshold float64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for id, c := range t.clusters {
		if c.signals >= t.cfg.MinClusterSignals && c.winRate() < threshold {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// ROIReport summarizes realized returns over an optional window.
type ROIReport struct {
	ROIPct       float64
	TotalPnL     float64
	TotalTrades  int
	AvgWinUSD    float64
	AvgLossUSD   float64
	ProfitFactor float64 // +Inf when no losses
}

// ROI computes return metrics against the initial capital. A zero
// since considers the full history.
func (t *Tracker) ROI(initialCapital float64, since time.Time) ROIReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	var rep ROIReport
	var gains, losses float64
	var winCount, lossCount int
	for _, o := range t.outcomes {
		if !since.IsZero() && o.Timestamp.Before(since) {
			continue
		}
		rep.TotalTrades++
		rep.TotalPnL += o.PnL
		if o.Win {
			gains += o.PnL
			winCount++
		} else {
			losses += math.Abs(o.PnL)
			lossCount++
		}
	}
	if rep.TotalTrades == 0 {
		return rep
	}

	if initialCapital > 0 {
		rep.ROIPct = rep.TotalPnL / initialCapital * 100
	}
	if winCount > 0 {
		rep.AvgWinUSD = gains / float64(winCount)
	}
	if lossCount > 0 {
		rep.AvgLossUSD = losses / float64(lossCount)
	}
	if losses > 0 {
		rep.ProfitFactor = gains / losses
	} else {
		rep.ProfitFactor = math.Inf(1)
	}
	return rep
}

// DailySummary aggregates the outcomes of one UTC day.
type DailySummary struct {
	Date    string
	Trades  int
	Wins    int
	Losses  int
	PnL     float64
	WinRate float64
}

// Daily returns the summary for the UTC day containing at.
func (t *Tracker) Daily(at time.Time) DailySummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	day := at.UTC().Format("2006-01-02")
	sum := DailySummary{Date: day}
	for _, o := range t.outcomes {
		if o.Timestamp.UTC().Format("2006-01-02") != day {
			continue
		}
		sum.Trades++
		sum.PnL += o.PnL
		if o.Win {
			sum.Wins++
		} else {
			sum.Losses++
		}
	}
	if sum.Trades > 0 {
		sum.WinRate = float64(sum.Wins) / float64(sum.Trades)
	}
	return sum
}
