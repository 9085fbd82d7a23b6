// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/albarami/Whale-hunter/internal/domain"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Signal metrics
	SignalsReceived  prometheus.Counter
	SignalsDecided   *prometheus.CounterVec
	VetoesFired      *prometheus.CounterVec
	SignalEvalTime   prometheus.Histogram
	PendingSignals   prometheus.Gauge

	// Honeypot metrics
	ProbesRun        *prometheus.CounterVec
	ProbeLatency     prometheus.Histogram
	SimulatorBlocked prometheus.Counter
	BlockerAccuracy  prometheus.Gauge

	// Trust/graph metrics
	TrackedWallets   *prometheus.GaugeVec
	MotherWallets    prometheus.Gauge
	FundingEdges     prometheus.Gauge
	DecayRunDuration prometheus.Histogram
	WalletsDecayed   prometheus.Counter
	EdgesPruned      prometheus.Counter

	// Risk metrics
	RiskMode            *prometheus.GaugeVec
	CurrentCapital      prometheus.Gauge
	PeakCapital         prometheus.Gauge
	DrawdownPct         prometheus.Gauge
	KillSwitchEvents    *prometheus.CounterVec
	AllocationMultiplier prometheus.Gauge

	// Execution metrics
	TradesExecuted  prometheus.Counter
	TradesSkipped   prometheus.Counter
	RealizedPnL     prometheus.Counter
	RealizedLoss    prometheus.Counter
	PositionSizeUSD prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all metrics registered on
// the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers the metrics on the given registerer. Tests
// pass a fresh registry so repeated construction cannot collide.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "whale_hunter"
	}
	auto := promauto.With(reg)

	return &Metrics{
		SignalsReceived: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "received_total",
			Help:      "Total number of wallet signals received",
		}),
		SignalsDecided: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "decided_total",
			Help:      "Total number of signal decisions by action",
		}, []string{"action"}),
		VetoesFired: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "vetoes_total",
			Help:      "Total number of vetoes fired by reason",
		}, []string{"reason"}),
		SignalEvalTime: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "evaluation_seconds",
			Help:      "End-to-end signal evaluation time in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		PendingSignals: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "pending",
			Help:      "Number of signals awaiting outcome resolution",
		}),

		ProbesRun: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "honeypot",
			Name:      "probes_total",
			Help:      "Total number of honeypot probes by result",
		}, []string{"result"}),
		ProbeLatency: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "honeypot",
			Name:      "probe_latency_seconds",
			Help:      "Honeypot simulation round-trip latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		SimulatorBlocked: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "honeypot",
			Name:      "blocked_total",
			Help:      "Total number of tokens blocked by the simulator",
		}),
		BlockerAccuracy: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "honeypot",
			Name:      "blocker_accuracy",
			Help:      "Raw blocker accuracy over resolved signals",
		}),

		TrackedWallets: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "tracked_wallets",
			Help:      "Number of tracked wallets by tier",
		}, []string{"tier"}),
		MotherWallets: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "mother_wallets",
			Help:      "Number of funders currently qualifying as mothers",
		}),
		FundingEdges: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "funding_edges",
			Help:      "Number of live funding edges",
		}),
		DecayRunDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "decay_run_seconds",
			Help:      "Duration of the periodic decay pass in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		WalletsDecayed: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "wallets_decayed_total",
			Help:      "Total wallets touched by decay passes",
		}),
		EdgesPruned: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "edges_pruned_total",
			Help:      "Total funding edges pruned below the confidence floor",
		}),

		RiskMode: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "mode",
			Help:      "Active risk mode (1 for the active mode, 0 otherwise)",
		}, []string{"mode"}),
		CurrentCapital: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "capital_usd",
			Help:      "Current capital mark in USD",
		}),
		PeakCapital: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "peak_capital_usd",
			Help:      "Peak capital mark in USD",
		}),
		DrawdownPct: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "drawdown_pct",
			Help:      "Current drawdown from peak in percent",
		}),
		KillSwitchEvents: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "kill_switch_events_total",
			Help:      "Total kill-switch transitions by trigger",
		}, []string{"trigger"}),
		AllocationMultiplier: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "allocation_multiplier",
			Help:      "Feedback-driven allocation multiplier in [0,1]",
		}),

		TradesExecuted: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trades_total",
			Help:      "Total trades executed",
		}),
		TradesSkipped: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "entropy_skips_total",
			Help:      "Approved trades forfeited by the entropy skip",
		}),
		RealizedPnL: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "realized_gain_usd_total",
			Help:      "Cumulative realized gains in USD",
		}),
		RealizedLoss: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "realized_loss_usd_total",
			Help:      "Cumulative realized losses in USD",
		}),
		PositionSizeUSD: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "position_size_usd",
			Help:      "Executed position sizes in USD",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500},
		}),

		DBQueryDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetRiskMode flips the mode gauge so exactly one mode reads 1.
func (m *Metrics) SetRiskMode(mode domain.RiskMode) {
	for _, candidate := range []domain.RiskMode{
		domain.ModeNormal,
		domain.ModeCapitalPreservation,
		domain.ModeEmergencyStop,
		domain.ModeObservation,
	} {
		v := 0.0
		if candidate == mode {
			v = 1.0
		}
		m.RiskMode.WithLabelValues(string(candidate)).Set(v)
	}
}

// RecordDecision records one pipeline decision.
func (m *Metrics) RecordDecision(action, vetoReason string, seconds float64) {
	m.SignalsDecided.WithLabelValues(action).Inc()
	if vetoReason != "" {
		m.VetoesFired.WithLabelValues(vetoReason).Inc()
	}
	m.SignalEvalTime.Observe(seconds)
}

// RecordOutcome feeds a realized pnl into the gain/loss counters.
func (m *Metrics) RecordOutcome(pnl float64) {
	if pnl >= 0 {
		m.RealizedPnL.Add(pnl)
	} else {
		m.RealizedLoss.Add(-pnl)
	}
}
