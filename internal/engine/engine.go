// Package engine wires the trading core together: every incoming
// signal flows trust lookup → honeypot probe → veto pipeline → risk
// sizing → entropy transform → trade, and resolved outcomes flow back
// into trust, risk and feedback. The engine owns the background loops
// (reconciliation, decay, kill-switch monitoring) and serializes
// ledger writes per wallet.
package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/albarami/Whale-hunter/internal/clients"
	"github.com/albarami/Whale-hunter/internal/config"
	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/entropy"
	"github.com/albarami/Whale-hunter/internal/feedback"
	"github.com/albarami/Whale-hunter/internal/honeypot"
	"github.com/albarami/Whale-hunter/internal/observability"
	"github.com/albarami/Whale-hunter/internal/pipeline"
	"github.com/albarami/Whale-hunter/internal/risk"
	"github.com/albarami/Whale-hunter/internal/storage"
	"github.com/albarami/Whale-hunter/internal/trust"
)

const lockStripes = 64

// addressLocks serializes ledger writes per wallet address. Two
// signals from the same wallet must not race on its cooldowns or
// confidence; signals from different wallets run concurrently.
type addressLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *addressLocks) lock(address string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(address))
	return &l.stripes[h.Sum32()%lockStripes]
}

// Engine is the signal-to-trade orchestrator.
type Engine struct {
	cfg       *config.Config
	signals   storage.SignalStore
	trades    storage.TradeStore
	buys      storage.BuyStore
	outcomes  storage.OutcomeStore
	state     storage.SystemStateStore
	trust     *trust.Engine
	checker   *honeypot.Checker
	evaluator *pipeline.Evaluator
	risk      *risk.Manager
	entropy   *entropy.Layer
	feedback  *feedback.Tracker
	prices    clients.PriceService
	tracer    clients.FundingTracer
	metrics   *observability.Metrics
	log       *slog.Logger
	now       func() time.Time

	reconcileInterval time.Duration
	monitorInterval   time.Duration
	decayInterval     time.Duration

	locks addressLocks
}

// Options collects the engine's collaborators.
type Options struct {
	Config    *config.Config
	Signals   storage.SignalStore
	Trades    storage.TradeStore
	Buys      storage.BuyStore
	Outcomes  storage.OutcomeStore
	State     storage.SystemStateStore
	Trust     *trust.Engine
	Checker   *honeypot.Checker
	Evaluator *pipeline.Evaluator
	Risk      *risk.Manager
	Entropy   *entropy.Layer
	Feedback  *feedback.Tracker
	Prices    clients.PriceService
	Tracer    clients.FundingTracer
	Metrics   *observability.Metrics
	Logger    *slog.Logger

	// Loop cadences, defaulted when zero.
	ReconcileInterval time.Duration
	MonitorInterval   time.Duration
	DecayInterval     time.Duration
}

// New creates an engine.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	reconcile := opts.ReconcileInterval
	if reconcile == 0 {
		reconcile = 10 * time.Minute
	}
	monitor := opts.MonitorInterval
	if monitor == 0 {
		monitor = time.Minute
	}
	decay := opts.DecayInterval
	if decay == 0 {
		decay = 24 * time.Hour
	}
	return &Engine{
		cfg:               opts.Config,
		signals:           opts.Signals,
		trades:            opts.Trades,
		buys:              opts.Buys,
		outcomes:          opts.Outcomes,
		state:             opts.State,
		trust:             opts.Trust,
		checker:           opts.Checker,
		evaluator:         opts.Evaluator,
		risk:              opts.Risk,
		entropy:           opts.Entropy,
		feedback:          opts.Feedback,
		prices:            opts.Prices,
		tracer:            opts.Tracer,
		metrics:           opts.Metrics,
		log:               log,
		now:               time.Now,
		reconcileInterval: reconcile,
		monitorInterval:   monitor,
		decayInterval:     decay,
	}
}

// WithClock overrides the engine's clock. Used in tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Decision is the engine's terminal ruling on one signal.
type Decision struct {
	Signal     *domain.Signal
	Evaluation *pipeline.Evaluation
	Size       risk.SizeResult
	Plan       entropy.Plan

	// Executed means a trade row was written. A signal can clear the
	// pipeline and still not execute: zero sizing, a feedback
	// disable, pacing, or an entropy skip.
	Executed   bool
	Trade      *domain.Trade
	SkipReason string
}

// HandleSignal runs one signal through the full decision flow. The
// signal is persisted before evaluation so every observation is kept,
// vetoed or not.
func (e *Engine) HandleSignal(ctx context.Context, sig *domain.Signal) (*Decision, error) {
	started := e.now()

	if err := domain.ValidateAddress(sig.Wallet); err != nil {
		return nil, fmt.Errorf("signal wallet: %w", err)
	}
	if err := domain.ValidateAddress(sig.Token); err != nil {
		return nil, fmt.Errorf("signal token: %w", err)
	}
	if sig.Timestamp.IsZero() {
		sig.Timestamp = started
	}

	e.metrics.SignalsReceived.Inc()
	e.metrics.PendingSignals.Inc()
	defer e.metrics.PendingSignals.Dec()

	if err := e.signals.Insert(ctx, sig); err != nil {
		return nil, fmt.Errorf("persist signal: %w", err)
	}

	// A buy observation failing to persist must not block the decision.
	buy := &domain.Buy{
		Wallet:    sig.Wallet,
		Token:     sig.Token,
		Amount:    sig.AmountUSD,
		Price:     sig.Price,
		Timestamp: sig.Timestamp,
	}
	if err := e.buys.Insert(ctx, buy); err != nil {
		e.log.Warn("buy observation not persisted", "wallet", sig.Wallet, "token", sig.Token, "error", err)
	}

	mu := e.locks.lock(sig.Wallet)
	mu.Lock()
	defer mu.Unlock()

	wallet, err := e.trust.Read(ctx, sig.Wallet, started)
	if err != nil {
		return nil, fmt.Errorf("trust read: %w", err)
	}

	// Token metadata failures veto downstream instead of erroring:
	// an unknown token must never trade on assumed-safe values.
	token, err := e.prices.TokenInfo(ctx, sig.Token)
	if err != nil {
		e.log.Warn("token info unavailable", "token", sig.Token, "error", err)
		token = nil
	}

	verdict := e.probe(ctx, sig)

	recent, err := e.signals.CountByWalletSince(ctx, sig.Wallet, started.Add(-time.Hour))
	if err != nil {
		return nil, fmt.Errorf("signal rate: %w", err)
	}

	tradeCount, err := e.trades.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("trade count: %w", err)
	}

	mode := e.risk.Mode(ctx)
	suppressBoost := mode == domain.ModeCapitalPreservation
	if e.cfg.First50.Enabled && e.cfg.First50.NoGraphBoost && tradeCount < e.cfg.First50.TradeCount {
		suppressBoost = true
	}

	// Pacing is a veto, checked before the evaluator so a suppressed
	// signal never arms cooldowns.
	_, pacingReason, err := e.risk.First50Gate(ctx, started)
	if err != nil {
		return nil, fmt.Errorf("pacing gate: %w", err)
	}

	eval := e.evaluator.Evaluate(&pipeline.Input{
		Signal:              sig,
		Wallet:              wallet,
		Token:               token,
		Honeypot:            verdict,
		RiskMode:            mode,
		RecentWalletSignals: recent,
		PacingViolation:     pacingReason,
		MinConfidence:       e.risk.RequiredConfidence(ctx),
		SuppressGraphBoost:  suppressBoost,
		Now:                 started,
	})

	decision := &Decision{Signal: sig, Evaluation: eval}
	e.metrics.RecordDecision(string(eval.Decision), eval.RejectReason, e.now().Sub(started).Seconds())
	if eval.Decision != pipeline.DecisionExecute {
		return decision, nil
	}

	decision.Size = e.risk.PositionSize(ctx, risk.SizeInput{
		Confidence:   eval.FinalConfidence,
		GraphBoosted: eval.GraphBoosted,
		TradeCount:   tradeCount,
	})
	if decision.Size.Zeroed {
		decision.SkipReason = decision.Size.Reason
		e.metrics.TradesSkipped.Inc()
		return decision, nil
	}

	sized := e.feedback.AdjustedPosition(decision.Size.SizeUSD)
	if sized <= 0 {
		decision.SkipReason = "graph allocation disabled by false-positive rate"
		e.metrics.TradesSkipped.Inc()
		return decision, nil
	}

	decision.Plan = e.entropy.Apply(sized, e.cfg.Risk.MaxPositionUSD)
	if decision.Plan.Skip {
		decision.SkipReason = "entropy skip"
		e.metrics.TradesSkipped.Inc()
		return decision, nil
	}
	if err := e.entropy.Wait(ctx, decision.Plan.Delay); err != nil {
		return nil, err
	}

	trade := &domain.Trade{
		Timestamp:      e.now(),
		SignalID:       &sig.ID,
		Token:          sig.Token,
		Direction:      domain.DirectionBuy,
		AmountUSD:      decision.Plan.SizeUSD,
		EntryPrice:     sig.Price,
		Status:         domain.TradeOpen,
		WalletUsed:     decision.Plan.Wallet,
		GraphBoosted:   eval.GraphBoosted,
		EntropyApplied: true,
	}
	if err := e.trades.Insert(ctx, trade); err != nil {
		return nil, fmt.Errorf("record trade: %w", err)
	}

	decision.Executed = true
	decision.Trade = trade
	e.metrics.TradesExecuted.Inc()
	e.metrics.PositionSizeUSD.Observe(trade.AmountUSD)
	e.log.Info("trade opened",
		"trade", trade.TradeNumber,
		"token", sig.Token,
		"size_usd", trade.AmountUSD,
		"confidence", eval.FinalConfidence,
		"boosted", eval.GraphBoosted,
		"wallet_used", trade.WalletUsed)
	return decision, nil
}

// probe runs the honeypot check and records the result on the signal.
// Probe failures come back as a blocking verdict, never as nil-safe.
func (e *Engine) probe(ctx context.Context, sig *domain.Signal) *honeypot.Verdict {
	probeStart := e.now()
	verdict, err := e.checker.Check(ctx, sig.Token)
	e.metrics.ProbeLatency.Observe(e.now().Sub(probeStart).Seconds())
	if err != nil {
		e.log.Warn("honeypot probe errored", "token", sig.Token, "error", err)
		e.metrics.ProbesRun.WithLabelValues("error").Inc()
		return nil
	}

	result := "pass"
	if !verdict.Pass {
		result = "blocked"
		e.metrics.SimulatorBlocked.Inc()
	}
	e.metrics.ProbesRun.WithLabelValues(result).Inc()

	if err := e.signals.SetSimulation(ctx, sig.ID, verdict.Pass, verdict.TaxPct, verdict.Reason); err != nil {
		e.log.Warn("record simulation failed", "signal", sig.ID, "error", err)
	}
	return verdict
}
