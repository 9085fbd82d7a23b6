// Package trust maintains wallet reputation: tiers, outcome-driven
// confidence, time decay and the composite trust score. It owns the
// arithmetic; persistence stays behind the storage interfaces.
package trust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/albarami/Whale-hunter/internal/config"
	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// Engine applies the reputation model over the wallet and funding
// stores. Methods are safe for concurrent use as long as callers
// serialize writes per wallet address; the trading engine does that
// with striped locks.
type Engine struct {
	wallets storage.WalletStore
	funding storage.FundingStore
	cex     *CEXBook
	cfg     config.TrustConfig
	log     *slog.Logger
	now     func() time.Time
}

// NewEngine creates a trust engine.
func NewEngine(wallets storage.WalletStore, funding storage.FundingStore, cex *CEXBook, cfg config.TrustConfig, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		wallets: wallets,
		funding: funding,
		cex:     cex,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// WithClock overrides the engine clock, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Track registers a wallet observation. Unknown wallets start at the
// given tier with neutral confidence; known wallets keep their state
// and only upgrade their tier.
func (e *Engine) Track(ctx context.Context, address string, tier domain.Tier) (*domain.Wallet, error) {
	if !tier.Valid() {
		return nil, domain.ErrInvalidTier
	}

	w := &domain.Wallet{
		Address:    address,
		Tier:       tier,
		FirstSeen:  e.now(),
		Confidence: 0.5,
	}
	if err := e.wallets.Upsert(ctx, w); err != nil {
		return nil, fmt.Errorf("track wallet %s: %w", address, err)
	}
	return e.wallets.Get(ctx, address)
}

// RecordOutcome folds a resolved trade result into the wallet's
// reputation: counters, pnl, confidence and tier. Neutral outcomes
// leave confidence untouched.
func (e *Engine) RecordOutcome(ctx context.Context, address string, outcome domain.Outcome, pnl float64, at time.Time) (*domain.Wallet, error) {
	w, err := e.wallets.Get(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("record outcome for %s: %w", address, err)
	}

	switch outcome {
	case domain.OutcomeWin:
		w.WinCount++
		w.TotalPnL += pnl
		win := at
		w.LastWin = &win
		w.Confidence = math.Min(w.Confidence*e.cfg.WinBoost, 1.0)
	case domain.OutcomeLoss:
		w.LossCount++
		w.TotalPnL += pnl
		w.Confidence = math.Max(w.Confidence*e.cfg.LossPenalty, e.cfg.ConfidenceFloor)
	case domain.OutcomeNeutral:
		w.TotalPnL += pnl
	default:
		return nil, fmt.Errorf("record outcome for %s: unexpected outcome %q", address, outcome)
	}

	if tier := e.TierFor(w); tier != w.Tier {
		e.log.Info("wallet tier changed",
			"wallet", address, "from", w.Tier, "to", tier,
			"wins", w.WinCount, "pnl", w.TotalPnL, "confidence", w.Confidence)
		w.Tier = tier
	}
	w.TrustScore = e.TrustScore(w)

	if err := e.wallets.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("record outcome for %s: %w", address, err)
	}
	return w, nil
}

// TierFor derives the performance tier a wallet's record earns. It is
// a pure function of wins, losses, pnl and confidence: the same four
// inputs always yield the same tier, so a wallet whose confidence has
// collapsed cannot hold a tier its record no longer supports.
func (e *Engine) TierFor(w *domain.Wallet) domain.Tier {
	winRate := w.WinRate()
	switch {
	case w.WinCount >= 5 && winRate >= 0.70 && w.TotalPnL >= 5000 && w.Confidence >= 0.8:
		return domain.TierS
	case w.WinCount >= 3 && winRate >= 0.60 && w.TotalPnL >= 1000 && w.Confidence >= 0.6:
		return domain.TierA
	case w.WinCount >= 2 && winRate >= 0.50 && w.TotalPnL >= 100 && w.Confidence >= 0.4:
		return domain.TierB
	default:
		return domain.TierC
	}
}

// DecayFactor is the read-time staleness multiplier: a half-life curve
// anchored at the wallet's last win, or first sighting if it never
// won. A wallet that won within the half-life keeps most of its
// stored confidence.
func (e *Engine) DecayFactor(w *domain.Wallet, now time.Time) float64 {
	elapsed := now.Sub(w.DecayReference())
	if elapsed <= 0 {
		return 1.0
	}
	return math.Pow(0.5, elapsed.Hours()/e.cfg.ConfidenceHalfLife.Hours())
}

// EffectiveConfidence is stored confidence discounted by staleness.
func (e *Engine) EffectiveConfidence(w *domain.Wallet, now time.Time) float64 {
	return w.Confidence * e.DecayFactor(w, now)
}

// TrustScore computes the composite score in [0,1]. Wallets below the
// minimum win count score zero: a short streak proves nothing. The
// pnl component is normalized into [0,1] around zero, blended with
// win rate, scaled by confidence, and halved for CEX-funded wallets.
func (e *Engine) TrustScore(w *domain.Wallet) float64 {
	if w.WinCount < e.cfg.MinWinsForTrust {
		return 0
	}

	norm := (w.TotalPnL + e.cfg.PnLNormalizationUSD) / (2 * e.cfg.PnLNormalizationUSD)
	norm = math.Max(0, math.Min(1, norm))

	score := (e.cfg.PnLWeight*norm + (1-e.cfg.PnLWeight)*w.WinRate()) * w.Confidence
	if w.CEXFunded {
		score *= e.cfg.CEXPenalty
	}
	return math.Max(0, math.Min(1, score))
}

// Read returns the trust engine's view of a wallet at signal time.
func (e *Engine) Read(ctx context.Context, address string, now time.Time) (*domain.WalletSignal, error) {
	w, err := e.wallets.Get(ctx, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &domain.WalletSignal{
				Wallet:      address,
				Tier:        domain.TierC,
				Strength:    domain.StrengthNone,
				DecayFactor: 1.0,
			}, nil
		}
		return nil, fmt.Errorf("read wallet %s: %w", address, err)
	}

	factor := e.DecayFactor(w, now)
	ws := &domain.WalletSignal{
		Wallet:      w.Address,
		Tier:        w.Tier,
		Confidence:  w.Confidence * factor,
		Strength:    StrengthForTier(w.Tier),
		CEXFunded:   w.CEXFunded,
		DecayFactor: factor,
		TrustScore:  e.TrustScore(w),
	}

	if link, err := e.InsiderConnection(ctx, address); err != nil {
		return nil, err
	} else if link != nil {
		ws.Mother = link.MotherWallet
		ws.MotherTier = link.MotherTier
		ws.Hops = link.Hops
		if link.Strength != domain.StrengthNone && strengthRank(link.Strength) > strengthRank(ws.Strength) {
			ws.Strength = link.Strength
		}
	}

	// CEX-funded with no insider connection collapses the signal: the
	// provenance says retail, not cluster.
	if ws.CEXFunded && ws.Mother == "" {
		if ws.TrustScore > 0.5 {
			ws.Strength = domain.StrengthWeak
		} else {
			ws.Strength = domain.StrengthNone
		}
	}
	return ws, nil
}

// StrengthForTier maps a wallet tier to its base signal strength.
func StrengthForTier(tier domain.Tier) domain.SignalStrength {
	switch tier {
	case domain.TierS:
		return domain.StrengthScreamingBuy
	case domain.TierA:
		return domain.StrengthStrongBuy
	case domain.TierB:
		return domain.StrengthModerate
	default:
		return domain.StrengthWeak
	}
}

func strengthRank(s domain.SignalStrength) int {
	switch s {
	case domain.StrengthScreamingBuy:
		return 4
	case domain.StrengthStrongBuy:
		return 3
	case domain.StrengthModerate:
		return 2
	case domain.StrengthWeak:
		return 1
	default:
		return 0
	}
}
