// Package risk owns the operating-mode state machine, position sizing
// and the protective kill-switch triggers. Mode transitions are
// one-directional: a trigger moves the engine into a protective mode
// and only an explicit action (or an elapsed observation window) moves
// it back out.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/albarami/Whale-hunter/internal/config"
	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

// Manager tracks capital marks and the active risk mode, persisting
// both so a restart resumes in the same protective state.
type Manager struct {
	cfg      *config.Config
	state    storage.SystemStateStore
	events   storage.KillSwitchEventStore
	trades   storage.TradeStore
	funding  storage.FundingStore
	outcomes storage.OutcomeStore
	log      *slog.Logger
	now      func() time.Time

	mu             sync.Mutex
	mode           domain.RiskMode
	capital        float64
	peakCapital    float64
	observationEnd time.Time
}

// NewManager creates a risk manager starting in NORMAL with the given
// capital. Call Load to restore persisted state before first use.
func NewManager(
	cfg *config.Config,
	state storage.SystemStateStore,
	events storage.KillSwitchEventStore,
	trades storage.TradeStore,
	funding storage.FundingStore,
	outcomes storage.OutcomeStore,
	initialCapital float64,
	log *slog.Logger,
) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		cfg:         cfg,
		state:       state,
		events:      events,
		trades:      trades,
		funding:     funding,
		outcomes:    outcomes,
		log:         log,
		now:         time.Now,
		mode:        domain.ModeNormal,
		capital:     initialCapital,
		peakCapital: initialCapital,
	}
}

// WithClock overrides the manager's clock. Used in tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Load restores capital marks and the risk mode from the state store.
// Missing keys keep the constructor values.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, err := m.state.Get(ctx, domain.StateKeyCurrentCapital); err == nil {
		c, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return fmt.Errorf("parse %s: %w", domain.StateKeyCurrentCapital, perr)
		}
		m.capital = c
	}
	if v, err := m.state.Get(ctx, domain.StateKeyPeakCapital); err == nil {
		p, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return fmt.Errorf("parse %s: %w", domain.StateKeyPeakCapital, perr)
		}
		m.peakCapital = p
	}
	if v, err := m.state.Get(ctx, domain.StateKeyRiskMode); err == nil {
		mode := domain.RiskMode(v)
		if !mode.Valid() {
			return fmt.Errorf("persisted risk mode %q is unknown", v)
		}
		m.mode = mode
	}
	if m.peakCapital < m.capital {
		m.peakCapital = m.capital
	}
	return nil
}

// Mode returns the active risk mode. An OBSERVATION window that has
// elapsed lapses back to NORMAL here.
func (m *Manager) Mode(ctx context.Context) domain.RiskMode {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode == domain.ModeObservation && !m.observationEnd.IsZero() && m.now().After(m.observationEnd) {
		m.log.Info("observation window elapsed, resuming normal operation")
		m.setModeLocked(ctx, domain.ModeNormal)
		m.observationEnd = time.Time{}
	}
	return m.mode
}

// Capital returns the current capital mark.
func (m *Manager) Capital() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capital
}

// Drawdown returns the fractional drawdown from the peak capital mark.
func (m *Manager) Drawdown() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drawdownLocked()
}

func (m *Manager) drawdownLocked() float64 {
	if m.peakCapital <= 0 {
		return 0
	}
	return (m.peakCapital - m.capital) / m.peakCapital
}

// RequiredConfidence raises the base confidence floor while in
// capital preservation.
func (m *Manager) RequiredConfidence(ctx context.Context) float64 {
	base := m.cfg.Confidence.MinTradeConfidence
	if m.Mode(ctx) == domain.ModeCapitalPreservation {
		return base + m.cfg.Confidence.PreservationIncrease
	}
	return base
}

// RecordPnL applies a realized trade result to the capital marks,
// persists them and evaluates the drawdown ladder.
func (m *Manager) RecordPnL(ctx context.Context, pnl float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.capital += pnl
	if m.capital > m.peakCapital {
		m.peakCapital = m.capital
	}
	if err := m.persistCapitalLocked(ctx); err != nil {
		return err
	}

	dd := m.drawdownLocked()
	switch {
	case dd >= m.cfg.Risk.DrawdownStop && m.mode != domain.ModeEmergencyStop:
		m.transitionLocked(ctx, domain.ModeEmergencyStop, domain.TriggerDrawdown,
			fmt.Sprintf("drawdown %.1f%% breached emergency threshold", dd*100), nil)
	case dd >= m.cfg.Risk.DrawdownPreserve &&
		m.mode != domain.ModeEmergencyStop && m.mode != domain.ModeCapitalPreservation:
		m.transitionLocked(ctx, domain.ModeCapitalPreservation, domain.TriggerDrawdown,
			fmt.Sprintf("drawdown %.1f%% breached preservation threshold", dd*100), nil)
	case dd >= m.cfg.Risk.DrawdownWarning:
		m.log.Warn("drawdown warning",
			"drawdown_pct", dd*100, "capital", m.capital, "peak", m.peakCapital)
	}
	return nil
}

// CheckEmergencyTriggers evaluates the loss-streak and hourly-loss
// triggers. Each fires at most once per protective episode because a
// trigger is skipped while already stopped.
func (m *Manager) CheckEmergencyTriggers(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == domain.ModeEmergencyStop {
		return nil
	}

	losses, err := m.trades.ConsecutiveLosses(ctx)
	if err != nil {
		return fmt.Errorf("consecutive losses: %w", err)
	}
	if losses >= m.cfg.KillSwitch.MaxConsecutiveLosses {
		m.transitionLocked(ctx, domain.ModeEmergencyStop, domain.TriggerConsecutiveLosses,
			fmt.Sprintf("%d consecutive losing trades", losses), nil)
		return nil
	}

	hourAgo := m.now().Add(-time.Hour)
	pnl, err := m.trades.RealizedPnLSince(ctx, hourAgo)
	if err != nil {
		return fmt.Errorf("hourly pnl: %w", err)
	}
	if m.peakCapital > 0 && -pnl/m.peakCapital >= m.cfg.KillSwitch.MaxHourlyLossPct {
		m.transitionLocked(ctx, domain.ModeEmergencyStop, domain.TriggerHourlyLoss,
			fmt.Sprintf("lost $%.2f in the last hour (%.1f%% of peak)", -pnl, -pnl/m.peakCapital*100), nil)
	}
	return nil
}

// CheckGraphTriggers evaluates the sybil-pattern triggers: a burst of
// newly crowned mother wallets or a win-rate collapse across clusters.
// Either moves the engine into OBSERVATION for the configured window.
func (m *Manager) CheckGraphTriggers(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != domain.ModeNormal {
		return nil
	}
	now := m.now()

	newMothers, err := m.funding.NewMotherCount(ctx, now.Add(-24*time.Hour), m.cfg.Trust.MinFundedWinners)
	if err != nil {
		return fmt.Errorf("new mother count: %w", err)
	}
	if newMothers >= m.cfg.KillSwitch.MaxNewMothers24H {
		end := now.Add(m.cfg.KillSwitch.ObservationPeriod)
		m.transitionLocked(ctx, domain.ModeObservation, domain.TriggerMotherExplosion,
			fmt.Sprintf("%d new mother wallets in 24h", newMothers), &end)
		m.observationEnd = end
		return nil
	}

	rates, err := m.outcomes.WinRateByCluster(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return fmt.Errorf("cluster win rates: %w", err)
	}
	collapsing := 0
	for _, r := range rates {
		if r < m.cfg.KillSwitch.WinRateCollapse {
			collapsing++
		}
	}
	if collapsing >= m.cfg.KillSwitch.MinCollapsingClusters {
		end := now.Add(m.cfg.KillSwitch.ObservationPeriod)
		m.transitionLocked(ctx, domain.ModeObservation, domain.TriggerWinRateCollapse,
			fmt.Sprintf("%d clusters below %.0f%% win rate", collapsing, m.cfg.KillSwitch.WinRateCollapse*100), &end)
		m.observationEnd = end
	}
	return nil
}

// ReportClusterCorrelation records temporally clustered funding as a
// graph trigger. Cluster detection lives in the trust engine; the
// caller passes the count found in the current window.
func (m *Manager) ReportClusterCorrelation(ctx context.Context, clusters int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != domain.ModeNormal || clusters == 0 {
		return
	}
	now := m.now()
	end := now.Add(m.cfg.KillSwitch.ObservationPeriod)
	m.transitionLocked(ctx, domain.ModeObservation, domain.TriggerClusterCorrelation,
		fmt.Sprintf("%d temporal funding clusters detected", clusters), &end)
	m.observationEnd = end
}

// ResumeNormal attempts an automatic return to NORMAL. Protective
// modes reject it: they are exited through ManualReset or
// ApprovePreservationExit only.
func (m *Manager) ResumeNormal(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.mode {
	case domain.ModeNormal:
		return nil
	case domain.ModeEmergencyStop, domain.ModeCapitalPreservation:
		return ErrManualApprovalRequired
	default: // OBSERVATION lapses on its own via Mode.
		return ErrManualApprovalRequired
	}
}

// ManualReset leaves EMERGENCY_STOP after operator review, resolving
// any open kill-switch events with the given notes.
func (m *Manager) ManualReset(ctx context.Context, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != domain.ModeEmergencyStop {
		return ErrNotStopped
	}

	open, err := m.events.Unresolved(ctx)
	if err != nil {
		return fmt.Errorf("list open events: %w", err)
	}
	for _, e := range open {
		if err := m.events.Resolve(ctx, e.ID, notes); err != nil {
			return fmt.Errorf("resolve event %s: %w", e.ID, err)
		}
	}

	m.log.Info("manual reset", "notes", notes)
	m.setModeLocked(ctx, domain.ModeNormal)
	return nil
}

// ApprovePreservationExit leaves CAPITAL_PRESERVATION. Preservation
// never lapses on its own, only through this call.
func (m *Manager) ApprovePreservationExit(ctx context.Context, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != domain.ModeCapitalPreservation {
		return ErrNotInPreservation
	}

	m.log.Info("preservation exit approved", "notes", notes)
	// A fresh drawdown baseline, otherwise the same trigger refires on
	// the next trade.
	m.peakCapital = m.capital
	if err := m.persistCapitalLocked(ctx); err != nil {
		return err
	}
	m.setModeLocked(ctx, domain.ModeNormal)
	return nil
}

// TriggerManual forces a protective mode, used by operator tooling and
// kill-switch drills.
func (m *Manager) TriggerManual(ctx context.Context, mode domain.RiskMode, reason string) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid risk mode %q", mode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionLocked(ctx, mode, domain.TriggerManual, reason, nil)
	return nil
}

func (m *Manager) transitionLocked(
	ctx context.Context,
	mode domain.RiskMode,
	trigger domain.KillSwitchTrigger,
	reason string,
	observationEnd *time.Time,
) {
	m.log.Warn("risk mode transition",
		"from", m.mode, "to", mode, "trigger", trigger, "reason", reason)

	event := &domain.KillSwitchEvent{
		ID:             uuid.NewString(),
		Timestamp:      m.now(),
		Trigger:        trigger,
		Reason:         reason,
		Mode:           mode,
		ObservationEnd: observationEnd,
	}
	if err := m.events.Insert(ctx, event); err != nil {
		// The audit write failing must not leave the engine trading.
		m.log.Error("kill-switch event write failed", "error", err)
	}
	m.setModeLocked(ctx, mode)
}

func (m *Manager) setModeLocked(ctx context.Context, mode domain.RiskMode) {
	m.mode = mode
	if err := m.state.Set(ctx, domain.StateKeyRiskMode, string(mode)); err != nil {
		m.log.Error("persist risk mode failed", "mode", mode, "error", err)
	}
}

func (m *Manager) persistCapitalLocked(ctx context.Context) error {
	if err := m.state.Set(ctx, domain.StateKeyCurrentCapital,
		strconv.FormatFloat(m.capital, 'f', -1, 64)); err != nil {
		return fmt.Errorf("persist capital: %w", err)
	}
	if err := m.state.Set(ctx, domain.StateKeyPeakCapital,
		strconv.FormatFloat(m.peakCapital, 'f', -1, 64)); err != nil {
		return fmt.Errorf("persist peak capital: %w", err)
	}
	return nil
}
