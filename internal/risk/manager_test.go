package risk

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/albarami/Whale-hunter/internal/config"
	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage/memory"
)

type fakeOutcomes struct {
	rates map[string]float64
}

func (f *fakeOutcomes) InsertResolved(ctx context.Context, o *domain.ResolvedOutcome) error {
	return nil
}

func (f *fakeOutcomes) WinRateByCluster(ctx context.Context, since time.Time) (map[string]float64, error) {
	return f.rates, nil
}

type riskFixture struct {
	mgr      *Manager
	wallets  *memory.WalletStore
	funding  *memory.FundingStore
	trades   *memory.TradeStore
	events   *memory.KillSwitchEventStore
	state    *memory.SystemStateStore
	outcomes *fakeOutcomes
}

func newRiskFixture(capital float64) *riskFixture {
	wallets := memory.NewWalletStore()
	f := &riskFixture{
		wallets:  wallets,
		funding:  memory.NewFundingStore(wallets),
		trades:   memory.NewTradeStore(),
		events:   memory.NewKillSwitchEventStore(),
		state:    memory.NewSystemStateStore(),
		outcomes: &fakeOutcomes{rates: map[string]float64{}},
	}
	f.mgr = NewManager(config.Default(), f.state, f.events, f.trades, f.funding, f.outcomes, capital, nil)
	return f
}

func (f *riskFixture) closeTrade(t *testing.T, at time.Time, pnl float64) {
	t.Helper()
	ctx := context.Background()
	tr := &domain.Trade{
		Timestamp:  at,
		Token:      "tok",
		Direction:  domain.DirectionBuy,
		AmountUSD:  50,
		EntryPrice: 1.0,
		Status:     domain.TradeOpen,
		WalletUsed: "w",
	}
	if err := f.trades.Insert(ctx, tr); err != nil {
		t.Fatalf("insert trade: %v", err)
	}
	if err := f.trades.Close(ctx, tr.ID, 1.0, pnl, at); err != nil {
		t.Fatalf("close trade: %v", err)
	}
}

func TestDrawdownBoundary(t *testing.T) {
	ctx := context.Background()
	f := newRiskFixture(1000)

	// 14.9% down from peak stays in NORMAL.
	if err := f.mgr.RecordPnL(ctx, -149); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.Mode(ctx); got != domain.ModeNormal {
		t.Fatalf("mode at 14.9%% drawdown = %s, want NORMAL", got)
	}

	// One more dollar makes it exactly 15.0%.
	if err := f.mgr.RecordPnL(ctx, -1); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.Mode(ctx); got != domain.ModeCapitalPreservation {
		t.Fatalf("mode at 15.0%% drawdown = %s, want CAPITAL_PRESERVATION", got)
	}

	open, err := f.events.Unresolved(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].Trigger != domain.TriggerDrawdown {
		t.Errorf("events = %+v, want one DRAWDOWN event", open)
	}
}

func TestEmergencyStopAndManualReset(t *testing.T) {
	ctx := context.Background()
	f := newRiskFixture(1000)

	if err := f.mgr.RecordPnL(ctx, -250); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.Mode(ctx); got != domain.ModeEmergencyStop {
		t.Fatalf("mode at 25%% drawdown = %s, want EMERGENCY_STOP", got)
	}

	// Further losses never downgrade the protective mode.
	if err := f.mgr.RecordPnL(ctx, -10); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.Mode(ctx); got != domain.ModeEmergencyStop {
		t.Errorf("mode after further loss = %s, want EMERGENCY_STOP", got)
	}

	if err := f.mgr.ResumeNormal(ctx); !errors.Is(err, ErrManualApprovalRequired) {
		t.Errorf("ResumeNormal err = %v, want ErrManualApprovalRequired", err)
	}

	if err := f.mgr.ManualReset(ctx, "reviewed, resuming"); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.Mode(ctx); got != domain.ModeNormal {
		t.Errorf("mode after reset = %s, want NORMAL", got)
	}
	open, err := f.events.Unresolved(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Errorf("%d events still open after reset", len(open))
	}
}

func TestPreservationExitNeedsApproval(t *testing.T) {
	ctx := context.Background()
	f := newRiskFixture(1000)

	if err := f.mgr.RecordPnL(ctx, -150); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.Mode(ctx); got != domain.ModeCapitalPreservation {
		t.Fatalf("mode = %s, want CAPITAL_PRESERVATION", got)
	}

	if err := f.mgr.ResumeNormal(ctx); !errors.Is(err, ErrManualApprovalRequired) {
		t.Errorf("ResumeNormal err = %v, want ErrManualApprovalRequired", err)
	}
	if err := f.mgr.ManualReset(ctx, "no"); !errors.Is(err, ErrNotStopped) {
		t.Errorf("ManualReset err = %v, want ErrNotStopped", err)
	}

	if err := f.mgr.ApprovePreservationExit(ctx, "approved"); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.Mode(ctx); got != domain.ModeNormal {
		t.Errorf("mode after approval = %s, want NORMAL", got)
	}
	// The drawdown baseline rebases so the same loss does not refire.
	if dd := f.mgr.Drawdown(); dd != 0 {
		t.Errorf("drawdown after rebase = %f, want 0", dd)
	}
}

func TestApprovePreservationExit_WrongMode(t *testing.T) {
	f := newRiskFixture(1000)
	if err := f.mgr.ApprovePreservationExit(context.Background(), "x"); !errors.Is(err, ErrNotInPreservation) {
		t.Errorf("err = %v, want ErrNotInPreservation", err)
	}
}

func TestConsecutiveLossesTrigger(t *testing.T) {
	ctx := context.Background()
	f := newRiskFixture(1000)
	now := time.Now()

	for i := 0; i < 4; i++ {
		f.closeTrade(t, now.Add(time.Duration(i)*time.Minute), -2)
	}
	if err := f.mgr.CheckEmergencyTriggers(ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.Mode(ctx); got != domain.ModeNormal {
		t.Fatalf("mode after 4 losses = %s, want NORMAL", got)
	}

	f.closeTrade(t, now.Add(5*time.Minute), -2)
	if err := f.mgr.CheckEmergencyTriggers(ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.Mode(ctx); got != domain.ModeEmergencyStop {
		t.Fatalf("mode after 5 losses = %s, want EMERGENCY_STOP", got)
	}

	open, _ := f.events.Unresolved(ctx)
	if len(open) != 1 || open[0].Trigger != domain.TriggerConsecutiveLosses {
		t.Errorf("events = %+v, want one CONSECUTIVE_LOSSES event", open)
	}
}

func TestHourlyLossTrigger(t *testing.T) {
	ctx := context.Background()
	f := newRiskFixture(1000)
	now := time.Now()

	// 6% of peak lost inside the hour, but split so no loss streak fires.
	f.closeTrade(t, now.Add(-30*time.Minute), -70)
	f.closeTrade(t, now.Add(-10*time.Minute), 10)

	if err := f.mgr.CheckEmergencyTriggers(ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.Mode(ctx); got != domain.ModeEmergencyStop {
		t.Fatalf("mode = %s, want EMERGENCY_STOP", got)
	}
	open, _ := f.events.Unresolved(ctx)
	if len(open) != 1 || open[0].Trigger != domain.TriggerHourlyLoss {
		t.Errorf("events = %+v, want one HOURLY_LOSS event", open)
	}
}

func TestMotherExplosionTrigger(t *testing.T) {
	ctx := context.Background()
	f := newRiskFixture(1000)
	now := time.Now()
	f.mgr.WithClock(func() time.Time { return now })

	// Ten funders each with three freshly winning children.
	lastWin := now.Add(-time.Hour)
	for i := 0; i < 10; i++ {
		funder := string(rune('A' + i))
		for j := 0; j < 3; j++ {
			child := funder + string(rune('a'+j))
			w := &domain.Wallet{
				Address:    child,
				Tier:       domain.TierB,
				FirstSeen:  now.Add(-48 * time.Hour),
				WinCount:   1,
				TotalPnL:   200,
				LastWin:    &lastWin,
				Confidence: 0.6,
			}
			if err := f.wallets.Upsert(ctx, w); err != nil {
				t.Fatal(err)
			}
			edge := &domain.FundingEdge{
				Funder:         funder,
				Funded:         child,
				Amount:         1.5,
				Timestamp:      now.Add(-24 * time.Hour),
				TxRef:          funder + child,
				EdgeConfidence: 1.0,
			}
			if err := f.funding.AddEdge(ctx, edge); err != nil {
				t.Fatal(err)
			}
		}
	}

	if err := f.mgr.CheckGraphTriggers(ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.Mode(ctx); got != domain.ModeObservation {
		t.Fatalf("mode = %s, want OBSERVATION", got)
	}
	open, _ := f.events.Unresolved(ctx)
	if len(open) != 1 || open[0].Trigger != domain.TriggerMotherExplosion {
		t.Fatalf("events = %+v, want one MOTHER_EXPLOSION event", open)
	}
	if open[0].ObservationEnd == nil || !open[0].ObservationEnd.Equal(now.Add(72*time.Hour)) {
		t.Errorf("observation end = %v, want now+72h", open[0].ObservationEnd)
	}

	// Sizing is zeroed for the whole window, then the mode lapses.
	if res := f.mgr.PositionSize(ctx, SizeInput{Confidence: 1, TradeCount: 100}); !res.Zeroed {
		t.Error("sizing not zeroed during observation")
	}
	now = now.Add(73 * time.Hour)
	if got := f.mgr.Mode(ctx); got != domain.ModeNormal {
		t.Errorf("mode after window = %s, want NORMAL", got)
	}
}

func TestWinRateCollapseTrigger(t *testing.T) {
	ctx := context.Background()
	f := newRiskFixture(1000)

	f.outcomes.rates = map[string]float64{"m1": 0.10, "m2": 0.20, "m3": 0.50}
	if err := f.mgr.CheckGraphTriggers(ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.Mode(ctx); got != domain.ModeNormal {
		t.Fatalf("mode with 2 collapsing clusters = %s, want NORMAL", got)
	}

	f.outcomes.rates["m3"] = 0.25
	if err := f.mgr.CheckGraphTriggers(ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.Mode(ctx); got != domain.ModeObservation {
		t.Fatalf("mode with 3 collapsing clusters = %s, want OBSERVATION", got)
	}
}

func TestLoadRestoresState(t *testing.T) {
	ctx := context.Background()
	f := newRiskFixture(1000)

	if err := f.state.Set(ctx, domain.StateKeyCurrentCapital, "820.5"); err != nil {
		t.Fatal(err)
	}
	if err := f.state.Set(ctx, domain.StateKeyPeakCapital, "1200"); err != nil {
		t.Fatal(err)
	}
	if err := f.state.Set(ctx, domain.StateKeyRiskMode, "CAPITAL_PRESERVATION"); err != nil {
		t.Fatal(err)
	}

	if err := f.mgr.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.Capital(); got != 820.5 {
		t.Errorf("capital = %f, want 820.5", got)
	}
	if got := f.mgr.Mode(ctx); got != domain.ModeCapitalPreservation {
		t.Errorf("mode = %s, want CAPITAL_PRESERVATION", got)
	}
}

func TestRequiredConfidenceInPreservation(t *testing.T) {
	ctx := context.Background()
	f := newRiskFixture(1000)

	if got := f.mgr.RequiredConfidence(ctx); got != 0.60 {
		t.Errorf("normal floor = %f, want 0.60", got)
	}
	if err := f.mgr.TriggerManual(ctx, domain.ModeCapitalPreservation, "drill"); err != nil {
		t.Fatal(err)
	}
	if got := f.mgr.RequiredConfidence(ctx); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("preservation floor = %f, want 0.75", got)
	}
}

func TestFirst50Gate(t *testing.T) {
	ctx := context.Background()
	f := newRiskFixture(1000)
	now := time.Now()

	ok, _, err := f.mgr.First50Gate(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("fresh account blocked")
	}

	// Five trades inside the first week hit the weekly cap.
	for i := 0; i < 5; i++ {
		f.closeTrade(t, now.Add(-time.Duration(i+1)*24*time.Hour), 1)
	}
	ok, reason, err := f.mgr.First50Gate(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("weekly cap not enforced, reason=%q", reason)
	}
}

func TestFirst50ReviewInterval(t *testing.T) {
	ctx := context.Background()
	f := newRiskFixture(1000)
	now := time.Now()

	// Aged past the weekly cap but still inside the first 50 trades.
	for i := 0; i < 5; i++ {
		f.closeTrade(t, now.Add(-time.Duration(10+i)*24*time.Hour), 1)
	}
	f.closeTrade(t, now.Add(-2*time.Hour), 1)

	ok, reason, err := f.mgr.First50Gate(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("review interval not enforced")
	}
	if reason == "" {
		t.Error("blocked gate returned no reason")
	}

	// After the review interval the next early trade may proceed.
	ok, _, err = f.mgr.First50Gate(ctx, now.Add(23*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("gate still closed after review interval elapsed")
	}
}
