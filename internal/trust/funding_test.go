package trust

import (
	"context"
	"testing"
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
)

func TestProvenance_GroupsEdgesByHop(t *testing.T) {
	engine, _, _ := newTestEngine()
	ctx := context.Background()
	now := time.Now()

	// gp -> parent -> wallet
	if err := engine.RecordFunding(ctx, &domain.FundingEdge{
		Funder: "parent", Funded: "wallet", Timestamp: now, TxRef: "t1",
	}); err != nil {
		t.Fatalf("RecordFunding failed: %v", err)
	}
	if err := engine.RecordFunding(ctx, &domain.FundingEdge{
		Funder: "gp", Funded: "parent", Timestamp: now, TxRef: "t2",
	}); err != nil {
		t.Fatalf("RecordFunding failed: %v", err)
	}

	levels, err := engine.Provenance(ctx, "wallet", 5)
	if err != nil {
		t.Fatalf("Provenance failed: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("levels = %d, want 2", len(levels))
	}
	if levels[0][0].Funder != "parent" || levels[1][0].Funder != "gp" {
		t.Errorf("unexpected trace: %+v", levels)
	}
}

func TestRunDecay_DemotesStaleTiers(t *testing.T) {
	engine, wallets, _ := newTestEngine()
	ctx := context.Background()

	now := time.Now()
	lastWin := now.Add(-60 * 24 * time.Hour)
	stale := &domain.Wallet{
		Address:    "stale",
		Tier:       domain.TierS,
		FirstSeen:  now.Add(-90 * 24 * time.Hour),
		LastWin:    &lastWin,
		WinCount:   6,
		TotalPnL:   8000,
		Confidence: 0.9,
	}
	if err := wallets.Upsert(ctx, stale); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	freshWin := now.Add(-time.Hour)
	fresh := &domain.Wallet{
		Address:    "fresh",
		Tier:       domain.TierA,
		FirstSeen:  now.Add(-30 * 24 * time.Hour),
		LastWin:    &freshWin,
		WinCount:   4,
		TotalPnL:   2000,
		Confidence: 0.8,
	}
	if err := wallets.Upsert(ctx, fresh); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	report, err := engine.RunDecay(ctx, now)
	if err != nil {
		t.Fatalf("RunDecay failed: %v", err)
	}
	if report.WalletsDemoted != 1 {
		t.Errorf("demoted = %d, want 1", report.WalletsDemoted)
	}

	// Two half-lives of silence leave 0.225 confidence, below every
	// tier gate.
	w, _ := wallets.Get(ctx, "stale")
	if w.Tier != domain.TierC {
		t.Errorf("stale tier = %s, want C_TIER after decay", w.Tier)
	}

	w, _ = wallets.Get(ctx, "fresh")
	if w.Tier != domain.TierA {
		t.Errorf("fresh tier = %s, want A_TIER untouched", w.Tier)
	}
}
