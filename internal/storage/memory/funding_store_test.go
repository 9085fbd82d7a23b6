package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

func TestFundingStore_AddEdgeAndFunders(t *testing.T) {
	store := NewFundingStore(nil)
	ctx := context.Background()

	e := &domain.FundingEdge{
		Funder:         "mother",
		Funded:         "child",
		Amount:         2.5,
		Timestamp:      time.Now(),
		TxRef:          "tx1",
		EdgeConfidence: 1.0,
	}
	if err := store.AddEdge(ctx, e); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}
	if e.ID == 0 {
		t.Error("AddEdge did not assign an ID")
	}

	got, err := store.Funders(ctx, "child")
	if err != nil {
		t.Fatalf("Funders failed: %v", err)
	}
	if len(got) != 1 || got[0].Funder != "mother" {
		t.Errorf("unexpected funders: %+v", got)
	}
}

func TestFundingStore_DuplicateEdge(t *testing.T) {
	store := NewFundingStore(nil)
	ctx := context.Background()

	e := &domain.FundingEdge{Funder: "a", Funded: "b", TxRef: "tx1", Timestamp: time.Now()}
	if err := store.AddEdge(ctx, e); err != nil {
		t.Fatalf("first AddEdge failed: %v", err)
	}
	err := store.AddEdge(ctx, &domain.FundingEdge{Funder: "a", Funded: "b", TxRef: "tx1", Timestamp: time.Now()})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestFundingStore_SelfEdgeRejected(t *testing.T) {
	store := NewFundingStore(nil)
	err := store.AddEdge(context.Background(), &domain.FundingEdge{Funder: "a", Funded: "a", TxRef: "tx"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestFundingStore_MotherWallets(t *testing.T) {
	wallets := NewWalletStore()
	store := NewFundingStore(wallets)
	ctx := context.Background()

	now := time.Now()
	for i, addr := range []string{"c1", "c2", "c3"} {
		win := now.Add(-time.Duration(i) * time.Hour)
		if err := wallets.Upsert(ctx, &domain.Wallet{
			Address:    addr,
			Tier:       domain.TierB,
			WinCount:   2,
			TotalPnL:   100,
			Confidence: 0.6,
			LastWin:    &win,
		}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if err := store.AddEdge(ctx, &domain.FundingEdge{
			Funder: "mother", Funded: addr, TxRef: "tx-" + addr, Timestamp: now,
		}); err != nil {
			t.Fatalf("AddEdge failed: %v", err)
		}
	}
	// A loser child does not count toward the threshold.
	if err := wallets.Upsert(ctx, &domain.Wallet{Address: "c4", Tier: domain.TierC}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.AddEdge(ctx, &domain.FundingEdge{
		Funder: "other", Funded: "c4", TxRef: "tx-c4", Timestamp: now,
	}); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}

	mothers, err := store.MotherWallets(ctx, 3, 0.3)
	if err != nil {
		t.Fatalf("MotherWallets failed: %v", err)
	}
	if len(mothers) != 1 {
		t.Fatalf("len = %d, want 1", len(mothers))
	}
	m := mothers[0]
	if m.Address != "mother" || m.FundedWinnerCount != 3 {
		t.Errorf("unexpected mother: %+v", m)
	}
	if math.Abs(m.AvgConfidence-0.6) > 1e-9 {
		t.Errorf("AvgConfidence = %f, want 0.6", m.AvgConfidence)
	}
	if m.ChildrenPnL != 300 {
		t.Errorf("ChildrenPnL = %f, want 300", m.ChildrenPnL)
	}
	if len(m.Children) != 3 {
		t.Errorf("children = %v, want the three winners", m.Children)
	}
}

func TestFundingStore_MotherWalletsExcludesCEXChildren(t *testing.T) {
	wallets := NewWalletStore()
	store := NewFundingStore(wallets)
	ctx := context.Background()

	now := time.Now()
	for _, addr := range []string{"c1", "c2", "c3"} {
		win := now
		if err := wallets.Upsert(ctx, &domain.Wallet{
			Address:    addr,
			Tier:       domain.TierB,
			WinCount:   2,
			TotalPnL:   400,
			Confidence: 0.7,
			LastWin:    &win,
			CEXFunded:  true,
		}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if err := store.AddEdge(ctx, &domain.FundingEdge{
			Funder: "fanout", Funded: addr, TxRef: "tx-" + addr, Timestamp: now,
		}); err != nil {
			t.Fatalf("AddEdge failed: %v", err)
		}
	}

	// Winners whose money came through an exchange say nothing about
	// the funder; it earns no mother status from them.
	mothers, err := store.MotherWallets(ctx, 3, 0.3)
	if err != nil {
		t.Fatalf("MotherWallets failed: %v", err)
	}
	if len(mothers) != 0 {
		t.Errorf("mothers = %+v, want none", mothers)
	}
}

func TestFundingStore_MotherWalletsEdgeConfidenceFloor(t *testing.T) {
	wallets := NewWalletStore()
	store := NewFundingStore(wallets)
	ctx := context.Background()

	now := time.Now()
	for i, addr := range []string{"c1", "c2", "c3"} {
		win := now
		if err := wallets.Upsert(ctx, &domain.Wallet{
			Address: addr, Tier: domain.TierB, WinCount: 2, TotalPnL: 200,
			Confidence: 0.6, LastWin: &win,
		}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		// The third edge has decayed to the floor and no longer counts.
		conf := 1.0
		if i == 2 {
			conf = 0.2
		}
		if err := store.AddEdge(ctx, &domain.FundingEdge{
			Funder: "mother", Funded: addr, TxRef: "tx-" + addr,
			Timestamp: now, EdgeConfidence: conf,
		}); err != nil {
			t.Fatalf("AddEdge failed: %v", err)
		}
	}

	mothers, err := store.MotherWallets(ctx, 3, 0.3)
	if err != nil {
		t.Fatalf("MotherWallets failed: %v", err)
	}
	if len(mothers) != 0 {
		t.Errorf("mothers = %+v, want none with a decayed edge excluded", mothers)
	}

	mothers, err = store.MotherWallets(ctx, 2, 0.3)
	if err != nil {
		t.Fatalf("MotherWallets failed: %v", err)
	}
	if len(mothers) != 1 || mothers[0].FundedWinnerCount != 2 {
		t.Errorf("mothers = %+v, want one with two counted winners", mothers)
	}
}

func TestFundingStore_MotherWalletsOrdering(t *testing.T) {
	wallets := NewWalletStore()
	store := NewFundingStore(wallets)
	ctx := context.Background()

	now := time.Now()
	seed := func(funder string, children int, confidence float64) {
		for i := 0; i < children; i++ {
			addr := funder + "_c" + string(rune('0'+i))
			win := now
			if err := wallets.Upsert(ctx, &domain.Wallet{
				Address: addr, Tier: domain.TierB, WinCount: 1, TotalPnL: 100,
				Confidence: confidence, LastWin: &win,
			}); err != nil {
				t.Fatalf("Upsert failed: %v", err)
			}
			if err := store.AddEdge(ctx, &domain.FundingEdge{
				Funder: funder, Funded: addr, TxRef: "tx-" + addr, Timestamp: now,
			}); err != nil {
				t.Fatalf("AddEdge failed: %v", err)
			}
		}
	}
	seed("prolific", 4, 0.5)
	seed("confident", 3, 0.9)
	seed("plain", 3, 0.5)

	mothers, err := store.MotherWallets(ctx, 3, 0.3)
	if err != nil {
		t.Fatalf("MotherWallets failed: %v", err)
	}
	if len(mothers) != 3 {
		t.Fatalf("len = %d, want 3", len(mothers))
	}
	// Most funded winners first, average child confidence breaks ties.
	want := []string{"prolific", "confident", "plain"}
	for i, w := range want {
		if mothers[i].Address != w {
			t.Errorf("mothers[%d] = %s, want %s", i, mothers[i].Address, w)
		}
	}
}

func TestFundingStore_NewMotherCount(t *testing.T) {
	wallets := NewWalletStore()
	store := NewFundingStore(wallets)
	ctx := context.Background()

	now := time.Now()
	oldWin := now.Add(-48 * time.Hour)
	newWin := now.Add(-time.Hour)

	// Mother whose third winner won two days ago: not new in the last 24h.
	for i, win := range []time.Time{oldWin, oldWin, oldWin} {
		addr := string(rune('a' + i))
		w := win
		wallets.Upsert(ctx, &domain.Wallet{Address: addr, Tier: domain.TierB, WinCount: 1, LastWin: &w})
		store.AddEdge(ctx, &domain.FundingEdge{Funder: "old_mother", Funded: addr, TxRef: "tx" + addr, Timestamp: oldWin})
	}
	// Mother whose third winner won an hour ago: new.
	for i, win := range []time.Time{oldWin, newWin, newWin} {
		addr := string(rune('x' + i))
		w := win
		wallets.Upsert(ctx, &domain.Wallet{Address: addr, Tier: domain.TierB, WinCount: 1, LastWin: &w})
		store.AddEdge(ctx, &domain.FundingEdge{Funder: "new_mother", Funded: addr, TxRef: "tx" + addr, Timestamp: oldWin})
	}

	count, err := store.NewMotherCount(ctx, now.Add(-24*time.Hour), 3)
	if err != nil {
		t.Fatalf("NewMotherCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestFundingStore_TraceFunders(t *testing.T) {
	store := NewFundingStore(nil)
	ctx := context.Background()
	now := time.Now()

	// gp -> parent -> target, plus a second direct funder.
	edges := []*domain.FundingEdge{
		{Funder: "parent", Funded: "target", TxRef: "t1", Timestamp: now.Add(-3 * time.Hour)},
		{Funder: "direct", Funded: "target", TxRef: "t2", Timestamp: now.Add(-2 * time.Hour)},
		{Funder: "gp", Funded: "parent", TxRef: "t3", Timestamp: now.Add(-time.Hour)},
	}
	for _, e := range edges {
		if err := store.AddEdge(ctx, e); err != nil {
			t.Fatalf("AddEdge failed: %v", err)
		}
	}

	levels, err := store.TraceFunders(ctx, "target", 3)
	if err != nil {
		t.Fatalf("TraceFunders failed: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("levels = %d, want 2", len(levels))
	}
	if len(levels[0]) != 2 || levels[0][0].Funder != "parent" || levels[0][1].Funder != "direct" {
		t.Errorf("hop 1 = %+v, want parent then direct", levels[0])
	}
	if len(levels[1]) != 1 || levels[1][0].Funder != "gp" {
		t.Errorf("hop 2 = %+v, want gp", levels[1])
	}

	// maxHops truncates the walk.
	levels, err = store.TraceFunders(ctx, "target", 1)
	if err != nil {
		t.Fatalf("TraceFunders failed: %v", err)
	}
	if len(levels) != 1 {
		t.Errorf("levels = %d, want 1 with maxHops 1", len(levels))
	}

	if _, err := store.TraceFunders(ctx, "", 2); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestFundingStore_TraceFundersCycleStops(t *testing.T) {
	store := NewFundingStore(nil)
	ctx := context.Background()
	now := time.Now()

	// a -> b -> a: the walk must not revisit a node it already reached.
	store.AddEdge(ctx, &domain.FundingEdge{Funder: "a", Funded: "b", TxRef: "t1", Timestamp: now})
	store.AddEdge(ctx, &domain.FundingEdge{Funder: "b", Funded: "a", TxRef: "t2", Timestamp: now})

	levels, err := store.TraceFunders(ctx, "b", 10)
	if err != nil {
		t.Fatalf("TraceFunders failed: %v", err)
	}
	// Each edge surfaces once at its nearest hop and the walk ends when
	// every node has been reached, well short of the hop budget.
	if len(levels) != 2 {
		t.Fatalf("levels = %d, want 2", len(levels))
	}
	if len(levels[0]) != 1 || levels[0][0].Funder != "a" {
		t.Errorf("hop 1 = %+v, want a", levels[0])
	}
	if len(levels[1]) != 1 || levels[1][0].Funder != "b" {
		t.Errorf("hop 2 = %+v, want the back edge surfacing once", levels[1])
	}
}

func TestFundingStore_ApplyEdgeDecayAndPrune(t *testing.T) {
	store := NewFundingStore(nil)
	ctx := context.Background()

	now := time.Now()
	// One half-life old: 0.8 -> 0.4, survives.
	store.AddEdge(ctx, &domain.FundingEdge{
		Funder: "a", Funded: "b", TxRef: "tx1",
		Timestamp: now.Add(-60 * 24 * time.Hour), EdgeConfidence: 0.8,
	})
	// Ancient: decays below the prune floor.
	store.AddEdge(ctx, &domain.FundingEdge{
		Funder: "a", Funded: "c", TxRef: "tx2",
		Timestamp: now.Add(-600 * 24 * time.Hour), EdgeConfidence: 0.8,
	})

	decayed, pruned, err := store.ApplyEdgeDecay(ctx, now, 60*24*time.Hour, 0.05)
	if err != nil {
		t.Fatalf("ApplyEdgeDecay failed: %v", err)
	}
	if decayed != 2 || pruned != 1 {
		t.Errorf("decayed=%d pruned=%d, want 2 and 1", decayed, pruned)
	}

	got, _ := store.Funders(ctx, "b")
	if len(got) != 1 || math.Abs(got[0].EdgeConfidence-0.4) > 1e-9 {
		t.Errorf("surviving edge wrong: %+v", got)
	}
	if gone, _ := store.Funders(ctx, "c"); len(gone) != 0 {
		t.Errorf("pruned edge still present: %+v", gone)
	}

	// A pruned key can be re-inserted.
	if err := store.AddEdge(ctx, &domain.FundingEdge{
		Funder: "a", Funded: "c", TxRef: "tx2", Timestamp: now, EdgeConfidence: 1.0,
	}); err != nil {
		t.Errorf("re-insert after prune failed: %v", err)
	}
}
