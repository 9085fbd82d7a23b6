package trust

import (
	"context"
	"testing"
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
)

// seedMother funds three winning children from the given funder so it
// qualifies as a mother wallet with avg confidence 0.8.
func seedMother(t *testing.T, engine *Engine, funder string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	for _, child := range []string{funder + "_c1", funder + "_c2", funder + "_c3"} {
		w, err := engine.Track(ctx, child, domain.TierB)
		if err != nil {
			t.Fatalf("Track failed: %v", err)
		}
		w.WinCount = 2
		w.TotalPnL = 500
		w.Confidence = 0.8
		w.LastWin = &now
		if err := engine.wallets.Save(ctx, w); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := engine.RecordFunding(ctx, &domain.FundingEdge{
			Funder: funder, Funded: child, Timestamp: now, TxRef: "seed-" + child,
		}); err != nil {
			t.Fatalf("RecordFunding failed: %v", err)
		}
	}
}

func TestBlackBook_RanksByTrustScore(t *testing.T) {
	engine, _, _ := newTestEngine()
	ctx := context.Background()

	seedMother(t, engine, "alpha")
	seedMother(t, engine, "beta")

	// Drag beta's cluster underwater so its trust score halves.
	for _, child := range []string{"beta_c1", "beta_c2", "beta_c3"} {
		w, err := engine.wallets.Get(ctx, child)
		if err != nil {
			t.Fatalf("get %s: %v", child, err)
		}
		w.TotalPnL = -200
		if err := engine.wallets.Save(ctx, w); err != nil {
			t.Fatalf("save %s: %v", child, err)
		}
	}

	book, err := engine.BlackBook(ctx)
	if err != nil {
		t.Fatalf("BlackBook: %v", err)
	}
	if len(book) != 2 {
		t.Fatalf("entries = %d, want 2", len(book))
	}

	if book[0].Address != "alpha" || book[0].Rank != 1 {
		t.Errorf("top entry = %s rank %d, want alpha rank 1", book[0].Address, book[0].Rank)
	}
	if book[1].Address != "beta" || book[1].Rank != 2 {
		t.Errorf("second entry = %s rank %d, want beta rank 2", book[1].Address, book[1].Rank)
	}

	// alpha: profitable cluster keeps its average confidence.
	if book[0].TrustScore != book[0].Confidence {
		t.Errorf("alpha score = %f, want %f", book[0].TrustScore, book[0].Confidence)
	}
	// beta: non-positive cluster pnl halves the score.
	if book[1].TrustScore != book[1].Confidence*0.5 {
		t.Errorf("beta score = %f, want %f", book[1].TrustScore, book[1].Confidence*0.5)
	}
	if book[1].ChildrenPnL != -600 {
		t.Errorf("beta cluster pnl = %f, want -600", book[1].ChildrenPnL)
	}
}

func TestBlackBook_EmptyGraph(t *testing.T) {
	engine, _, _ := newTestEngine()

	book, err := engine.BlackBook(context.Background())
	if err != nil {
		t.Fatalf("BlackBook: %v", err)
	}
	if len(book) != 0 {
		t.Errorf("entries = %d, want 0", len(book))
	}
}

func TestBlackBook_BelowWinnerThresholdExcluded(t *testing.T) {
	engine, _, _ := newTestEngine()
	ctx := context.Background()
	now := time.Now()

	// Two winning children is one short of the mother threshold.
	for _, child := range []string{"c1", "c2"} {
		w, err := engine.Track(ctx, child, domain.TierB)
		if err != nil {
			t.Fatalf("Track: %v", err)
		}
		w.WinCount = 1
		w.Confidence = 0.8
		w.LastWin = &now
		if err := engine.wallets.Save(ctx, w); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if err := engine.RecordFunding(ctx, &domain.FundingEdge{
			Funder: "smalltime", Funded: child, Timestamp: now, TxRef: "tx-" + child,
		}); err != nil {
			t.Fatalf("RecordFunding: %v", err)
		}
	}

	book, err := engine.BlackBook(ctx)
	if err != nil {
		t.Fatalf("BlackBook: %v", err)
	}
	if len(book) != 0 {
		t.Errorf("entries = %d, want 0 below the winner threshold", len(book))
	}
}
