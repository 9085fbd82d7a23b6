package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

func resolvedOutcome(id int64, mother string, outcome domain.Outcome, ts time.Time) *domain.ResolvedOutcome {
	return &domain.ResolvedOutcome{
		SignalID:     id,
		Timestamp:    ts,
		Token:        "tok1",
		Wallet:       "w1",
		MotherWallet: mother,
		Outcome:      outcome,
		PnL:          12.5,
	}
}

func TestOutcomeStore_InsertValidation(t *testing.T) {
	store := NewOutcomeStore()
	ctx := context.Background()

	if err := store.InsertResolved(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("InsertResolved(nil) = %v, want ErrInvalidInput", err)
	}
	if err := store.InsertResolved(ctx, &domain.ResolvedOutcome{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("InsertResolved(zero signal id) = %v, want ErrInvalidInput", err)
	}
	if err := store.InsertResolved(ctx, resolvedOutcome(1, "m1", domain.OutcomeWin, time.Now())); err != nil {
		t.Fatalf("InsertResolved failed: %v", err)
	}
}

func TestOutcomeStore_WinRateByCluster(t *testing.T) {
	store := NewOutcomeStore()
	ctx := context.Background()
	now := time.Now()

	rows := []*domain.ResolvedOutcome{
		resolvedOutcome(1, "alpha", domain.OutcomeWin, now),
		resolvedOutcome(2, "alpha", domain.OutcomeWin, now),
		resolvedOutcome(3, "alpha", domain.OutcomeLoss, now),
		resolvedOutcome(4, "alpha", domain.OutcomeNeutral, now),
		resolvedOutcome(5, "beta", domain.OutcomeLoss, now),
		resolvedOutcome(6, "", domain.OutcomeWin, now),
		resolvedOutcome(7, "stale", domain.OutcomeWin, now.Add(-48*time.Hour)),
	}
	for _, o := range rows {
		if err := store.InsertResolved(ctx, o); err != nil {
			t.Fatalf("InsertResolved(%d) failed: %v", o.SignalID, err)
		}
	}

	rates, err := store.WinRateByCluster(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("WinRateByCluster failed: %v", err)
	}
	if len(rates) != 2 {
		t.Fatalf("got %d clusters, want 2: %v", len(rates), rates)
	}
	// Neutral outcomes do not count toward the denominator.
	if got := rates["alpha"]; got < 0.666 || got > 0.667 {
		t.Errorf("alpha win rate = %f, want 2/3", got)
	}
	if got := rates["beta"]; got != 0 {
		t.Errorf("beta win rate = %f, want 0", got)
	}
	if _, ok := rates["stale"]; ok {
		t.Error("outcomes outside the window should be excluded")
	}
}

func TestOutcomeStore_InsertCopies(t *testing.T) {
	store := NewOutcomeStore()
	ctx := context.Background()

	o := resolvedOutcome(1, "alpha", domain.OutcomeWin, time.Now())
	if err := store.InsertResolved(ctx, o); err != nil {
		t.Fatalf("InsertResolved failed: %v", err)
	}
	o.Outcome = domain.OutcomeLoss

	rates, err := store.WinRateByCluster(ctx, time.Time{})
	if err != nil {
		t.Fatalf("WinRateByCluster failed: %v", err)
	}
	if rates["alpha"] != 1.0 {
		t.Errorf("mutating the caller's struct leaked into the store: %v", rates)
	}
}
