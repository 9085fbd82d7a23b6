package pipeline

import (
	"testing"
	"time"

	"github.com/albarami/Whale-hunter/internal/config"
)

func TestCooldownTracker_ReadyAndRemaining(t *testing.T) {
	tr := NewCooldownTracker(config.Default().Cooldowns)
	now := time.Now()

	if ok, _ := tr.WalletReady("w", now); !ok {
		t.Fatal("untracked wallet not ready")
	}

	tr.MarkExecuted("w", "tok", now)

	ok, wait := tr.WalletReady("w", now.Add(20*time.Minute))
	if ok {
		t.Error("wallet ready inside cooldown")
	}
	if wait != 40*time.Minute {
		t.Errorf("remaining = %s, want 40m", wait)
	}

	ok, wait = tr.TokenReady("tok", now.Add(10*time.Minute))
	if ok {
		t.Error("token ready inside cooldown")
	}
	if wait != 20*time.Minute {
		t.Errorf("remaining = %s, want 20m", wait)
	}

	if ok, _ = tr.WalletReady("w", now.Add(time.Hour)); !ok {
		t.Error("wallet not ready at cooldown boundary")
	}
	if ok, _ = tr.TokenReady("tok", now.Add(30*time.Minute)); !ok {
		t.Error("token not ready at cooldown boundary")
	}
}

func TestCooldownTracker_Prune(t *testing.T) {
	tr := NewCooldownTracker(config.Default().Cooldowns)
	now := time.Now()

	tr.MarkExecuted("old", "oldtok", now.Add(-3*time.Hour))
	tr.MarkExecuted("recent", "recenttok", now.Add(-10*time.Minute))
	tr.Prune(now)

	if len(tr.wallets) != 1 || len(tr.tokens) != 1 {
		t.Errorf("after prune: %d wallets, %d tokens, want 1 each", len(tr.wallets), len(tr.tokens))
	}
	if ok, _ := tr.WalletReady("recent", now); ok {
		t.Error("recent wallet lost its cooldown during prune")
	}
}
