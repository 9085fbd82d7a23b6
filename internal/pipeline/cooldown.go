package pipeline

import (
	"sync"
	"time"

	"github.com/albarami/Whale-hunter/internal/config"
)

// CooldownTracker remembers the last executed trade per wallet and per
// token. Only executions arm a cooldown; vetoed signals leave it cold,
// otherwise a noisy wallet could lock itself out of a real move.
type CooldownTracker struct {
	mu      sync.Mutex
	cfg     config.CooldownConfig
	wallets map[string]time.Time
	tokens  map[string]time.Time
}

// NewCooldownTracker creates an empty tracker.
func NewCooldownTracker(cfg config.CooldownConfig) *CooldownTracker {
	return &CooldownTracker{
		cfg:     cfg,
		wallets: make(map[string]time.Time),
		tokens:  make(map[string]time.Time),
	}
}

// WalletReady reports whether the wallet's cooldown has elapsed, and
// the remaining wait when it has not.
func (t *CooldownTracker) WalletReady(wallet string, now time.Time) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ready(t.wallets[wallet], t.cfg.WalletCooldown, now)
}

// TokenReady reports whether the token's cooldown has elapsed.
func (t *CooldownTracker) TokenReady(token string, now time.Time) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ready(t.tokens[token], t.cfg.TokenCooldown, now)
}

// MarkExecuted arms both cooldowns after an execution.
func (t *CooldownTracker) MarkExecuted(wallet, token string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wallets[wallet] = now
	t.tokens[token] = now
}

// Prune drops entries whose cooldowns expired long ago. Called
// periodically so the maps do not grow with every wallet ever seen.
func (t *CooldownTracker) Prune(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for w, last := range t.wallets {
		if now.Sub(last) > 2*t.cfg.WalletCooldown {
			delete(t.wallets, w)
		}
	}
	for tok, last := range t.tokens {
		if now.Sub(last) > 2*t.cfg.TokenCooldown {
			delete(t.tokens, tok)
		}
	}
}

func ready(last time.Time, cooldown time.Duration, now time.Time) (bool, time.Duration) {
	if last.IsZero() {
		return true, 0
	}
	elapsed := now.Sub(last)
	if elapsed >= cooldown {
		return true, 0
	}
	return false, cooldown - elapsed
}
