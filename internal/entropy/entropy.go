// Package entropy applies anti-fingerprinting jitter to approved
// executions: a probabilistic full skip, a bounded submission delay,
// round-robin wallet rotation and multiplicative size jitter. Each
// knob draws from its own named random stream so the draws stay
// independent per decision.
package entropy

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/albarami/Whale-hunter/internal/config"
)

// Plan is the transform for one approved execution.
type Plan struct {
	Skip         bool
	Delay        time.Duration
	Wallet       string
	SizeUSD      float64
	JitterFactor float64
}

// Layer holds the per-stream generators and the wallet rotation state.
type Layer struct {
	cfg     config.EntropyConfig
	wallets []string

	mu     sync.Mutex
	next   int
	skip   *rand.Rand
	delay  *rand.Rand
	jitter *rand.Rand
}

// New creates an entropy layer over the given execution wallet set.
// Seed 0 seeds from the clock; any other value makes the layer
// deterministic for tests.
func New(cfg config.EntropyConfig, wallets []string, seed int64) *Layer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Layer{
		cfg:     cfg,
		wallets: wallets,
		skip:    rand.New(rand.NewSource(deriveSeed(seed, "skip"))),
		delay:   rand.New(rand.NewSource(deriveSeed(seed, "delay"))),
		jitter:  rand.New(rand.NewSource(deriveSeed(seed, "jitter"))),
	}
}

// Apply draws one plan for an execution of sizeUSD. The jittered size
// never exceeds maxSizeUSD, the risk engine's clamp.
func (l *Layer) Apply(sizeUSD, maxSizeUSD float64) Plan {
	l.mu.Lock()
	defer l.mu.Unlock()

	plan := Plan{SizeUSD: sizeUSD, JitterFactor: 1.0}
	if len(l.wallets) > 0 {
		plan.Wallet = l.wallets[0]
		if l.cfg.WalletRotation {
			plan.Wallet = l.wallets[l.next%len(l.wallets)]
			l.next++
		}
	}
	if !l.cfg.Enabled {
		return plan
	}

	if l.skip.Float64() < l.cfg.SkipProbability {
		plan.Skip = true
		return plan
	}

	spread := l.cfg.DelayMax - l.cfg.DelayMin
	plan.Delay = l.cfg.DelayMin
	if spread > 0 {
		plan.Delay += time.Duration(l.delay.Int63n(int64(spread)))
	}

	plan.JitterFactor = l.cfg.JitterMin + l.jitter.Float64()*(l.cfg.JitterMax-l.cfg.JitterMin)
	plan.SizeUSD = sizeUSD * plan.JitterFactor
	if plan.SizeUSD > maxSizeUSD {
		plan.SizeUSD = maxSizeUSD
	}
	return plan
}

// Wait sleeps for the plan's delay, returning early on cancellation.
func (l *Layer) Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func deriveSeed(base int64, name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64()) ^ base
}
