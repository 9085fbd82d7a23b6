package honeypot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/albarami/Whale-hunter/internal/config"
)

type fakeSimulator struct {
	result *SimResult
	err    error
	block  time.Duration
}

func (f *fakeSimulator) SimulateRoundTrip(ctx context.Context, _ string, _ float64) (*SimResult, error) {
	if f.block > 0 {
		select {
		case <-time.After(f.block):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func newChecker(sim Simulator) *Checker {
	return NewChecker(sim, config.Default().Honeypot, nil)
}

func TestCheck_CleanTokenPasses(t *testing.T) {
	checker := newChecker(&fakeSimulator{
		result: &SimResult{SellSucceeded: true, EffectiveTaxPct: 1.2},
	})

	v, err := checker.Check(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !v.Pass || v.TaxPct != 1.2 {
		t.Errorf("unexpected verdict: %+v", v)
	}
}

func TestCheck_FailedSellIsFullTax(t *testing.T) {
	checker := newChecker(&fakeSimulator{
		result: &SimResult{SellSucceeded: false, Reason: "sell reverted: frozen account"},
	})

	v, err := checker.Check(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Pass {
		t.Error("honeypot passed")
	}
	if v.TaxPct != 100 {
		t.Errorf("tax = %f, want 100 for a failed sell", v.TaxPct)
	}
	if v.Reason != "sell reverted: frozen account" {
		t.Errorf("reason = %q", v.Reason)
	}
}

func TestCheck_TaxCeiling(t *testing.T) {
	// 10% is the ceiling; just above blocks, at the ceiling passes.
	checker := newChecker(&fakeSimulator{
		result: &SimResult{SellSucceeded: true, EffectiveTaxPct: 10.1},
	})
	v, _ := checker.Check(context.Background(), "tok")
	if v.Pass {
		t.Error("10.1%% tax passed the 10%% ceiling")
	}

	checker = newChecker(&fakeSimulator{
		result: &SimResult{SellSucceeded: true, EffectiveTaxPct: 10.0},
	})
	v, _ = checker.Check(context.Background(), "tok")
	if !v.Pass {
		t.Error("tax at the ceiling should pass")
	}
}

func TestCheck_SimulatorErrorFailsClosed(t *testing.T) {
	checker := newChecker(&fakeSimulator{err: errors.New("rpc unavailable")})

	v, err := checker.Check(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Pass {
		t.Error("simulator outage must block, not pass")
	}
}

func TestCheck_TimeoutFailsClosed(t *testing.T) {
	cfg := config.Default().Honeypot
	cfg.CallTimeout = 10 * time.Millisecond
	checker := NewChecker(&fakeSimulator{
		block:  time.Second,
		result: &SimResult{SellSucceeded: true},
	}, cfg, nil)

	v, err := checker.Check(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Pass {
		t.Error("slow simulator must block, not pass")
	}
}
