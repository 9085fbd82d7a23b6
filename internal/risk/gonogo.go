package risk

import (
	"fmt"

	"github.com/albarami/Whale-hunter/internal/config"
)

// GoNoGoDecision is the promotion verdict.
type GoNoGoDecision string

const (
	GoNoGoGO   GoNoGoDecision = "GO"
	GoNoGoNOGO GoNoGoDecision = "NO-GO"
)

// GoNoGoInput is the observed track record fed to the checklist.
type GoNoGoInput struct {
	SignalsTracked    int64
	SimulatorAccuracy float64 // raw blocker accuracy, 0..1
	SimulatorReady    bool
	CapitalUSD        float64
	WinRate           float64
	CumulativePnL     float64
	KillSwitchTested  bool // at least one exercised kill-switch event
}

// CriterionResult represents pass/fail for one checklist item.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// GoNoGoResult is the verdict with its full checklist.
type GoNoGoResult struct {
	Decision GoNoGoDecision
	Criteria []CriterionResult
}

// EvaluateGoNoGo runs the promotion checklist. GO requires every
// criterion to hold independently; there is no weighting and no
// override.
func EvaluateGoNoGo(cfg config.GoNoGoConfig, in GoNoGoInput) *GoNoGoResult {
	criteria := make([]CriterionResult, 0, 6)

	criteria = append(criteria, CriterionResult{
		Name:      "Signals tracked",
		Threshold: fmt.Sprintf(">= %d", cfg.MinSignalsTracked),
		Actual:    fmt.Sprintf("%d", in.SignalsTracked),
		Pass:      in.SignalsTracked >= cfg.MinSignalsTracked,
	})
	criteria = append(criteria, CriterionResult{
		Name:      "Simulator accuracy",
		Threshold: fmt.Sprintf(">= %.0f%% and ready", cfg.MinSimulatorAccuracy*100),
		Actual:    fmt.Sprintf("%.1f%% (ready=%t)", in.SimulatorAccuracy*100, in.SimulatorReady),
		Pass:      in.SimulatorReady && in.SimulatorAccuracy >= cfg.MinSimulatorAccuracy,
	})
	criteria = append(criteria, CriterionResult{
		Name:      "Capital",
		Threshold: fmt.Sprintf(">= $%.0f", cfg.MinCapitalUSD),
		Actual:    fmt.Sprintf("$%.2f", in.CapitalUSD),
		Pass:      in.CapitalUSD >= cfg.MinCapitalUSD,
	})
	criteria = append(criteria, CriterionResult{
		Name:      "Win rate",
		Threshold: fmt.Sprintf(">= %.0f%%", cfg.MinWinRate*100),
		Actual:    fmt.Sprintf("%.1f%%", in.WinRate*100),
		Pass:      in.WinRate >= cfg.MinWinRate,
	})
	if cfg.RequirePositiveROI {
		criteria = append(criteria, CriterionResult{
			Name:      "Cumulative PnL",
			Threshold: "> $0",
			Actual:    fmt.Sprintf("$%.2f", in.CumulativePnL),
			Pass:      in.CumulativePnL > 0,
		})
	}
	if cfg.RequireTestedSwitch {
		criteria = append(criteria, CriterionResult{
			Name:      "Kill switch exercised",
			Threshold: "at least one event",
			Actual:    fmt.Sprintf("%t", in.KillSwitchTested),
			Pass:      in.KillSwitchTested,
		})
	}

	decision := GoNoGoGO
	for _, c := range criteria {
		if !c.Pass {
			decision = GoNoGoNOGO
			break
		}
	}
	return &GoNoGoResult{Decision: decision, Criteria: criteria}
}
