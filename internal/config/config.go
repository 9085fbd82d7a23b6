// Package config holds typed configuration with explicit defaults.
// Values load from defaults, then an optional YAML file, then the
// environment; unknown thresholds are rejected at load time rather than
// propagated as zero values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	Freshness  FreshnessConfig  `yaml:"signal_freshness"`
	MarketCap  MarketCapConfig  `yaml:"market_cap_thresholds"`
	Confidence ConfidenceConfig `yaml:"confidence"`
	Cooldowns  CooldownConfig   `yaml:"cooldowns"`
	Risk       RiskConfig       `yaml:"risk"`
	First50    First50Config    `yaml:"first_50_trades"`
	KillSwitch KillSwitchConfig `yaml:"kill_switch"`
	Entropy    EntropyConfig    `yaml:"entropy"`
	GoNoGo     GoNoGoConfig     `yaml:"go_nogo_checklist"`
	Trust      TrustConfig      `yaml:"trust"`
	Honeypot   HoneypotConfig   `yaml:"honeypot"`
	Feedback   FeedbackConfig   `yaml:"feedback"`
}

// AgeWindow is a min/max token-age window for one market-cap class.
type AgeWindow struct {
	MinAge time.Duration `yaml:"min_age"`
	MaxAge time.Duration `yaml:"max_age"`
}

// FreshnessConfig holds per-class token age windows.
type FreshnessConfig struct {
	MemeCoin AgeWindow `yaml:"meme_coin"`
	MidCap   AgeWindow `yaml:"mid_cap"`
	LargeCap AgeWindow `yaml:"large_cap"`
}

// MarketCapConfig sets the class band boundaries.
type MarketCapConfig struct {
	LargeCapMinUSD float64 `yaml:"large_cap_min"`
	MidCapMinUSD   float64 `yaml:"mid_cap_min"`
}

// ConfidenceConfig holds trade-confidence thresholds and graph boosts.
type ConfidenceConfig struct {
	MinTradeConfidence   float64 `yaml:"min_trade_confidence"`
	PreservationIncrease float64 `yaml:"preservation_increase"`
	STierBoost           float64 `yaml:"s_tier_boost"`
	ATierBoost           float64 `yaml:"a_tier_boost"`
	BTierBoost           float64 `yaml:"b_tier_boost"`
}

// CooldownConfig controls signal saturation limits.
type CooldownConfig struct {
	WalletCooldown    time.Duration `yaml:"wallet_cooldown"`
	TokenCooldown     time.Duration `yaml:"token_cooldown"`
	MaxSignalsPerHour int           `yaml:"max_signals_per_hour"`
	MinLiquidityUSD   float64       `yaml:"min_liquidity_usd"`
}

// SizingTier is the position-sizing rule for one capital band.
type SizingTier struct {
	MaxPositionPct     float64 `yaml:"max_position_pct"`
	DefaultPositionPct float64 `yaml:"default_position_pct"`
}

// RiskConfig holds position sizing and drawdown thresholds.
type RiskConfig struct {
	CapitalUnder500  SizingTier `yaml:"capital_under_500"`
	Capital500To2K   SizingTier `yaml:"capital_500_2000"`
	Capital2KTo5K    SizingTier `yaml:"capital_2000_5000"`
	CapitalAbove5K   SizingTier `yaml:"capital_above_5000"`
	MinPositionUSD   float64    `yaml:"min_position_usd"`
	MaxPositionUSD   float64    `yaml:"max_position_usd"`
	DrawdownWarning  float64    `yaml:"drawdown_warning"`
	DrawdownPreserve float64    `yaml:"drawdown_preservation"`
	DrawdownStop     float64    `yaml:"drawdown_emergency"`

	PreservationSizeMultiplier float64 `yaml:"preservation_size_multiplier"`
	GraphBoostMultiplier       float64 `yaml:"graph_boost_multiplier"`
}

// First50Config holds the early-trades rules.
type First50Config struct {
	Enabled           bool          `yaml:"enabled"`
	TradeCount        int64         `yaml:"trade_count"`
	MaxPositionPct    float64       `yaml:"max_position_pct"`
	NoGraphBoost      bool          `yaml:"no_graph_boost"`
	MaxTradesFirstWeek int          `yaml:"max_trades_first_week"`
	ReviewInterval    time.Duration `yaml:"review_interval"`
}

// KillSwitchConfig holds graph and emergency trigger thresholds.
type KillSwitchConfig struct {
	MaxNewMothers24H      int           `yaml:"max_new_mothers_24h"`
	WinRateCollapse       float64       `yaml:"win_rate_collapse_threshold"`
	MinCollapsingClusters int           `yaml:"min_clusters_for_collapse"`
	ObservationPeriod     time.Duration `yaml:"observation_period"`
	MaxConsecutiveLosses  int           `yaml:"max_consecutive_losses"`
	MaxHourlyLossPct      float64       `yaml:"max_hourly_loss_pct"`
}

// EntropyConfig controls anti-pattern execution jitter.
type EntropyConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DelayMin        time.Duration `yaml:"delay_min"`
	DelayMax        time.Duration `yaml:"delay_max"`
	SkipProbability float64       `yaml:"skip_probability"`
	WalletRotation  bool          `yaml:"wallet_rotation"`
	JitterMin       float64       `yaml:"position_jitter_min"`
	JitterMax       float64       `yaml:"position_jitter_max"`
}

// GoNoGoConfig holds the promotion checklist minimums.
type GoNoGoConfig struct {
	MinSignalsTracked    int64   `yaml:"min_signals_tracked"`
	MinSimulatorAccuracy float64 `yaml:"min_simulator_accuracy"`
	MinCapitalUSD        float64 `yaml:"min_capital_usd"`
	MinWinRate           float64 `yaml:"min_win_rate"`
	RequirePositiveROI   bool    `yaml:"require_positive_roi"`
	RequireTestedSwitch  bool    `yaml:"require_tested_kill_switch"`
}

// FeedbackConfig holds the false-positive thresholds that scale the
// strategy's capital allocation down as executed losers accumulate.
type FeedbackConfig struct {
	WarnFPRate        float64 `yaml:"warn_fp_rate"`
	ReduceFPRate      float64 `yaml:"reduce_fp_rate"`
	DisableFPRate     float64 `yaml:"disable_fp_rate"`
	MinClusterSignals int     `yaml:"min_cluster_signals"`
}

// TrustConfig holds the calibration constants of the trust engine. The
// values are domain-tuned, not structural; keep them configurable.
type TrustConfig struct {
	MinWinsForTrust     int           `yaml:"min_wins_for_trust"`
	ConfidenceHalfLife  time.Duration `yaml:"confidence_half_life"`
	EdgeHalfLife        time.Duration `yaml:"edge_half_life"`
	WinBoost            float64       `yaml:"win_boost"`
	LossPenalty         float64       `yaml:"loss_penalty"`
	PnLWeight           float64       `yaml:"pnl_weight"`
	PnLNormalizationUSD float64       `yaml:"pnl_normalization_usd"`
	CEXPenalty          float64       `yaml:"cex_penalty"`
	HopDecay            float64       `yaml:"hop_decay"`
	InsiderMinConfidence float64      `yaml:"insider_min_confidence"`
	EdgeConfidenceFloor float64       `yaml:"edge_confidence_floor"`
	EdgePruneFloor      float64       `yaml:"edge_prune_floor"`
	ConfidenceFloor     float64       `yaml:"confidence_floor"`
	MinFundedWinners    int           `yaml:"min_funded_winners"`
	ClusterWindow       time.Duration `yaml:"cluster_window"`
	ClusterMinWallets   int           `yaml:"cluster_min_wallets"`
}

// HoneypotConfig holds the probe classifier settings.
type HoneypotConfig struct {
	ProbeAmountSOL   float64       `yaml:"probe_amount_sol"`
	MaxEffectiveTax  float64       `yaml:"max_effective_tax_pct"`
	HighTaxWarning   float64       `yaml:"high_tax_warning_pct"`
	ReadinessSignals int           `yaml:"readiness_signals"`
	ReadinessFloor   float64       `yaml:"readiness_accuracy"`
	CallTimeout      time.Duration `yaml:"call_timeout"`
}

// Default returns the configuration with every field set to its
// documented default.
func Default() *Config {
	return &Config{
		Freshness: FreshnessConfig{
			MemeCoin: AgeWindow{MinAge: time.Hour, MaxAge: 48 * time.Hour},
			MidCap:   AgeWindow{MinAge: 30 * time.Minute, MaxAge: 72 * time.Hour},
			LargeCap: AgeWindow{MinAge: 0, MaxAge: 168 * time.Hour},
		},
		MarketCap: MarketCapConfig{
			LargeCapMinUSD: 100_000_000,
			MidCapMinUSD:   10_000_000,
		},
		Confidence: ConfidenceConfig{
			MinTradeConfidence:   0.60,
			PreservationIncrease: 0.15,
			STierBoost:           0.25,
			ATierBoost:           0.15,
			BTierBoost:           0.05,
		},
		Cooldowns: CooldownConfig{
			WalletCooldown:    time.Hour,
			TokenCooldown:     30 * time.Minute,
			MaxSignalsPerHour: 10,
			MinLiquidityUSD:   10_000,
		},
		Risk: RiskConfig{
			CapitalUnder500:  SizingTier{MaxPositionPct: 0.05, DefaultPositionPct: 0.03},
			Capital500To2K:   SizingTier{MaxPositionPct: 0.08, DefaultPositionPct: 0.05},
			Capital2KTo5K:    SizingTier{MaxPositionPct: 0.10, DefaultPositionPct: 0.07},
			CapitalAbove5K:   SizingTier{MaxPositionPct: 0.10, DefaultPositionPct: 0.08},
			MinPositionUSD:   5,
			MaxPositionUSD:   500,
			DrawdownWarning:  0.10,
			DrawdownPreserve: 0.15,
			DrawdownStop:     0.25,

			PreservationSizeMultiplier: 0.25,
			GraphBoostMultiplier:       1.20,
		},
		First50: First50Config{
			Enabled:            true,
			TradeCount:         50,
			MaxPositionPct:     0.03,
			NoGraphBoost:       true,
			MaxTradesFirstWeek: 5,
			ReviewInterval:     24 * time.Hour,
		},
		KillSwitch: KillSwitchConfig{
			MaxNewMothers24H:      10,
			WinRateCollapse:       0.30,
			MinCollapsingClusters: 3,
			ObservationPeriod:     72 * time.Hour,
			MaxConsecutiveLosses:  5,
			MaxHourlyLossPct:      0.05,
		},
		Entropy: EntropyConfig{
			Enabled:         true,
			DelayMin:        5 * time.Millisecond,
			DelayMax:        30 * time.Millisecond,
			SkipProbability: 0.10,
			WalletRotation:  true,
			JitterMin:       0.95,
			JitterMax:       1.05,
		},
		GoNoGo: GoNoGoConfig{
			MinSignalsTracked:    50,
			MinSimulatorAccuracy: 0.95,
			MinCapitalUSD:        5000,
			MinWinRate:           0.55,
			RequirePositiveROI:   true,
			RequireTestedSwitch:  true,
		},
		Trust: TrustConfig{
			MinWinsForTrust:      3,
			ConfidenceHalfLife:   30 * 24 * time.Hour,
			EdgeHalfLife:         60 * 24 * time.Hour,
			WinBoost:             1.1,
			LossPenalty:          0.7,
			PnLWeight:            0.7,
			PnLNormalizationUSD:  1000,
			CEXPenalty:           0.5,
			HopDecay:             0.8,
			InsiderMinConfidence: 0.5,
			EdgeConfidenceFloor:  0.3,
			EdgePruneFloor:       0.05,
			ConfidenceFloor:      0.01,
			MinFundedWinners:     3,
			ClusterWindow:        30 * time.Second,
			ClusterMinWallets:    5,
		},
		Honeypot: HoneypotConfig{
			ProbeAmountSOL:   0.01,
			MaxEffectiveTax:  10.0,
			HighTaxWarning:   5.0,
			ReadinessSignals: 50,
			ReadinessFloor:   0.95,
			CallTimeout:      10 * time.Second,
		},
		Feedback: FeedbackConfig{
			WarnFPRate:        0.20,
			ReduceFPRate:      0.30,
			DisableFPRate:     0.40,
			MinClusterSignals: 5,
		},
	}
}

// Load returns Default overlaid with the YAML file at path. An empty
// path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that would break the engine's
// fail-closed invariants.
func (c *Config) Validate() error {
	if c.Risk.DrawdownPreserve >= c.Risk.DrawdownStop {
		return fmt.Errorf("drawdown preservation %.2f must be below emergency %.2f",
			c.Risk.DrawdownPreserve, c.Risk.DrawdownStop)
	}
	if c.Risk.DrawdownWarning >= c.Risk.DrawdownPreserve {
		return fmt.Errorf("drawdown warning %.2f must be below preservation %.2f",
			c.Risk.DrawdownWarning, c.Risk.DrawdownPreserve)
	}
	if c.Confidence.MinTradeConfidence <= 0 || c.Confidence.MinTradeConfidence > 1 {
		return fmt.Errorf("min trade confidence %.2f outside (0,1]", c.Confidence.MinTradeConfidence)
	}
	if c.Trust.WinBoost < 1 {
		return fmt.Errorf("win boost %.2f must be >= 1", c.Trust.WinBoost)
	}
	if c.Trust.LossPenalty <= 0 || c.Trust.LossPenalty >= 1 {
		return fmt.Errorf("loss penalty %.2f outside (0,1)", c.Trust.LossPenalty)
	}
	if c.Entropy.JitterMin > c.Entropy.JitterMax {
		return fmt.Errorf("jitter min %.2f above max %.2f", c.Entropy.JitterMin, c.Entropy.JitterMax)
	}
	if c.Entropy.SkipProbability < 0 || c.Entropy.SkipProbability >= 1 {
		return fmt.Errorf("skip probability %.2f outside [0,1)", c.Entropy.SkipProbability)
	}
	if c.Honeypot.MaxEffectiveTax <= 0 {
		return fmt.Errorf("max effective tax %.1f must be positive", c.Honeypot.MaxEffectiveTax)
	}
	if c.MarketCap.MidCapMinUSD >= c.MarketCap.LargeCapMinUSD {
		return fmt.Errorf("mid cap floor %.0f must be below large cap floor %.0f",
			c.MarketCap.MidCapMinUSD, c.MarketCap.LargeCapMinUSD)
	}
	if !(c.Feedback.WarnFPRate < c.Feedback.ReduceFPRate && c.Feedback.ReduceFPRate < c.Feedback.DisableFPRate) {
		return fmt.Errorf("false-positive thresholds must be ordered warn < reduce < disable")
	}
	return nil
}

// SizingFor returns the sizing tier for the given capital.
func (r *RiskConfig) SizingFor(capital float64) SizingTier {
	switch {
	case capital < 500:
		return r.CapitalUnder500
	case capital < 2000:
		return r.Capital500To2K
	case capital < 5000:
		return r.Capital2KTo5K
	default:
		return r.CapitalAbove5K
	}
}

// WindowFor returns the freshness window for a market-cap class.
func (f *FreshnessConfig) WindowFor(class string) AgeWindow {
	switch class {
	case "large_cap":
		return f.LargeCap
	case "mid_cap":
		return f.MidCap
	default:
		return f.MemeCoin
	}
}
