package config

import (
	"errors"
	"fmt"
	"time"
)

// ExitSizing selects how protective levels are derived from entry.
type ExitSizing string

const (
	// ExitFixedPips places stop/target at fixed pip offsets (observed
	// production behavior).
	ExitFixedPips ExitSizing = "fixed_pips"
	// ExitATR sizes stop/target as ATR multiples.
	ExitATR ExitSizing = "atr"
)

// StrategyConfig holds all tunable parameters for one strategy. One
// parameterized strategy type consumes this instead of N copy-pasted
// variants differing only in thresholds.
type StrategyConfig struct {
	// Indicator periods
	EMAFast   int `yaml:"ema_fast"`
	EMASlow   int `yaml:"ema_slow"`
	RSIPeriod int `yaml:"rsi_period"`
	ATRPeriod int `yaml:"atr_period"`
	SRWindow  int `yaml:"sr_window"` // support/resistance lookback

	// History
	HistoryCap      int `yaml:"history_cap"`
	MinWarmupPrices int `yaml:"min_warmup_prices"`

	// Base (strictest) signal thresholds; relaxation levels are derived
	// from these.
	MinConfidence float64 `yaml:"min_confidence"`  // [0,1]
	MaxVolatility float64 `yaml:"max_volatility"`  // % per tick
	MaxSpreadPips float64 `yaml:"max_spread_pips"` // pips

	// Progressive relaxation
	RelaxSteps int     `yaml:"relax_steps"` // levels beyond the base
	RelaxPct   float64 `yaml:"relax_pct"`   // loosening per level

	// Breakout fallback (disabled when BreakoutPct == 0)
	BreakoutLookback int     `yaml:"breakout_lookback"`
	BreakoutPct      float64 `yaml:"breakout_pct"` // % move over the lookback

	// Exit sizing
	ExitSizing      ExitSizing `yaml:"exit_sizing"`
	StopPips        float64    `yaml:"stop_pips"`
	TakeProfitPips  float64    `yaml:"take_profit_pips"`
	ATRStopMult     float64    `yaml:"atr_stop_mult"`
	ATRTakeProfitMult float64  `yaml:"atr_take_profit_mult"`

	// Sizing and caps
	BaseUnits       float64 `yaml:"base_units"`
	MaxTradesPerDay int     `yaml:"max_trades_per_day"`
}

// DefaultStrategyConfig returns a conservative parameter bundle suitable for
// majors and gold.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		EMAFast:          5,
		EMASlow:          20,
		RSIPeriod:        14,
		ATRPeriod:        14,
		SRWindow:         20,
		HistoryCap:       200,
		MinWarmupPrices:  20,
		MinConfidence:    0.45,
		MaxVolatility:    0.5,
		MaxSpreadPips:    3.0,
		RelaxSteps:       2,
		RelaxPct:         0.25,
		BreakoutLookback: 10,
		BreakoutPct:      0.3,
		ExitSizing:       ExitFixedPips,
		StopPips:         20,
		TakeProfitPips:   40,
		ATRStopMult:      1.5,
		ATRTakeProfitMult: 3.0,
		BaseUnits:        1000,
		MaxTradesPerDay:  5,
	}
}

// Validate checks that all fields are within sensible bounds. It returns the
// first encountered error so the caller can surface a clear configuration
// problem before any trading starts.
func (c *StrategyConfig) Validate() error {
	if c.EMAFast <= 0 || c.EMASlow <= 0 {
		return errors.New("EMA periods must be positive")
	}
	if c.EMAFast >= c.EMASlow {
		return fmt.Errorf("EMAFast (%d) must be shorter than EMASlow (%d)", c.EMAFast, c.EMASlow)
	}
	if c.RSIPeriod <= 0 {
		return errors.New("RSIPeriod must be positive")
	}
	if c.ATRPeriod <= 0 {
		return errors.New("ATRPeriod must be positive")
	}
	if c.SRWindow <= 0 {
		return errors.New("SRWindow must be positive")
	}
	if c.HistoryCap < c.MinWarmupPrices {
		return fmt.Errorf("HistoryCap (%d) below MinWarmupPrices (%d)", c.HistoryCap, c.MinWarmupPrices)
	}
	if c.MinWarmupPrices <= c.EMASlow {
		return fmt.Errorf("MinWarmupPrices (%d) must exceed EMASlow (%d)", c.MinWarmupPrices, c.EMASlow)
	}
	if c.MinConfidence <= 0 || c.MinConfidence > 1 {
		return fmt.Errorf("MinConfidence (%f) must be in (0,1]", c.MinConfidence)
	}
	if c.MaxVolatility <= 0 {
		return errors.New("MaxVolatility must be positive")
	}
	if c.MaxSpreadPips <= 0 {
		return errors.New("MaxSpreadPips must be positive")
	}
	if c.RelaxSteps < 0 {
		return errors.New("RelaxSteps cannot be negative")
	}
	if c.RelaxPct < 0 || c.RelaxPct >= 1 {
		return fmt.Errorf("RelaxPct (%f) must be in [0,1)", c.RelaxPct)
	}
	if c.BreakoutPct < 0 {
		return errors.New("BreakoutPct cannot be negative")
	}
	if c.BreakoutPct > 0 && c.BreakoutLookback <= 0 {
		return errors.New("BreakoutLookback must be positive when the breakout fallback is enabled")
	}
	switch c.ExitSizing {
	case ExitFixedPips:
		if c.StopPips <= 0 || c.TakeProfitPips <= 0 {
			return errors.New("StopPips and TakeProfitPips must be positive")
		}
	case ExitATR:
		if c.ATRStopMult <= 0 || c.ATRTakeProfitMult <= 0 {
			return errors.New("ATR multiples must be positive")
		}
	default:
		return fmt.Errorf("unknown ExitSizing %q", c.ExitSizing)
	}
	if c.BaseUnits <= 0 {
		return errors.New("BaseUnits must be positive")
	}
	if c.MaxTradesPerDay <= 0 {
		return errors.New("MaxTradesPerDay must be positive")
	}
	return nil
}

// Thresholds is the live, adaptable subset of a strategy's parameters.
type Thresholds struct {
	MinConfidence float64
	MaxVolatility float64
	MaxSpreadPips float64
}

// Level is one rung of the progressive-relaxation ladder.
type Level struct {
	N             int // 1 = strictest
	MinConfidence float64
	MaxVolatility float64
	MaxSpreadPips float64
}

// RelaxationLevels expands the current thresholds into an ordered ladder,
// strictest first. Level 1 is the thresholds as-is; each further level
// loosens all three by relaxPct relative to the previous one.
func RelaxationLevels(t Thresholds, steps int, relaxPct float64) []Level {
	out := make([]Level, 0, steps+1)
	cur := Level{N: 1, MinConfidence: t.MinConfidence, MaxVolatility: t.MaxVolatility, MaxSpreadPips: t.MaxSpreadPips}
	out = append(out, cur)
	for i := 0; i < steps; i++ {
		cur = Level{
			N:             cur.N + 1,
			MinConfidence: cur.MinConfidence * (1 - relaxPct),
			MaxVolatility: cur.MaxVolatility * (1 + relaxPct),
			MaxSpreadPips: cur.MaxSpreadPips * (1 + relaxPct),
		}
		out = append(out, cur)
	}
	return out
}

// SessionWindow is a trading window in minutes from UTC midnight.
type SessionWindow struct {
	Name  string `yaml:"name"`
	Open  int    `yaml:"open"`  // inclusive
	Close int    `yaml:"close"` // exclusive
}

// Contains reports whether t (converted to UTC) falls inside the window.
func (w SessionWindow) Contains(t time.Time) bool {
	u := t.UTC()
	m := u.Hour()*60 + u.Minute()
	return m >= w.Open && m < w.Close
}

// DefaultSessions is the London/New York union used when the registry does
// not override sessions.
func DefaultSessions() []SessionWindow {
	return []SessionWindow{
		{Name: "london", Open: 7 * 60, Close: 16 * 60},
		{Name: "newyork", Open: 13 * 60, Close: 21 * 60},
	}
}

// RiskLimits is the per-account risk configuration snapshot. Read-only
// during a gate evaluation; replaced wholesale on reload.
type RiskLimits struct {
	MaxConcurrentPositions int             `yaml:"max_concurrent_positions"`
	MaxMarginUsagePct      float64         `yaml:"max_margin_usage_pct"`
	MinSignalStrength      float64         `yaml:"min_signal_strength"`
	MaxSpreadPips          float64         `yaml:"max_spread_pips"`
	MaxCorrelatedPairs     int             `yaml:"max_correlated_pairs"`
	MinMarginAvailablePct  float64         `yaml:"min_margin_available_pct"`
	Sessions               []SessionWindow `yaml:"sessions"`
}

func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxConcurrentPositions: 3,
		MaxMarginUsagePct:      80,
		MinSignalStrength:      0.4,
		MaxSpreadPips:          4,
		MaxCorrelatedPairs:     2,
		MinMarginAvailablePct:  20,
		Sessions:               DefaultSessions(),
	}
}

func (r *RiskLimits) Validate() error {
	if r.MaxConcurrentPositions < 0 {
		return errors.New("MaxConcurrentPositions cannot be negative")
	}
	if r.MaxMarginUsagePct <= 0 || r.MaxMarginUsagePct > 100 {
		return fmt.Errorf("MaxMarginUsagePct (%f) must be in (0,100]", r.MaxMarginUsagePct)
	}
	if r.MinSignalStrength < 0 || r.MinSignalStrength > 1 {
		return fmt.Errorf("MinSignalStrength (%f) must be in [0,1]", r.MinSignalStrength)
	}
	if r.MaxSpreadPips <= 0 {
		return errors.New("MaxSpreadPips must be positive")
	}
	if r.MaxCorrelatedPairs < 0 {
		return errors.New("MaxCorrelatedPairs cannot be negative")
	}
	if r.MinMarginAvailablePct < 0 || r.MinMarginAvailablePct > 100 {
		return fmt.Errorf("MinMarginAvailablePct (%f) must be in [0,100]", r.MinMarginAvailablePct)
	}
	for _, s := range r.Sessions {
		if s.Open < 0 || s.Close > 24*60 || s.Open >= s.Close {
			return fmt.Errorf("session %q window [%d,%d) invalid", s.Name, s.Open, s.Close)
		}
	}
	return nil
}

// AdaptiveConfig tunes the hysteresis threshold controller.
type AdaptiveConfig struct {
	Cadence      time.Duration `yaml:"cadence"`
	StaleAfter   time.Duration `yaml:"stale_after"`
	LoosenPct    float64       `yaml:"loosen_pct"`
	TightenPct   float64       `yaml:"tighten_pct"`
	MinSamples   int           `yaml:"min_samples"`
	LowWaterPct  float64       `yaml:"low_water_pct"`  // win rate below => tighten
	HighWaterPct float64       `yaml:"high_water_pct"` // win rate above => loosen
}

func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		Cadence:      30 * time.Minute,
		StaleAfter:   60 * time.Minute,
		LoosenPct:    0.10,
		TightenPct:   0.05,
		MinSamples:   10,
		LowWaterPct:  0.60,
		HighWaterPct: 0.80,
	}
}

func (a *AdaptiveConfig) Validate() error {
	if a.Cadence <= 0 || a.StaleAfter <= 0 {
		return errors.New("Cadence and StaleAfter must be positive")
	}
	if a.LoosenPct <= 0 || a.LoosenPct >= 1 {
		return fmt.Errorf("LoosenPct (%f) must be in (0,1)", a.LoosenPct)
	}
	if a.TightenPct <= 0 || a.TightenPct >= 1 {
		return fmt.Errorf("TightenPct (%f) must be in (0,1)", a.TightenPct)
	}
	if a.MinSamples <= 0 {
		return errors.New("MinSamples must be positive")
	}
	if a.LowWaterPct <= 0 || a.LowWaterPct >= a.HighWaterPct || a.HighWaterPct >= 1 {
		return fmt.Errorf("water marks (%f, %f) must satisfy 0 < low < high < 1", a.LowWaterPct, a.HighWaterPct)
	}
	return nil
}
