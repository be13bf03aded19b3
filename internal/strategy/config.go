// Package strategy holds the trading rules: entry gate evaluation, trade
// planning, exit logic, and the session clock that scopes them to the
// trading day.
package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/sawpanic/intradayrun/internal/pattern"
	"github.com/sawpanic/intradayrun/internal/volume"
)

// Variant selects which pattern family the engine trades.
type Variant string

const (
	VariantBreakout Variant = "breakout"
	VariantPullback Variant = "pullback"
)

// MACDConfig contains MACD periods and the momentum requirements applied to
// the result. Breakout trading demands acceleration; pullback trading only
// demands a positive histogram.
type MACDConfig struct {
	Fast                 int  `yaml:"fast"`
	Slow                 int  `yaml:"slow"`
	Signal               int  `yaml:"signal"`
	RequireAcceleration  bool `yaml:"require_acceleration"`
	RequirePositiveHisto bool `yaml:"require_positive_histogram"`
}

// CommissionConfig models the per-share commission schedule plus the
// regulatory fee charged on sells.
type CommissionConfig struct {
	PerShare        float64 `yaml:"per_share"`
	Minimum         float64 `yaml:"minimum"`
	SECFeePerDollar float64 `yaml:"sec_fee_per_dollar"`
}

// SessionConfig defines the trading-day boundaries in the exchange zone.
// Times are "HH:MM" strings.
type SessionConfig struct {
	Timezone       string `yaml:"timezone"`
	PremarketStart string `yaml:"premarket_start"`
	MarketOpen     string `yaml:"market_open"`
	EndOfDay       string `yaml:"end_of_day"`
}

// Config is the full strategy parameter set. Percentage fields are expressed
// in percent (2.0 means 2%), matching how the thresholds are discussed.
type Config struct {
	Variant Variant `yaml:"variant"`

	TradeSizeUSD       float64 `yaml:"trade_size_usd"`        // Fixed dollar allocation per trade
	EntrySpreadPct     float64 `yaml:"entry_spread_pct"`      // Simulated spread added to entry
	ProfitTargetPct    float64 `yaml:"profit_target_pct"`     // Target above entry
	StopBufferPct      float64 `yaml:"stop_buffer_pct"`       // Buffer below the structural stop level
	MinStopDistancePct float64 `yaml:"min_stop_distance_pct"` // Plans with tighter stops are rejected
	StrongBreakoutPct  float64 `yaml:"strong_breakout_pct"`   // Entry this far above the high moves the stop up

	MACD           MACDConfig                `yaml:"macd"`
	Breakout       pattern.BreakoutConfig    `yaml:"breakout"`
	Pullback       pattern.PullbackConfig    `yaml:"pullback"`
	SpikeVolume    volume.SpikeGateConfig    `yaml:"spike_volume"`
	MomentumVolume volume.MomentumGateConfig `yaml:"momentum_volume"`
	Commission     CommissionConfig          `yaml:"commission"`
	Session        SessionConfig             `yaml:"session"`
}

// DefaultSessionConfig returns the US equity session boundaries.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Timezone:       "America/New_York",
		PremarketStart: "05:00",
		MarketOpen:     "09:30",
		EndOfDay:       "15:50",
	}
}

// DefaultCommissionConfig returns the retail broker commission schedule.
func DefaultCommissionConfig() CommissionConfig {
	return CommissionConfig{
		PerShare:        0.005,
		Minimum:         1.00,
		SECFeePerDollar: 0.0000278,
	}
}

// DefaultBreakoutStrategy returns the production breakout parameter set:
// tighter volume requirements, wider target, accelerating MACD.
func DefaultBreakoutStrategy() *Config {
	return &Config{
		Variant:            VariantBreakout,
		TradeSizeUSD:       100.0,
		EntrySpreadPct:     0.2,
		ProfitTargetPct:    25.0,
		StopBufferPct:      2.0,
		MinStopDistancePct: 2.0,
		MACD: MACDConfig{
			Fast: 12, Slow: 26, Signal: 9,
			RequireAcceleration: true,
		},
		Breakout:       pattern.DefaultBreakoutConfig(),
		Pullback:       pattern.DefaultPullbackConfig(),
		SpikeVolume:    volume.DefaultSpikeGateConfig(),
		MomentumVolume: volume.DefaultMomentumGateConfig(),
		Commission:     DefaultCommissionConfig(),
		Session:        DefaultSessionConfig(),
	}
}

// DefaultPullbackStrategy returns the production pullback parameter set.
func DefaultPullbackStrategy() *Config {
	return &Config{
		Variant:            VariantPullback,
		TradeSizeUSD:       100.0,
		EntrySpreadPct:     0.2,
		ProfitTargetPct:    20.0,
		StopBufferPct:      1.0,
		MinStopDistancePct: 2.0,
		StrongBreakoutPct:  10.0,
		MACD: MACDConfig{
			Fast: 12, Slow: 26, Signal: 9,
			RequirePositiveHisto: true,
		},
		Breakout:       pattern.DefaultBreakoutConfig(),
		Pullback:       pattern.DefaultPullbackConfig(),
		SpikeVolume:    volume.DefaultSpikeGateConfig(),
		MomentumVolume: volume.DefaultMomentumGateConfig(),
		Commission:     DefaultCommissionConfig(),
		Session:        DefaultSessionConfig(),
	}
}

// DefaultStrategyFor returns the default parameter set for a variant name.
func DefaultStrategyFor(variant Variant) (*Config, error) {
	switch variant {
	case VariantBreakout:
		return DefaultBreakoutStrategy(), nil
	case VariantPullback:
		return DefaultPullbackStrategy(), nil
	default:
		return nil, fmt.Errorf("unknown strategy variant %q", variant)
	}
}

// LoadConfig reads a strategy config from a YAML file. Missing fields keep
// the defaults of the file's declared variant.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var probe struct {
		Variant Variant `yaml:"variant"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg, err := DefaultStrategyFor(probe.Variant)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid config %s: %v", path, problems)
	}
	return cfg, nil
}

// SaveConfig writes a strategy config to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate returns a list of problems, empty when the config is usable.
func (c *Config) Validate() []string {
	var problems []string

	if c.Variant != VariantBreakout && c.Variant != VariantPullback {
		problems = append(problems, fmt.Sprintf("variant must be %q or %q, got %q",
			VariantBreakout, VariantPullback, c.Variant))
	}
	if c.TradeSizeUSD <= 0 {
		problems = append(problems, "trade_size_usd must be positive")
	}
	if c.EntrySpreadPct < 0 {
		problems = append(problems, "entry_spread_pct cannot be negative")
	}
	if c.ProfitTargetPct <= 0 {
		problems = append(problems, "profit_target_pct must be positive")
	}
	if c.StopBufferPct < 0 {
		problems = append(problems, "stop_buffer_pct cannot be negative")
	}
	if c.MinStopDistancePct <= 0 {
		problems = append(problems, "min_stop_distance_pct must be positive")
	}
	if c.MACD.Fast <= 0 || c.MACD.Slow <= 0 || c.MACD.Signal <= 0 {
		problems = append(problems, "macd periods must be positive")
	}
	if c.MACD.Fast >= c.MACD.Slow {
		problems = append(problems, "macd fast period must be below slow period")
	}
	if c.Commission.PerShare < 0 || c.Commission.Minimum < 0 || c.Commission.SECFeePerDollar < 0 {
		problems = append(problems, "commission rates cannot be negative")
	}
	if _, err := NewClock(c.Session); err != nil {
		problems = append(problems, fmt.Sprintf("session: %v", err))
	}

	return problems
}
