package pattern

import (
	"fmt"

	"github.com/sawpanic/intradayrun/internal/market"
)

// BreakoutConfig contains thresholds for consolidation-breakout detection.
type BreakoutConfig struct {
	LookbackBars             int     `yaml:"lookback_bars"`               // Window examined for the pattern
	MinBars                  int     `yaml:"min_bars"`                    // Minimum bars before any detection
	ConsolidationLookback    int     `yaml:"consolidation_lookback"`     // Bars scanned for the consolidation
	MinConsolidationBars     int     `yaml:"min_consolidation_bars"`     // Minimum consolidation length
	MaxConsolidationRangePct float64 `yaml:"max_consolidation_range_pct"` // Consolidation must be tight
	MinBreakoutPct           float64 `yaml:"min_breakout_pct"`            // Break above consolidation high
	MomentumBars             int     `yaml:"momentum_bars"`               // Breakout must occur in the last N bars
	RetreatTolerancePct      float64 `yaml:"retreat_tolerance_pct"`       // Final bar may not retreat below this
}

// DefaultBreakoutConfig returns the production breakout thresholds.
func DefaultBreakoutConfig() BreakoutConfig {
	return BreakoutConfig{
		LookbackBars:             30,
		MinBars:                  10,
		ConsolidationLookback:    15,
		MinConsolidationBars:     5,
		MaxConsolidationRangePct: 3.0,
		MinBreakoutPct:           1.5,
		MomentumBars:             3,
		RetreatTolerancePct:      0.5,
	}
}

// BreakoutPolicy detects a tight consolidation followed by a fresh breakout:
// a low-range sub-window, a high in the last few bars exceeding the
// consolidation high by a minimum percentage, and a final green bar holding
// near the breakout extreme.
type BreakoutPolicy struct {
	config BreakoutConfig
}

// NewBreakoutPolicy creates a breakout detector with the given thresholds.
func NewBreakoutPolicy(config BreakoutConfig) *BreakoutPolicy {
	return &BreakoutPolicy{config: config}
}

func (p *BreakoutPolicy) Name() string { return "breakout" }

// Detect classifies the bar window. Reference prices are the consolidation
// low and high.
func (p *BreakoutPolicy) Detect(bars market.Series) Detection {
	cfg := p.config
	if len(bars) < cfg.MinBars {
		return noMatch("not enough bars")
	}

	recent := bars.Tail(cfg.LookbackBars)
	if len(recent) < 8 {
		return noMatch("insufficient data")
	}

	// Consolidation window excludes the bars reserved for the breakout.
	consolidationEnd := len(recent) - cfg.MomentumBars
	consolidationStart := consolidationEnd - cfg.ConsolidationLookback
	if consolidationStart < 0 {
		consolidationStart = 0
	}
	if consolidationEnd-consolidationStart < cfg.MinConsolidationBars {
		return noMatch("not enough bars for consolidation")
	}

	consolidation := recent[consolidationStart:consolidationEnd]
	consolidationHigh, _ := consolidation.HighestHigh()
	consolidationLow := consolidation.LowestLow()
	rangePct := (consolidationHigh - consolidationLow) / consolidationLow * 100

	if rangePct > cfg.MaxConsolidationRangePct {
		return noMatch(fmt.Sprintf("consolidation too wide: %.2f%% (need < %.1f%%)",
			rangePct, cfg.MaxConsolidationRangePct))
	}

	breakoutHigh, _ := recent[consolidationEnd:].HighestHigh()
	if breakoutHigh <= consolidationHigh {
		return noMatch(fmt.Sprintf("no breakout: high %.2f <= consolidation %.2f",
			breakoutHigh, consolidationHigh))
	}

	breakoutPct := (breakoutHigh - consolidationHigh) / consolidationHigh * 100
	if breakoutPct < cfg.MinBreakoutPct {
		return noMatch(fmt.Sprintf("breakout too weak: %.2f%% (need %.1f%%+)",
			breakoutPct, cfg.MinBreakoutPct))
	}

	lastBar := recent[len(recent)-1]
	if !lastBar.IsGreen() {
		return noMatch("last bar not green")
	}
	if lastBar.High < consolidationHigh*(1+cfg.RetreatTolerancePct/100) {
		return noMatch("current bar retreated from breakout")
	}

	return Detection{
		Matched: true,
		Message: fmt.Sprintf("breakout: consolidated %.2f-%.2f (%.1f%% range), broke out +%.1f%% to %.2f",
			consolidationLow, consolidationHigh, rangePct, breakoutPct, breakoutHigh),
		ReferenceLow:  consolidationLow,
		ReferenceHigh: consolidationHigh,
	}
}
