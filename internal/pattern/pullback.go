package pattern

import (
	"fmt"

	"github.com/sawpanic/intradayrun/internal/market"
)

// PullbackConfig contains thresholds for surge-pullback-resumption detection.
type PullbackConfig struct {
	LookbackBars       int     `yaml:"lookback_bars"`        // Window examined for the pattern
	MinBars            int     `yaml:"min_bars"`             // Minimum bars before any detection
	MinSurgePct        float64 `yaml:"min_surge_pct"`        // Prior move qualifying as momentum
	SurgeLookbackMin   int     `yaml:"surge_lookback_min"`   // Shortest surge window tried
	SurgeLookbackMax   int     `yaml:"surge_lookback_max"`   // Longest surge window tried
	MinPullbackPct     float64 `yaml:"min_pullback_pct"`     // Retracement floor (filters noise)
	MaxPullbackPct     float64 `yaml:"max_pullback_pct"`     // Retracement ceiling (trend failure)
	RecentHighLookback int     `yaml:"recent_high_lookback"` // Bars scanned for the local high
	StaleMomentumPct   float64 `yaml:"stale_momentum_pct"`   // Max distance below the high
}

// DefaultPullbackConfig returns the production pullback thresholds.
func DefaultPullbackConfig() PullbackConfig {
	return PullbackConfig{
		LookbackBars:       30,
		MinBars:            10,
		MinSurgePct:        2.0,
		SurgeLookbackMin:   5,
		SurgeLookbackMax:   20,
		MinPullbackPct:     0.3,
		MaxPullbackPct:     5.0,
		RecentHighLookback: 15,
		StaleMomentumPct:   10.0,
	}
}

// PullbackPolicy detects surge → pullback → first bar making a new high: a
// qualifying surge in an expanding lookback, a retracement inside the
// configured band, and a final green bar taking out the prior bar's high
// while still near the local high.
type PullbackPolicy struct {
	config PullbackConfig
}

// NewPullbackPolicy creates a pullback detector with the given thresholds.
func NewPullbackPolicy(config PullbackConfig) *PullbackPolicy {
	return &PullbackPolicy{config: config}
}

func (p *PullbackPolicy) Name() string { return "pullback" }

// Detect classifies the bar window. Reference prices are the pullback low and
// the recent high.
func (p *PullbackPolicy) Detect(bars market.Series) Detection {
	cfg := p.config
	if len(bars) < cfg.MinBars {
		return noMatch("not enough bars")
	}

	recent := bars.Tail(cfg.LookbackBars)
	if len(recent) < 8 {
		return noMatch("insufficient data")
	}

	surgeLow, surgeHigh, ok := p.findSurge(recent)
	if !ok {
		return noMatch(fmt.Sprintf("no surge: need %.1f%%+ move in last %d bars",
			cfg.MinSurgePct, cfg.SurgeLookbackMax))
	}

	// Local high in the recent-high window, excluding the last two bars
	// which belong to the breakout attempt.
	highLookback := cfg.RecentHighLookback
	if highLookback > len(recent)-2 {
		highLookback = len(recent) - 2
	}
	highSegment := recent[len(recent)-highLookback-2 : len(recent)-2]
	if len(highSegment) < 3 {
		return noMatch("not enough bars for pattern")
	}
	recentHigh, highIdxInSegment := highSegment.HighestHigh()
	recentHighIdx := len(recent) - highLookback - 2 + highIdxInSegment

	if recentHighIdx >= len(recent)-2 {
		return noMatch("high too recent, no pullback yet")
	}

	afterHigh := recent[recentHighIdx+1 : len(recent)-1]
	if len(afterHigh) == 0 {
		return noMatch("no bars for pullback")
	}
	pullbackLow := afterHigh.LowestLow()
	pullbackPct := (recentHigh - pullbackLow) / recentHigh * 100

	if pullbackPct < cfg.MinPullbackPct {
		return noMatch(fmt.Sprintf("no pullback: %.2f%% < %.1f%%", pullbackPct, cfg.MinPullbackPct))
	}
	if pullbackPct > cfg.MaxPullbackPct {
		return noMatch(fmt.Sprintf("pullback too deep: %.2f%% > %.1f%%", pullbackPct, cfg.MaxPullbackPct))
	}

	lastBar := recent[len(recent)-1]
	prevBar := recent[len(recent)-2]
	if lastBar.High <= prevBar.High {
		return noMatch("no breakout - not making higher high")
	}
	if !lastBar.IsGreen() {
		return noMatch("breakout bar must close green")
	}

	distanceFromHigh := (recentHigh - lastBar.Close) / recentHigh * 100
	if distanceFromHigh > cfg.StaleMomentumPct {
		return noMatch(fmt.Sprintf("too far from high: %.1f%% below", distanceFromHigh))
	}

	surgePct := (surgeHigh - surgeLow) / surgeLow * 100
	return Detection{
		Matched: true,
		Message: fmt.Sprintf("momentum: %.1f%% surge (%.2f->%.2f), pullback %.1f%% to %.2f, breakout %.2f",
			surgePct, surgeLow, surgeHigh, pullbackPct, pullbackLow, lastBar.High),
		ReferenceLow:  pullbackLow,
		ReferenceHigh: recentHigh,
	}
}

// findSurge scans expanding lookback windows (shortest first) for a prior
// move meeting the minimum surge percentage. The last two bars are excluded
// from every window; the first qualifying window wins.
func (p *PullbackPolicy) findSurge(recent market.Series) (low, high float64, ok bool) {
	cfg := p.config
	maxLookback := cfg.SurgeLookbackMax
	if maxLookback > len(recent)-3 {
		maxLookback = len(recent) - 3
	}
	for lookback := cfg.SurgeLookbackMin; lookback <= maxLookback; lookback++ {
		start := len(recent) - lookback - 2
		if start < 0 {
			continue
		}
		segment := recent[start : len(recent)-2]
		if len(segment) < 3 {
			continue
		}
		segLow := segment.LowestLow()
		segHigh, _ := segment.HighestHigh()
		if (segHigh-segLow)/segLow*100 >= cfg.MinSurgePct {
			return segLow, segHigh, true
		}
	}
	return 0, 0, false
}
