// Package volume gates entries on participation: a setup only trades when
// recent volume confirms real buying interest.
package volume

import (
	"fmt"

	"github.com/sawpanic/intradayrun/internal/market"
)

// Check is the outcome of a volume gate evaluation.
type Check struct {
	Passed         bool    `json:"passed"`
	RelativeVolume float64 `json:"relative_volume"`
	Message        string  `json:"message"`
}

// Gate confirms or rejects a setup on recent volume. Implementations are
// stateless and fail closed on short windows.
type Gate interface {
	Name() string
	Check(bars market.Series) Check
}

func failCheck(msg string) Check {
	return Check{Passed: false, Message: msg}
}

// SpikeGateConfig contains thresholds for breakout volume confirmation.
type SpikeGateConfig struct {
	LookbackBars      int     `yaml:"lookback_bars"`
	MinRelativeVolume float64 `yaml:"min_relative_volume"`
	SpikeThreshold    float64 `yaml:"spike_threshold"`
}

// DefaultSpikeGateConfig returns the production breakout volume thresholds.
func DefaultSpikeGateConfig() SpikeGateConfig {
	return SpikeGateConfig{
		LookbackBars:      10,
		MinRelativeVolume: 2.0,
		SpikeThreshold:    2.5,
	}
}

// SpikeGate requires the latest bar to trade at a multiple of the preceding
// average volume. Breakouts without a spike are rejected outright.
type SpikeGate struct {
	config SpikeGateConfig
}

func NewSpikeGate(config SpikeGateConfig) *SpikeGate {
	return &SpikeGate{config: config}
}

func (g *SpikeGate) Name() string { return "volume_spike" }

func (g *SpikeGate) Check(bars market.Series) Check {
	cfg := g.config
	if len(bars) < 5 {
		return failCheck("not enough bars for volume analysis")
	}

	recent := bars.Tail(cfg.LookbackBars)
	if len(recent) < 3 {
		return failCheck("not enough bars for volume analysis")
	}

	lastBar := recent[len(recent)-1]
	history := recent[:len(recent)-1]
	avgVolume := averageVolume(history)

	relativeVolume := 0.0
	if avgVolume > 0 {
		relativeVolume = lastBar.Volume / avgVolume
	}

	if relativeVolume < cfg.MinRelativeVolume {
		return Check{
			RelativeVolume: relativeVolume,
			Message: fmt.Sprintf("low breakout volume: %.2fx avg (need %.1fx+)",
				relativeVolume, cfg.MinRelativeVolume),
		}
	}
	if relativeVolume < cfg.SpikeThreshold {
		return Check{
			RelativeVolume: relativeVolume,
			Message: fmt.Sprintf("no volume spike: %.2fx avg (need %.1fx+ for strong breakout)",
				relativeVolume, cfg.SpikeThreshold),
		}
	}

	return Check{
		Passed:         true,
		RelativeVolume: relativeVolume,
		Message: fmt.Sprintf("strong breakout volume: %.2fx avg (last: %.0f vs avg: %.0f)",
			relativeVolume, lastBar.Volume, avgVolume),
	}
}

// MomentumGateConfig contains thresholds for pullback volume confirmation.
type MomentumGateConfig struct {
	LookbackBars      int     `yaml:"lookback_bars"`
	MinRelativeVolume float64 `yaml:"min_relative_volume"`
	ToppingSpike      float64 `yaml:"topping_spike"`      // Spike multiple flagging a topping tail
	ToppingWickRatio  float64 `yaml:"topping_wick_ratio"` // Upper wick vs body for topping detection
	MaxRedCandles     int     `yaml:"max_red_candles"`    // Red candles in the last 5 bars
}

// DefaultMomentumGateConfig returns the production pullback volume thresholds.
func DefaultMomentumGateConfig() MomentumGateConfig {
	return MomentumGateConfig{
		LookbackBars:      10,
		MinRelativeVolume: 1.5,
		ToppingSpike:      2.0,
		ToppingWickRatio:  1.5,
		MaxRedCandles:     4,
	}
}

// MomentumGate averages the last two bars against the preceding window,
// rejects exhaustion spikes with long upper wicks, and rejects windows
// dominated by red candles.
type MomentumGate struct {
	config MomentumGateConfig
}

func NewMomentumGate(config MomentumGateConfig) *MomentumGate {
	return &MomentumGate{config: config}
}

func (g *MomentumGate) Name() string { return "volume_momentum" }

func (g *MomentumGate) Check(bars market.Series) Check {
	cfg := g.config
	if len(bars) < 5 {
		return failCheck("not enough bars for volume analysis")
	}

	recent := bars.Tail(cfg.LookbackBars)
	if len(recent) < 3 {
		return failCheck("not enough bars for volume analysis")
	}

	lastBar := recent[len(recent)-1]
	secondLast := recent[len(recent)-2]
	history := recent[:len(recent)-2]
	avgVolume := averageVolume(history)

	avgLastTwo := (lastBar.Volume + secondLast.Volume) / 2
	relativeVolume := 0.0
	if avgVolume > 0 {
		relativeVolume = avgLastTwo / avgVolume
	}

	if relativeVolume < cfg.MinRelativeVolume {
		return Check{
			RelativeVolume: relativeVolume,
			Message: fmt.Sprintf("low relative volume: %.2fx avg of last 2 bars (need %.1fx+)",
				relativeVolume, cfg.MinRelativeVolume),
		}
	}

	// Exhaustion spike: heavy volume with a topping tail.
	if lastBar.Volume > avgVolume*cfg.ToppingSpike && lastBar.UpperWick() > lastBar.Body()*cfg.ToppingWickRatio {
		return Check{
			RelativeVolume: relativeVolume,
			Message: fmt.Sprintf("volume top detected: high volume (%.0f vs avg %.0f) with topping tail",
				lastBar.Volume, avgVolume),
		}
	}

	redCandles := 0
	for _, bar := range recent.Tail(5) {
		if bar.IsRed() {
			redCandles++
		}
	}
	if redCandles >= cfg.MaxRedCandles {
		return Check{
			RelativeVolume: relativeVolume,
			Message:        fmt.Sprintf("excessive selling pressure: %d/5 red candles", redCandles),
		}
	}

	return Check{
		Passed:         true,
		RelativeVolume: relativeVolume,
		Message: fmt.Sprintf("strong volume: %.2fx avg (last 2 bars: %.0f vs hist avg: %.0f), no topping pattern",
			relativeVolume, avgLastTwo, avgVolume),
	}
}

func averageVolume(bars market.Series) float64 {
	if len(bars) == 0 {
		return 0
	}
	total := 0.0
	for _, bar := range bars {
		total += bar.Volume
	}
	return total / float64(len(bars))
}
