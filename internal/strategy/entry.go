package strategy

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/intradayrun/internal/indicators"
	"github.com/sawpanic/intradayrun/internal/market"
	"github.com/sawpanic/intradayrun/internal/pattern"
	"github.com/sawpanic/intradayrun/internal/volume"
)

// GateCheck records one entry condition's outcome for reporting.
type GateCheck struct {
	Name        string  `json:"name"`
	Passed      bool    `json:"passed"`
	Value       float64 `json:"value"`
	Description string  `json:"description"`
}

// EntryResult is the full outcome of an entry evaluation. All gates are
// always evaluated so the report shows every condition's state, not just the
// first failure.
type EntryResult struct {
	Timestamp      time.Time             `json:"timestamp"`
	Passed         bool                  `json:"passed"`
	Detection      pattern.Detection     `json:"detection"`
	Checks         map[string]*GateCheck `json:"checks"`
	FailureReasons []string              `json:"failure_reasons"`
}

// Evaluator applies the entry gates for one strategy variant.
type Evaluator struct {
	config *Config
	policy pattern.Policy
	gate   volume.Gate
	clock  *Clock
}

// NewEvaluator wires the pattern policy and volume gate matching the
// config's variant.
func NewEvaluator(cfg *Config) (*Evaluator, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid strategy config: %v", problems)
	}

	clock, err := NewClock(cfg.Session)
	if err != nil {
		return nil, err
	}

	e := &Evaluator{config: cfg, clock: clock}
	switch cfg.Variant {
	case VariantBreakout:
		e.policy = pattern.NewBreakoutPolicy(cfg.Breakout)
		e.gate = volume.NewSpikeGate(cfg.SpikeVolume)
	case VariantPullback:
		e.policy = pattern.NewPullbackPolicy(cfg.Pullback)
		e.gate = volume.NewMomentumGate(cfg.MomentumVolume)
	}
	return e, nil
}

// Config returns the evaluator's parameter set.
func (e *Evaluator) Config() *Config { return e.config }

// Clock returns the evaluator's session clock.
func (e *Evaluator) Clock() *Clock { return e.clock }

// PolicyName returns the active pattern policy name.
func (e *Evaluator) PolicyName() string { return e.policy.Name() }

// EvaluateEntry runs the four entry gates over the coarse bar window:
// pattern, MACD momentum, volume confirmation, and price above session VWAP.
// vwapBars must already be filtered to the session being measured.
func (e *Evaluator) EvaluateEntry(now time.Time, bars market.Series, vwapBars market.Series, price float64) *EntryResult {
	result := &EntryResult{
		Timestamp: now,
		Checks:    make(map[string]*GateCheck),
	}

	detection := e.policy.Detect(bars)
	result.Detection = detection
	e.record(result, &GateCheck{
		Name:        e.policy.Name(),
		Passed:      detection.Matched,
		Value:       detection.ReferenceHigh,
		Description: detection.Message,
	})

	e.record(result, e.checkMACD(bars))
	volCheck := e.gate.Check(bars)
	e.record(result, &GateCheck{
		Name:        e.gate.Name(),
		Passed:      volCheck.Passed,
		Value:       volCheck.RelativeVolume,
		Description: volCheck.Message,
	})
	e.record(result, e.checkVWAP(vwapBars, price))

	result.Passed = len(result.FailureReasons) == 0
	log.Debug().
		Time("at", now).
		Bool("passed", result.Passed).
		Str("policy", e.policy.Name()).
		Strs("failures", result.FailureReasons).
		Msg("Entry evaluation")
	return result
}

func (e *Evaluator) record(result *EntryResult, check *GateCheck) {
	result.Checks[check.Name] = check
	if !check.Passed {
		result.FailureReasons = append(result.FailureReasons, check.Description)
	}
}

func (e *Evaluator) checkMACD(bars market.Series) *GateCheck {
	cfg := e.config.MACD
	check := &GateCheck{Name: "macd"}

	minBars := e.minPatternBars()
	if cfg.RequireAcceleration {
		minBars += 2
	}
	if len(bars) < minBars {
		check.Description = "not enough data for MACD"
		return check
	}

	closes := bars.Closes()
	current := indicators.CalculateMACD(closes, cfg.Fast, cfg.Slow, cfg.Signal)
	if !current.IsValid {
		check.Description = "MACD calculation failed"
		return check
	}
	check.Value = current.Histogram

	if current.MACD <= current.Signal {
		check.Description = fmt.Sprintf("MACD negative: %.4f <= %.4f", current.MACD, current.Signal)
		return check
	}
	if cfg.RequirePositiveHisto && current.Histogram <= 0 {
		check.Description = fmt.Sprintf("MACD crossing down: histogram=%.4f", current.Histogram)
		return check
	}
	if cfg.RequireAcceleration {
		prev := indicators.CalculateMACD(closes[:len(closes)-1], cfg.Fast, cfg.Slow, cfg.Signal)
		if !prev.IsValid || current.Histogram <= prev.Histogram {
			check.Description = fmt.Sprintf("MACD not accelerating: current=%.4f, prev=%.4f",
				current.Histogram, prev.Histogram)
			return check
		}
		check.Passed = true
		check.Description = fmt.Sprintf("MACD positive & accelerating: %.4f > %.4f, histogram %.4f->%.4f",
			current.MACD, current.Signal, prev.Histogram, current.Histogram)
		return check
	}

	check.Passed = true
	check.Description = fmt.Sprintf("MACD positive: %.4f > %.4f, histogram=%.4f",
		current.MACD, current.Signal, current.Histogram)
	return check
}

func (e *Evaluator) minPatternBars() int {
	if e.config.Variant == VariantBreakout {
		return e.config.Breakout.MinBars
	}
	return e.config.Pullback.MinBars
}

func (e *Evaluator) checkVWAP(vwapBars market.Series, price float64) *GateCheck {
	check := &GateCheck{Name: "vwap"}

	vwap := indicators.CalculateVWAP(vwapBars)
	if !vwap.IsValid {
		check.Description = "VWAP calculation failed"
		return check
	}
	check.Value = vwap.Value

	if price <= vwap.Value {
		check.Description = fmt.Sprintf("below VWAP: %.2f <= %.2f", price, vwap.Value)
		return check
	}
	check.Passed = true
	check.Description = fmt.Sprintf("above VWAP: %.2f > %.2f", price, vwap.Value)
	return check
}
