// Package backtest replays historical bars through the strategy evaluator
// and accounts for fills, commissions, and capital.
package backtest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/intradayrun/internal/market"
	"github.com/sawpanic/intradayrun/internal/strategy"
)

// Config contains simulator knobs independent of the strategy parameters.
type Config struct {
	InitialCapital   float64 `yaml:"initial_capital"`
	WarmupBars       int     `yaml:"warmup_bars"`        // Fine bars consumed before trading starts
	VWAPLookbackBars int     `yaml:"vwap_lookback_bars"` // Pre-market trailing VWAP window
	EquitySampleBars int     `yaml:"equity_sample_bars"` // Snapshot cadence in fine bars
}

// DefaultConfig returns the production simulator settings. Warm-up covers an
// hour of 10-second bars; equity is sampled on every bar.
func DefaultConfig() Config {
	return Config{
		InitialCapital:   500.0,
		WarmupBars:       360,
		VWAPLookbackBars: 390,
		EquitySampleBars: 1,
	}
}

// Validate returns a list of problems, empty when the config is usable.
func (c Config) Validate() []string {
	var problems []string
	if c.InitialCapital <= 0 {
		problems = append(problems, "initial_capital must be positive")
	}
	if c.WarmupBars < 0 {
		problems = append(problems, "warmup_bars cannot be negative")
	}
	if c.VWAPLookbackBars < 2 {
		problems = append(problems, "vwap_lookback_bars must be at least 2")
	}
	if c.EquitySampleBars < 1 {
		problems = append(problems, "equity_sample_bars must be at least 1")
	}
	return problems
}

// EquityPoint is one sample on the equity curve: cash plus any open
// position marked at the bar close.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// Engine replays one symbol's bars through the strategy. Fine bars drive the
// loop and exit checks; coarse bars drive entry evaluation and session VWAP.
type Engine struct {
	config    Config
	evaluator *strategy.Evaluator
}

// NewEngine builds a simulator around a strategy evaluator.
func NewEngine(cfg Config, evaluator *strategy.Evaluator) (*Engine, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid backtest config: %v", problems)
	}
	return &Engine{config: cfg, evaluator: evaluator}, nil
}

type openPosition struct {
	strategy.Position
	entryIdx int
}

// Run replays the bar series and returns the completed result. Both series
// must be ordered; coarse bars are the pattern/VWAP granularity, fine bars
// the execution granularity.
func (e *Engine) Run(symbol string, fine, coarse market.Series) (*Result, error) {
	if len(fine) == 0 || len(coarse) == 0 {
		return nil, fmt.Errorf("backtest %s: empty bar series", symbol)
	}
	if err := fine.Validate(); err != nil {
		return nil, fmt.Errorf("backtest %s: fine bars: %w", symbol, err)
	}
	if err := coarse.Validate(); err != nil {
		return nil, fmt.Errorf("backtest %s: coarse bars: %w", symbol, err)
	}

	clock := e.evaluator.Clock()
	result := &Result{
		Symbol:         symbol,
		InitialCapital: e.config.InitialCapital,
	}

	capital := e.config.InitialCapital
	var pos *openPosition
	halted := false
	var lastDay time.Time

	for i := e.config.WarmupBars; i < len(fine); i++ {
		bar := fine[i]
		now := bar.Timestamp

		if lastDay.IsZero() || !clock.SameTradingDay(lastDay, now) {
			lastDay = now
			halted = false
		}

		// Exits run on every bar, in or out of session.
		if pos != nil {
			sinceEntry := fine[pos.entryIdx : i+1]
			signal := e.evaluator.EvaluateExit(&pos.Position, bar, sinceEntry, now)
			if signal.Exit {
				capital += e.closePosition(result, pos, signal.Price, now, signal.Reason)
				pos = nil
				if signal.Reason == strategy.ExitEndOfDay {
					halted = true
					log.Info().Str("symbol", symbol).Time("at", now).
						Msg("Trading halted for rest of day after end-of-day exit")
				}
			}
		}

		if !clock.IsTradable(now) {
			continue
		}

		if pos == nil && !halted {
			window := e.sessionWindow(coarse, now)
			entry := e.evaluator.EvaluateEntry(now, window, window, bar.Close)
			if entry.Passed {
				plan := e.evaluator.Config().BuildTradePlan(bar.Close, entry.Detection)
				if plan.Valid {
					cost := plan.EntryPrice * float64(plan.Shares)
					if cost > capital {
						log.Debug().Str("symbol", symbol).Float64("cost", cost).
							Float64("capital", capital).Msg("Skipping entry, insufficient capital")
					} else {
						buyCommission := e.evaluator.Config().Commission.Cost(plan.Shares, cost, false)
						capital -= cost + buyCommission
						pos = &openPosition{
							Position: strategy.Position{
								Symbol:          symbol,
								EntryTime:       now,
								EntryPrice:      plan.EntryPrice,
								Shares:          plan.Shares,
								StopLoss:        plan.StopLoss,
								ProfitTarget:    plan.ProfitTarget,
								EntryCommission: buyCommission,
							},
							entryIdx: i,
						}
						log.Info().Str("symbol", symbol).Time("at", now).
							Int("shares", plan.Shares).
							Float64("entry", plan.EntryPrice).
							Float64("stop", plan.StopLoss).
							Float64("target", plan.ProfitTarget).
							Msg("Entered position")
					}
				}
			}
		}

		if (i-e.config.WarmupBars)%e.config.EquitySampleBars == 0 {
			equity := capital
			if pos != nil {
				equity += float64(pos.Shares) * bar.Close
			}
			result.EquityCurve = append(result.EquityCurve, EquityPoint{Time: now, Equity: equity})
		}
	}

	if pos != nil {
		last := fine[len(fine)-1]
		capital += e.closePosition(result, pos, last.Close, last.Timestamp, strategy.ExitEndOfBacktest)
	}

	result.FinalCapital = capital
	result.finish()

	log.Info().Str("symbol", symbol).
		Int("trades", len(result.Trades)).
		Float64("net_pnl", result.NetPnL).
		Float64("final_capital", capital).
		Msg("Backtest complete")
	return result, nil
}

// sessionWindow returns the coarse bars feeding entry evaluation at now:
// during pre-market a trailing window, from the open onward only bars of the
// current session.
func (e *Engine) sessionWindow(coarse market.Series, now time.Time) market.Series {
	clock := e.evaluator.Clock()

	upTo := coarse
	for len(upTo) > 0 && upTo[len(upTo)-1].Timestamp.After(now) {
		upTo = upTo[:len(upTo)-1]
	}

	if clock.IsPremarket(now) {
		return upTo.Tail(e.config.VWAPLookbackBars)
	}
	return upTo.Since(clock.OpenTime(now))
}

// closePosition books the exit and returns the cash credited back.
func (e *Engine) closePosition(result *Result, pos *openPosition, price float64, at time.Time, reason strategy.ExitReason) float64 {
	shares := pos.Shares
	proceeds := price * float64(shares)
	sellCommission := e.evaluator.Config().Commission.Cost(shares, proceeds, true)

	grossPnL := (price - pos.EntryPrice) * float64(shares)
	totalCommission := pos.EntryCommission + sellCommission
	netPnL := grossPnL - totalCommission

	trade := Trade{
		Symbol:     pos.Symbol,
		EntryTime:  pos.EntryTime,
		ExitTime:   at,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		Shares:     shares,
		GrossPnL:   grossPnL,
		Commission: totalCommission,
		NetPnL:     netPnL,
		PnLPct:     (price - pos.EntryPrice) / pos.EntryPrice * 100,
		ExitReason: reason,
	}
	result.Trades = append(result.Trades, trade)

	log.Info().Str("symbol", pos.Symbol).Time("at", at).
		Str("reason", reason.String()).
		Float64("exit", price).
		Float64("net_pnl", netPnL).
		Msg("Exited position")
	return proceeds - sellCommission
}
