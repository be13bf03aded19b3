package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/intradayrun/internal/market"
	"github.com/sawpanic/intradayrun/internal/strategy"
)

func testEngine(t *testing.T, capital float64) *Engine {
	t.Helper()
	evaluator, err := strategy.NewEvaluator(strategy.DefaultBreakoutStrategy())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.InitialCapital = capital
	cfg.WarmupBars = 0
	engine, err := NewEngine(cfg, evaluator)
	require.NoError(t, err)
	return engine
}

// breakoutSequenceAt builds 30 minute-bars starting at base: 27 bars
// consolidating between 9.80 and 10.00, then three bars breaking out to
// 10.25 on heavy volume. The last bar passes every entry gate of the
// breakout strategy.
func breakoutSequenceAt(base time.Time) market.Series {
	bars := make(market.Series, 0, 30)
	for i := 0; i < 27; i++ {
		bars = append(bars, market.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      9.9, High: 10.0, Low: 9.8, Close: 9.9, Volume: 1000,
		})
	}
	return append(bars,
		market.Bar{Timestamp: base.Add(27 * time.Minute), Open: 9.90, High: 10.12, Low: 9.88, Close: 10.10, Volume: 1000},
		market.Bar{Timestamp: base.Add(28 * time.Minute), Open: 10.10, High: 10.20, Low: 10.05, Close: 10.18, Volume: 1000},
		market.Bar{Timestamp: base.Add(29 * time.Minute), Open: 10.18, High: 10.25, Low: 10.15, Close: 10.24, Volume: 3000},
	)
}

func breakoutBars(t *testing.T, startHour, startMinute int) market.Series {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return breakoutSequenceAt(time.Date(2025, 6, 2, startHour, startMinute, 0, 0, loc))
}

func withBar(bars market.Series, minutesOn int, open, high, low, close float64) market.Series {
	last := bars[len(bars)-1]
	return append(bars, market.Bar{
		Timestamp: last.Timestamp.Add(time.Duration(minutesOn) * time.Minute),
		Open:      open, High: high, Low: low, Close: close, Volume: 1200,
	})
}

func TestEngineProfitTarget(t *testing.T) {
	engine := testEngine(t, 500)

	bars := breakoutBars(t, 10, 0)
	bars = withBar(bars, 1, 10.30, 12.90, 10.25, 12.50)

	result, err := engine.Run("TEST", bars, bars)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	trade := result.Trades[0]
	assert.Equal(t, strategy.ExitProfitTarget, trade.ExitReason)
	assert.InDelta(t, 10.27, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 12.84, trade.ExitPrice, 1e-9)
	assert.Equal(t, 9, trade.Shares)
	assert.InDelta(t, (12.84-10.27)*9, trade.GrossPnL, 1e-9)
	assert.Greater(t, trade.NetPnL, 0.0)
	assert.Less(t, trade.NetPnL, trade.GrossPnL)

	assert.Equal(t, 1, result.WinningTrades)
	assert.Equal(t, 100.0, result.WinRatePct)
	assert.InDelta(t, 500+trade.NetPnL, result.FinalCapital, 1e-9)
	assert.NotEmpty(t, result.EquityCurve)
}

func TestEngineStopLoss(t *testing.T) {
	engine := testEngine(t, 500)

	bars := breakoutBars(t, 10, 0)
	bars = withBar(bars, 1, 10.20, 10.30, 9.50, 9.55)

	result, err := engine.Run("TEST", bars, bars)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	trade := result.Trades[0]
	assert.Equal(t, strategy.ExitStopLoss, trade.ExitReason)
	assert.InDelta(t, 9.60, trade.ExitPrice, 1e-9)
	assert.Negative(t, trade.NetPnL)
	assert.Equal(t, 1, result.LosingTrades)
	assert.Positive(t, result.MaxDrawdownPct)
}

func TestEngineEndOfDayHalt(t *testing.T) {
	engine := testEngine(t, 500)

	// Entry triggers on the 15:40 bar, then the position drifts sideways
	// on green candles until the 15:50 cutoff.
	bars := breakoutBars(t, 15, 11)
	for i := 1; i <= 10; i++ {
		bars = withBar(bars, 1, 10.30, 10.40, 10.25, 10.35)
	}

	// A fresh, otherwise-valid setup completing at 16:21 the same day must
	// not re-enter; trading resumes on the next calendar date.
	sameDay := bars[len(bars)-1].Timestamp.Add(time.Minute)
	bars = append(bars, breakoutSequenceAt(sameDay)...)
	loc := sameDay.Location()
	nextDay := time.Date(2025, 6, 3, 10, 0, 0, 0, loc)
	bars = append(bars, breakoutSequenceAt(nextDay)...)

	result, err := engine.Run("TEST", bars, bars)
	require.NoError(t, err)
	require.Len(t, result.Trades, 2)

	trade := result.Trades[0]
	assert.Equal(t, strategy.ExitEndOfDay, trade.ExitReason)
	assert.InDelta(t, 10.35, trade.ExitPrice, 1e-9)
	assert.Equal(t, time.Date(2025, 6, 2, 15, 50, 0, 0, loc), trade.ExitTime)

	reentry := result.Trades[1]
	assert.Equal(t, time.Date(2025, 6, 3, 10, 29, 0, 0, loc), reentry.EntryTime)
	assert.Equal(t, strategy.ExitEndOfBacktest, reentry.ExitReason)
}

func TestEngineForceCloseAtEnd(t *testing.T) {
	engine := testEngine(t, 500)

	// Entry on the final bar leaves an open position at series end.
	bars := breakoutBars(t, 10, 0)
	result, err := engine.Run("TEST", bars, bars)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	trade := result.Trades[0]
	assert.Equal(t, strategy.ExitEndOfBacktest, trade.ExitReason)
	assert.InDelta(t, 10.24, trade.ExitPrice, 1e-9)
}

func TestEngineInsufficientCapital(t *testing.T) {
	engine := testEngine(t, 50)

	bars := breakoutBars(t, 10, 0)
	bars = withBar(bars, 1, 10.30, 12.90, 10.25, 12.50)

	result, err := engine.Run("TEST", bars, bars)
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
	assert.Equal(t, 50.0, result.FinalCapital)
}

func TestEngineRejectsBadInput(t *testing.T) {
	engine := testEngine(t, 500)

	_, err := engine.Run("TEST", nil, nil)
	assert.Error(t, err)

	bars := breakoutBars(t, 10, 0)
	outOfOrder := market.Series{bars[1], bars[0]}
	_, err = engine.Run("TEST", outOfOrder, bars)
	assert.Error(t, err)
}

func TestEngineWarmupSkipsEverything(t *testing.T) {
	evaluator, err := strategy.NewEvaluator(strategy.DefaultBreakoutStrategy())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.WarmupBars = 1000
	engine, err := NewEngine(cfg, evaluator)
	require.NoError(t, err)

	bars := breakoutBars(t, 10, 0)
	result, err := engine.Run("TEST", bars, bars)
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
	assert.Empty(t, result.EquityCurve)
}

func TestConfigValidate(t *testing.T) {
	assert.Empty(t, DefaultConfig().Validate())

	bad := Config{InitialCapital: -1, WarmupBars: -1, VWAPLookbackBars: 1, EquitySampleBars: 0}
	assert.Len(t, bad.Validate(), 4)
}

func TestResultMetrics(t *testing.T) {
	r := &Result{
		InitialCapital: 500,
		FinalCapital:   530,
		Trades: []Trade{
			{NetPnL: 50, GrossPnL: 52, Commission: 2},
			{NetPnL: -20, GrossPnL: -18, Commission: 2},
			{NetPnL: 10, GrossPnL: 12, Commission: 2},
			{NetPnL: -10, GrossPnL: -8, Commission: 2},
		},
	}
	r.finish()

	assert.Equal(t, 2, r.WinningTrades)
	assert.Equal(t, 2, r.LosingTrades)
	assert.InDelta(t, 50.0, r.WinRatePct, 1e-9)
	assert.InDelta(t, 30.0, r.NetPnL, 1e-9)
	assert.InDelta(t, 8.0, r.TotalCommission, 1e-9)
	assert.InDelta(t, 30.0, r.AvgWin, 1e-9)
	assert.InDelta(t, -15.0, r.AvgLoss, 1e-9)
	assert.InDelta(t, 2.0, r.ProfitFactor, 1e-9)
	assert.InDelta(t, 6.0, r.TotalReturnPct, 1e-9)
	// Peak 550 after the first win, trough 530 after the first loss.
	assert.InDelta(t, 20.0/550*100, r.MaxDrawdownPct, 1e-9)
}

func TestCombine(t *testing.T) {
	a := &Result{Symbol: "A", InitialCapital: 500, FinalCapital: 550,
		Trades: []Trade{{NetPnL: 50, GrossPnL: 52, Commission: 2}}}
	b := &Result{Symbol: "B", InitialCapital: 500, FinalCapital: 480,
		Trades: []Trade{{NetPnL: -20, GrossPnL: -18, Commission: 2}}}

	combined := Combine([]*Result{a, b})
	assert.Equal(t, "combined", combined.Symbol)
	assert.Equal(t, 1000.0, combined.InitialCapital)
	assert.Equal(t, 1030.0, combined.FinalCapital)
	assert.Len(t, combined.Trades, 2)
	assert.Equal(t, 1, combined.WinningTrades)
}
