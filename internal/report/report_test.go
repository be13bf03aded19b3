package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/intradayrun/internal/backtest"
	"github.com/sawpanic/intradayrun/internal/strategy"
)

func sampleTrades() []backtest.Trade {
	entry := time.Date(2025, 6, 2, 10, 15, 0, 0, time.UTC)
	return []backtest.Trade{
		{
			Symbol:     "ABCD",
			EntryTime:  entry,
			ExitTime:   entry.Add(25 * time.Minute),
			EntryPrice: 10.27,
			ExitPrice:  12.84,
			Shares:     9,
			GrossPnL:   23.13,
			Commission: 2.01,
			NetPnL:     21.12,
			PnLPct:     25.02,
			ExitReason: strategy.ExitProfitTarget,
		},
		{
			Symbol:     "ABCD",
			EntryTime:  entry.Add(time.Hour),
			ExitTime:   entry.Add(90 * time.Minute),
			EntryPrice: 11.00,
			ExitPrice:  10.45,
			Shares:     9,
			GrossPnL:   -4.95,
			Commission: 2.00,
			NetPnL:     -6.95,
			PnLPct:     -5.00,
			ExitReason: strategy.ExitStopLoss,
		},
	}
}

func TestWriteLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, WriteLedger(path, sampleTrades()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, ledgerHeader, records[0])
	assert.Equal(t, "ABCD", records[1][0])
	assert.Equal(t, "10.27", records[1][3])
	assert.Equal(t, "9", records[1][5])
	assert.Equal(t, "profit_target", records[1][10])
	assert.Equal(t, "stop_loss", records[2][10])
}

func TestSummary(t *testing.T) {
	r := &backtest.Result{
		Symbol:         "ABCD",
		InitialCapital: 500,
		FinalCapital:   514.17,
		Trades:         sampleTrades(),
	}
	// Metrics as the engine would compute them.
	r.WinningTrades = 1
	r.LosingTrades = 1
	r.WinRatePct = 50
	r.GrossPnL = 18.18
	r.NetPnL = 14.17
	r.TotalCommission = 4.01
	r.ProfitFactor = 3.04
	r.MaxDrawdownPct = 1.33
	r.TotalReturnPct = 2.83

	text := Summary(r)
	assert.Contains(t, text, "BACKTEST RESULTS: ABCD")
	assert.Contains(t, text, "Total Trades: 2")
	assert.Contains(t, text, "Winning Trades: 1 (50.0%)")
	assert.Contains(t, text, "Net P&L: $+14.17")
	assert.Contains(t, text, "Profit Factor: 3.04")
	assert.Contains(t, text, "Max Drawdown: 1.33%")
}

func TestSummaryNoTrades(t *testing.T) {
	text := Summary(&backtest.Result{Symbol: "EMPTY", InitialCapital: 500, FinalCapital: 500})
	assert.Contains(t, text, "No trades executed.")
}

func TestBySymbol(t *testing.T) {
	results := []*backtest.Result{
		{Symbol: "AAAA", WinRatePct: 50, NetPnL: 14.17, MaxDrawdownPct: 1.33, Trades: sampleTrades()},
		{Symbol: "BBBB"},
	}
	text := BySymbol(results)
	assert.Contains(t, text, "AAAA")
	assert.Contains(t, text, "BBBB")
	assert.Contains(t, text, "SYMBOL")
}
