package backtest

import (
	"math"
	"time"

	"github.com/sawpanic/intradayrun/internal/strategy"
)

// Trade is one completed round trip.
type Trade struct {
	Symbol     string              `json:"symbol"`
	EntryTime  time.Time           `json:"entry_time"`
	ExitTime   time.Time           `json:"exit_time"`
	EntryPrice float64             `json:"entry_price"`
	ExitPrice  float64             `json:"exit_price"`
	Shares     int                 `json:"shares"`
	GrossPnL   float64             `json:"gross_pnl"`
	Commission float64             `json:"commission"`
	NetPnL     float64             `json:"net_pnl"`
	PnLPct     float64             `json:"pnl_pct"`
	ExitReason strategy.ExitReason `json:"exit_reason"`
}

// Result is a completed backtest with derived performance metrics. Trades
// with non-positive net P&L count as losers.
type Result struct {
	Symbol         string        `json:"symbol"`
	InitialCapital float64       `json:"initial_capital"`
	FinalCapital   float64       `json:"final_capital"`
	Trades         []Trade       `json:"trades"`
	EquityCurve    []EquityPoint `json:"equity_curve"`

	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	WinRatePct      float64 `json:"win_rate_pct"`
	GrossPnL        float64 `json:"gross_pnl"`
	NetPnL          float64 `json:"net_pnl"`
	TotalCommission float64 `json:"total_commission"`
	TotalReturnPct  float64 `json:"total_return_pct"`
	AvgWin          float64 `json:"avg_win"`
	AvgLoss         float64 `json:"avg_loss"`
	ProfitFactor    float64 `json:"profit_factor"`
	MaxDrawdownPct  float64 `json:"max_drawdown_pct"`
}

// finish computes the derived metrics from the trade list.
func (r *Result) finish() {
	if len(r.Trades) == 0 {
		return
	}

	winSum, lossSum := 0.0, 0.0
	for _, t := range r.Trades {
		r.GrossPnL += t.GrossPnL
		r.NetPnL += t.NetPnL
		r.TotalCommission += t.Commission
		if t.NetPnL > 0 {
			r.WinningTrades++
			winSum += t.NetPnL
		} else {
			r.LosingTrades++
			lossSum += t.NetPnL
		}
	}

	total := float64(len(r.Trades))
	r.WinRatePct = float64(r.WinningTrades) / total * 100
	r.TotalReturnPct = (r.FinalCapital - r.InitialCapital) / r.InitialCapital * 100

	if r.WinningTrades > 0 {
		r.AvgWin = winSum / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AvgLoss = lossSum / float64(r.LosingTrades)
	}
	if lossSum != 0 {
		r.ProfitFactor = math.Abs(winSum / lossSum)
	} else {
		r.ProfitFactor = math.Inf(1)
	}

	// Drawdown over running trade-by-trade capital.
	peak := r.InitialCapital
	running := r.InitialCapital
	for _, t := range r.Trades {
		running += t.NetPnL
		if running > peak {
			peak = running
		}
		if dd := (peak - running) / peak * 100; dd > r.MaxDrawdownPct {
			r.MaxDrawdownPct = dd
		}
	}
}

// Combine merges per-symbol results into an aggregate. The aggregate's
// capital fields sum the inputs; per-trade metrics are recomputed over the
// merged trade list.
func Combine(results []*Result) *Result {
	combined := &Result{Symbol: "combined"}
	for _, r := range results {
		combined.InitialCapital += r.InitialCapital
		combined.FinalCapital += r.FinalCapital
		combined.Trades = append(combined.Trades, r.Trades...)
	}
	combined.finish()
	return combined
}
