// Package report renders backtest results: a CSV trade ledger for analysis
// tooling and a text summary for the terminal.
package report

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/intradayrun/internal/backtest"
)

var ledgerHeader = []string{
	"symbol", "entry_time", "exit_time", "entry_price", "exit_price",
	"shares", "gross_pnl", "commission", "net_pnl", "pnl_pct", "exit_reason",
}

// WriteLedger saves the trade list as CSV. Timestamps are RFC3339 in the
// trades' own zone.
func WriteLedger(path string, trades []backtest.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create ledger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(ledgerHeader); err != nil {
		return fmt.Errorf("failed to write ledger header: %w", err)
	}
	for _, t := range trades {
		rec := []string{
			t.Symbol,
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			fmt.Sprintf("%.2f", t.EntryPrice),
			fmt.Sprintf("%.2f", t.ExitPrice),
			strconv.Itoa(t.Shares),
			fmt.Sprintf("%.2f", t.GrossPnL),
			fmt.Sprintf("%.2f", t.Commission),
			fmt.Sprintf("%.2f", t.NetPnL),
			fmt.Sprintf("%.2f", t.PnLPct),
			t.ExitReason.String(),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("failed to write ledger row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush ledger: %w", err)
	}

	log.Info().Str("path", path).Int("trades", len(trades)).Msg("Saved trade ledger")
	return nil
}

// Summary renders a result as a terminal report.
func Summary(r *backtest.Result) string {
	var b strings.Builder
	rule := strings.Repeat("=", 70)

	fmt.Fprintf(&b, "%s\nBACKTEST RESULTS: %s\n%s\n\n", rule, r.Symbol, rule)

	if len(r.Trades) == 0 {
		b.WriteString("No trades executed.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Total Trades: %d\n", len(r.Trades))
	fmt.Fprintf(&b, "Winning Trades: %d (%.1f%%)\n", r.WinningTrades, r.WinRatePct)
	fmt.Fprintf(&b, "Losing Trades: %d\n", r.LosingTrades)

	b.WriteString("\nP&L:\n")
	fmt.Fprintf(&b, "  Gross P&L: $%+.2f\n", r.GrossPnL)
	fmt.Fprintf(&b, "  Total Commission: $%.2f ($%.2f/trade)\n",
		r.TotalCommission, r.TotalCommission/float64(len(r.Trades)))
	fmt.Fprintf(&b, "  Net P&L: $%+.2f (%+.2f%%)\n", r.NetPnL, r.TotalReturnPct)
	fmt.Fprintf(&b, "  Average per trade: $%+.2f\n", r.NetPnL/float64(len(r.Trades)))
	fmt.Fprintf(&b, "  Average winner: $%+.2f\n", r.AvgWin)
	fmt.Fprintf(&b, "  Average loser: $%+.2f\n", r.AvgLoss)

	b.WriteString("\nRisk Metrics:\n")
	if math.IsInf(r.ProfitFactor, 1) {
		b.WriteString("  Profit Factor: inf\n")
	} else {
		fmt.Fprintf(&b, "  Profit Factor: %.2f\n", r.ProfitFactor)
	}
	fmt.Fprintf(&b, "  Max Drawdown: %.2f%%\n", r.MaxDrawdownPct)
	fmt.Fprintf(&b, "\nCapital: $%.2f -> $%.2f\n", r.InitialCapital, r.FinalCapital)

	return b.String()
}

// BySymbol renders a one-line-per-symbol breakdown for combined runs.
func BySymbol(results []*backtest.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %7s %8s %12s %10s\n", "SYMBOL", "TRADES", "WIN%", "NET P&L", "MAX DD")
	for _, r := range results {
		fmt.Fprintf(&b, "%-8s %7d %7.1f%% %+12.2f %9.2f%%\n",
			r.Symbol, len(r.Trades), r.WinRatePct, r.NetPnL, r.MaxDrawdownPct)
	}
	return b.String()
}
