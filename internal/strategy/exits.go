package strategy

import (
	"fmt"
	"time"

	"github.com/sawpanic/intradayrun/internal/market"
)

// ExitReason identifies why a position was closed. Order reflects
// evaluation precedence: protective exits always win over opportunistic
// ones when a single bar triggers several.
type ExitReason int

const (
	ExitNone ExitReason = iota
	ExitStopLoss
	ExitProfitTarget
	ExitDynamic
	ExitEndOfDay
	ExitEndOfBacktest
)

func (r ExitReason) String() string {
	switch r {
	case ExitStopLoss:
		return "stop_loss"
	case ExitProfitTarget:
		return "profit_target"
	case ExitDynamic:
		return "dynamic_exit"
	case ExitEndOfDay:
		return "end_of_day"
	case ExitEndOfBacktest:
		return "end_of_backtest"
	default:
		return "none"
	}
}

// Position is an open long position being managed by exit logic.
type Position struct {
	Symbol          string    `json:"symbol"`
	EntryTime       time.Time `json:"entry_time"`
	EntryPrice      float64   `json:"entry_price"`
	Shares          int       `json:"shares"`
	StopLoss        float64   `json:"stop_loss"`
	ProfitTarget    float64   `json:"profit_target"`
	EntryCommission float64   `json:"entry_commission"`
}

// ExitSignal is the outcome of an exit evaluation. Price carries the
// assumed fill: the stop or target level for protective exits, the current
// close otherwise.
type ExitSignal struct {
	Exit    bool       `json:"exit"`
	Reason  ExitReason `json:"reason"`
	Price   float64    `json:"price"`
	Message string     `json:"message"`
}

// EvaluateExit checks exit conditions in precedence order: stop loss, profit
// target, variant dynamic exit, then end of day. current is the latest fine
// bar; sinceEntry holds the fine bars since the position opened.
func (e *Evaluator) EvaluateExit(pos *Position, current market.Bar, sinceEntry market.Series, now time.Time) ExitSignal {
	if current.Low <= pos.StopLoss {
		return ExitSignal{
			Exit:   true,
			Reason: ExitStopLoss,
			Price:  pos.StopLoss,
			Message: fmt.Sprintf("stop loss hit: low %.2f <= stop %.2f",
				current.Low, pos.StopLoss),
		}
	}

	if current.High >= pos.ProfitTarget {
		return ExitSignal{
			Exit:   true,
			Reason: ExitProfitTarget,
			Price:  pos.ProfitTarget,
			Message: fmt.Sprintf("profit target hit: high %.2f >= target %.2f",
				current.High, pos.ProfitTarget),
		}
	}

	if triggered, msg := e.dynamicExit(sinceEntry); triggered {
		return ExitSignal{Exit: true, Reason: ExitDynamic, Price: current.Close, Message: msg}
	}

	if e.clock.IsEndOfDay(now) {
		return ExitSignal{
			Exit:    true,
			Reason:  ExitEndOfDay,
			Price:   current.Close,
			Message: "end of day: closing position",
		}
	}

	return ExitSignal{Reason: ExitNone}
}

// CheckDynamicExit applies only the variant's dynamic rule. Live trading
// uses this while the protective exits rest at the broker.
func (e *Evaluator) CheckDynamicExit(sinceEntry market.Series) (bool, string) {
	return e.dynamicExit(sinceEntry)
}

// dynamicExit applies the variant's momentum-loss rule to the completed bars
// since entry. Breakout trades bail on the first red candle; pullback trades
// bail when the latest low undercuts the previous low.
func (e *Evaluator) dynamicExit(sinceEntry market.Series) (bool, string) {
	switch e.config.Variant {
	case VariantBreakout:
		if len(sinceEntry) < 1 {
			return false, ""
		}
		latest := sinceEntry[len(sinceEntry)-1]
		if latest.IsRed() {
			return true, fmt.Sprintf("red candle (momentum loss): open %.2f > close %.2f",
				latest.Open, latest.Close)
		}
	case VariantPullback:
		if len(sinceEntry) < 2 {
			return false, ""
		}
		latest := sinceEntry[len(sinceEntry)-1]
		previous := sinceEntry[len(sinceEntry)-2]
		if latest.Low < previous.Low {
			return true, fmt.Sprintf("candle under candle: latest low %.2f < previous low %.2f",
				latest.Low, previous.Low)
		}
	}
	return false, ""
}
