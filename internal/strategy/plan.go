package strategy

import (
	"fmt"
	"math"

	"github.com/sawpanic/intradayrun/internal/pattern"
)

// TradePlan is a fully priced order intent derived from a confirmed setup.
type TradePlan struct {
	EntryPrice   float64 `json:"entry_price"`
	StopLoss     float64 `json:"stop_loss"`
	ProfitTarget float64 `json:"profit_target"`
	Shares       int     `json:"shares"`
	Valid        bool    `json:"valid"`
	Reason       string  `json:"reason"`
}

func roundCents(price float64) float64 {
	return math.Round(price*100) / 100
}

// BuildTradePlan prices an entry off the current market price and the
// detection's structural levels. The entry absorbs a simulated spread; the
// stop sits under the structural level with a buffer; plans whose stop lands
// above the entry or inside the minimum distance are rejected.
func (c *Config) BuildTradePlan(price float64, detection pattern.Detection) TradePlan {
	entry := roundCents(price * (1 + c.EntrySpreadPct/100))

	stopLevel := detection.ReferenceLow
	if c.Variant == VariantPullback && detection.ReferenceHigh > 0 {
		// Entries far above the recent high get the high as stop, the
		// pullback low would be too much risk.
		breakoutPct := (entry - detection.ReferenceHigh) / detection.ReferenceHigh * 100
		if breakoutPct > c.StrongBreakoutPct {
			stopLevel = detection.ReferenceHigh
		}
	}
	stop := roundCents(stopLevel * (1 - c.StopBufferPct/100))
	target := roundCents(entry * (1 + c.ProfitTargetPct/100))

	if stop >= entry {
		return TradePlan{Reason: fmt.Sprintf("stop %.2f not below entry %.2f", stop, entry)}
	}
	stopDistancePct := (entry - stop) / entry * 100
	if stopDistancePct < c.MinStopDistancePct {
		return TradePlan{Reason: fmt.Sprintf("stop distance %.2f%% below minimum %.1f%%",
			stopDistancePct, c.MinStopDistancePct)}
	}

	shares := int(c.TradeSizeUSD / entry)
	if shares < 1 {
		shares = 1
	}

	return TradePlan{
		EntryPrice:   entry,
		StopLoss:     stop,
		ProfitTarget: target,
		Shares:       shares,
		Valid:        true,
		Reason:       fmt.Sprintf("entry %.2f stop %.2f (%.1f%%) target %.2f", entry, stop, stopDistancePct, target),
	}
}

// Cost returns the commission for an order: per-share rate with a minimum,
// plus the SEC fee on sell proceeds.
func (c CommissionConfig) Cost(shares int, tradeValue float64, isSell bool) float64 {
	commission := float64(shares) * c.PerShare
	if commission < c.Minimum {
		commission = c.Minimum
	}
	if isSell {
		commission += tradeValue * c.SECFeePerDollar
	}
	return commission
}
