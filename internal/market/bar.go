package market

import (
	"fmt"
	"time"
)

// Bar is a single OHLCV price bar. Bars are value types constructed once at
// ingestion and never mutated; NewBar enforces the invariants so downstream
// evaluation code can assume well-formed data.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// NewBar validates and constructs a Bar.
func NewBar(ts time.Time, open, high, low, close, volume float64) (Bar, error) {
	if ts.IsZero() {
		return Bar{}, fmt.Errorf("bar timestamp is zero")
	}
	if high < low {
		return Bar{}, fmt.Errorf("bar high %.4f below low %.4f", high, low)
	}
	if open <= 0 || high <= 0 || low <= 0 || close <= 0 {
		return Bar{}, fmt.Errorf("bar has non-positive price (o=%.4f h=%.4f l=%.4f c=%.4f)", open, high, low, close)
	}
	if volume < 0 {
		return Bar{}, fmt.Errorf("bar has negative volume %.0f", volume)
	}
	return Bar{Timestamp: ts, Open: open, High: high, Low: low, Close: close, Volume: volume}, nil
}

// TypicalPrice returns (high+low+close)/3, the VWAP input price.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3.0
}

// IsRed reports whether the bar closed below its open.
func (b Bar) IsRed() bool {
	return b.Close < b.Open
}

// IsGreen reports whether the bar closed above its open.
func (b Bar) IsGreen() bool {
	return b.Close > b.Open
}

// Body returns the absolute open-to-close distance.
func (b Bar) Body() float64 {
	body := b.Close - b.Open
	if body < 0 {
		return -body
	}
	return body
}

// UpperWick returns the distance from the bar high to the top of the body.
func (b Bar) UpperWick() float64 {
	top := b.Open
	if b.Close > top {
		top = b.Close
	}
	return b.High - top
}

// Series is an ordered bar sequence, oldest first.
type Series []Bar

// Validate checks that timestamps are strictly increasing.
func (s Series) Validate() error {
	for i := 1; i < len(s); i++ {
		if !s[i].Timestamp.After(s[i-1].Timestamp) {
			return fmt.Errorf("bar %d timestamp %s not after bar %d timestamp %s",
				i, s[i].Timestamp.Format(time.RFC3339), i-1, s[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Closes returns the close prices of the series.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, b := range s {
		closes[i] = b.Close
	}
	return closes
}

// Tail returns the last n bars (the whole series when it is shorter).
func (s Series) Tail(n int) Series {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// HighestHigh returns the maximum high and its index. Index is -1 for an
// empty series.
func (s Series) HighestHigh() (float64, int) {
	high, idx := 0.0, -1
	for i, b := range s {
		if b.High > high {
			high, idx = b.High, i
		}
	}
	return high, idx
}

// LowestLow returns the minimum low of the series, 0 for an empty series.
func (s Series) LowestLow() float64 {
	if len(s) == 0 {
		return 0
	}
	low := s[0].Low
	for _, b := range s[1:] {
		if b.Low < low {
			low = b.Low
		}
	}
	return low
}

// Since returns the bars at or after the cutoff time.
func (s Series) Since(cutoff time.Time) Series {
	for i, b := range s {
		if !b.Timestamp.Before(cutoff) {
			return s[i:]
		}
	}
	return nil
}

// Quote is a top-of-book snapshot from the market-data collaborator.
type Quote struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Last float64 `json:"last"`
}
