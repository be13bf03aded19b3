package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/sawpanic/intradayrun/internal/market"
)

func TestCalculateMACD(t *testing.T) {
	t.Run("invalid below slow period", func(t *testing.T) {
		closes := make([]float64, 25)
		for i := range closes {
			closes[i] = 10.0
		}
		result := CalculateMACD(closes, 12, 26, 9)
		if result.IsValid {
			t.Error("expected invalid result for 25 closes with slow=26")
		}
		if result.DataCount != 25 {
			t.Errorf("data count = %d, want 25", result.DataCount)
		}
	})

	t.Run("flat closes yield zero lines", func(t *testing.T) {
		closes := make([]float64, 40)
		for i := range closes {
			closes[i] = 10.0
		}
		result := CalculateMACD(closes, 12, 26, 9)
		if !result.IsValid {
			t.Fatal("expected valid result")
		}
		if math.Abs(result.MACD) > 1e-12 || math.Abs(result.Signal) > 1e-12 {
			t.Errorf("flat series: macd=%v signal=%v, want 0", result.MACD, result.Signal)
		}
	})

	t.Run("uptrend yields positive macd and histogram", func(t *testing.T) {
		closes := make([]float64, 60)
		for i := range closes {
			closes[i] = 10.0 + 0.1*float64(i)
		}
		result := CalculateMACD(closes, 12, 26, 9)
		if !result.IsValid {
			t.Fatal("expected valid result")
		}
		if result.MACD <= 0 {
			t.Errorf("macd = %v, want positive on steady uptrend", result.MACD)
		}
	})

	t.Run("deterministic for fixed input", func(t *testing.T) {
		closes := make([]float64, 40)
		for i := range closes {
			closes[i] = 10.0 + math.Sin(float64(i)/3)
		}
		a := CalculateMACD(closes, 12, 26, 9)
		b := CalculateMACD(closes, 12, 26, 9)
		if a != b {
			t.Error("expected identical results for identical input")
		}
	})
}

func TestCalculateVWAP(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	mkBar := func(i int, high, low, close, volume float64) market.Bar {
		return market.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      close,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
		}
	}

	t.Run("volume weighted typical price", func(t *testing.T) {
		bars := market.Series{
			mkBar(0, 12, 8, 10, 100), // typical 10
			mkBar(1, 22, 18, 20, 300), // typical 20
		}
		result := CalculateVWAP(bars)
		if !result.IsValid {
			t.Fatal("expected valid result")
		}
		if math.Abs(result.Value-17.5) > 1e-9 {
			t.Errorf("vwap = %v, want 17.5", result.Value)
		}
	})

	t.Run("invalid for single bar", func(t *testing.T) {
		if r := CalculateVWAP(market.Series{mkBar(0, 12, 8, 10, 100)}); r.IsValid {
			t.Error("expected invalid result for one bar")
		}
	})

	t.Run("invalid for zero volume", func(t *testing.T) {
		bars := market.Series{mkBar(0, 12, 8, 10, 0), mkBar(1, 22, 18, 20, 0)}
		if r := CalculateVWAP(bars); r.IsValid {
			t.Error("expected invalid result for zero volume")
		}
	})
}
