package volume

import (
	"strings"
	"testing"
	"time"

	"github.com/sawpanic/intradayrun/internal/market"
)

func volumeBars(volumes []float64) market.Series {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	bars := make(market.Series, 0, len(volumes))
	for i, v := range volumes {
		bars = append(bars, market.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      10.0,
			High:      10.1,
			Low:       9.95,
			Close:     10.05,
			Volume:    v,
		})
	}
	return bars
}

func TestSpikeGate(t *testing.T) {
	gate := NewSpikeGate(DefaultSpikeGateConfig())

	t.Run("passes on breakout spike", func(t *testing.T) {
		bars := volumeBars([]float64{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 3000})
		check := gate.Check(bars)
		if !check.Passed {
			t.Fatalf("expected pass, got: %s", check.Message)
		}
		if check.RelativeVolume < 2.9 || check.RelativeVolume > 3.1 {
			t.Errorf("relative volume = %.2f, want ~3.0", check.RelativeVolume)
		}
	})

	t.Run("fails below relative volume floor", func(t *testing.T) {
		bars := volumeBars([]float64{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1500})
		check := gate.Check(bars)
		if check.Passed {
			t.Fatal("expected failure on low relative volume")
		}
		if !strings.Contains(check.Message, "low breakout volume") {
			t.Errorf("unexpected message: %s", check.Message)
		}
	})

	t.Run("fails between floor and spike threshold", func(t *testing.T) {
		bars := volumeBars([]float64{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 2200})
		check := gate.Check(bars)
		if check.Passed {
			t.Fatal("expected failure without spike")
		}
		if !strings.Contains(check.Message, "no volume spike") {
			t.Errorf("unexpected message: %s", check.Message)
		}
	})

	t.Run("fails closed on short window", func(t *testing.T) {
		if check := gate.Check(volumeBars([]float64{1000, 2000})); check.Passed {
			t.Error("expected failure on short window")
		}
	})
}

func TestMomentumGate(t *testing.T) {
	gate := NewMomentumGate(DefaultMomentumGateConfig())

	t.Run("passes on elevated two-bar average", func(t *testing.T) {
		bars := volumeBars([]float64{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1800, 2200})
		check := gate.Check(bars)
		if !check.Passed {
			t.Fatalf("expected pass, got: %s", check.Message)
		}
	})

	t.Run("fails on weak participation", func(t *testing.T) {
		bars := volumeBars([]float64{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1200})
		check := gate.Check(bars)
		if check.Passed {
			t.Fatal("expected failure on weak volume")
		}
		if !strings.Contains(check.Message, "low relative volume") {
			t.Errorf("unexpected message: %s", check.Message)
		}
	})

	t.Run("rejects topping tail on heavy volume", func(t *testing.T) {
		bars := volumeBars([]float64{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1800, 2500})
		last := bars[len(bars)-1]
		// Heavy volume plus a long upper wick over a small body.
		last.Open = 10.00
		last.Close = 10.02
		last.High = 10.30
		bars[len(bars)-1] = last

		check := gate.Check(bars)
		if check.Passed {
			t.Fatal("expected topping rejection")
		}
		if !strings.Contains(check.Message, "volume top detected") {
			t.Errorf("unexpected message: %s", check.Message)
		}
	})

	t.Run("rejects red candle dominance", func(t *testing.T) {
		bars := volumeBars([]float64{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1800, 2200})
		for i := len(bars) - 5; i < len(bars)-1; i++ {
			b := bars[i]
			b.Open = 10.10
			b.Close = 10.00
			bars[i] = b
		}

		check := gate.Check(bars)
		if check.Passed {
			t.Fatal("expected red-candle rejection")
		}
		if !strings.Contains(check.Message, "selling pressure") {
			t.Errorf("unexpected message: %s", check.Message)
		}
	})

	t.Run("fails closed on short window", func(t *testing.T) {
		if check := gate.Check(volumeBars([]float64{1000, 2000, 3000})); check.Passed {
			t.Error("expected failure on short window")
		}
	})
}
