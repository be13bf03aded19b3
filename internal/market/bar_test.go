package market

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBar(t *testing.T) {
	ts := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

	bar, err := NewBar(ts, 10.0, 10.5, 9.8, 10.2, 5000)
	require.NoError(t, err)
	assert.Equal(t, 10.5, bar.High)
	assert.Equal(t, 5000.0, bar.Volume)

	_, err = NewBar(time.Time{}, 10.0, 10.5, 9.8, 10.2, 5000)
	assert.Error(t, err, "zero timestamp")

	_, err = NewBar(ts, 10.0, 9.8, 10.5, 10.2, 5000)
	assert.Error(t, err, "high below low")

	_, err = NewBar(ts, 0, 10.5, 9.8, 10.2, 5000)
	assert.Error(t, err, "non-positive price")

	_, err = NewBar(ts, 10.0, 10.5, 9.8, 10.2, -1)
	assert.Error(t, err, "negative volume")
}

func TestBarShape(t *testing.T) {
	green := Bar{Open: 10.0, High: 10.6, Low: 9.9, Close: 10.4}
	red := Bar{Open: 10.4, High: 10.5, Low: 9.9, Close: 10.0}

	assert.True(t, green.IsGreen())
	assert.False(t, green.IsRed())
	assert.True(t, red.IsRed())

	assert.InDelta(t, 0.4, green.Body(), 1e-9)
	assert.InDelta(t, 0.4, red.Body(), 1e-9)
	assert.InDelta(t, 0.2, green.UpperWick(), 1e-9)
	assert.InDelta(t, 0.1, red.UpperWick(), 1e-9)
	assert.InDelta(t, (10.6+9.9+10.4)/3, green.TypicalPrice(), 1e-9)
}

func seriesFixture() Series {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	return Series{
		{Timestamp: base, Open: 10, High: 10.5, Low: 9.5, Close: 10.2, Volume: 100},
		{Timestamp: base.Add(time.Minute), Open: 10.2, High: 11.0, Low: 10.0, Close: 10.8, Volume: 200},
		{Timestamp: base.Add(2 * time.Minute), Open: 10.8, High: 10.9, Low: 10.4, Close: 10.6, Volume: 150},
	}
}

func TestSeries(t *testing.T) {
	s := seriesFixture()
	require.NoError(t, s.Validate())

	t.Run("validate rejects out-of-order bars", func(t *testing.T) {
		bad := Series{s[1], s[0]}
		assert.Error(t, bad.Validate())
	})

	t.Run("closes", func(t *testing.T) {
		assert.Equal(t, []float64{10.2, 10.8, 10.6}, s.Closes())
	})

	t.Run("tail", func(t *testing.T) {
		assert.Len(t, s.Tail(2), 2)
		assert.Equal(t, s[1], s.Tail(2)[0])
		assert.Len(t, s.Tail(10), 3)
	})

	t.Run("extremes", func(t *testing.T) {
		high, idx := s.HighestHigh()
		assert.Equal(t, 11.0, high)
		assert.Equal(t, 1, idx)
		assert.Equal(t, 9.5, s.LowestLow())

		_, emptyIdx := Series{}.HighestHigh()
		assert.Equal(t, -1, emptyIdx)
		assert.Equal(t, 0.0, Series{}.LowestLow())
	})

	t.Run("since", func(t *testing.T) {
		cutoff := s[1].Timestamp
		assert.Len(t, s.Since(cutoff), 2)
		assert.Nil(t, s.Since(s[2].Timestamp.Add(time.Hour)))
	})
}

func TestLoadBars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bars.csv")

	csvData := "timestamp,open,high,low,close,volume\n" +
		"2025-06-02 09:30:00,10.0,10.5,9.8,10.2,5000\n" +
		"2025-06-02 09:31:00,10.2,10.6,10.1,10.4,6200\n"
	require.NoError(t, os.WriteFile(path, []byte(csvData), 0o644))

	bars, err := LoadBars(path, time.UTC)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 10.2, bars[0].Close)
	assert.Equal(t, 6200.0, bars[1].Volume)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 31, 0, 0, time.UTC), bars[1].Timestamp)

	t.Run("rejects out-of-order file", func(t *testing.T) {
		badPath := filepath.Join(dir, "bad.csv")
		bad := "timestamp,open,high,low,close,volume\n" +
			"2025-06-02 09:31:00,10.2,10.6,10.1,10.4,6200\n" +
			"2025-06-02 09:30:00,10.0,10.5,9.8,10.2,5000\n"
		require.NoError(t, os.WriteFile(badPath, []byte(bad), 0o644))
		_, err := LoadBars(badPath, time.UTC)
		assert.Error(t, err)
	})

	t.Run("rejects missing file", func(t *testing.T) {
		_, err := LoadBars(filepath.Join(dir, "missing.csv"), time.UTC)
		assert.Error(t, err)
	})
}
