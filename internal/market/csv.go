package market

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// csvTimeLayouts are the timestamp formats accepted in bar files. Exported
// historical data is usually RFC3339; broker dumps use the compact form.
var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"20060102 15:04:05",
}

// LoadBars reads an OHLCV CSV (header: timestamp,open,high,low,close,volume)
// into a validated Series. Timestamps without a zone are interpreted in loc.
func LoadBars(path string, loc *time.Location) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bar file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse bar file %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("bar file %s has no data rows", path)
	}

	series := make(Series, 0, len(records)-1)
	for i, rec := range records[1:] {
		bar, err := parseBarRecord(rec, loc)
		if err != nil {
			return nil, fmt.Errorf("bar file %s row %d: %w", path, i+2, err)
		}
		series = append(series, bar)
	}

	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("bar file %s: %w", path, err)
	}

	log.Debug().Str("path", path).Int("bars", len(series)).Msg("Loaded bar series")
	return series, nil
}

func parseBarRecord(rec []string, loc *time.Location) (Bar, error) {
	if len(rec) < 6 {
		return Bar{}, fmt.Errorf("expected 6 columns, got %d", len(rec))
	}

	ts, err := parseBarTime(rec[0], loc)
	if err != nil {
		return Bar{}, err
	}

	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return Bar{}, fmt.Errorf("bad numeric field %q: %w", rec[i+1], err)
		}
		fields[i] = v
	}

	return NewBar(ts, fields[0], fields[1], fields[2], fields[3], fields[4])
}

func parseBarTime(raw string, loc *time.Location) (time.Time, error) {
	for _, layout := range csvTimeLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
