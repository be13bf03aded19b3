package strategy

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock answers session-phase questions in the exchange time zone. All
// methods accept timestamps in any zone and convert before comparing.
type Clock struct {
	loc            *time.Location
	premarketStart int // minutes since midnight
	marketOpen     int
	endOfDay       int
}

// NewClock builds a Clock from the session boundaries.
func NewClock(cfg SessionConfig) (*Clock, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("bad timezone %q: %w", cfg.Timezone, err)
	}

	premarket, err := parseMinuteOfDay(cfg.PremarketStart)
	if err != nil {
		return nil, fmt.Errorf("premarket_start: %w", err)
	}
	open, err := parseMinuteOfDay(cfg.MarketOpen)
	if err != nil {
		return nil, fmt.Errorf("market_open: %w", err)
	}
	eod, err := parseMinuteOfDay(cfg.EndOfDay)
	if err != nil {
		return nil, fmt.Errorf("end_of_day: %w", err)
	}

	if premarket >= open {
		return nil, fmt.Errorf("premarket_start %s not before market_open %s", cfg.PremarketStart, cfg.MarketOpen)
	}
	if open >= eod {
		return nil, fmt.Errorf("market_open %s not before end_of_day %s", cfg.MarketOpen, cfg.EndOfDay)
	}

	return &Clock{
		loc:            loc,
		premarketStart: premarket,
		marketOpen:     open,
		endOfDay:       eod,
	}, nil
}

func parseMinuteOfDay(raw string) (int, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("bad hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("bad minute in %q", raw)
	}
	return hour*60 + minute, nil
}

// Location returns the exchange time zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

func (c *Clock) minuteOf(t time.Time) int {
	local := t.In(c.loc)
	return local.Hour()*60 + local.Minute()
}

// IsPremarket reports whether t falls between pre-market start and the open.
func (c *Clock) IsPremarket(t time.Time) bool {
	m := c.minuteOf(t)
	return m >= c.premarketStart && m < c.marketOpen
}

// IsRegularHours reports whether t falls between the open and the
// end-of-day cutoff.
func (c *Clock) IsRegularHours(t time.Time) bool {
	m := c.minuteOf(t)
	return m >= c.marketOpen && m < c.endOfDay
}

// IsTradable reports whether entries are allowed at t.
func (c *Clock) IsTradable(t time.Time) bool {
	m := c.minuteOf(t)
	return m >= c.premarketStart && m < c.endOfDay
}

// IsEndOfDay reports whether t has reached the position-close cutoff.
func (c *Clock) IsEndOfDay(t time.Time) bool {
	return c.minuteOf(t) >= c.endOfDay
}

// OpenTime returns the market open instant on t's trading date.
func (c *Clock) OpenTime(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		c.marketOpen/60, c.marketOpen%60, 0, 0, c.loc)
}

// SameTradingDay reports whether two instants share an exchange-local date.
func (c *Clock) SameTradingDay(a, b time.Time) bool {
	la, lb := a.In(c.loc), b.In(c.loc)
	return la.Year() == lb.Year() && la.YearDay() == lb.YearDay()
}
