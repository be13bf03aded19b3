package pattern

import "github.com/sawpanic/intradayrun/internal/market"

// Detection is the outcome of a pattern check. ReferenceLow and ReferenceHigh
// carry the structural prices later used for stop placement: consolidation
// low/high for breakouts, pullback low / recent high for pullbacks.
type Detection struct {
	Matched       bool    `json:"matched"`
	Message       string  `json:"message"`
	ReferenceLow  float64 `json:"reference_low"`
	ReferenceHigh float64 `json:"reference_high"`
}

func noMatch(msg string) Detection {
	return Detection{Matched: false, Message: msg}
}

// Policy classifies a bar window as a valid entry setup. Implementations are
// stateless and fail closed: short windows yield a non-match, never a panic.
type Policy interface {
	Name() string
	Detect(bars market.Series) Detection
}
