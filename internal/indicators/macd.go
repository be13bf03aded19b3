package indicators

// MACDResult holds the final-bar MACD values for a close sequence.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
	Fast      int     `json:"fast"`
	Slow      int     `json:"slow"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateMACD computes MACD line, signal line, and histogram for the final
// bar of the supplied close sequence. EMAs are seeded with the first close and
// the recurrence is applied forward across the whole window, so callers must
// supply enough bars for the seeding bias to decay (at minimum the slow
// period). Returns IsValid=false when the window is too short.
func CalculateMACD(closes []float64, fast, slow, signal int) MACDResult {
	if len(closes) < slow {
		return MACDResult{Fast: fast, Slow: slow, IsValid: false, DataCount: len(closes)}
	}

	alphaFast := 2.0 / float64(fast+1)
	alphaSlow := 2.0 / float64(slow+1)

	emaFast := closes[0]
	emaSlow := closes[0]
	macdLine := make([]float64, len(closes))
	macdLine[0] = 0

	for i := 1; i < len(closes); i++ {
		emaFast = closes[i]*alphaFast + emaFast*(1-alphaFast)
		emaSlow = closes[i]*alphaSlow + emaSlow*(1-alphaSlow)
		macdLine[i] = emaFast - emaSlow
	}

	alphaSignal := 2.0 / float64(signal+1)
	signalLine := macdLine[0]
	for i := 1; i < len(macdLine); i++ {
		signalLine = macdLine[i]*alphaSignal + signalLine*(1-alphaSignal)
	}

	macd := macdLine[len(macdLine)-1]
	return MACDResult{
		MACD:      macd,
		Signal:    signalLine,
		Histogram: macd - signalLine,
		Fast:      fast,
		Slow:      slow,
		IsValid:   true,
		DataCount: len(closes),
	}
}
