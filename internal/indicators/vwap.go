package indicators

import "github.com/sawpanic/intradayrun/internal/market"

// VWAPResult holds a volume-weighted average price over a bar set.
type VWAPResult struct {
	Value     float64 `json:"value"`
	IsValid   bool    `json:"is_valid"`
	DataCount int     `json:"data_count"`
}

// CalculateVWAP computes the volume-weighted average of typical price
// (high+low+close)/3 over the supplied bars. Session anchoring is the
// caller's job: pass only the bars belonging to the session being measured.
// Returns IsValid=false for fewer than two bars or zero total volume.
func CalculateVWAP(bars market.Series) VWAPResult {
	if len(bars) < 2 {
		return VWAPResult{IsValid: false, DataCount: len(bars)}
	}

	totalPV := 0.0
	totalVolume := 0.0
	for _, bar := range bars {
		totalPV += bar.TypicalPrice() * bar.Volume
		totalVolume += bar.Volume
	}

	if totalVolume == 0 {
		return VWAPResult{IsValid: false, DataCount: len(bars)}
	}

	return VWAPResult{
		Value:     totalPV / totalVolume,
		IsValid:   true,
		DataCount: len(bars),
	}
}
