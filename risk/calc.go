package risk

import (
	"math"

	"github.com/rustyeddy/quantsim/market"
)

// RR is reward over risk for an entry with the given stop and target.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	reward := math.Abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

// RiskPct is the fraction of equity lost if the stop is hit.
func RiskPct(qty, entry, stop, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return qty * math.Abs(entry-stop) / equity
}

// Protective returns stop and target prices stopPct away from entry on
// the losing side and rr times that distance on the winning side.
func Protective(side market.Side, entry, stopPct, rr float64) (stop, target float64) {
	dist := entry * stopPct
	s := float64(side)
	return entry - s*dist, entry + s*dist*rr
}
