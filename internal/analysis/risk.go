package analysis

import (
	"math"

	"tradingbot/internal/models"
)

const (
	stopLossPct   = 0.02
	takeProfitPct = 0.03
	atrStopMult   = 2.0
	atrTargetMult = 3.0
)

// StopLossTakeProfit blends a fixed percentage band with an ATR band and
// keeps the tighter stop and the nearer target of the two. For longs the
// stop is the higher (closer) of entry-2% and entry-2*ATR, the target the
// lower of entry+3% and entry+3*ATR; shorts mirror both.
func StopLossTakeProfit(entry float64, direction models.Direction, atr float64) (stopLoss, takeProfit float64) {
	if direction == models.Buy {
		stopLoss = math.Max(entry*(1-stopLossPct), entry-atrStopMult*atr)
		takeProfit = math.Min(entry*(1+takeProfitPct), entry+atrTargetMult*atr)
		return stopLoss, takeProfit
	}
	stopLoss = math.Min(entry*(1+stopLossPct), entry+atrStopMult*atr)
	takeProfit = math.Max(entry*(1-takeProfitPct), entry-atrTargetMult*atr)
	return stopLoss, takeProfit
}
