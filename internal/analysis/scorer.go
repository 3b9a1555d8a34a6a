package analysis

import (
	"fmt"
	"math"
	"time"

	"tradingbot/internal/models"
)

// SignalDecision is the scorer's answer for one evaluation tick
type SignalDecision struct {
	Direction  models.Direction
	Strength   float64 // min(|score|, 100)
	Confidence float64 // confirmations / 5 * 100
	Score      float64 // signed raw score
	Reasons    []string
	Features   FeatureRow
	Timestamp  time.Time
}

// Score converts the current and previous feature rows into a directional
// decision. The contributions form an ordered pipeline of additive and
// multiplicative adjustments; reordering them changes outcomes, so the
// sequence below is fixed. prev may be nil on the first ready candle, in
// which case crossover conditions are treated as false.
func Score(cfg Config, cur *FeatureRow, prev *FeatureRow, ts time.Time) SignalDecision {
	score := 0.0
	reasons := make([]string, 0, 8)

	// 1. EMA trend
	emaBullish := cur.EMAFast > cur.EMASlow
	emaCrossBull := prev != nil && emaBullish && prev.EMAFast <= prev.EMASlow
	emaCrossBear := prev != nil && !emaBullish && prev.EMAFast >= prev.EMASlow

	switch {
	case emaCrossBull:
		score += 25
		reasons = append(reasons, "EMA bullish crossover")
	case emaCrossBear:
		score -= 25
		reasons = append(reasons, "EMA bearish crossover")
	case emaBullish:
		score += 10
		reasons = append(reasons, "EMA bullish trend")
	default:
		score -= 10
		reasons = append(reasons, "EMA bearish trend")
	}

	// 2. MACD
	macdBullish := cur.MACD > cur.MACDSignal
	macdCrossBull := prev != nil && macdBullish && prev.MACD <= prev.MACDSignal
	macdCrossBear := prev != nil && !macdBullish && prev.MACD >= prev.MACDSignal

	switch {
	case macdCrossBull:
		score += 20
		reasons = append(reasons, "MACD bullish crossover")
	case macdCrossBear:
		score -= 20
		reasons = append(reasons, "MACD bearish crossover")
	case macdBullish:
		score += 8
		reasons = append(reasons, "MACD bullish")
	default:
		score -= 8
		reasons = append(reasons, "MACD bearish")
	}

	// 3. ADX trend strength. A weak trend scales the whole accumulated
	// score instead of contributing additively.
	strongTrend := cur.ADX > cfg.ADXThreshold
	if strongTrend {
		if cur.DIPlus > cur.DIMinus {
			score += 15
			reasons = append(reasons, fmt.Sprintf("Strong uptrend (ADX: %.1f)", cur.ADX))
		} else {
			score -= 15
			reasons = append(reasons, fmt.Sprintf("Strong downtrend (ADX: %.1f)", cur.ADX))
		}
	} else {
		score *= 0.7
		reasons = append(reasons, fmt.Sprintf("Weak trend (ADX: %.1f)", cur.ADX))
	}

	// 4. RSI momentum, asymmetric on the sign of the accumulated score
	rsiOversold := cur.RSI < cfg.RSIOversold
	rsiOverbought := cur.RSI > cfg.RSIOverbought
	switch {
	case rsiOversold && score > 0:
		score += 15
		reasons = append(reasons, fmt.Sprintf("RSI oversold bounce (%.1f)", cur.RSI))
	case rsiOverbought && score < 0:
		score -= 15
		reasons = append(reasons, fmt.Sprintf("RSI overbought reversal (%.1f)", cur.RSI))
	case rsiOverbought && score > 0:
		score *= 0.5
		reasons = append(reasons, fmt.Sprintf("RSI overbought warning (%.1f)", cur.RSI))
	case rsiOversold && score < 0:
		score *= 0.5
		reasons = append(reasons, fmt.Sprintf("RSI oversold warning (%.1f)", cur.RSI))
	}

	// 5. Volume confirmation
	highVolume := cur.VolumeRatio > cfg.VolumeThreshold
	if highVolume {
		score *= 1.2
		reasons = append(reasons, fmt.Sprintf("High volume confirmation (%.2fx)", cur.VolumeRatio))
	} else {
		score *= 0.8
		reasons = append(reasons, fmt.Sprintf("Low volume (%.2fx)", cur.VolumeRatio))
	}

	// 6. Bollinger Bands
	switch {
	case cur.Close > cur.BBUpper && score > 0:
		score += 10
		reasons = append(reasons, "Bollinger Bands upward breakout")
	case cur.Close < cur.BBLower && score < 0:
		score -= 10
		reasons = append(reasons, "Bollinger Bands downward breakout")
	case cur.BBWidth < 0.1:
		score *= 0.7
		reasons = append(reasons, "Low volatility (BB squeeze)")
	}

	// 7. Stochastic crossover
	stochBullCross := prev != nil && cur.StochK > cur.StochD && prev.StochK <= prev.StochD
	stochBearCross := prev != nil && cur.StochK < cur.StochD && prev.StochK >= prev.StochD
	if stochBullCross && score > 0 {
		score += 8
		reasons = append(reasons, "Stochastic bullish crossover")
	} else if stochBearCross && score < 0 {
		score -= 8
		reasons = append(reasons, "Stochastic bearish crossover")
	}

	direction := models.Hold
	if score > 30 {
		direction = models.Buy
	} else if score < -30 {
		direction = models.Sell
	}

	confirmations := 0
	if (direction == models.Buy) == emaBullish {
		confirmations++
	}
	if (direction == models.Buy) == macdBullish {
		confirmations++
	}
	if strongTrend {
		confirmations++
	}
	if highVolume {
		confirmations++
	}
	if math.Abs(score) > 50 {
		confirmations++
	}

	return SignalDecision{
		Direction:  direction,
		Strength:   math.Min(math.Abs(score), 100),
		Confidence: float64(confirmations) / 5 * 100,
		Score:      score,
		Reasons:    reasons,
		Features:   *cur,
		Timestamp:  ts,
	}
}

// ValidateSignal is the entry gate for opening a position: the decision must
// be directional, strong and confirmed, the trend must be established, and
// RSI must not sit at the adverse extreme.
func ValidateSignal(cfg Config, d SignalDecision) bool {
	if d.Direction == models.Hold {
		return false
	}
	if d.Strength < 40 {
		return false
	}
	if d.Confidence < 60 {
		return false
	}
	if d.Features.ADX < cfg.ADXThreshold {
		return false
	}
	if d.Direction == models.Buy && d.Features.RSI > 75 {
		return false
	}
	if d.Direction == models.Sell && d.Features.RSI < 25 {
		return false
	}
	return true
}
