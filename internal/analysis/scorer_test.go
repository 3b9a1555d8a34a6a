package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tradingbot/internal/models"
)

func TestScoreStrongBuy(t *testing.T) {
	cfg := DefaultConfig()
	// Fresh bullish EMA and MACD crossovers, established trend, high volume
	// and a stochastic confirmation.
	prev := &FeatureRow{
		EMAFast: 99, EMASlow: 100,
		MACD: -0.5, MACDSignal: 0,
		StochK: 40, StochD: 45,
	}
	cur := &FeatureRow{
		Close:   102,
		EMAFast: 101, EMASlow: 100,
		MACD: 0.5, MACDSignal: 0,
		ADX: 30, DIPlus: 25, DIMinus: 15,
		RSI:         55,
		VolumeRatio: 2.0,
		BBUpper:     105, BBLower: 99, BBMiddle: 102, BBWidth: 0.5,
		StochK: 50, StochD: 45,
		ATR: 2,
	}

	d := Score(cfg, cur, prev, time.Now())

	// 25 + 20 + 15 = 60, volume boost *1.2 = 72, stoch +8 = 80.
	assert.Equal(t, models.Buy, d.Direction)
	assert.InDelta(t, 80.0, d.Score, 0.001)
	assert.InDelta(t, 80.0, d.Strength, 0.001)
	assert.InDelta(t, 100.0, d.Confidence, 0.001)
	assert.Contains(t, d.Reasons, "EMA bullish crossover")
	assert.Contains(t, d.Reasons, "MACD bullish crossover")
	assert.True(t, ValidateSignal(cfg, d))
}

func TestScoreWeakSignalHolds(t *testing.T) {
	cfg := DefaultConfig()
	// Sustained bullish trend but no crossovers and low volume never clears
	// the +30 entry threshold.
	prev := &FeatureRow{
		EMAFast: 100.5, EMASlow: 100,
		MACD: 0.4, MACDSignal: 0,
		StochK: 60, StochD: 55,
	}
	cur := &FeatureRow{
		Close:   101,
		EMAFast: 101, EMASlow: 100,
		MACD: 0.5, MACDSignal: 0,
		ADX: 30, DIPlus: 25, DIMinus: 15,
		RSI:         50,
		VolumeRatio: 1.0,
		BBUpper:     105, BBLower: 99, BBMiddle: 102, BBWidth: 0.5,
		StochK: 62, StochD: 56,
	}

	d := Score(cfg, cur, prev, time.Now())

	// 10 + 8 + 15 = 33, low volume *0.8 = 26.4.
	assert.Equal(t, models.Hold, d.Direction)
	assert.InDelta(t, 26.4, d.Score, 0.001)
}

func TestScoreStrongSell(t *testing.T) {
	cfg := DefaultConfig()
	prev := &FeatureRow{
		EMAFast: 101, EMASlow: 100,
		MACD: 0.5, MACDSignal: 0,
		StochK: 60, StochD: 55,
	}
	cur := &FeatureRow{
		Close:   98,
		EMAFast: 99, EMASlow: 100,
		MACD: -0.5, MACDSignal: 0,
		ADX: 30, DIPlus: 15, DIMinus: 25,
		RSI:         45,
		VolumeRatio: 2.0,
		BBUpper:     105, BBLower: 99, BBMiddle: 102, BBWidth: 0.5,
		StochK: 50, StochD: 55,
	}

	d := Score(cfg, cur, prev, time.Now())

	// -25 - 20 - 15 = -60, *1.2 = -72, BB breakdown -10 = -82, stoch -8 = -90.
	assert.Equal(t, models.Sell, d.Direction)
	assert.InDelta(t, -90.0, d.Score, 0.001)
	assert.InDelta(t, 90.0, d.Strength, 0.001)
}

func TestScoreWeakTrendDampens(t *testing.T) {
	cfg := DefaultConfig()
	prev := &FeatureRow{
		EMAFast: 99, EMASlow: 100,
		MACD: -0.5, MACDSignal: 0,
	}
	cur := &FeatureRow{
		Close:   102,
		EMAFast: 101, EMASlow: 100,
		MACD: 0.5, MACDSignal: 0,
		ADX: 15, DIPlus: 20, DIMinus: 18,
		RSI:         55,
		VolumeRatio: 2.0,
		BBUpper:     105, BBLower: 99, BBMiddle: 102, BBWidth: 0.5,
	}

	d := Score(cfg, cur, prev, time.Now())

	// 25 + 20 = 45, weak trend *0.7 = 31.5, volume *1.2 = 37.8.
	assert.InDelta(t, 37.8, d.Score, 0.001)
	assert.Contains(t, d.Reasons, "Weak trend (ADX: 15.0)")
}

func TestScoreNilPrevDisablesCrossovers(t *testing.T) {
	cfg := DefaultConfig()
	cur := &FeatureRow{
		Close:   102,
		EMAFast: 101, EMASlow: 100,
		MACD: 0.5, MACDSignal: 0,
		ADX: 30, DIPlus: 25, DIMinus: 15,
		RSI:         55,
		VolumeRatio: 1.0,
		BBUpper:     105, BBLower: 99, BBMiddle: 102, BBWidth: 0.5,
	}

	d := Score(cfg, cur, nil, time.Now())

	// Sustained contributions only: 10 + 8 + 15 = 33, *0.8 = 26.4.
	assert.InDelta(t, 26.4, d.Score, 0.001)
	assert.Contains(t, d.Reasons, "EMA bullish trend")
	assert.NotContains(t, d.Reasons, "EMA bullish crossover")
}

func TestValidateSignal(t *testing.T) {
	cfg := DefaultConfig()
	base := SignalDecision{
		Direction:  models.Buy,
		Strength:   80,
		Confidence: 80,
		Features:   FeatureRow{ADX: 30, RSI: 55},
	}

	assert.True(t, ValidateSignal(cfg, base))

	d := base
	d.Direction = models.Hold
	assert.False(t, ValidateSignal(cfg, d))

	d = base
	d.Strength = 39
	assert.False(t, ValidateSignal(cfg, d))

	d = base
	d.Confidence = 59
	assert.False(t, ValidateSignal(cfg, d))

	d = base
	d.Features.ADX = 20
	assert.False(t, ValidateSignal(cfg, d))

	d = base
	d.Features.RSI = 80
	assert.False(t, ValidateSignal(cfg, d), "buying into overbought RSI must be rejected")

	d = base
	d.Direction = models.Sell
	d.Features.RSI = 20
	assert.False(t, ValidateSignal(cfg, d), "selling into oversold RSI must be rejected")
}
