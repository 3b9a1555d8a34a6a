package analysis

import (
	"errors"
	"math"
	"time"

	"tradingbot/internal/exchange"
)

// ErrInsufficientData is returned when the candle history is shorter than
// the largest configured lookback. The caller must wait for more data
// before scoring.
var ErrInsufficientData = errors.New("insufficient data for indicator calculation")

// Config holds the strategy lookbacks and thresholds
type Config struct {
	EMAFast    int
	EMASlow    int
	MACDSignal int

	ADXPeriod    int
	ADXThreshold float64

	RSIPeriod     int
	RSIOverbought float64
	RSIOversold   float64

	VolumeMAPeriod  int
	VolumeThreshold float64

	BBWindow int
	BBDev    float64

	StochWindow int
	StochSmooth int

	ATRPeriod int
}

// DefaultConfig is the EMA + ADX + RSI strategy parameter set
func DefaultConfig() Config {
	return Config{
		EMAFast:         12,
		EMASlow:         26,
		MACDSignal:      9,
		ADXPeriod:       14,
		ADXThreshold:    25,
		RSIPeriod:       14,
		RSIOverbought:   70,
		RSIOversold:     30,
		VolumeMAPeriod:  20,
		VolumeThreshold: 1.5,
		BBWindow:        20,
		BBDev:           2,
		StochWindow:     14,
		StochSmooth:     3,
		ATRPeriod:       14,
	}
}

// MinCandles is the number of candles needed before every indicator in the
// pipeline has a defined value.
func (c Config) MinCandles() int {
	warmup := c.EMASlow + c.MACDSignal
	warmup = maxInt(warmup, 2*c.ADXPeriod+1)
	warmup = maxInt(warmup, c.RSIPeriod+1)
	warmup = maxInt(warmup, c.VolumeMAPeriod)
	warmup = maxInt(warmup, c.BBWindow)
	warmup = maxInt(warmup, c.StochWindow+c.StochSmooth-1)
	warmup = maxInt(warmup, c.ATRPeriod+1)
	return warmup
}

// FeatureRow is the derived indicator bundle for one candle
type FeatureRow struct {
	Timestamp time.Time
	Close     float64

	EMAFast    float64
	EMASlow    float64
	MACD       float64
	MACDSignal float64

	ADX     float64
	DIPlus  float64
	DIMinus float64

	RSI         float64
	VolumeRatio float64

	BBUpper    float64
	BBLower    float64
	BBMiddle   float64
	BBWidth    float64
	BBPosition float64

	StochK float64
	StochD float64

	ATR float64

	// Ready reports whether enough lookback history exists for every
	// field of this row.
	Ready bool
}

// Calculate transforms a candle sequence into one FeatureRow per candle.
// It is a pure function: identical input always yields identical output.
func Calculate(cfg Config, klines []exchange.Kline) ([]FeatureRow, error) {
	n := len(klines)
	if n < cfg.MinCandles() {
		return nil, ErrInsufficientData
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, k := range klines {
		closes[i] = k.Close
		highs[i] = k.High
		lows[i] = k.Low
		volumes[i] = k.Volume
	}

	emaFast := emaSeries(closes, cfg.EMAFast)
	emaSlow := emaSeries(closes, cfg.EMASlow)

	macd := make([]float64, n)
	for i := range macd {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	// The signal line only sees MACD values computed after the slow EMA
	// has warmed up.
	macdSignal := make([]float64, n)
	copy(macdSignal[cfg.EMASlow-1:], emaSeries(macd[cfg.EMASlow-1:], cfg.MACDSignal))

	rsi := rsiSeries(closes, cfg.RSIPeriod)
	adx, diPlus, diMinus := adxSeries(highs, lows, closes, cfg.ADXPeriod)
	atr := atrSeries(highs, lows, closes, cfg.ATRPeriod)
	volMA := smaSeries(volumes, cfg.VolumeMAPeriod)
	bbUpper, bbLower, bbMiddle := bollingerSeries(closes, cfg.BBWindow, cfg.BBDev)
	stochK, stochD := stochSeries(highs, lows, closes, cfg.StochWindow, cfg.StochSmooth)

	readyFrom := cfg.MinCandles() - 1
	rows := make([]FeatureRow, n)
	for i := 0; i < n; i++ {
		row := FeatureRow{
			Timestamp:  klines[i].OpenTime,
			Close:      closes[i],
			EMAFast:    emaFast[i],
			EMASlow:    emaSlow[i],
			MACD:       macd[i],
			MACDSignal: macdSignal[i],
			ADX:        adx[i],
			DIPlus:     diPlus[i],
			DIMinus:    diMinus[i],
			RSI:        rsi[i],
			ATR:        atr[i],
			BBUpper:    bbUpper[i],
			BBLower:    bbLower[i],
			BBMiddle:   bbMiddle[i],
			StochK:     stochK[i],
			StochD:     stochD[i],
			Ready:      i >= readyFrom,
		}
		if volMA[i] > 0 {
			row.VolumeRatio = volumes[i] / volMA[i]
		}
		if bbMiddle[i] > 0 {
			row.BBWidth = (bbUpper[i] - bbLower[i]) / bbMiddle[i]
		}
		if band := bbUpper[i] - bbLower[i]; band > 0 {
			row.BBPosition = (closes[i] - bbLower[i]) / band
		}
		rows[i] = row
	}
	return rows, nil
}

// LatestPair returns the last ready row and its predecessor (nil when the
// predecessor is not ready).
func LatestPair(rows []FeatureRow) (cur, prev *FeatureRow) {
	if len(rows) == 0 || !rows[len(rows)-1].Ready {
		return nil, nil
	}
	cur = &rows[len(rows)-1]
	if len(rows) >= 2 && rows[len(rows)-2].Ready {
		prev = &rows[len(rows)-2]
	}
	return cur, prev
}

// emaSeries computes an SMA-seeded exponential moving average. Indices
// before period-1 hold zero.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = values[i]*multiplier + ema*(1-multiplier)
		out[i] = ema
	}
	return out
}

func smaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// rsiSeries computes Wilder's RSI: simple averages of gains/losses over the
// first period, then recursive smoothing.
func rsiSeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func trueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}

// atrSeries computes Wilder-smoothed average true range. Index 0 has no
// true range; values before the period hold zero.
func atrSeries(highs, lows, closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) < period+1 {
		return out
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += trueRange(highs[i], lows[i], closes[i-1])
	}
	atr := sum / float64(period)
	out[period] = atr

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		atr = (atr*(p-1) + trueRange(highs[i], lows[i], closes[i-1])) / p
		out[i] = atr
	}
	return out
}

// adxSeries computes Wilder's ADX with its DI+ / DI- components.
func adxSeries(highs, lows, closes []float64, period int) (adx, diPlus, diMinus []float64) {
	n := len(closes)
	adx = make([]float64, n)
	diPlus = make([]float64, n)
	diMinus = make([]float64, n)
	if n < 2*period+1 {
		return adx, diPlus, diMinus
	}

	p := float64(period)
	var smTR, smPlusDM, smMinusDM float64
	dx := make([]float64, n)

	for i := 1; i < n; i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]
		plusDM, minusDM := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}
		tr := trueRange(highs[i], lows[i], closes[i-1])

		if i <= period {
			smTR += tr
			smPlusDM += plusDM
			smMinusDM += minusDM
			if i < period {
				continue
			}
		} else {
			smTR = smTR - smTR/p + tr
			smPlusDM = smPlusDM - smPlusDM/p + plusDM
			smMinusDM = smMinusDM - smMinusDM/p + minusDM
		}

		if smTR > 0 {
			diPlus[i] = 100 * smPlusDM / smTR
			diMinus[i] = 100 * smMinusDM / smTR
		}
		if sum := diPlus[i] + diMinus[i]; sum > 0 {
			dx[i] = 100 * math.Abs(diPlus[i]-diMinus[i]) / sum
		}
	}

	// First ADX is the simple mean of the first period DX values, then
	// Wilder smoothing.
	sum := 0.0
	for i := period; i < 2*period; i++ {
		sum += dx[i]
	}
	cur := sum / p
	adx[2*period-1] = cur
	for i := 2 * period; i < n; i++ {
		cur = (cur*(p-1) + dx[i]) / p
		adx[i] = cur
	}
	return adx, diPlus, diMinus
}

// bollingerSeries computes the rolling mean +/- dev standard deviations.
func bollingerSeries(closes []float64, window int, dev float64) (upper, lower, middle []float64) {
	n := len(closes)
	upper = make([]float64, n)
	lower = make([]float64, n)
	middle = smaSeries(closes, window)

	for i := window - 1; i < n; i++ {
		mean := middle[i]
		var variance float64
		for j := i - window + 1; j <= i; j++ {
			d := closes[j] - mean
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(window))
		upper[i] = mean + dev*sd
		lower[i] = mean - dev*sd
	}
	return upper, lower, middle
}

// stochSeries computes raw %K over the window and %D as its SMA.
func stochSeries(highs, lows, closes []float64, window, smooth int) (k, d []float64) {
	n := len(closes)
	k = make([]float64, n)

	for i := window - 1; i < n; i++ {
		hh := highs[i]
		ll := lows[i]
		for j := i - window + 1; j <= i; j++ {
			hh = math.Max(hh, highs[j])
			ll = math.Min(ll, lows[j])
		}
		if hh > ll {
			k[i] = 100 * (closes[i] - ll) / (hh - ll)
		} else {
			k[i] = 50
		}
	}

	d = make([]float64, n)
	for i := window + smooth - 2; i < n; i++ {
		sum := 0.0
		for j := i - smooth + 1; j <= i; j++ {
			sum += k[j]
		}
		d[i] = sum / float64(smooth)
	}
	return k, d
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
