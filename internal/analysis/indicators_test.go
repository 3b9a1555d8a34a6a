package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingbot/internal/exchange"
)

// trendKlines builds a steadily rising series with constant volume.
func trendKlines(n int, start, step float64) []exchange.Kline {
	klines := make([]exchange.Kline, n)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range klines {
		close := start + float64(i)*step
		klines[i] = exchange.Kline{
			OpenTime:  t0.Add(time.Duration(i) * 15 * time.Minute),
			Open:      close - step,
			High:      close + 0.5,
			Low:       close - 0.5,
			Close:     close,
			Volume:    1000,
			CloseTime: t0.Add(time.Duration(i+1) * 15 * time.Minute),
		}
	}
	return klines
}

func TestCalculateRejectsShortSeries(t *testing.T) {
	cfg := DefaultConfig()
	_, err := Calculate(cfg, trendKlines(cfg.MinCandles()-1, 100, 1))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCalculateUptrend(t *testing.T) {
	cfg := DefaultConfig()
	rows, err := Calculate(cfg, trendKlines(200, 100, 1))
	require.NoError(t, err)
	require.Len(t, rows, 200)

	last := rows[len(rows)-1]
	require.True(t, last.Ready)

	// Monotonic rise: fast EMA leads, RSI saturates, directional movement
	// is all positive.
	assert.Greater(t, last.EMAFast, last.EMASlow)
	assert.Greater(t, last.RSI, 90.0)
	assert.Greater(t, last.ADX, cfg.ADXThreshold)
	assert.Greater(t, last.DIPlus, last.DIMinus)
	assert.Greater(t, last.StochK, 80.0)

	// Constant volume means the ratio sits at 1.
	assert.InDelta(t, 1.0, last.VolumeRatio, 0.001)

	// Band ordering always holds.
	assert.Greater(t, last.BBUpper, last.BBMiddle)
	assert.Greater(t, last.BBMiddle, last.BBLower)
	assert.Greater(t, last.ATR, 0.0)
}

func TestCalculateWarmup(t *testing.T) {
	cfg := DefaultConfig()
	rows, err := Calculate(cfg, trendKlines(cfg.MinCandles()+5, 100, 1))
	require.NoError(t, err)

	assert.False(t, rows[0].Ready)
	assert.True(t, rows[len(rows)-1].Ready)
}

func TestLatestPair(t *testing.T) {
	cfg := DefaultConfig()
	rows, err := Calculate(cfg, trendKlines(100, 100, 1))
	require.NoError(t, err)

	cur, prev := LatestPair(rows)
	require.NotNil(t, cur)
	require.NotNil(t, prev)
	assert.Equal(t, rows[len(rows)-1].Close, cur.Close)
	assert.Equal(t, rows[len(rows)-2].Close, prev.Close)
}
