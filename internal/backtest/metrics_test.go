package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tradingbot/internal/models"
)

func mkTrade(pnl float64, hold time.Duration) *models.Trade {
	entry := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Trade{
		Symbol:    "BTCUSDT",
		PnL:       pnl,
		EntryTime: entry,
		ExitTime:  entry.Add(hold),
	}
}

func TestComputeMetricsEmpty(t *testing.T) {
	report := ComputeMetrics(nil, nil)
	assert.Equal(t, 0, report.TotalTrades)
	assert.Zero(t, report.WinRate)
	assert.Zero(t, report.ProfitFactor)
}

func TestComputeMetricsMixed(t *testing.T) {
	trades := []*models.Trade{
		mkTrade(10, time.Hour),
		mkTrade(-5, 3*time.Hour),
		mkTrade(20, 2*time.Hour),
		mkTrade(-5, 2*time.Hour),
	}

	report := ComputeMetrics(trades, nil)

	assert.Equal(t, 4, report.TotalTrades)
	assert.Equal(t, 2, report.WinningTrades)
	assert.Equal(t, 2, report.LosingTrades)
	assert.InDelta(t, 50.0, report.WinRate, 0.001)
	assert.InDelta(t, 3.0, report.ProfitFactor, 0.001) // 30 profit / 10 loss
	assert.InDelta(t, 20.0, report.TotalPnL, 0.001)
	assert.InDelta(t, 5.0, report.AvgTrade, 0.001)
	assert.InDelta(t, 20.0, report.BestTrade, 0.001)
	assert.InDelta(t, -5.0, report.WorstTrade, 0.001)
	assert.Equal(t, 2*time.Hour, report.AvgDuration)
}

func TestProfitFactorNoLosses(t *testing.T) {
	trades := []*models.Trade{mkTrade(10, time.Hour), mkTrade(5, time.Hour)}
	report := ComputeMetrics(trades, nil)
	assert.True(t, math.IsInf(report.ProfitFactor, 1))
}

func TestMaxDrawdown(t *testing.T) {
	t0 := time.Now()
	equity := []models.EquityPoint{
		{Timestamp: t0, Equity: 100},
		{Timestamp: t0, Equity: 120},
		{Timestamp: t0, Equity: 60},
		{Timestamp: t0, Equity: 110},
	}
	// Peak 120 to trough 60 is a 50% drawdown.
	assert.InDelta(t, 50.0, maxDrawdown(equity), 0.001)

	assert.Zero(t, maxDrawdown(nil))

	rising := []models.EquityPoint{{Equity: 100}, {Equity: 110}, {Equity: 120}}
	assert.Zero(t, maxDrawdown(rising))
}

func TestSharpeRatio(t *testing.T) {
	// Constant equity has zero variance.
	flat := []models.EquityPoint{{Equity: 100}, {Equity: 100}, {Equity: 100}}
	assert.Zero(t, sharpeRatio(flat))

	assert.Zero(t, sharpeRatio(nil))
	assert.Zero(t, sharpeRatio([]models.EquityPoint{{Equity: 100}}))

	// A mix of up and down moves produces a finite ratio.
	mixed := []models.EquityPoint{
		{Equity: 100}, {Equity: 103}, {Equity: 101}, {Equity: 105}, {Equity: 104},
	}
	s := sharpeRatio(mixed)
	assert.False(t, math.IsNaN(s))
	assert.False(t, math.IsInf(s, 0))
	assert.NotZero(t, s)
}

func TestRecoveryFactor(t *testing.T) {
	trades := []*models.Trade{mkTrade(500, time.Hour), mkTrade(-250, time.Hour)}
	equity := []models.EquityPoint{
		{Equity: 10000}, {Equity: 10500}, {Equity: 9450}, {Equity: 10250},
	}
	report := ComputeMetrics(trades, equity)

	// Net profit 250 against a 10% drawdown.
	assert.InDelta(t, 10.0, report.MaxDrawdown, 0.001)
	assert.InDelta(t, 25.0, report.RecoveryFactor, 0.001)
}

func TestRecoveryFactorNoDrawdown(t *testing.T) {
	trades := []*models.Trade{mkTrade(100, time.Hour)}
	rising := []models.EquityPoint{{Equity: 10000}, {Equity: 10100}}
	report := ComputeMetrics(trades, rising)
	assert.Zero(t, report.RecoveryFactor)
}
