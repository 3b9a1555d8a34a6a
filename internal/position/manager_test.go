package position

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingbot/internal/analysis"
	"tradingbot/internal/models"
)

// stubExecutor fills every order at a price the test controls.
type stubExecutor struct {
	price float64
	fail  bool
	opens int
}

func (s *stubExecutor) Open(ctx context.Context, symbol string, direction models.Direction, quantity, stopLoss, takeProfit float64) (float64, error) {
	if s.fail {
		return 0, errors.New("exchange down")
	}
	s.opens++
	return s.price, nil
}

func (s *stubExecutor) Close(ctx context.Context, symbol string, direction models.Direction, quantity float64) (float64, error) {
	if s.fail {
		return 0, errors.New("exchange down")
	}
	return s.price, nil
}

func validBuy(atr float64) analysis.SignalDecision {
	return analysis.SignalDecision{
		Direction:  models.Buy,
		Strength:   80,
		Confidence: 80,
		Features:   analysis.FeatureRow{ADX: 30, RSI: 55, ATR: atr},
	}
}

func hold() analysis.SignalDecision {
	return analysis.SignalDecision{Direction: models.Hold}
}

func newTestManager(exec Executor) *Manager {
	m := NewManager(analysis.DefaultConfig(), exec, 10000, 0.10, 0.001)
	m.SetQuiet(true)
	return m
}

func TestOpenPosition(t *testing.T) {
	exec := &stubExecutor{price: 100}
	m := newTestManager(exec)
	ctx := context.Background()
	now := time.Now()

	trade, pos, err := m.OnTick(ctx, "BTCUSDT", 100, validBuy(2), now)
	require.NoError(t, err)
	require.Nil(t, trade)
	require.NotNil(t, pos)

	// 10% of 10000 at price 100 = 10 units, entry fee 1 USDT.
	assert.InDelta(t, 10.0, pos.Quantity, 1e-9)
	assert.InDelta(t, 98.0, pos.StopLoss, 1e-9)
	assert.InDelta(t, 103.0, pos.TakeProfit, 1e-9)
	assert.InDelta(t, 9999.0, m.Balance(), 1e-9)
	assert.NotEmpty(t, pos.ID)
}

func TestSinglePositionPerSymbol(t *testing.T) {
	exec := &stubExecutor{price: 100}
	m := newTestManager(exec)
	ctx := context.Background()
	now := time.Now()

	_, pos, err := m.OnTick(ctx, "BTCUSDT", 100, validBuy(2), now)
	require.NoError(t, err)
	require.NotNil(t, pos)

	// A second entry signal while the position is open must be ignored.
	trade, pos, err := m.OnTick(ctx, "BTCUSDT", 100.5, validBuy(2), now)
	require.NoError(t, err)
	assert.Nil(t, trade)
	assert.Nil(t, pos)
	assert.Equal(t, 1, exec.opens)
	assert.Len(t, m.OpenPositions(), 1)
}

func TestStopLossExit(t *testing.T) {
	exec := &stubExecutor{price: 100}
	m := newTestManager(exec)
	ctx := context.Background()
	now := time.Now()

	_, _, err := m.OnTick(ctx, "BTCUSDT", 100, validBuy(2), now)
	require.NoError(t, err)

	// Price crosses the 98 stop. The exit check must fire even on a Hold
	// signal tick.
	exec.price = 98
	trade, _, err := m.OnTick(ctx, "BTCUSDT", 98, hold(), now.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, trade)

	assert.Equal(t, "Stop Loss", trade.ExitReason)
	// Gross -20, entry fee 1, exit fee 0.98.
	assert.InDelta(t, -21.98, trade.PnL, 1e-9)
	assert.InDelta(t, -2.198, trade.PnLPercent, 1e-9)
	assert.InDelta(t, 9978.02, m.Balance(), 1e-9)
	assert.Nil(t, m.Position("BTCUSDT"))
}

func TestStopLossGapFill(t *testing.T) {
	// Price gaps through the 98 stop and fills at 97. With zero fees the
	// recorded loss is exactly the price move times quantity.
	exec := &stubExecutor{price: 100}
	m := NewManager(analysis.DefaultConfig(), exec, 10000, 0.10, 0)
	m.SetQuiet(true)
	ctx := context.Background()
	now := time.Now()

	_, _, err := m.OnTick(ctx, "BTCUSDT", 100, validBuy(2), now)
	require.NoError(t, err)

	exec.price = 97
	trade, _, err := m.OnTick(ctx, "BTCUSDT", 97, hold(), now.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, trade)

	assert.Equal(t, "Stop Loss", trade.ExitReason)
	assert.InDelta(t, -30.0, trade.PnL, 1e-9)
}

func TestTakeProfitExit(t *testing.T) {
	exec := &stubExecutor{price: 100}
	m := newTestManager(exec)
	ctx := context.Background()
	now := time.Now()

	_, _, err := m.OnTick(ctx, "BTCUSDT", 100, validBuy(2), now)
	require.NoError(t, err)

	exec.price = 103
	trade, _, err := m.OnTick(ctx, "BTCUSDT", 103, hold(), now.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, trade)

	assert.Equal(t, "Take Profit", trade.ExitReason)
	assert.Greater(t, trade.PnL, 0.0)
}

func TestSignalReversalExit(t *testing.T) {
	exec := &stubExecutor{price: 100}
	m := newTestManager(exec)
	ctx := context.Background()
	now := time.Now()

	_, _, err := m.OnTick(ctx, "BTCUSDT", 100, validBuy(2), now)
	require.NoError(t, err)

	weak := analysis.SignalDecision{Direction: models.Sell, Strength: 69}
	trade, _, err := m.OnTick(ctx, "BTCUSDT", 100.5, weak, now)
	require.NoError(t, err)
	assert.Nil(t, trade, "reversal below threshold must not exit")

	strong := analysis.SignalDecision{Direction: models.Sell, Strength: 70}
	exec.price = 100.5
	trade, _, err = m.OnTick(ctx, "BTCUSDT", 100.5, strong, now)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, "Signal Reversal", trade.ExitReason)
}

func TestShortPosition(t *testing.T) {
	exec := &stubExecutor{price: 100}
	m := newTestManager(exec)
	ctx := context.Background()
	now := time.Now()

	sell := validBuy(2)
	sell.Direction = models.Sell
	_, pos, err := m.OnTick(ctx, "BTCUSDT", 100, sell, now)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.InDelta(t, 102.0, pos.StopLoss, 1e-9)
	assert.InDelta(t, 97.0, pos.TakeProfit, 1e-9)

	// A falling price is profit for a short.
	exec.price = 97
	trade, _, err := m.OnTick(ctx, "BTCUSDT", 97, hold(), now.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, "Take Profit", trade.ExitReason)
	assert.Greater(t, trade.PnL, 0.0)
}

func TestExecutorFailureLeavesStateUnchanged(t *testing.T) {
	exec := &stubExecutor{price: 100, fail: true}
	m := newTestManager(exec)
	ctx := context.Background()
	now := time.Now()

	_, pos, err := m.OnTick(ctx, "BTCUSDT", 100, validBuy(2), now)
	assert.Error(t, err)
	assert.Nil(t, pos)
	assert.InDelta(t, 10000.0, m.Balance(), 1e-9)
	assert.Empty(t, m.OpenPositions())

	// Open succeeds, then close attempts fail: the position must survive.
	exec.fail = false
	_, _, err = m.OnTick(ctx, "BTCUSDT", 100, validBuy(2), now)
	require.NoError(t, err)

	exec.fail = true
	_, err = m.ForceClose(ctx, "BTCUSDT", "Manual close", now)
	assert.Error(t, err)
	assert.NotNil(t, m.Position("BTCUSDT"))
}

func TestForceClose(t *testing.T) {
	exec := &stubExecutor{price: 100}
	m := newTestManager(exec)
	ctx := context.Background()
	now := time.Now()

	_, _, err := m.OnTick(ctx, "BTCUSDT", 100, validBuy(2), now)
	require.NoError(t, err)

	exec.price = 101
	trade, err := m.ForceClose(ctx, "BTCUSDT", "End of backtest", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "End of backtest", trade.ExitReason)
	assert.Empty(t, m.OpenPositions())

	_, err = m.ForceClose(ctx, "BTCUSDT", "again", now)
	assert.Error(t, err)
}

func TestEquity(t *testing.T) {
	exec := &stubExecutor{price: 100}
	m := newTestManager(exec)
	ctx := context.Background()

	_, _, err := m.OnTick(ctx, "BTCUSDT", 100, validBuy(2), time.Now())
	require.NoError(t, err)

	// Balance 9999 after the entry fee, +10 units marked 2 up.
	equity := m.Equity(map[string]float64{"BTCUSDT": 102})
	assert.InDelta(t, 9999+20.0, equity, 1e-9)
}
