package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingbot/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func closedTrade(symbol string, pnl float64) *models.Trade {
	entry := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &models.Trade{
		Symbol:     symbol,
		Direction:  models.Buy,
		EntryPrice: 100,
		ExitPrice:  100 + pnl,
		Quantity:   1,
		EntryTime:  entry,
		ExitTime:   entry.Add(2 * time.Hour),
		PnL:        pnl,
		PnLPercent: pnl,
		ExitReason: "Take Profit",
	}
}

func TestCloseTradeSettlesOpenRecord(t *testing.T) {
	s := openTestStore(t)

	pos := &models.Position{
		ID:         "pos-1",
		Symbol:     "BTCUSDT",
		Direction:  models.Buy,
		EntryPrice: 100,
		Quantity:   1,
		EntryTime:  time.Now(),
	}
	require.NoError(t, s.SaveOpenTrade(pos))

	require.NoError(t, s.CloseTrade(closedTrade("BTCUSDT", 5)))

	trades, err := s.RecentTrades(10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.False(t, trades[0].Open)
	assert.InDelta(t, 5.0, trades[0].PnL, 1e-9)
	assert.Equal(t, "Take Profit", trades[0].ExitReason)
}

// A batch of already-closed trades, as the backtest CLI persists them, must
// land as complete rows even though no open record ever existed.
func TestCloseTradeWithoutOpenRecord(t *testing.T) {
	s := openTestStore(t)

	batch := []*models.Trade{
		closedTrade("BTCUSDT", 10),
		closedTrade("BTCUSDT", -4),
		closedTrade("BTCUSDT", 7),
	}
	for _, trade := range batch {
		require.NoError(t, s.CloseTrade(trade))
	}

	trades, err := s.RecentTrades(10)
	require.NoError(t, err)
	assert.Len(t, trades, len(batch))

	stats, err := s.TradingStats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTrades)
	assert.Equal(t, 2, stats.ProfitableTrades)
	assert.InDelta(t, 13.0, stats.RealizedPL, 1e-9)
}

func TestPortfolioSnapshots(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SavePortfolio(10000, 10000, 0))
	require.NoError(t, s.SavePortfolio(10050, 10075, 1))

	snaps, err := s.PortfolioSnapshots(10)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	equities := []float64{snaps[0].Equity, snaps[1].Equity}
	assert.Contains(t, equities, 10000.0)
	assert.Contains(t, equities, 10075.0)
}
