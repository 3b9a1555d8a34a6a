package position

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradingbot/internal/analysis"
	"tradingbot/internal/models"
)

// reversalStrength is the minimum opposite-signal strength that forces an
// exit from an open position.
const reversalStrength = 70

// Executor places and closes orders on some venue. The live engine backs it
// with the exchange client, the backtester with an in-memory fill model.
type Executor interface {
	Open(ctx context.Context, symbol string, direction models.Direction, quantity, stopLoss, takeProfit float64) (fillPrice float64, err error)
	Close(ctx context.Context, symbol string, direction models.Direction, quantity float64) (fillPrice float64, err error)
}

// Manager owns the position lifecycle for a set of symbols: at most one open
// position per symbol, entries gated by signal validation, exits by stop
// loss, take profit or a strong reversal. All balance accounting lives here
// so live trading and backtesting settle trades identically.
type Manager struct {
	cfg      analysis.Config
	executor Executor

	balance     float64
	sizePct     float64
	feeRate     float64
	positions   map[string]*models.Position
	trades      []*models.Trade
	mu          sync.RWMutex
	onOpen      func(*models.Position)
	onClose     func(*models.Trade)
	quiet       bool
}

func NewManager(cfg analysis.Config, executor Executor, initialBalance, sizePct, feeRate float64) *Manager {
	return &Manager{
		cfg:       cfg,
		executor:  executor,
		balance:   initialBalance,
		sizePct:   sizePct,
		feeRate:   feeRate,
		positions: make(map[string]*models.Position),
		trades:    make([]*models.Trade, 0),
	}
}

// SetQuiet suppresses per-trade log lines. The backtester sets this to keep
// long replays readable.
func (m *Manager) SetQuiet(quiet bool) { m.quiet = quiet }

func (m *Manager) SetCallbacks(onOpen func(*models.Position), onClose func(*models.Trade)) {
	m.onOpen = onOpen
	m.onClose = onClose
}

func (m *Manager) Balance() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balance
}

// Equity is the balance plus unrealized P&L of open positions at the given
// marks. Symbols without a mark contribute nothing.
func (m *Manager) Equity(marks map[string]float64) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	equity := m.balance
	for symbol, pos := range m.positions {
		price, ok := marks[symbol]
		if !ok {
			continue
		}
		equity += unrealizedPnL(pos, price)
	}
	return equity
}

func (m *Manager) Position(symbol string) *models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if pos, ok := m.positions[symbol]; ok {
		cp := *pos
		return &cp
	}
	return nil
}

func (m *Manager) OpenPositions() []*models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		cp := *pos
		out = append(out, &cp)
	}
	return out
}

func (m *Manager) Trades() []*models.Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trades := make([]*models.Trade, len(m.trades))
	copy(trades, m.trades)
	return trades
}

// OnTick advances the state machine for one symbol: first the exit checks
// for an open position, then the entry check when the symbol is flat. Exit
// checks run on every tick regardless of whether the signal would validate
// for entry.
func (m *Manager) OnTick(ctx context.Context, symbol string, price float64, decision analysis.SignalDecision, now time.Time) (*models.Trade, *models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pos, ok := m.positions[symbol]; ok {
		reason := exitReason(pos, price, decision)
		if reason == "" {
			return nil, nil, nil
		}
		trade, err := m.closeLocked(ctx, pos, reason, now)
		return trade, nil, err
	}

	if decision.Direction == models.Hold || !analysis.ValidateSignal(m.cfg, decision) {
		return nil, nil, nil
	}
	pos, err := m.openLocked(ctx, symbol, price, decision, now)
	return nil, pos, err
}

// ForceClose exits the open position on symbol at the given price with a
// caller-supplied reason ("Manual close", "End of backtest").
func (m *Manager) ForceClose(ctx context.Context, symbol string, reason string, now time.Time) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[symbol]
	if !ok {
		return nil, fmt.Errorf("no open position for %s", symbol)
	}
	return m.closeLocked(ctx, pos, reason, now)
}

// CloseAll force-closes every open position.
func (m *Manager) CloseAll(ctx context.Context, reason string, now time.Time) []*models.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	closed := make([]*models.Trade, 0, len(m.positions))
	for _, pos := range m.positions {
		trade, err := m.closeLocked(ctx, pos, reason, now)
		if err != nil {
			log.Printf("❌ Failed to close %s: %v", pos.Symbol, err)
			continue
		}
		closed = append(closed, trade)
	}
	return closed
}

func (m *Manager) openLocked(ctx context.Context, symbol string, price float64, decision analysis.SignalDecision, now time.Time) (*models.Position, error) {
	notional := m.balance * m.sizePct
	if notional <= 0 || price <= 0 {
		return nil, fmt.Errorf("cannot size position: balance=%.2f price=%.2f", m.balance, price)
	}
	quantity := notional / price
	stopLoss, takeProfit := analysis.StopLossTakeProfit(price, decision.Direction, decision.Features.ATR)

	fillPrice, err := m.executor.Open(ctx, symbol, decision.Direction, quantity, stopLoss, takeProfit)
	if err != nil {
		return nil, err
	}

	entryFee := fillPrice * quantity * m.feeRate
	m.balance -= entryFee

	pos := &models.Position{
		ID:         uuid.New().String(),
		Symbol:     symbol,
		Direction:  decision.Direction,
		EntryPrice: fillPrice,
		Quantity:   quantity,
		EntryTime:  now,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		EntryFee:   entryFee,
		Reasoning:  strings.Join(decision.Reasons, "; "),
	}
	m.positions[symbol] = pos

	if !m.quiet {
		log.Printf("📈 Opened %s %s: %.6f @ %.2f (SL: %.2f, TP: %.2f)",
			pos.Direction, symbol, quantity, fillPrice, stopLoss, takeProfit)
	}
	if m.onOpen != nil {
		cp := *pos
		m.onOpen(&cp)
	}
	return pos, nil
}

func (m *Manager) closeLocked(ctx context.Context, pos *models.Position, reason string, now time.Time) (*models.Trade, error) {
	fillPrice, err := m.executor.Close(ctx, pos.Symbol, pos.Direction, pos.Quantity)
	if err != nil {
		return nil, err
	}

	grossPnL := unrealizedPnL(pos, fillPrice)
	exitFee := fillPrice * pos.Quantity * m.feeRate
	netPnL := grossPnL - pos.EntryFee - exitFee

	// Entry fee was already deducted from the balance at open.
	m.balance += grossPnL - exitFee
	delete(m.positions, pos.Symbol)

	trade := &models.Trade{
		Symbol:     pos.Symbol,
		Direction:  pos.Direction,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  fillPrice,
		Quantity:   pos.Quantity,
		EntryTime:  pos.EntryTime,
		ExitTime:   now,
		PnL:        netPnL,
		PnLPercent: netPnL / (pos.EntryPrice * pos.Quantity) * 100,
		ExitReason: reason,
	}
	m.trades = append(m.trades, trade)

	if !m.quiet {
		emoji := "✅"
		if netPnL < 0 {
			emoji = "🔻"
		}
		log.Printf("%s Closed %s %s @ %.2f: PnL %.2f (%.2f%%) [%s]",
			emoji, pos.Direction, pos.Symbol, fillPrice, netPnL, trade.PnLPercent, reason)
	}
	if m.onClose != nil {
		cp := *trade
		m.onClose(&cp)
	}
	return trade, nil
}

// exitReason returns the reason an open position must close at this price
// and signal, or "" to stay in. Stop loss has priority over take profit,
// take profit over reversal.
func exitReason(pos *models.Position, price float64, decision analysis.SignalDecision) string {
	if pos.Direction == models.Buy {
		if price <= pos.StopLoss {
			return "Stop Loss"
		}
		if price >= pos.TakeProfit {
			return "Take Profit"
		}
	} else {
		if price >= pos.StopLoss {
			return "Stop Loss"
		}
		if price <= pos.TakeProfit {
			return "Take Profit"
		}
	}
	if decision.Direction == pos.Direction.Opposite() && decision.Strength >= reversalStrength {
		return "Signal Reversal"
	}
	return ""
}

func unrealizedPnL(pos *models.Position, price float64) float64 {
	diff := price - pos.EntryPrice
	if pos.Direction == models.Sell {
		diff = -diff
	}
	return diff * pos.Quantity
}

// UnrealizedPnL exposes the mark-to-market P&L of a position copy.
func UnrealizedPnL(pos *models.Position, price float64) float64 {
	return unrealizedPnL(pos, price)
}
