package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"tradingbot/config"
	"tradingbot/internal/ai"
	"tradingbot/internal/analysis"
	"tradingbot/internal/backtest"
	"tradingbot/internal/exchange"
	"tradingbot/internal/models"
	"tradingbot/internal/position"
	"tradingbot/internal/store"
)

const (
	tickInterval   = 30 * time.Second
	entryCooldown  = 15 * time.Minute
	klineLookback  = 150
)

// liveExecutor routes manager orders to the exchange client.
type liveExecutor struct {
	client exchange.ExchangeClient
}

func (e *liveExecutor) Open(ctx context.Context, symbol string, direction models.Direction, quantity, stopLoss, takeProfit float64) (float64, error) {
	fill, err := e.client.PlaceOrder(ctx, symbol, direction, quantity, stopLoss, takeProfit)
	if err != nil {
		return 0, err
	}
	return fill.Price, nil
}

func (e *liveExecutor) Close(ctx context.Context, symbol string, direction models.Direction, quantity float64) (float64, error) {
	fill, err := e.client.ClosePosition(ctx, symbol, direction, quantity)
	if err != nil {
		return 0, err
	}
	return fill.Price, nil
}

// TradingEngine runs the evaluation loop: every tick it pulls fresh candles,
// scores them, optionally asks the AI advisory for a second opinion, and
// hands the decision to the position manager. One tick is atomic per symbol;
// ticks never overlap.
type TradingEngine struct {
	cfg      *config.Config
	acfg     analysis.Config
	client   exchange.ExchangeClient
	manager  *position.Manager
	aiClient *ai.MistralClient
	limiter  *ai.Limiter
	db       *store.Store

	isRunning   bool
	stopChan    chan struct{}
	mu          sync.RWMutex
	tradesToday int
	tradingDay  time.Time
	lastExit    map[string]time.Time
	lastSignal  *analysis.SignalDecision
	lastRows    []analysis.FeatureRow

	onTradeOpen  func(*models.Position)
	onTradeClose func(*models.Trade)
	onAnalysis   func(string)
}

func NewTradingEngine(
	cfg *config.Config,
	client exchange.ExchangeClient,
	aiClient *ai.MistralClient,
	db *store.Store,
) *TradingEngine {
	acfg := analysis.DefaultConfig()
	e := &TradingEngine{
		cfg:      cfg,
		acfg:     acfg,
		client:   client,
		aiClient: aiClient,
		limiter:  ai.NewLimiter(cfg.AICallBudget),
		db:       db,
		stopChan: make(chan struct{}),
		lastExit: make(map[string]time.Time),
	}
	e.manager = position.NewManager(acfg, &liveExecutor{client: client}, cfg.InitialBalance, cfg.PositionSizePct, cfg.FeeRate)
	e.manager.SetCallbacks(e.handleOpen, e.handleClose)
	return e
}

func (e *TradingEngine) SetCallbacks(
	onTradeOpen func(*models.Position),
	onTradeClose func(*models.Trade),
	onAnalysis func(string),
) {
	e.onTradeOpen = onTradeOpen
	e.onTradeClose = onTradeClose
	e.onAnalysis = onAnalysis
}

func (e *TradingEngine) Start() {
	e.mu.Lock()
	if e.isRunning {
		e.mu.Unlock()
		return
	}
	e.isRunning = true
	e.stopChan = make(chan struct{})
	e.mu.Unlock()

	e.restoreDailyCount()
	log.Println("🚀 Trading Engine started")
	go e.run()
}

func (e *TradingEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.isRunning {
		return
	}
	e.isRunning = false
	close(e.stopChan)
	log.Println("⏸️ Trading Engine stopped")
}

func (e *TradingEngine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isRunning
}

func (e *TradingEngine) Manager() *position.Manager { return e.manager }

// LastSignal returns the most recent scored decision, or nil before the
// first tick completes.
func (e *TradingEngine) LastSignal() *analysis.SignalDecision {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastSignal == nil {
		return nil
	}
	cp := *e.lastSignal
	return &cp
}

// CloseAllPositions force-closes everything at market. Used on shutdown and
// from the Telegram bot.
func (e *TradingEngine) CloseAllPositions(ctx context.Context) []*models.Trade {
	return e.manager.CloseAll(ctx, "Manual close", time.Now())
}

// RunBacktest replays the last `days` of history for the configured symbol
// through the simulator using the live strategy parameters.
func (e *TradingEngine) RunBacktest(ctx context.Context, days int) (*backtest.Result, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	klines, err := exchange.LoadHistory(ctx, e.client, e.cfg.Symbol, e.cfg.Timeframe, start, end)
	if err != nil {
		return nil, err
	}

	params := backtest.Params{
		Symbol:          e.cfg.Symbol,
		InitialBalance:  e.cfg.InitialBalance,
		PositionSizePct: e.cfg.PositionSizePct,
		FeeRate:         e.cfg.FeeRate,
	}
	return backtest.NewSimulator(e.acfg, params).Run(ctx, klines)
}

// MarketSentiment asks the AI advisory for a read of the current market,
// charged against the same daily call budget as signal validation.
func (e *TradingEngine) MarketSentiment(ctx context.Context) (*models.SentimentReport, error) {
	if e.aiClient == nil {
		return nil, errors.New("AI advisory disabled")
	}
	e.mu.RLock()
	rows := e.lastRows
	e.mu.RUnlock()
	if len(rows) == 0 {
		return nil, errors.New("no market data evaluated yet")
	}
	if err := e.limiter.Acquire(); err != nil {
		return nil, err
	}
	return e.aiClient.AnalyzeSentiment(ctx, e.cfg.Symbol, rows)
}

func (e *TradingEngine) Stats() (*models.Stats, error) {
	stats, err := e.db.TradingStats()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var unrealized float64
	for _, pos := range e.manager.OpenPositions() {
		price, err := e.client.GetPrice(ctx, pos.Symbol)
		if err != nil {
			continue
		}
		unrealized += position.UnrealizedPnL(pos, price)
	}
	stats.UnrealizedPL = unrealized
	stats.TotalPL = stats.RealizedPL + unrealized
	return stats, nil
}

func (e *TradingEngine) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	e.tick()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *TradingEngine) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickInterval)
	defer cancel()

	symbol := e.cfg.Symbol
	klines, err := e.client.GetKlines(ctx, symbol, e.cfg.Timeframe, klineLookback)
	if err != nil {
		log.Printf("❌ Failed to fetch klines for %s: %v", symbol, err)
		return
	}

	rows, err := analysis.Calculate(e.acfg, klines)
	if err != nil {
		if errors.Is(err, analysis.ErrInsufficientData) {
			log.Printf("⚠️ Not enough candles for %s yet (%d)", symbol, len(klines))
			return
		}
		log.Printf("❌ Analysis failed for %s: %v", symbol, err)
		return
	}

	cur, prev := analysis.LatestPair(rows)
	if cur == nil {
		log.Printf("⚠️ No ready feature row for %s", symbol)
		return
	}

	decision := analysis.Score(e.acfg, cur, prev, time.Now())
	e.mu.Lock()
	e.lastSignal = &decision
	e.lastRows = rows
	e.mu.Unlock()

	if err := e.db.SaveSignal(symbol, decision, strings.Join(decision.Reasons, "; ")); err != nil {
		log.Printf("⚠️ Failed to persist signal: %v", err)
	}

	log.Printf("🔍 %s: %s score=%.1f strength=%.1f confidence=%.0f%%",
		symbol, decision.Direction, decision.Score, decision.Strength, decision.Confidence)
	if e.onAnalysis != nil {
		e.onAnalysis(fmt.Sprintf("🔍 %s: %s (strength %.1f, confidence %.0f%%)\n%s",
			symbol, decision.Direction, decision.Strength, decision.Confidence,
			strings.Join(decision.Reasons, "\n")))
	}

	// Every evaluated tick leaves a snapshot, even when the entry gates
	// stop the decision from reaching the manager.
	price := cur.Close
	defer e.snapshotPortfolio(symbol, price)

	flat := e.manager.Position(symbol) == nil
	if flat {
		if !e.canEnter(symbol, decision) {
			return
		}
		decision = e.applyAdvisory(ctx, symbol, decision)
	}

	if _, _, err := e.manager.OnTick(ctx, symbol, price, decision, time.Now()); err != nil {
		log.Printf("❌ Order execution failed for %s: %v", symbol, err)
	}
}

// canEnter applies the engine-level entry gates on top of signal validation:
// the daily trade budget and the post-exit cooldown.
func (e *TradingEngine) canEnter(symbol string, decision analysis.SignalDecision) bool {
	if decision.Direction == models.Hold {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !today.Equal(e.tradingDay) {
		e.tradingDay = today
		e.tradesToday = 0
	}
	if e.tradesToday >= e.cfg.MaxTradesPerDay {
		log.Printf("🛑 Daily trade limit reached (%d), skipping entry", e.cfg.MaxTradesPerDay)
		return false
	}
	if last, ok := e.lastExit[symbol]; ok && time.Since(last) < entryCooldown {
		log.Printf("⏳ Cooldown active for %s (%.0fs remaining)",
			symbol, (entryCooldown - time.Since(last)).Seconds())
		return false
	}
	return true
}

// applyAdvisory asks the AI layer to review an entry candidate. The advisory
// is best-effort: budget exhaustion or API errors leave the decision
// untouched, a negative verdict halves its strength.
func (e *TradingEngine) applyAdvisory(ctx context.Context, symbol string, decision analysis.SignalDecision) analysis.SignalDecision {
	if e.aiClient == nil {
		return decision
	}
	if err := e.limiter.Acquire(); err != nil {
		log.Printf("⚠️ AI advisory skipped: %v", err)
		return decision
	}

	verdict, err := e.aiClient.ValidateSignal(ctx, symbol, decision)
	if err != nil {
		log.Printf("⚠️ AI advisory unavailable: %v", err)
		return decision
	}
	if !verdict.Valid {
		decision.Strength /= 2
		decision.Reasons = append(decision.Reasons, "AI rejected: "+verdict.Reasoning)
		log.Printf("🤖 AI rejected %s signal: %s", decision.Direction, verdict.Reasoning)
	} else {
		log.Printf("🤖 AI confirmed %s signal (%.0f%%): %s", decision.Direction, verdict.Confidence, verdict.Reasoning)
	}
	return decision
}

func (e *TradingEngine) handleOpen(pos *models.Position) {
	e.mu.Lock()
	e.tradesToday++
	e.mu.Unlock()

	if err := e.db.SaveOpenTrade(pos); err != nil {
		log.Printf("⚠️ Failed to persist open trade: %v", err)
	}
	if e.onTradeOpen != nil {
		e.onTradeOpen(pos)
	}
}

func (e *TradingEngine) handleClose(trade *models.Trade) {
	e.mu.Lock()
	e.lastExit[trade.Symbol] = trade.ExitTime
	e.mu.Unlock()

	if err := e.db.CloseTrade(trade); err != nil {
		log.Printf("⚠️ Failed to persist closed trade: %v", err)
	}
	if pc, ok := e.client.(*exchange.PaperClient); ok {
		pc.Credit(trade.PnL)
	}
	if e.onTradeClose != nil {
		e.onTradeClose(trade)
	}
}

func (e *TradingEngine) snapshotPortfolio(symbol string, price float64) {
	equity := e.manager.Equity(map[string]float64{symbol: price})
	if err := e.db.SavePortfolio(e.manager.Balance(), equity, len(e.manager.OpenPositions())); err != nil {
		log.Printf("⚠️ Failed to persist portfolio snapshot: %v", err)
	}
}

// restoreDailyCount recovers today's trade count from the database so a
// restart does not reset the daily limit.
func (e *TradingEngine) restoreDailyCount() {
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	count, err := e.db.TradesOpenedSince(midnight)
	if err != nil {
		log.Printf("⚠️ Failed to restore daily trade count: %v", err)
		return
	}
	e.mu.Lock()
	e.tradingDay = midnight
	e.tradesToday = int(count)
	e.mu.Unlock()
	if count > 0 {
		log.Printf("🔄 Restored daily trade count: %d", count)
	}
}
