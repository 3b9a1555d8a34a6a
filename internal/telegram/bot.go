package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"tradingbot/internal/engine"
	"tradingbot/internal/models"
)

type Bot struct {
	bot          *tele.Bot
	engine       *engine.TradingEngine
	authorizedID int64
	startTime    time.Time
}

func NewBot(token string, authorizedID int64, engine *engine.TradingEngine) (*Bot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	bot := &Bot{
		bot:          b,
		engine:       engine,
		authorizedID: authorizedID,
		startTime:    time.Now(),
	}

	bot.setupHandlers()
	return bot, nil
}

func (b *Bot) Start() {
	log.Println("📱 Telegram bot started")
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

func (b *Bot) setupHandlers() {
	// Middleware for authorization
	b.bot.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender().ID != b.authorizedID {
				return c.Send("⛔ Unauthorized")
			}
			return next(c)
		}
	})

	// Commands
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/stats", b.handleStats)
	b.bot.Handle("/positions", b.handlePositions)
	b.bot.Handle("/signal", b.handleSignal)
	b.bot.Handle("/sentiment", b.handleSentiment)

	// Buttons
	b.bot.Handle(&btnStartTrading, b.handleStartTrading)
	b.bot.Handle(&btnStopTrading, b.handleStopTrading)
	b.bot.Handle(&btnStats, b.handleStats)
	b.bot.Handle(&btnPositions, b.handlePositions)
	b.bot.Handle(&btnSignal, b.handleSignal)
	b.bot.Handle(&btnRefresh, b.handleStats)
	b.bot.Handle(&btnCloseAll, b.handleCloseAll)
	b.bot.Handle(&btnBack, b.handleStart)
}

var (
	btnStartTrading = tele.Btn{Text: "▶️ Start trading", Unique: "start_trading"}
	btnStopTrading  = tele.Btn{Text: "⏸️ Stop", Unique: "stop_trading"}
	btnStats        = tele.Btn{Text: "📊 Stats", Unique: "stats"}
	btnPositions    = tele.Btn{Text: "📋 Positions", Unique: "positions"}
	btnSignal       = tele.Btn{Text: "🔍 Last signal", Unique: "signal"}
	btnRefresh      = tele.Btn{Text: "🔄 Refresh", Unique: "refresh"}
	btnCloseAll     = tele.Btn{Text: "❌ Close all", Unique: "close_all"}
	btnBack         = tele.Btn{Text: "🔙 Back", Unique: "back"}
)

func (b *Bot) handleStart(c tele.Context) error {
	menu := &tele.ReplyMarkup{}

	var startBtn tele.Btn
	if b.engine.IsRunning() {
		startBtn = btnStopTrading
	} else {
		startBtn = btnStartTrading
	}

	menu.Inline(
		menu.Row(startBtn),
		menu.Row(btnStats, btnPositions),
		menu.Row(btnSignal),
	)

	status := "⏸️ Stopped"
	if b.engine.IsRunning() {
		status = "▶️ Running"
	}

	msg := fmt.Sprintf(`🤖 *Trading Bot*

🔄 Status: %s

Choose an action:`, status)

	return c.Send(msg, menu, tele.ModeMarkdown)
}

func (b *Bot) handleStartTrading(c tele.Context) error {
	b.engine.Start()
	return b.handleStart(c)
}

func (b *Bot) handleStopTrading(c tele.Context) error {
	b.engine.Stop()
	return b.handleStart(c)
}

func (b *Bot) handleStats(c tele.Context) error {
	stats, err := b.engine.Stats()
	if err != nil {
		return c.Send("❌ Failed to load stats: " + err.Error())
	}
	positions := b.engine.Manager().OpenPositions()

	status := "⏸️ Stopped"
	if b.engine.IsRunning() {
		status = "▶️ Running"
	}

	plEmoji := "🟢"
	if stats.TotalPL < 0 {
		plEmoji = "🔴"
	} else if stats.TotalPL == 0 {
		plEmoji = "🟡"
	}

	msg := fmt.Sprintf(`📊 *Trading statistics*

🔄 Status: %s
💰 Balance: %.2f USDT
📋 Open positions: %d
💎 Unrealized P&L: %+.2f USDT
📅 Total trades: %d
🏆 Winning: %d
📉 Losing: %d
📊 Win rate: %.1f%%
💰 Total P&L: %s %+.2f USDT

🕐 Uptime: %s
🕐 Updated: %s`,
		status,
		b.engine.Manager().Balance(),
		len(positions),
		stats.UnrealizedPL,
		stats.TotalTrades,
		stats.ProfitableTrades,
		stats.LosingTrades,
		stats.WinRate,
		plEmoji,
		stats.TotalPL,
		formatDuration(time.Since(b.startTime)),
		time.Now().Format("15:04:05"),
	)

	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(btnRefresh, btnPositions),
		menu.Row(btnBack),
	)

	return c.Send(msg, menu, tele.ModeMarkdown)
}

func (b *Bot) handlePositions(c tele.Context) error {
	positions := b.engine.Manager().OpenPositions()

	if len(positions) == 0 {
		menu := &tele.ReplyMarkup{}
		menu.Inline(menu.Row(btnBack))
		return c.Send("📋 No open positions", menu)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 *Open positions (%d)*\n\n", len(positions)))

	for _, p := range positions {
		emoji := "🟢"
		if p.Direction == models.Sell {
			emoji = "🔴"
		}
		sb.WriteString(fmt.Sprintf(`%s *%s %s* | %.2f USDT
   📊 Entry: %.4f
   🎯 TP: %.4f | 🛡️ SL: %.4f

`, emoji, p.Direction, p.Symbol, p.EntryPrice*p.Quantity, p.EntryPrice, p.TakeProfit, p.StopLoss))
	}

	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(btnRefresh, btnCloseAll),
		menu.Row(btnBack),
	)

	return c.Send(sb.String(), menu, tele.ModeMarkdown)
}

func (b *Bot) handleSignal(c tele.Context) error {
	decision := b.engine.LastSignal()
	if decision == nil {
		menu := &tele.ReplyMarkup{}
		menu.Inline(menu.Row(btnBack))
		return c.Send("🔍 No signal evaluated yet", menu)
	}

	msg := fmt.Sprintf(`🔍 *Last signal*

Direction: %s
Score: %.1f
Strength: %.1f/100
Confidence: %.0f%%

%s

⏰ %s`,
		decision.Direction,
		decision.Score,
		decision.Strength,
		decision.Confidence,
		strings.Join(decision.Reasons, "\n"),
		decision.Timestamp.Format("15:04:05"),
	)

	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(btnBack))
	return c.Send(msg, menu, tele.ModeMarkdown)
}

func (b *Bot) handleSentiment(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	report, err := b.engine.MarketSentiment(ctx)
	if err != nil {
		return c.Send("⚠️ Sentiment unavailable: " + err.Error())
	}

	emoji := "🟡"
	switch report.Sentiment {
	case "bullish":
		emoji = "🟢"
	case "bearish":
		emoji = "🔴"
	}

	msg := fmt.Sprintf(`🤖 *Market sentiment*

%s %s (%.0f%% confidence)

%s`, emoji, report.Sentiment, report.Confidence, report.Analysis)
	return c.Send(msg, tele.ModeMarkdown)
}

func (b *Bot) handleCloseAll(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	closed := b.engine.CloseAllPositions(ctx)
	return c.Send(fmt.Sprintf("✅ Closed %d positions", len(closed)))
}

func (b *Bot) SendTradeOpen(position *models.Position) {
	msg := fmt.Sprintf(`✅ *POSITION OPENED*

%s *%s %s*
💰 Size: %.2f USDT
📊 Entry: %.4f
🎯 Take Profit: %.4f
🛡️ Stop Loss: %.4f

⏰ %s`,
		directionEmoji(position.Direction),
		position.Direction,
		position.Symbol,
		position.EntryPrice*position.Quantity,
		position.EntryPrice,
		position.TakeProfit,
		position.StopLoss,
		time.Now().Format("15:04:05"),
	)

	b.bot.Send(&tele.User{ID: b.authorizedID}, msg, tele.ModeMarkdown)
}

func (b *Bot) SendTradeClose(trade *models.Trade) {
	emoji := "✅"
	plEmoji := "💚"
	if trade.PnL < 0 {
		emoji = "⚠️"
		plEmoji = "❤️"
	}

	msg := fmt.Sprintf(`%s *POSITION CLOSED*

%s *%s %s* closed (%s)
%s P&L: %+.2f USDT (%+.2f%%)
⏱️ Duration: %s
📊 %.4f → %.4f

⏰ %s`,
		emoji,
		directionEmoji(trade.Direction),
		trade.Direction,
		trade.Symbol,
		trade.ExitReason,
		plEmoji,
		trade.PnL,
		trade.PnLPercent,
		formatDuration(trade.Duration()),
		trade.EntryPrice,
		trade.ExitPrice,
		time.Now().Format("15:04:05"),
	)

	b.bot.Send(&tele.User{ID: b.authorizedID}, msg, tele.ModeMarkdown)
}

func (b *Bot) SendAnalysisUpdate(message string) {
	b.bot.Send(&tele.User{ID: b.authorizedID}, message)
}

func directionEmoji(d models.Direction) string {
	if d == models.Buy {
		return "📈"
	}
	return "📉"
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
