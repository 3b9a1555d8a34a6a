package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tradingbot/config"
	"tradingbot/internal/ai"
	"tradingbot/internal/engine"
	"tradingbot/internal/exchange"
	"tradingbot/internal/store"
	"tradingbot/internal/telegram"
	"tradingbot/internal/web"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("🚀 Starting Trading Bot...")

	cfg := config.Load()

	binance := exchange.NewFuturesClient(cfg.BinanceAPIKey, cfg.BinanceSecretKey, cfg.BinanceTestnet)

	var client exchange.ExchangeClient = binance
	if cfg.PaperTrading {
		log.Printf("📝 Paper trading mode, starting balance %.2f USDT", cfg.InitialBalance)
		client = exchange.NewPaperClient(cfg.InitialBalance, binance)
	}

	var aiClient *ai.MistralClient
	if cfg.MistralAPIKey != "" {
		aiClient = ai.NewMistralClient(cfg.MistralAPIKey)
	} else {
		log.Println("⚠️ No Mistral API key, AI advisory disabled")
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	tradingEngine := engine.NewTradingEngine(cfg, client, aiClient, db)

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, cfg.AuthorizedUserID, tradingEngine)
		if err != nil {
			log.Fatalf("Failed to create Telegram bot: %v", err)
		}
		tradingEngine.SetCallbacks(
			bot.SendTradeOpen,
			bot.SendTradeClose,
			bot.SendAnalysisUpdate,
		)
		go bot.Start()
		log.Println("📱 Telegram bot is ready")
	} else {
		log.Println("⚠️ No Telegram token, bot disabled")
	}

	webServer := web.NewServer(tradingEngine, cfg.Port)
	webServer.Start()

	log.Println("✅ All systems initialized")
	log.Printf("🌐 Web dashboard: http://localhost:%s\n", cfg.Port)

	tradingEngine.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("\n🛑 Shutting down...")
	tradingEngine.Stop()
	tradingEngine.CloseAllPositions(context.Background())

	log.Println("👋 Goodbye!")
}
