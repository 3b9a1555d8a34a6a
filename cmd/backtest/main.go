package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"

	"tradingbot/config"
	"tradingbot/internal/analysis"
	"tradingbot/internal/backtest"
	"tradingbot/internal/exchange"
	"tradingbot/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags)

	v := viper.New()
	v.SetDefault("symbol", "BTCUSDT")
	v.SetDefault("interval", "15m")
	v.SetDefault("days", 30)
	v.SetDefault("balance", 10000.0)
	v.SetDefault("size_pct", 0.10)
	v.SetDefault("fee_rate", 0.001)

	v.SetConfigName("backtest")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("Failed to read config: %v", err)
		}
	}
	v.SetEnvPrefix("BACKTEST")
	v.AutomaticEnv()

	symbol := v.GetString("symbol")
	interval := v.GetString("interval")
	days := v.GetInt("days")

	cfg := config.Load()
	client := exchange.NewFuturesClient(cfg.BinanceAPIKey, cfg.BinanceSecretKey, cfg.BinanceTestnet)

	ctx := context.Background()
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	klines, err := exchange.LoadHistory(ctx, client, symbol, interval, start, end)
	if err != nil {
		log.Fatalf("Failed to load history: %v", err)
	}

	params := backtest.Params{
		Symbol:          symbol,
		InitialBalance:  v.GetFloat64("balance"),
		PositionSizePct: v.GetFloat64("size_pct"),
		FeeRate:         v.GetFloat64("fee_rate"),
	}

	sim := backtest.NewSimulator(analysis.DefaultConfig(), params)
	result, err := sim.Run(ctx, klines)
	if err != nil {
		log.Fatalf("Backtest failed: %v", err)
	}

	fmt.Print(backtest.FormatReport(result))

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	for _, trade := range result.Trades {
		if err := db.CloseTrade(trade); err != nil {
			log.Printf("⚠️ Failed to save trade for %s: %v", trade.Symbol, err)
		}
	}
	log.Printf("💾 Saved %d trades to %s", len(result.Trades), cfg.DatabasePath)
}
