package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	BinanceAPIKey    string
	BinanceSecretKey string
	BinanceTestnet   bool
	MistralAPIKey    string

	TelegramToken    string
	AuthorizedUserID int64 // 0 disables the Telegram bot

	Port string

	Symbol          string
	Timeframe       string
	PaperTrading    bool
	InitialBalance  float64
	PositionSizePct float64 // fraction of balance per trade
	FeeRate         float64
	MaxTradesPerDay int

	AICallBudget int // advisory calls per day, 0 disables AI

	DatabasePath string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg := &Config{
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceSecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		BinanceTestnet:   envBool("BINANCE_TESTNET", true),
		MistralAPIKey:    os.Getenv("MISTRAL_API_KEY"),
		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		AuthorizedUserID: envInt64("AUTHORIZED_USER_ID", 0),
		Port:             envString("PORT", "8080"),
		Symbol:           envString("SYMBOL", "BTCUSDT"),
		Timeframe:        envString("TIMEFRAME", "15m"),
		PaperTrading:     envBool("PAPER_TRADING", true),
		InitialBalance:   envFloat("INITIAL_BALANCE", 10000.0),
		PositionSizePct:  envFloat("POSITION_SIZE_PCT", 0.10),
		FeeRate:          envFloat("FEE_RATE", 0.001),
		MaxTradesPerDay:  int(envInt64("MAX_TRADES_PER_DAY", 3)),
		AICallBudget:     int(envInt64("AI_CALL_BUDGET", 20)),
		DatabasePath:     envString("DATABASE_PATH", "trading_bot.db"),
	}

	if cfg.TelegramToken != "" && cfg.AuthorizedUserID == 0 {
		log.Println("Warning: TELEGRAM_BOT_TOKEN set without AUTHORIZED_USER_ID, bot disabled")
		cfg.TelegramToken = ""
	}

	return cfg
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
