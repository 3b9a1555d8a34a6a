package models

import "time"

// Direction is the directional outcome of a signal evaluation.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
	Hold Direction = "HOLD"
)

// Opposite returns the reversing direction for an open position side.
func (d Direction) Opposite() Direction {
	switch d {
	case Buy:
		return Sell
	case Sell:
		return Buy
	}
	return Hold
}

// Position represents the single open position for a symbol
type Position struct {
	ID         string
	Symbol     string
	Direction  Direction // BUY = long, SELL = short
	EntryPrice float64
	Quantity   float64
	EntryTime  time.Time
	StopLoss   float64
	TakeProfit float64
	EntryFee   float64
	Reasoning  string
}

// Trade represents a closed trade. Append-only, immutable after creation.
type Trade struct {
	Symbol     string
	Direction  Direction
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	EntryTime  time.Time
	ExitTime   time.Time
	PnL        float64 // net of entry and exit fees
	PnLPercent float64
	ExitReason string // "Stop Loss", "Take Profit", "Signal Reversal", ...
}

// Duration is the holding time of the trade.
func (t *Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// EquityPoint is one sample of the simulated account value
type EquityPoint struct {
	Timestamp     time.Time
	Equity        float64 // balance + unrealized P&L
	Balance       float64
	OpenPositions int
}

// PerformanceReport aggregates a closed trade list
type PerformanceReport struct {
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	WinRate        float64 // percent
	ProfitFactor   float64 // +Inf when there are no losing trades
	TotalPnL       float64
	AvgTrade       float64
	BestTrade      float64
	WorstTrade     float64
	SharpeRatio    float64
	MaxDrawdown    float64 // percent decline from peak
	RecoveryFactor float64
	AvgDuration    time.Duration
}

// Stats represents live trading statistics for the dashboard and Telegram
type Stats struct {
	TotalTrades      int
	ProfitableTrades int
	LosingTrades     int
	WinRate          float64
	RealizedPL       float64
	UnrealizedPL     float64
	TotalPL          float64
	AvgHoldTime      time.Duration
}

// SentimentReport is the AI advisory's market sentiment answer
type SentimentReport struct {
	Sentiment  string // "bullish", "bearish", "neutral"
	Confidence float64
	Analysis   string
}

// SignalValidation is the AI advisory's verdict on a technical signal
type SignalValidation struct {
	Valid      bool
	Confidence float64
	Reasoning  string
}
