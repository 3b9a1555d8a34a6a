package store

import (
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradingbot/internal/analysis"
	"tradingbot/internal/models"
)

// TradeRecord is the persisted form of a closed (or still open) trade.
type TradeRecord struct {
	ID         uint      `gorm:"primaryKey"`
	PositionID string    `gorm:"index"`
	Symbol     string    `gorm:"index"`
	Direction  string
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	EntryTime  time.Time
	ExitTime   *time.Time
	PnL        float64
	PnLPercent float64
	ExitReason string
	Open       bool `gorm:"index"`
}

// SignalRecord keeps every scored decision for later inspection.
type SignalRecord struct {
	ID         uint   `gorm:"primaryKey"`
	Symbol     string `gorm:"index"`
	Direction  string
	Strength   float64
	Confidence float64
	Score      float64
	Reasons    string
	Timestamp  time.Time `gorm:"index"`
}

// PortfolioRecord is a periodic balance snapshot.
type PortfolioRecord struct {
	ID            uint `gorm:"primaryKey"`
	Balance       float64
	Equity        float64
	OpenPositions int
	Timestamp     time.Time `gorm:"index"`
}

// Store wraps the sqlite database behind the operations the engine needs.
type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&TradeRecord{}, &SignalRecord{}, &PortfolioRecord{}); err != nil {
		return nil, err
	}
	log.Printf("💾 Database ready: %s", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveOpenTrade records a freshly opened position.
func (s *Store) SaveOpenTrade(pos *models.Position) error {
	rec := TradeRecord{
		PositionID: pos.ID,
		Symbol:     pos.Symbol,
		Direction:  string(pos.Direction),
		EntryPrice: pos.EntryPrice,
		Quantity:   pos.Quantity,
		EntryTime:  pos.EntryTime,
		Open:       true,
	}
	return s.db.Create(&rec).Error
}

// CloseTrade settles the open record for the symbol with the exit details.
// If no open record exists (e.g. the bot restarted mid-position) a complete
// row is written instead.
func (s *Store) CloseTrade(trade *models.Trade) error {
	exitTime := trade.ExitTime
	updates := map[string]any{
		"exit_price":  trade.ExitPrice,
		"exit_time":   &exitTime,
		"pn_l":        trade.PnL,
		"pn_l_percent": trade.PnLPercent,
		"exit_reason": trade.ExitReason,
		"open":        false,
	}
	res := s.db.Model(&TradeRecord{}).
		Where("symbol = ? AND open = ?", trade.Symbol, true).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		rec := TradeRecord{
			Symbol:     trade.Symbol,
			Direction:  string(trade.Direction),
			EntryPrice: trade.EntryPrice,
			ExitPrice:  trade.ExitPrice,
			Quantity:   trade.Quantity,
			EntryTime:  trade.EntryTime,
			ExitTime:   &exitTime,
			PnL:        trade.PnL,
			PnLPercent: trade.PnLPercent,
			ExitReason: trade.ExitReason,
		}
		return s.db.Create(&rec).Error
	}
	return nil
}

// SaveSignal persists a scored decision.
func (s *Store) SaveSignal(symbol string, d analysis.SignalDecision, reasons string) error {
	rec := SignalRecord{
		Symbol:     symbol,
		Direction:  string(d.Direction),
		Strength:   d.Strength,
		Confidence: d.Confidence,
		Score:      d.Score,
		Reasons:    reasons,
		Timestamp:  d.Timestamp,
	}
	return s.db.Create(&rec).Error
}

// SavePortfolio appends a balance snapshot.
func (s *Store) SavePortfolio(balance, equity float64, openPositions int) error {
	rec := PortfolioRecord{
		Balance:       balance,
		Equity:        equity,
		OpenPositions: openPositions,
		Timestamp:     time.Now(),
	}
	return s.db.Create(&rec).Error
}

// PortfolioSnapshots returns the latest balance snapshots, newest first.
func (s *Store) PortfolioSnapshots(limit int) ([]PortfolioRecord, error) {
	var snaps []PortfolioRecord
	err := s.db.Order("timestamp DESC").
		Limit(limit).
		Find(&snaps).Error
	return snaps, err
}

// RecentTrades returns the latest closed trades, newest first.
func (s *Store) RecentTrades(limit int) ([]TradeRecord, error) {
	var trades []TradeRecord
	err := s.db.Where("open = ?", false).
		Order("exit_time DESC").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}

// TradesOpenedSince counts entries after the given time. The engine uses it
// to enforce the daily trade limit across restarts.
func (s *Store) TradesOpenedSince(t time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&TradeRecord{}).
		Where("entry_time >= ?", t).
		Count(&count).Error
	return count, err
}

// TradingStats aggregates closed trades into the running statistics shown
// by the dashboard and Telegram bot.
func (s *Store) TradingStats() (*models.Stats, error) {
	var trades []TradeRecord
	if err := s.db.Where("open = ?", false).Find(&trades).Error; err != nil {
		return nil, err
	}

	stats := &models.Stats{TotalTrades: len(trades)}
	var totalHold time.Duration
	for _, t := range trades {
		stats.RealizedPL += t.PnL
		if t.PnL > 0 {
			stats.ProfitableTrades++
		} else {
			stats.LosingTrades++
		}
		if t.ExitTime != nil {
			totalHold += t.ExitTime.Sub(t.EntryTime)
		}
	}
	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.ProfitableTrades) / float64(stats.TotalTrades) * 100
		stats.AvgHoldTime = totalHold / time.Duration(stats.TotalTrades)
	}
	stats.TotalPL = stats.RealizedPL
	return stats, nil
}
