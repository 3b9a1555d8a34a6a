package backtest

import (
	"context"
	"errors"
	"log"
	"time"

	"tradingbot/internal/analysis"
	"tradingbot/internal/exchange"
	"tradingbot/internal/models"
	"tradingbot/internal/position"
)

var ErrNoHistoricalData = errors.New("backtest: no historical data")

// Params configure a single backtest run.
type Params struct {
	Symbol          string
	InitialBalance  float64
	PositionSizePct float64
	FeeRate         float64
}

// Result bundles everything a run produced.
type Result struct {
	Params       Params
	Trades       []*models.Trade
	EquityCurve  []models.EquityPoint
	FinalBalance float64
	Report       models.PerformanceReport
}

// Simulator replays historical candles through the same indicator, scorer
// and position code paths the live engine uses. Fills are modeled at the
// close of the candle being evaluated.
type Simulator struct {
	cfg    analysis.Config
	params Params
}

func NewSimulator(cfg analysis.Config, params Params) *Simulator {
	return &Simulator{cfg: cfg, params: params}
}

// closeFill is the executor for simulated runs: every order fills in full at
// the price the simulator sets for the current candle.
type closeFill struct {
	price float64
}

func (f *closeFill) Open(ctx context.Context, symbol string, direction models.Direction, quantity, stopLoss, takeProfit float64) (float64, error) {
	return f.price, nil
}

func (f *closeFill) Close(ctx context.Context, symbol string, direction models.Direction, quantity float64) (float64, error) {
	return f.price, nil
}

// Run replays the candles in order. Each candle becomes one tick: indicators
// are computed over the history up to and including it, the scorer produces
// a decision, and the position manager applies exits and entries at the
// candle close. The equity curve records one point per evaluated candle.
func (s *Simulator) Run(ctx context.Context, klines []exchange.Kline) (*Result, error) {
	if len(klines) == 0 {
		return nil, ErrNoHistoricalData
	}

	log.Printf("⏮️ Backtesting %s over %d candles (%s to %s)",
		s.params.Symbol, len(klines),
		klines[0].OpenTime.Format("2006-01-02"),
		klines[len(klines)-1].OpenTime.Format("2006-01-02"))

	fill := &closeFill{}
	manager := position.NewManager(s.cfg, fill, s.params.InitialBalance, s.params.PositionSizePct, s.params.FeeRate)
	manager.SetQuiet(true)

	rows, err := analysis.Calculate(s.cfg, klines)
	if err != nil {
		return nil, err
	}

	minCandles := s.cfg.MinCandles()
	equityCurve := make([]models.EquityPoint, 0, len(klines)-minCandles+1)
	marks := map[string]float64{}

	for i := minCandles - 1; i < len(rows); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := &rows[i]
		if !cur.Ready {
			continue
		}
		var prev *analysis.FeatureRow
		if i > 0 && rows[i-1].Ready {
			prev = &rows[i-1]
		}

		ts := klines[i].CloseTime
		decision := analysis.Score(s.cfg, cur, prev, ts)

		fill.price = cur.Close
		if _, _, err := manager.OnTick(ctx, s.params.Symbol, cur.Close, decision, ts); err != nil {
			return nil, err
		}

		marks[s.params.Symbol] = cur.Close
		equityCurve = append(equityCurve, models.EquityPoint{
			Timestamp:     ts,
			Equity:        manager.Equity(marks),
			Balance:       manager.Balance(),
			OpenPositions: len(manager.OpenPositions()),
		})
	}

	// Settle whatever is still open at the last close.
	last := rows[len(rows)-1]
	fill.price = last.Close
	endTime := klines[len(klines)-1].CloseTime
	if pos := manager.Position(s.params.Symbol); pos != nil {
		if _, err := manager.ForceClose(ctx, s.params.Symbol, "End of backtest", endTime); err != nil {
			return nil, err
		}
		equityCurve = append(equityCurve, models.EquityPoint{
			Timestamp: endTime,
			Equity:    manager.Balance(),
			Balance:   manager.Balance(),
		})
	}

	trades := manager.Trades()
	result := &Result{
		Params:       s.params,
		Trades:       trades,
		EquityCurve:  equityCurve,
		FinalBalance: manager.Balance(),
		Report:       ComputeMetrics(trades, equityCurve),
	}
	log.Printf("🏁 Backtest complete: %d trades, final balance %.2f", len(trades), result.FinalBalance)
	return result, nil
}

// avgDuration is shared by metrics and the report.
func avgDuration(trades []*models.Trade) time.Duration {
	if len(trades) == 0 {
		return 0
	}
	var total time.Duration
	for _, t := range trades {
		total += t.Duration()
	}
	return total / time.Duration(len(trades))
}
