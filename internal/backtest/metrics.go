package backtest

import (
	"math"

	"tradingbot/internal/models"
)

// annualization for per-candle return Sharpe, matching a daily convention.
const sharpeAnnualization = 252

// ComputeMetrics derives the performance report from closed trades and the
// equity curve. A run with no trades yields a zeroed report.
func ComputeMetrics(trades []*models.Trade, equity []models.EquityPoint) models.PerformanceReport {
	report := models.PerformanceReport{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return report
	}

	var grossProfit, grossLoss, totalPnL float64
	best, worst := math.Inf(-1), math.Inf(1)
	for _, t := range trades {
		totalPnL += t.PnL
		if t.PnL > 0 {
			report.WinningTrades++
			grossProfit += t.PnL
		} else {
			report.LosingTrades++
			grossLoss += -t.PnL
		}
		if t.PnL > best {
			best = t.PnL
		}
		if t.PnL < worst {
			worst = t.PnL
		}
	}

	report.TotalPnL = totalPnL
	report.AvgTrade = totalPnL / float64(len(trades))
	report.BestTrade = best
	report.WorstTrade = worst
	report.WinRate = float64(report.WinningTrades) / float64(len(trades)) * 100
	if grossLoss > 0 {
		report.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		report.ProfitFactor = math.Inf(1)
	}

	report.SharpeRatio = sharpeRatio(equity)
	report.MaxDrawdown = maxDrawdown(equity)
	if report.MaxDrawdown > 0 {
		report.RecoveryFactor = math.Abs(totalPnL) / report.MaxDrawdown
	}
	report.AvgDuration = avgDuration(trades)
	return report
}

// sharpeRatio computes mean/stddev of per-point equity returns, annualized.
func sharpeRatio(equity []models.EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (equity[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(sharpeAnnualization)
}

// maxDrawdown is the largest peak-to-trough equity decline, in percent of
// the peak.
func maxDrawdown(equity []models.EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0].Equity
	var maxDD float64
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
