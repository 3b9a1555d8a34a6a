package backtest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"tradingbot/internal/models"
)

// FormatReport renders the run summary as the text block the backtest CLI
// prints and the Telegram bot forwards.
func FormatReport(r *Result) string {
	rep := r.Report
	var b strings.Builder

	line := strings.Repeat("═", 59)
	b.WriteString(line + "\n")
	b.WriteString(fmt.Sprintf("📊 BACKTEST RESULTS: %s\n", r.Params.Symbol))
	b.WriteString(line + "\n")

	totalReturn := 0.0
	if r.Params.InitialBalance > 0 {
		totalReturn = (r.FinalBalance - r.Params.InitialBalance) / r.Params.InitialBalance * 100
	}
	b.WriteString(fmt.Sprintf("Initial Balance:  %12.2f USDT\n", r.Params.InitialBalance))
	b.WriteString(fmt.Sprintf("Final Balance:    %12.2f USDT\n", r.FinalBalance))
	b.WriteString(fmt.Sprintf("Total Return:     %+11.2f%%\n", totalReturn))
	b.WriteString(strings.Repeat("─", 59) + "\n")

	b.WriteString(fmt.Sprintf("Total Trades:     %12d\n", rep.TotalTrades))
	b.WriteString(fmt.Sprintf("Winning / Losing: %7d / %d\n", rep.WinningTrades, rep.LosingTrades))
	b.WriteString(fmt.Sprintf("Win Rate:         %11.1f%%\n", rep.WinRate))
	b.WriteString(fmt.Sprintf("Profit Factor:    %12s\n", formatFactor(rep.ProfitFactor)))
	b.WriteString(fmt.Sprintf("Total PnL:        %+11.2f USDT\n", rep.TotalPnL))
	b.WriteString(fmt.Sprintf("Avg Trade:        %+11.2f USDT\n", rep.AvgTrade))
	b.WriteString(fmt.Sprintf("Best / Worst:     %+.2f / %+.2f\n", rep.BestTrade, rep.WorstTrade))
	b.WriteString(strings.Repeat("─", 59) + "\n")

	b.WriteString(fmt.Sprintf("Sharpe Ratio:     %12.2f\n", rep.SharpeRatio))
	b.WriteString(fmt.Sprintf("Max Drawdown:     %11.2f%%\n", rep.MaxDrawdown))
	b.WriteString(fmt.Sprintf("Recovery Factor:  %12.2f\n", rep.RecoveryFactor))
	b.WriteString(fmt.Sprintf("Avg Duration:     %12s\n", rep.AvgDuration.Round(time.Second)))
	b.WriteString(line + "\n")

	if len(r.Trades) > 0 {
		b.WriteString("Last trades:\n")
		for _, t := range lastTrades(r.Trades, 5) {
			b.WriteString(fmt.Sprintf("  %s %s %s  %.2f → %.2f  %+.2f (%s)\n",
				t.ExitTime.Format("2006-01-02 15:04"), t.Direction, t.Symbol,
				t.EntryPrice, t.ExitPrice, t.PnL, t.ExitReason))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func formatFactor(f float64) string {
	if math.IsInf(f, 1) {
		return "∞"
	}
	return fmt.Sprintf("%.2f", f)
}

func lastTrades(trades []*models.Trade, n int) []*models.Trade {
	if len(trades) <= n {
		return trades
	}
	return trades[len(trades)-n:]
}
