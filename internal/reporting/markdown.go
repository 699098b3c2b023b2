package reporting

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders the document as a Markdown report.
func RenderMarkdown(doc *Document) string {
	var sb strings.Builder

	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", doc.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", doc.GeneratedAt))

	sb.WriteString("## Combined Statistics\n\n")
	writeStatisticsTable(&sb, doc.CombinedStatistics)

	sb.WriteString("## Per-Instrument Statistics\n\n")
	if len(doc.Results) > 0 {
		sb.WriteString("| Code | Name | Trades | Wins | Losses | Win Rate % | Return | Return % | Final Capital | Avg Hold Days |\n")
		sb.WriteString("|------|------|--------|------|--------|-----------|--------|----------|---------------|---------------|\n")
		for _, res := range doc.Results {
			s := res.Statistics
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %.2f | %.2f | %.2f | %.2f | %.1f |\n",
				res.StockCode, res.StockName,
				s.TotalTrades, s.WinCount, s.LossCount, s.WinRate,
				s.TotalReturn, s.TotalReturnPct, s.FinalCapital, s.AvgHoldDays))
		}
	} else {
		sb.WriteString("No instruments produced results.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Extended Metrics\n\n")
	if len(doc.Results) > 0 {
		sb.WriteString("| Code | Max Drawdown | Max Consecutive Losses | Best Trade | Worst Trade | Profit Factor |\n")
		sb.WriteString("|------|--------------|------------------------|------------|-------------|---------------|\n")
		for _, res := range doc.Results {
			e := res.Extended
			sb.WriteString(fmt.Sprintf("| %s | %.2f | %d | %.2f | %.2f | %.2f |\n",
				res.StockCode, e.MaxDrawdown, e.MaxConsecutiveLosses,
				e.BestTrade, e.WorstTrade, e.ProfitFactor))
		}
	} else {
		sb.WriteString("No extended metrics available.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Trades\n\n")
	total := 0
	for _, res := range doc.Results {
		total += len(res.Trades)
	}
	if total > 0 {
		sb.WriteString("| Code | # | Buy Date | Buy | Sell Date | Sell | Shares | Profit | Profit % | Reason | Hold Days |\n")
		sb.WriteString("|------|---|----------|-----|-----------|------|--------|--------|----------|--------|----------|\n")
		for _, res := range doc.Results {
			for _, tr := range res.Trades {
				sb.WriteString(fmt.Sprintf("| %s | %d | %s | %.2f | %s | %.2f | %d | %.2f | %.2f | %s | %d |\n",
					res.StockCode, tr.Seq, tr.BuyDate, tr.BuyPrice, tr.SellDate, tr.SellPrice,
					tr.Shares, tr.Profit, tr.ProfitPct, tr.Reason, tr.HoldDays))
			}
		}
	} else {
		sb.WriteString("No trades executed.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func writeStatisticsTable(sb *strings.Builder, s StatisticsJSON) {
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", s.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Wins | %d |\n", s.WinCount))
	sb.WriteString(fmt.Sprintf("| Losses | %d |\n", s.LossCount))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", s.WinRate))
	sb.WriteString(fmt.Sprintf("| Total Return | %.2f |\n", s.TotalReturn))
	sb.WriteString(fmt.Sprintf("| Total Return %% | %.2f |\n", s.TotalReturnPct))
	sb.WriteString(fmt.Sprintf("| Final Capital | %.2f |\n", s.FinalCapital))
	sb.WriteString(fmt.Sprintf("| Avg Hold Days | %.1f |\n", s.AvgHoldDays))
	sb.WriteString("\n")
}
