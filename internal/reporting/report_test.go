package reporting

import (
	"strings"
	"testing"
	"time"

	"astock-backtest-lab/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixtureResults() []domain.BacktestResult {
	return []domain.BacktestResult{
		{
			Code: "600519",
			Name: "Kweichow Moutai",
			Trades: []domain.Trade{
				{
					Seq: 1, Code: "600519", Name: "Kweichow Moutai",
					BuyDate: day(2024, 1, 5), BuyPrice: 1500.50,
					SellDate: day(2024, 1, 12), SellPrice: 1650.55,
					Shares: 600, Profit: 90030, ProfitPct: 10,
					Reason: domain.SellReasonTakeProfit, HoldDays: 7,
				},
				{
					Seq: 2, Code: "600519", Name: "Kweichow Moutai",
					BuyDate: day(2024, 2, 1), BuyPrice: 1700,
					SellDate: day(2024, 2, 15), SellPrice: 1615,
					Shares: 500, Profit: -42500, ProfitPct: -5,
					Reason: domain.SellReasonStopLoss, HoldDays: 14,
				},
			},
			Statistics: domain.Statistics{
				TotalTrades: 2, WinCount: 1, LossCount: 1, WinRate: 50,
				TotalReturn: 47530, TotalReturnPct: 4.753,
				FinalCapital: 1047530, AvgHoldDays: 10.5,
			},
		},
		{
			Code: "000001",
			Name: "Ping An Bank",
			Trades: []domain.Trade{
				{
					Seq: 1, Code: "000001", Name: "Ping An Bank",
					BuyDate: day(2024, 3, 1), BuyPrice: 10.333,
					SellDate: day(2024, 3, 8), SellPrice: 11.666,
					Shares: 90000, Profit: 119970, ProfitPct: 12.9004,
					Reason: domain.SellReasonTakeProfit, HoldDays: 7,
				},
			},
			Statistics: domain.Statistics{
				TotalTrades: 1, WinCount: 1, WinRate: 100,
				TotalReturn: 119970, TotalReturnPct: 11.997,
				FinalCapital: 1119970, AvgHoldDays: 7,
			},
		},
	}
}

func fixtureCombined() domain.Statistics {
	return domain.Statistics{
		TotalTrades: 3, WinCount: 2, LossCount: 1, WinRate: 66.6666,
		TotalReturn: 167500, TotalReturnPct: 16.75,
		FinalCapital: 1167500, AvgHoldDays: 9.25,
	}
}

func TestNewDocument_Rounding(t *testing.T) {
	doc := NewDocument("RUN123", day(2024, 3, 15), fixtureResults(), fixtureCombined())

	if doc.GeneratedAt != "2024-03-15T00:00:00Z" {
		t.Errorf("Expected RFC3339 timestamp, got %q", doc.GeneratedAt)
	}
	if doc.CombinedStatistics.WinRate != 66.67 {
		t.Errorf("Expected win rate 66.67, got %v", doc.CombinedStatistics.WinRate)
	}
	if doc.CombinedStatistics.AvgHoldDays != 9.3 {
		t.Errorf("Expected avg hold days 9.3, got %v", doc.CombinedStatistics.AvgHoldDays)
	}

	second := doc.Results[1].Trades[0]
	if second.BuyPrice != 10.33 {
		t.Errorf("Expected buy price 10.33, got %v", second.BuyPrice)
	}
	if second.SellPrice != 11.67 {
		t.Errorf("Expected sell price 11.67, got %v", second.SellPrice)
	}
	if second.ProfitPct != 12.9 {
		t.Errorf("Expected profit pct 12.9, got %v", second.ProfitPct)
	}
	if second.BuyDate != "2024-03-01" {
		t.Errorf("Expected buy date 2024-03-01, got %q", second.BuyDate)
	}
}

func TestNewDocument_ExtendedMetrics(t *testing.T) {
	doc := NewDocument("RUN123", day(2024, 3, 15), fixtureResults(), fixtureCombined())

	ext := doc.Results[0].Extended
	if ext.MaxDrawdown != 42500 {
		t.Errorf("Expected max drawdown 42500, got %v", ext.MaxDrawdown)
	}
	if ext.MaxConsecutiveLosses != 1 {
		t.Errorf("Expected 1 consecutive loss, got %d", ext.MaxConsecutiveLosses)
	}
	if ext.BestTrade != 90030 || ext.WorstTrade != -42500 {
		t.Errorf("Expected best 90030 and worst -42500, got %v and %v", ext.BestTrade, ext.WorstTrade)
	}
	if ext.ProfitFactor != 2.12 {
		t.Errorf("Expected profit factor 2.12, got %v", ext.ProfitFactor)
	}
}

func TestRenderMarkdown(t *testing.T) {
	doc := NewDocument("RUN123", day(2024, 3, 15), fixtureResults(), fixtureCombined())
	md := RenderMarkdown(doc)

	for _, want := range []string{
		"# Backtest Report",
		"Run: RUN123",
		"## Combined Statistics",
		"| Total Trades | 3 |",
		"| Win Rate | 66.67% |",
		"## Per-Instrument Statistics",
		"| 600519 | Kweichow Moutai | 2 | 1 | 1 | 50.00 |",
		"## Extended Metrics",
		"| 600519 | 42500.00 | 1 | 90030.00 | -42500.00 | 2.12 |",
		"## Trades",
		"| 600519 | 1 | 2024-01-05 | 1500.50 | 2024-01-12 | 1650.55 | 600 | 90030.00 | 10.00 | take-profit | 7 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q", want)
		}
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	doc := NewDocument("EMPTY", day(2024, 3, 15), nil, domain.Statistics{})
	md := RenderMarkdown(doc)

	for _, want := range []string{
		"No instruments produced results.",
		"No extended metrics available.",
		"No trades executed.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q", want)
		}
	}
}

func TestRenderCSV(t *testing.T) {
	doc := NewDocument("RUN123", day(2024, 3, 15), fixtureResults(), fixtureCombined())
	csv := RenderCSV(doc)

	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected header plus 3 rows, got %d lines", len(lines))
	}
	wantHeader := "run_id,code,name,seq,buy_date,buy_price,sell_date,sell_price,shares,profit,profit_pct,reason,hold_days"
	if lines[0] != wantHeader {
		t.Errorf("Unexpected header: %q", lines[0])
	}
	wantRow := "RUN123,600519,Kweichow Moutai,1,2024-01-05,1500.50,2024-01-12,1650.55,600,90030.00,10.00,take-profit,7"
	if lines[1] != wantRow {
		t.Errorf("Unexpected first row: %q", lines[1])
	}
}
