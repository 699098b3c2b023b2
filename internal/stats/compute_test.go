package stats

import (
	"math"
	"testing"

	"astock-backtest-lab/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCompute(t *testing.T) {
	trades := []domain.Trade{
		{Profit: 5000, HoldDays: 10},
		{Profit: -2000, HoldDays: 20},
		{Profit: 0, HoldDays: 30},
		{Profit: 7000, HoldDays: 4},
	}

	s := Compute(trades, 1_000_000)

	if s.TotalTrades != 4 {
		t.Errorf("expected 4 trades, got %d", s.TotalTrades)
	}
	if s.WinCount != 2 || s.LossCount != 2 {
		t.Errorf("expected 2 wins and 2 losses, got %d and %d", s.WinCount, s.LossCount)
	}
	if !almostEqual(s.WinRate, 50) {
		t.Errorf("expected win rate 50, got %v", s.WinRate)
	}
	if !almostEqual(s.TotalReturn, 10000) {
		t.Errorf("expected total return 10000, got %v", s.TotalReturn)
	}
	if !almostEqual(s.TotalReturnPct, 1.0) {
		t.Errorf("expected total return pct 1.0, got %v", s.TotalReturnPct)
	}
	if !almostEqual(s.FinalCapital, 1_010_000) {
		t.Errorf("expected final capital 1010000, got %v", s.FinalCapital)
	}
	if !almostEqual(s.AvgHoldDays, 16) {
		t.Errorf("expected avg hold days 16, got %v", s.AvgHoldDays)
	}
}

func TestCompute_ZeroTrades(t *testing.T) {
	s := Compute(nil, 1_000_000)

	if s.TotalTrades != 0 || s.WinCount != 0 || s.LossCount != 0 {
		t.Errorf("expected zero counts, got %+v", s)
	}
	if s.WinRate != 0 || s.TotalReturn != 0 || s.TotalReturnPct != 0 || s.AvgHoldDays != 0 {
		t.Errorf("expected zero rates, got %+v", s)
	}
	if s.FinalCapital != 1_000_000 {
		t.Errorf("expected final capital to stay at initial, got %v", s.FinalCapital)
	}
}

func TestCompute_BreakEvenCountsAsLoss(t *testing.T) {
	s := Compute([]domain.Trade{{Profit: 0, HoldDays: 1}}, 1_000_000)
	if s.LossCount != 1 || s.WinCount != 0 {
		t.Errorf("expected a break-even trade to count as a loss, got %+v", s)
	}
}

func TestCombined_SingleSharedPrincipal(t *testing.T) {
	results := []domain.BacktestResult{
		{Code: "000001", Trades: []domain.Trade{{Profit: 10000, HoldDays: 5}}},
		{Code: "600519", Trades: []domain.Trade{{Profit: 10000, HoldDays: 5}}},
	}

	s := Combined(results, 1_000_000)

	if s.TotalTrades != 2 {
		t.Errorf("expected 2 trades, got %d", s.TotalTrades)
	}
	// Two instruments each earning 1% must combine to 2%, not 1% of a
	// doubled principal.
	if !almostEqual(s.TotalReturnPct, 2.0) {
		t.Errorf("expected combined return pct 2.0, got %v", s.TotalReturnPct)
	}
	if !almostEqual(s.FinalCapital, 1_020_000) {
		t.Errorf("expected final capital 1020000, got %v", s.FinalCapital)
	}
}

func TestCombined_EmptyResults(t *testing.T) {
	s := Combined([]domain.BacktestResult{{Code: "000001"}}, 1_000_000)
	if s.TotalTrades != 0 {
		t.Errorf("expected 0 trades, got %d", s.TotalTrades)
	}
}

func TestComputeExtended(t *testing.T) {
	trades := []domain.Trade{
		{Profit: 1000},
		{Profit: -300},
		{Profit: -200},
		{Profit: -100},
		{Profit: 2000},
	}

	ext := ComputeExtended(trades)

	// Cumulative curve: 1000, 700, 500, 400, 2400. Peak 1000, trough 400.
	if !almostEqual(ext.MaxDrawdown, 600) {
		t.Errorf("expected max drawdown 600, got %v", ext.MaxDrawdown)
	}
	if ext.MaxConsecutiveLosses != 3 {
		t.Errorf("expected 3 consecutive losses, got %d", ext.MaxConsecutiveLosses)
	}
	if ext.BestTrade != 2000 || ext.WorstTrade != -300 {
		t.Errorf("expected best 2000 and worst -300, got %v and %v", ext.BestTrade, ext.WorstTrade)
	}
	if !almostEqual(ext.ProfitFactor, 3000.0/600.0) {
		t.Errorf("expected profit factor 5, got %v", ext.ProfitFactor)
	}
}

func TestComputeExtended_NoLosses(t *testing.T) {
	ext := ComputeExtended([]domain.Trade{{Profit: 100}, {Profit: 200}})
	if ext.ProfitFactor != 0 {
		t.Errorf("expected profit factor 0 without losses, got %v", ext.ProfitFactor)
	}
	if ext.MaxDrawdown != 0 {
		t.Errorf("expected no drawdown, got %v", ext.MaxDrawdown)
	}
	if ext.MaxConsecutiveLosses != 0 {
		t.Errorf("expected no losing run, got %d", ext.MaxConsecutiveLosses)
	}
}

func TestComputeExtended_Empty(t *testing.T) {
	ext := ComputeExtended(nil)
	if ext != (Extended{}) {
		t.Errorf("expected zero value, got %+v", ext)
	}
}
