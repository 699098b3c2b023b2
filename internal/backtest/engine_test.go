package backtest

import (
	"testing"
	"time"

	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/series"
	"astock-backtest-lab/internal/strategy"
)

func alwaysBuyStrategy(t *testing.T, gainPct float64) *strategy.Strategy {
	t.Helper()
	s, err := strategy.FromConfig(domain.StrategyConfig{
		KlineBuyExpression: "",
		DayBuyExpression:   "",
		GainPct:            gainPct,
		LossPct:            10,
		HoldPeriodDays:     60,
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	return s
}

func dailySnapshot(closes []float64, periods []int) *domain.Snapshot {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Date: base.AddDate(0, 0, i), Close: c, Open: c, High: c, Low: c}
	}
	return &domain.Snapshot{
		Code:  "000001",
		Name:  "PAB",
		Daily: series.Prepare("000001", domain.GranularityDaily, bars, periods),
	}
}

func engineAt(t *testing.T, s *strategy.Strategy, asOf time.Time) *Engine {
	t.Helper()
	return NewEngine(Options{Strategy: s, Years: 3, AsOf: asOf})
}

func TestEngine_TakeProfit(t *testing.T) {
	snap := dailySnapshot([]float64{10.00, 10.20, 10.50}, nil)
	e := engineAt(t, alwaysBuyStrategy(t, 5), snap.Daily.Bars[2].Date)

	res := e.Run(snap)

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.BuyPrice != 10.00 || tr.SellPrice != 10.50 {
		t.Errorf("expected 10.00 -> 10.50, got %v -> %v", tr.BuyPrice, tr.SellPrice)
	}
	if tr.Reason != domain.SellReasonTakeProfit {
		t.Errorf("expected take-profit, got %s", tr.Reason)
	}
	if tr.Shares != 100000 {
		t.Errorf("expected 100000 shares, got %d", tr.Shares)
	}
	if tr.Profit != 50000 {
		t.Errorf("expected profit 50000, got %v", tr.Profit)
	}
	if tr.HoldDays != 2 {
		t.Errorf("expected 2 hold days, got %d", tr.HoldDays)
	}
	if res.Statistics.TotalTrades != 1 || res.Statistics.WinCount != 1 {
		t.Errorf("unexpected statistics: %+v", res.Statistics)
	}
}

func TestEngine_ForcedCloseAtEnd(t *testing.T) {
	snap := dailySnapshot([]float64{10.00, 10.10}, nil)
	e := engineAt(t, alwaysBuyStrategy(t, 5), snap.Daily.Bars[1].Date)

	res := e.Run(snap)

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Reason != domain.SellReasonBacktestEnd {
		t.Errorf("expected backtest-end, got %s", tr.Reason)
	}
	if !tr.SellDate.Equal(snap.Daily.Bars[1].Date) {
		t.Errorf("expected sell on the last bar, got %v", tr.SellDate)
	}
}

func TestEngine_EmptySeries(t *testing.T) {
	e := engineAt(t, alwaysBuyStrategy(t, 5), time.Now())

	res := e.Run(&domain.Snapshot{Code: "000001", Name: "PAB"})
	if len(res.Trades) != 0 {
		t.Errorf("expected no trades, got %d", len(res.Trades))
	}
	if res.Statistics.FinalCapital != InitialCapital {
		t.Errorf("expected untouched capital, got %v", res.Statistics.FinalCapital)
	}
}

func TestEngine_EmptyWindow(t *testing.T) {
	snap := dailySnapshot([]float64{10.00, 10.10}, nil)
	// Window ends years before the first bar.
	e := engineAt(t, alwaysBuyStrategy(t, 5), time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC))

	res := e.Run(snap)
	if len(res.Trades) != 0 {
		t.Errorf("expected no trades, got %d", len(res.Trades))
	}
}

func TestEngine_WindowClampedToLookback(t *testing.T) {
	base := time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 0, 6)
	for i := 0; i < 6; i++ {
		// One bar per year, flat price so only the forced close trades.
		bars = append(bars, domain.Bar{Date: base.AddDate(i, 0, 0), Close: 10})
	}
	snap := &domain.Snapshot{
		Code:  "000001",
		Daily: series.Prepare("000001", domain.GranularityDaily, bars, nil),
	}
	asOf := bars[5].Date
	e := engineAt(t, alwaysBuyStrategy(t, 5), asOf)

	res := e.Run(snap)

	start := asOf.AddDate(0, 0, -365*3)
	if len(res.Trades) == 0 {
		t.Fatal("expected trades inside the window")
	}
	for _, tr := range res.Trades {
		if tr.BuyDate.Before(start) {
			t.Errorf("expected buys inside the window, got %v", tr.BuyDate)
		}
	}
	if want := bars[2].Date; !res.Trades[0].BuyDate.Equal(want) {
		t.Errorf("expected first buy on %v, got %v", want, res.Trades[0].BuyDate)
	}
}

func TestEngine_NoLookahead(t *testing.T) {
	// D1MA is the close itself. Only the middle bar exceeds 100, so the
	// buy must land there: seeing future bars from an earlier date, or
	// only the final bar, would change the outcome.
	snap := dailySnapshot([]float64{5, 200, 5}, []int{1})
	cfg := domain.StrategyConfig{
		KlineBuyExpression: "D1MA > 100",
		GainPct:            5,
		LossPct:            10,
		HoldPeriodDays:     60,
	}
	s, err := strategy.FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	e := engineAt(t, s, snap.Daily.Bars[2].Date)

	res := e.Run(snap)

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.BuyPrice != 200 {
		t.Errorf("expected buy at 200, got %v", tr.BuyPrice)
	}
	if tr.Reason != domain.SellReasonStopLoss {
		t.Errorf("expected stop-loss on the crash bar, got %s", tr.Reason)
	}
}

func TestEngine_WarmupBlocksEarlyBuys(t *testing.T) {
	snap := dailySnapshot([]float64{10, 10, 10, 10, 10, 10}, []int{5})
	cfg := domain.StrategyConfig{
		KlineBuyExpression: "D5MA > 0",
		GainPct:            5,
		LossPct:            10,
		HoldPeriodDays:     60,
	}
	s, err := strategy.FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	e := engineAt(t, s, snap.Daily.Bars[5].Date)

	res := e.Run(snap)

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	// The moving average resolves first on the fifth bar.
	if want := snap.Daily.Bars[4].Date; !res.Trades[0].BuyDate.Equal(want) {
		t.Errorf("expected buy on %v, got %v", want, res.Trades[0].BuyDate)
	}
}

func TestEngine_NeverTwoPositions(t *testing.T) {
	snap := dailySnapshot([]float64{10.00, 10.40, 10.00, 10.10}, nil)
	e := engineAt(t, alwaysBuyStrategy(t, 3), snap.Daily.Bars[3].Date)

	res := e.Run(snap)

	if len(res.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(res.Trades))
	}
	first, second := res.Trades[0], res.Trades[1]
	if first.Reason != domain.SellReasonTakeProfit {
		t.Errorf("expected first exit take-profit, got %s", first.Reason)
	}
	if second.Reason != domain.SellReasonBacktestEnd {
		t.Errorf("expected second exit backtest-end, got %s", second.Reason)
	}
	if !first.SellDate.Before(second.BuyDate) {
		t.Errorf("expected re-entry after the exit day: sold %v, bought %v",
			first.SellDate, second.BuyDate)
	}
	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("expected sequence 1,2, got %d,%d", first.Seq, second.Seq)
	}
}

func TestEngine_ProgressCallback(t *testing.T) {
	snap := dailySnapshot([]float64{10, 10, 10}, nil)
	var calls [][2]int
	e := NewEngine(Options{
		Strategy: alwaysBuyStrategy(t, 5),
		Years:    3,
		AsOf:     snap.Daily.Bars[2].Date,
		Progress: func(done, total int) { calls = append(calls, [2]int{done, total}) },
	})

	e.Run(snap)

	if len(calls) != 3 {
		t.Fatalf("expected 3 progress calls, got %d", len(calls))
	}
	if calls[2] != [2]int{3, 3} {
		t.Errorf("expected final call (3,3), got %v", calls[2])
	}
}

func TestEngine_TrailingStopInReplay(t *testing.T) {
	snap := dailySnapshot([]float64{10.00, 12.00, 10.90}, nil)
	cfg := domain.StrategyConfig{
		GainPct:         50,
		LossPct:         50,
		HoldPeriodDays:  60,
		TrailingStopPct: 8,
	}
	s, err := strategy.FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	e := engineAt(t, s, snap.Daily.Bars[2].Date)

	res := e.Run(snap)

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Reason != domain.SellReasonTrailingStop {
		t.Errorf("expected trailing-stop, got %s", tr.Reason)
	}
	// Peak 12.00; 10.90 is a 9.17% drawdown.
	if !tr.SellDate.Equal(snap.Daily.Bars[2].Date) {
		t.Errorf("expected sell on the first bar below the trail, got %v", tr.SellDate)
	}
}
