package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"astock-backtest-lab/internal/domain"
)

func validConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		KlineBuyExpression: "D2MA > D3MA",
		DayBuyExpression:   "DK > -100",
		GainPct:            5.0,
		LossPct:            10.0,
		HoldPeriodDays:     60,
	}
}

// buySnapshot has D2MA = 11.5 > D3MA = 11 on the latest bar and a +9.09%
// daily change, so the default test strategy buys.
func buySnapshot() *domain.Snapshot {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Snapshot{
		Code: "000001",
		Daily: &domain.Series{
			Code:        "000001",
			Granularity: domain.GranularityDaily,
			Bars: []domain.Bar{
				{Date: base, Close: 10},
				{Date: base.AddDate(0, 0, 1), Close: 11, PctChange: 10},
				{Date: base.AddDate(0, 0, 2), Close: 12, PctChange: 9.09},
			},
			MovingAverages: map[int][]float64{
				2: {math.NaN(), 10.5, 11.5},
				3: {math.NaN(), math.NaN(), 11},
			},
		},
	}
}

func TestFromConfig(t *testing.T) {
	s, err := FromConfig(validConfig())
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if s.Kline.Err() != nil {
		t.Errorf("expected compiled kline expression, got %v", s.Kline.Err())
	}
	if s.GainPct != 5.0 || s.LossPct != 10.0 || s.HoldPeriodDays != 60 {
		t.Errorf("unexpected thresholds: %+v", s)
	}
}

func TestFromConfig_Validation(t *testing.T) {
	cfg := validConfig()
	cfg.GainPct = 0
	if _, err := FromConfig(cfg); !errors.Is(err, ErrNonPositiveGain) {
		t.Errorf("expected ErrNonPositiveGain, got %v", err)
	}

	cfg = validConfig()
	cfg.LossPct = -1
	if _, err := FromConfig(cfg); !errors.Is(err, ErrNonPositiveLoss) {
		t.Errorf("expected ErrNonPositiveLoss, got %v", err)
	}

	cfg = validConfig()
	cfg.HoldPeriodDays = 0
	if _, err := FromConfig(cfg); !errors.Is(err, ErrNonPositivePeriod) {
		t.Errorf("expected ErrNonPositivePeriod, got %v", err)
	}

	cfg = validConfig()
	cfg.TrailingStopPct = -0.5
	if _, err := FromConfig(cfg); !errors.Is(err, ErrNegativeTrailing) {
		t.Errorf("expected ErrNegativeTrailing, got %v", err)
	}
}

func TestFromConfig_MalformedExpressionIsNotAnError(t *testing.T) {
	cfg := validConfig()
	cfg.KlineBuyExpression = "D5MA > > D10MA"
	if _, err := FromConfig(cfg); err != nil {
		t.Errorf("expected no error for malformed expression, got %v", err)
	}
}

func TestShouldBuy(t *testing.T) {
	s, err := FromConfig(validConfig())
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if !s.ShouldBuy(buySnapshot()) {
		t.Error("expected a buy signal")
	}
}

func TestShouldBuy_KlineBlocks(t *testing.T) {
	cfg := validConfig()
	cfg.KlineBuyExpression = "D2MA < D3MA"
	s, _ := FromConfig(cfg)
	if s.ShouldBuy(buySnapshot()) {
		t.Error("expected the kline expression to block the buy")
	}
}

func TestShouldBuy_DayGateBlocks(t *testing.T) {
	cfg := validConfig()
	cfg.DayBuyExpression = "DK < 0"
	s, _ := FromConfig(cfg)
	if s.ShouldBuy(buySnapshot()) {
		t.Error("expected the day gate to block the buy")
	}
}

func exitPosition(buyPrice float64) *domain.Position {
	return &domain.Position{
		Code:      "000001",
		BuyDate:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		BuyPrice:  buyPrice,
		Shares:    100,
		Cost:      buyPrice * 100,
		PeakClose: buyPrice,
	}
}

func exitBar(close float64, daysHeld int) domain.Bar {
	return domain.Bar{
		Date:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, daysHeld),
		Close: close,
	}
}

func TestCheckExit_TakeProfitBeatsExpiry(t *testing.T) {
	s, _ := FromConfig(validConfig())
	reason, ok := s.CheckExit(exitPosition(10.0), exitBar(10.5, 90))
	if !ok || reason != domain.SellReasonTakeProfit {
		t.Errorf("expected take-profit, got %q (fired=%v)", reason, ok)
	}
}

func TestCheckExit_StopLoss(t *testing.T) {
	s, _ := FromConfig(validConfig())
	reason, ok := s.CheckExit(exitPosition(10.0), exitBar(8.9, 5))
	if !ok || reason != domain.SellReasonStopLoss {
		t.Errorf("expected stop-loss, got %q (fired=%v)", reason, ok)
	}
}

func TestCheckExit_TrailingStop(t *testing.T) {
	cfg := validConfig()
	cfg.GainPct = 50
	cfg.TrailingStopPct = 8
	s, _ := FromConfig(cfg)

	pos := exitPosition(10.0)
	pos.PeakClose = 12.0
	reason, ok := s.CheckExit(pos, exitBar(11.0, 5))
	if !ok || reason != domain.SellReasonTrailingStop {
		t.Errorf("expected trailing-stop, got %q (fired=%v)", reason, ok)
	}
}

func TestCheckExit_TrailingStopDisabledByDefault(t *testing.T) {
	cfg := validConfig()
	cfg.GainPct = 50
	s, _ := FromConfig(cfg)

	pos := exitPosition(10.0)
	pos.PeakClose = 12.0
	if reason, ok := s.CheckExit(pos, exitBar(11.0, 5)); ok {
		t.Errorf("expected no exit, got %q", reason)
	}
}

func TestCheckExit_Expiry(t *testing.T) {
	s, _ := FromConfig(validConfig())
	reason, ok := s.CheckExit(exitPosition(10.0), exitBar(10.1, 60))
	if !ok || reason != domain.SellReasonExpired {
		t.Errorf("expected expired, got %q (fired=%v)", reason, ok)
	}
}

func TestCheckExit_HoldsInsideThresholds(t *testing.T) {
	s, _ := FromConfig(validConfig())
	if reason, ok := s.CheckExit(exitPosition(10.0), exitBar(10.1, 5)); ok {
		t.Errorf("expected no exit, got %q", reason)
	}
}
