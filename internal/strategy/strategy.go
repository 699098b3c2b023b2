package strategy

import (
	"errors"

	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/expr"
)

// Validation errors
var (
	ErrNonPositiveGain   = errors.New("take-profit threshold must be positive")
	ErrNonPositiveLoss   = errors.New("stop-loss threshold must be positive")
	ErrNonPositivePeriod = errors.New("hold period must be positive")
	ErrNegativeTrailing  = errors.New("trailing stop percent must not be negative")
)

// Strategy is a compiled buy/sell rule set. The kline expression is
// compiled once here so the daily replay loop never re-parses it.
type Strategy struct {
	Kline           *expr.Program
	DayGate         string
	GainPct         float64
	LossPct         float64
	HoldPeriodDays  int
	TrailingStopPct float64 // 0 disables the trailing stop
}

// FromConfig compiles a Strategy from domain.StrategyConfig.
// Thresholds are validated here; expression syntax is not, because
// malformed expressions have defined evaluation behavior.
func FromConfig(cfg domain.StrategyConfig) (*Strategy, error) {
	if cfg.GainPct <= 0 {
		return nil, ErrNonPositiveGain
	}
	if cfg.LossPct <= 0 {
		return nil, ErrNonPositiveLoss
	}
	if cfg.HoldPeriodDays <= 0 {
		return nil, ErrNonPositivePeriod
	}
	if cfg.TrailingStopPct < 0 {
		return nil, ErrNegativeTrailing
	}

	return &Strategy{
		Kline:           expr.Compile(cfg.KlineBuyExpression),
		DayGate:         cfg.DayBuyExpression,
		GainPct:         cfg.GainPct,
		LossPct:         cfg.LossPct,
		HoldPeriodDays:  cfg.HoldPeriodDays,
		TrailingStopPct: cfg.TrailingStopPct,
	}, nil
}

// ShouldBuy reports whether both entry conditions hold for the snapshot:
// the kline expression and the day-of-buy gate.
func (s *Strategy) ShouldBuy(snap *domain.Snapshot) bool {
	if !s.Kline.Eval(&expr.SnapshotResolver{Snapshot: snap}) {
		return false
	}
	return expr.EvalDayGate(s.DayGate, snap)
}

// Explain traces both entry conditions against the snapshot.
func (s *Strategy) Explain(snap *domain.Snapshot) (*expr.Explanation, expr.Check) {
	return s.Kline.Explain(&expr.SnapshotResolver{Snapshot: snap}),
		expr.ExplainDayGate(s.DayGate, snap)
}
