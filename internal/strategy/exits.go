package strategy

import "astock-backtest-lab/internal/domain"

// Return is the percent return of price against the entry price.
func Return(buyPrice, price float64) float64 {
	if buyPrice == 0 {
		return 0
	}
	return (price - buyPrice) / buyPrice * 100
}

// CheckExit applies the exit rules in fixed priority order and returns
// the first that fires: take-profit, stop-loss, trailing stop (when
// enabled), then hold-period expiry. The caller updates the position's
// peak close for the current bar before calling.
func (s *Strategy) CheckExit(pos *domain.Position, bar domain.Bar) (domain.SellReason, bool) {
	ret := Return(pos.BuyPrice, bar.Close)
	if ret >= s.GainPct {
		return domain.SellReasonTakeProfit, true
	}
	if ret <= -s.LossPct {
		return domain.SellReasonStopLoss, true
	}
	if s.TrailingStopPct > 0 && pos.PeakClose > 0 {
		drawdown := (pos.PeakClose - bar.Close) / pos.PeakClose * 100
		if drawdown > s.TrailingStopPct {
			return domain.SellReasonTrailingStop, true
		}
	}
	if domain.DaysBetween(pos.BuyDate, bar.Date) >= s.HoldPeriodDays {
		return domain.SellReasonExpired, true
	}
	return "", false
}
