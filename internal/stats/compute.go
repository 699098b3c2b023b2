package stats

import "astock-backtest-lab/internal/domain"

// Compute aggregates realized trades into summary statistics. Trades are
// taken in ledger order (sorted by sell date within one run).
func Compute(trades []domain.Trade, initialCapital float64) domain.Statistics {
	s := domain.Statistics{
		TotalTrades:  len(trades),
		FinalCapital: initialCapital,
	}
	if len(trades) == 0 {
		return s
	}

	holdSum := 0.0
	for _, t := range trades {
		if t.Profit > 0 {
			s.WinCount++
		} else {
			s.LossCount++
		}
		s.TotalReturn += t.Profit
		holdSum += float64(t.HoldDays)
	}

	s.WinRate = float64(s.WinCount) / float64(s.TotalTrades) * 100
	s.TotalReturnPct = s.TotalReturn / initialCapital * 100
	s.FinalCapital = initialCapital + s.TotalReturn
	s.AvgHoldDays = holdSum / float64(s.TotalTrades)
	return s
}

// Combined folds every instrument's trades into one portfolio summary.
// The percent return stays relative to the single fixed initial capital:
// each instrument reuses the same principal, so summing per-instrument
// capital would double-count it.
func Combined(results []domain.BacktestResult, initialCapital float64) domain.Statistics {
	var all []domain.Trade
	for _, r := range results {
		all = append(all, r.Trades...)
	}
	return Compute(all, initialCapital)
}
