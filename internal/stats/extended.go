package stats

import "astock-backtest-lab/internal/domain"

// Extended holds order-dependent metrics over one trade sequence, used
// by the report generator alongside the summary statistics.
type Extended struct {
	MaxDrawdown          float64 // worst peak-to-trough drop of cumulative profit
	MaxConsecutiveLosses int
	BestTrade            float64
	WorstTrade           float64
	ProfitFactor         float64 // gross gains / gross losses; 0 without losses
}

// ComputeExtended calculates extended metrics from trades in
// chronological order.
func ComputeExtended(trades []domain.Trade) Extended {
	if len(trades) == 0 {
		return Extended{}
	}

	profits := make([]float64, len(trades))
	for i, t := range trades {
		profits[i] = t.Profit
	}

	ext := Extended{
		MaxDrawdown:          computeMaxDrawdown(profits),
		MaxConsecutiveLosses: computeMaxConsecutiveLosses(profits),
		BestTrade:            profits[0],
		WorstTrade:           profits[0],
	}

	grossGain := 0.0
	grossLoss := 0.0
	for _, p := range profits {
		if p > ext.BestTrade {
			ext.BestTrade = p
		}
		if p < ext.WorstTrade {
			ext.WorstTrade = p
		}
		if p > 0 {
			grossGain += p
		} else {
			grossLoss += -p
		}
	}
	if grossLoss > 0 {
		ext.ProfitFactor = grossGain / grossLoss
	}
	return ext
}

// computeMaxDrawdown calculates the worst peak-to-trough drop on the
// cumulative profit curve. Profits must be in chronological order.
func computeMaxDrawdown(profits []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, p := range profits {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses counts the longest run of non-winning
// trades.
func computeMaxConsecutiveLosses(profits []float64) int {
	maxRun := 0
	run := 0
	for _, p := range profits {
		if p <= 0 {
			run++
			if run > maxRun {
				maxRun = run
			}
		} else {
			run = 0
		}
	}
	return maxRun
}
