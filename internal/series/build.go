package series

import (
	"math"
	"sort"

	"astock-backtest-lab/internal/domain"
)

// DefaultMAPeriods are the rolling-mean windows precomputed for every
// prepared series. DSL terms may only reference these windows.
var DefaultMAPeriods = []int{5, 10, 20, 30, 60}

// Prepare builds a read-only Series from raw provider bars: bars are
// copied, sorted ascending by date with same-date duplicates collapsed
// to the last occurrence, and one rolling-mean column is computed per
// requested period. The input slice is not modified.
func Prepare(code string, g domain.Granularity, bars []domain.Bar, periods []int) *domain.Series {
	ordered := sortBars(bars)

	closes := make([]float64, len(ordered))
	for i, b := range ordered {
		closes[i] = b.Close
	}

	ma := make(map[int][]float64, len(periods))
	for _, period := range periods {
		if period <= 0 {
			continue
		}
		ma[period] = rollingMean(closes, period)
	}

	return &domain.Series{
		Code:           code,
		Granularity:    g,
		Bars:           ordered,
		MovingAverages: ma,
	}
}

// sortBars returns a date-ordered copy with duplicate dates collapsed
// (last record wins, matching provider refresh behavior).
func sortBars(bars []domain.Bar) []domain.Bar {
	ordered := make([]domain.Bar, len(bars))
	copy(ordered, bars)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	out := ordered[:0]
	for _, b := range ordered {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// rollingMean computes a simple moving average aligned to the input
// index. Positions before the window has filled hold NaN.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))

	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// ComputePctChange fills every bar's PctChange from consecutive closes
// (the first bar reports zero). Used for series assembled locally, e.g.
// resampled weekly/monthly bars; provider-supplied values are kept as
// delivered and never recomputed.
func ComputePctChange(bars []domain.Bar) {
	for i := range bars {
		if i == 0 {
			bars[i].PctChange = 0
			continue
		}
		prev := bars[i-1].Close
		if prev == 0 {
			bars[i].PctChange = 0
			continue
		}
		bars[i].PctChange = (bars[i].Close - prev) / prev * 100
	}
}
