package lookup

import (
	"errors"
	"math"
	"sort"
	"time"

	"astock-backtest-lab/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoSeries      = errors.New("no series available")
	ErrNotEnoughBars = errors.New("not enough bars at or before date")
	ErrNoSuchPeriod  = errors.New("no moving average column for period")
	ErrWarmup        = errors.New("moving average not warmed up at position")
)

// TruncateTo returns a view of the series restricted to bars with
// date <= cutoff. The view shares the backing arrays of the input;
// callers must treat it as read-only. A nil series stays nil.
func TruncateTo(s *domain.Series, cutoff time.Time) *domain.Series {
	if s == nil {
		return nil
	}

	// First index with date > cutoff; everything before it is visible.
	n := sort.Search(len(s.Bars), func(i int) bool {
		return s.Bars[i].Date.After(cutoff)
	})

	ma := make(map[int][]float64, len(s.MovingAverages))
	for period, col := range s.MovingAverages {
		if len(col) >= n {
			ma[period] = col[:n]
		} else {
			ma[period] = col
		}
	}

	return &domain.Series{
		Code:           s.Code,
		Granularity:    s.Granularity,
		Bars:           s.Bars[:n],
		MovingAverages: ma,
	}
}

// MAAt returns the rolling mean for the given window at the bar offset
// positions back from the series end. Offset 0 is the latest bar.
// Fails when the series is missing, has fewer than offset+1 bars, lacks
// the requested column, or the mean is still in its warm-up NaN region.
func MAAt(s *domain.Series, period, offset int) (float64, error) {
	if s == nil || len(s.Bars) == 0 {
		return 0, ErrNoSeries
	}
	if offset < 0 || len(s.Bars) <= offset {
		return 0, ErrNotEnoughBars
	}

	col, ok := s.MovingAverages[period]
	if !ok {
		return 0, ErrNoSuchPeriod
	}

	idx := len(s.Bars) - 1 - offset
	if idx >= len(col) {
		return 0, ErrNoSuchPeriod
	}

	v := col[idx]
	if math.IsNaN(v) {
		return 0, ErrWarmup
	}
	return v, nil
}

// CloseAt returns the close price offset bars back from the series end.
func CloseAt(s *domain.Series, offset int) (float64, error) {
	if s == nil || len(s.Bars) == 0 {
		return 0, ErrNoSeries
	}
	if offset < 0 || len(s.Bars) <= offset {
		return 0, ErrNotEnoughBars
	}
	return s.Bars[len(s.Bars)-1-offset].Close, nil
}

// LatestPctChange returns the latest bar's period-over-period change.
// A single-bar series with no recorded change reports zero, matching
// the behavior of providers that leave the first row's change empty.
func LatestPctChange(s *domain.Series) (float64, error) {
	if s == nil || len(s.Bars) == 0 {
		return 0, ErrNoSeries
	}
	return s.Bars[len(s.Bars)-1].PctChange, nil
}
