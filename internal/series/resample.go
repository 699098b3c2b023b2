package series

import (
	"fmt"

	"astock-backtest-lab/internal/domain"
)

// Resample aggregates daily bars into weekly or monthly bars for
// providers that only serve daily data. Buckets are ISO weeks or
// calendar months; each bucket's bar carries the first open, last
// close, max high, min low, summed volume and amount, and the date of
// the bucket's last trading day. PctChange is recomputed across the
// aggregated closes. Daily input passes through unchanged.
func Resample(daily []domain.Bar, g domain.Granularity) []domain.Bar {
	if g == domain.GranularityDaily || len(daily) == 0 {
		return daily
	}

	var out []domain.Bar
	var key string

	for _, b := range daily {
		k := bucketKey(b, g)
		if len(out) == 0 || k != key {
			out = append(out, b)
			key = k
			continue
		}

		last := &out[len(out)-1]
		last.Close = b.Close
		if b.High > last.High {
			last.High = b.High
		}
		if b.Low < last.Low {
			last.Low = b.Low
		}
		last.Volume += b.Volume
		last.Amount += b.Amount
		last.Date = b.Date
	}

	ComputePctChange(out)
	return out
}

// bucketKey assigns a bar to its ISO-week or calendar-month bucket.
func bucketKey(b domain.Bar, g domain.Granularity) string {
	switch g {
	case domain.GranularityWeekly:
		year, week := b.Date.ISOWeek()
		return fmt.Sprintf("%d-w%02d", year, week)
	case domain.GranularityMonthly:
		return b.Date.Format("2006-01")
	default:
		return b.Date.Format("2006-01-02")
	}
}
