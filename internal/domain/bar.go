package domain

import "time"

// Granularity identifies the aggregation level of a kline series.
type Granularity string

// Granularity constants.
const (
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// Bar represents one period's OHLCV snapshot for an instrument.
// Immutable once stored; dates within a series are unique and ascending.
type Bar struct {
	Date      time.Time // trading period end date, midnight UTC
	Open      float64
	Close     float64
	High      float64
	Low       float64
	Volume    float64 // traded shares
	Amount    float64 // traded value
	PctChange float64 // period-over-period close change, percent
}

// Series holds the ordered bars of one granularity for one instrument,
// plus precomputed rolling-mean columns keyed by window length. Each
// column is aligned to the bar index and NaN for the first period-1
// positions. A Series is built once per run and read-only afterwards;
// truncation produces views sharing the backing arrays, never copies.
type Series struct {
	Code           string
	Granularity    Granularity
	Bars           []Bar
	MovingAverages map[int][]float64
}

// Snapshot is the point-in-time view handed to expression evaluation:
// every series is truncated to bars with date <= Date, so code consuming
// a Snapshot is structurally incapable of seeing future bars. Daily is
// always present for a tradable instrument; Weekly and Monthly may be nil.
type Snapshot struct {
	Code    string
	Name    string
	Date    time.Time
	Daily   *Series
	Weekly  *Series
	Monthly *Series
}

// Series returns the snapshot's series for a granularity, nil if absent.
func (s *Snapshot) Series(g Granularity) *Series {
	switch g {
	case GranularityDaily:
		return s.Daily
	case GranularityWeekly:
		return s.Weekly
	case GranularityMonthly:
		return s.Monthly
	default:
		return nil
	}
}
