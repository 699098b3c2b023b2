package dataprovider

import (
	"context"
	"math"
	"time"

	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/series"
)

// StubSource produces deterministic synthetic klines for offline runs
// and tests. The same code always yields the same bars.
type StubSource struct {
	// Bars is the number of daily bars to generate. Weekly and monthly
	// series are proportionally shorter.
	Bars int
	// Start is the date of the first daily bar.
	Start time.Time
}

var _ Source = (*StubSource)(nil)

// NewStubSource returns a stub generating count daily bars ending near
// the present.
func NewStubSource(count int) *StubSource {
	if count <= 0 {
		count = 500
	}
	start := time.Now().AddDate(0, 0, -count*7/5) // calendar span incl. weekends
	return &StubSource{
		Bars:  count,
		Start: time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
	}
}

// FetchKline synthesizes a price walk seeded from the instrument code.
func (s *StubSource) FetchKline(_ context.Context, code string, g domain.Granularity) ([]domain.Bar, error) {
	count := s.Bars
	switch g {
	case domain.GranularityWeekly:
		count = s.Bars / 5
	case domain.GranularityMonthly:
		count = s.Bars / 21
	}
	if count == 0 {
		return nil, ErrNoData
	}

	seed := float64(codeSeed(code))
	base := 10 + math.Mod(seed, 90)

	bars := make([]domain.Bar, 0, count)
	date := s.Start
	for i := 0; i < count; i++ {
		// Two overlaid waves so moving averages of different periods
		// actually cross.
		phase := float64(i) + seed
		cl := base * (1 + 0.1*math.Sin(phase/8) + 0.04*math.Sin(phase/3))
		op := base * (1 + 0.1*math.Sin((phase-0.5)/8) + 0.04*math.Sin((phase-0.5)/3))
		hi := math.Max(op, cl) * 1.01
		lo := math.Min(op, cl) * 0.99
		bars = append(bars, domain.Bar{
			Date:   date,
			Open:   round2(op),
			Close:  round2(cl),
			High:   round2(hi),
			Low:    round2(lo),
			Volume: 1_000_000 + 10_000*math.Mod(phase, 50),
			Amount: cl * (1_000_000 + 10_000*math.Mod(phase, 50)),
		})

		switch g {
		case domain.GranularityWeekly:
			date = date.AddDate(0, 0, 7)
		case domain.GranularityMonthly:
			date = date.AddDate(0, 1, 0)
		default:
			date = nextTradingDay(date)
		}
	}
	series.ComputePctChange(bars)
	return bars, nil
}

// InstrumentName labels stub instruments with their code.
func (s *StubSource) InstrumentName(_ context.Context, code string) (string, error) {
	return "Stub " + code, nil
}

func codeSeed(code string) int {
	sum := 0
	for _, r := range code {
		sum = sum*31 + int(r)
	}
	if sum < 0 {
		sum = -sum
	}
	return sum
}

func nextTradingDay(d time.Time) time.Time {
	d = d.AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
