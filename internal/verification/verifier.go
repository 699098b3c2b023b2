// Package verification checks replay determinism: the same inputs must
// produce the same ledger, trade for trade.
package verification

import (
	"fmt"
	"math"

	"astock-backtest-lab/internal/backtest"
	"astock-backtest-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons. Replays run
// the identical arithmetic, so anything beyond rounding noise diverges.
const FloatTolerance = 1e-9

// Divergence represents one mismatch between two replays of the same
// instrument. TradeSeq is 0 for result-level fields.
type Divergence struct {
	TradeSeq int
	Field    string
	First    interface{}
	Second   interface{}
}

func (d Divergence) String() string {
	if d.TradeSeq == 0 {
		return fmt.Sprintf("%s: %v vs %v", d.Field, d.First, d.Second)
	}
	return fmt.Sprintf("trade %d %s: %v vs %v", d.TradeSeq, d.Field, d.First, d.Second)
}

// Report contains the outcome of verifying one instrument.
type Report struct {
	Code        string
	TradeCount  int
	Divergences []Divergence
}

// Deterministic reports whether the two replays matched exactly.
func (r *Report) Deterministic() bool {
	return len(r.Divergences) == 0
}

// Verifier replays snapshots twice through fresh engines and compares
// the ledgers.
type Verifier struct {
	opts backtest.Options
}

// NewVerifier creates a Verifier running engines with the given options.
// The Progress hook is ignored; verification runs are silent.
func NewVerifier(opts backtest.Options) *Verifier {
	opts.Progress = nil
	return &Verifier{opts: opts}
}

// Verify runs the snapshot through two fresh engines and compares the
// results field by field.
func (v *Verifier) Verify(snap *domain.Snapshot) *Report {
	first := backtest.NewEngine(v.opts).Run(snap)
	second := backtest.NewEngine(v.opts).Run(snap)

	return &Report{
		Code:        first.Code,
		TradeCount:  len(first.Trades),
		Divergences: CompareResults(first, second),
	}
}

// CompareResults compares two replay outputs of the same instrument.
func CompareResults(first, second *domain.BacktestResult) []Divergence {
	var divergences []Divergence

	if first.Code != second.Code {
		divergences = append(divergences, Divergence{Field: "Code", First: first.Code, Second: second.Code})
	}
	if first.Name != second.Name {
		divergences = append(divergences, Divergence{Field: "Name", First: first.Name, Second: second.Name})
	}

	if len(first.Trades) != len(second.Trades) {
		divergences = append(divergences, Divergence{
			Field:  "TradeCount",
			First:  len(first.Trades),
			Second: len(second.Trades),
		})
		return divergences
	}

	for i := range first.Trades {
		divergences = append(divergences, CompareTrades(first.Trades[i], second.Trades[i])...)
	}

	divergences = append(divergences, compareStatistics(first.Statistics, second.Statistics)...)

	return divergences
}

// CompareTrades compares two trades field by field.
func CompareTrades(first, second domain.Trade) []Divergence {
	seq := first.Seq
	var divergences []Divergence

	add := func(field string, a, b interface{}) {
		divergences = append(divergences, Divergence{TradeSeq: seq, Field: field, First: a, Second: b})
	}

	if first.Seq != second.Seq {
		add("Seq", first.Seq, second.Seq)
	}
	if first.Code != second.Code {
		add("Code", first.Code, second.Code)
	}
	if !first.BuyDate.Equal(second.BuyDate) {
		add("BuyDate", first.BuyDate, second.BuyDate)
	}
	if !floatEquals(first.BuyPrice, second.BuyPrice) {
		add("BuyPrice", first.BuyPrice, second.BuyPrice)
	}
	if !first.SellDate.Equal(second.SellDate) {
		add("SellDate", first.SellDate, second.SellDate)
	}
	if !floatEquals(first.SellPrice, second.SellPrice) {
		add("SellPrice", first.SellPrice, second.SellPrice)
	}
	if first.Shares != second.Shares {
		add("Shares", first.Shares, second.Shares)
	}
	if !floatEquals(first.Profit, second.Profit) {
		add("Profit", first.Profit, second.Profit)
	}
	if !floatEquals(first.ProfitPct, second.ProfitPct) {
		add("ProfitPct", first.ProfitPct, second.ProfitPct)
	}
	if first.Reason != second.Reason {
		add("Reason", first.Reason, second.Reason)
	}
	if first.HoldDays != second.HoldDays {
		add("HoldDays", first.HoldDays, second.HoldDays)
	}

	return divergences
}

func compareStatistics(first, second domain.Statistics) []Divergence {
	var divergences []Divergence

	add := func(field string, a, b interface{}) {
		divergences = append(divergences, Divergence{Field: "Statistics." + field, First: a, Second: b})
	}

	if first.TotalTrades != second.TotalTrades {
		add("TotalTrades", first.TotalTrades, second.TotalTrades)
	}
	if first.WinCount != second.WinCount {
		add("WinCount", first.WinCount, second.WinCount)
	}
	if first.LossCount != second.LossCount {
		add("LossCount", first.LossCount, second.LossCount)
	}
	if !floatEquals(first.TotalReturn, second.TotalReturn) {
		add("TotalReturn", first.TotalReturn, second.TotalReturn)
	}
	if !floatEquals(first.FinalCapital, second.FinalCapital) {
		add("FinalCapital", first.FinalCapital, second.FinalCapital)
	}

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
