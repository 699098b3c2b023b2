package backtest

import (
	"time"

	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/lookup"
	"astock-backtest-lab/internal/stats"
	"astock-backtest-lab/internal/strategy"
)

// Options configures an Engine.
type Options struct {
	Strategy *strategy.Strategy
	Years    int       // lookback window length in calendar years
	AsOf     time.Time // window end; zero means time.Now()

	// Progress, when set, is called after each replayed bar with the
	// number of bars done and the window total.
	Progress func(done, total int)
}

// Engine replays one instrument's daily bars against a strategy and
// produces the realized trades and their statistics.
type Engine struct {
	strategy *strategy.Strategy
	years    int
	asOf     time.Time
	progress func(done, total int)
}

// NewEngine creates an engine from options.
func NewEngine(opts Options) *Engine {
	return &Engine{
		strategy: opts.Strategy,
		years:    opts.Years,
		asOf:     opts.AsOf,
		progress: opts.Progress,
	}
}

// Run replays the instrument over the backtest window:
//
//  1. Clamp the window to [asOf - years*365 days, asOf], and further to
//     the first available bar. An empty series or window yields a
//     zero-trade result.
//  2. Walk the window bars in date order, one decision per bar: while
//     flat, evaluate the buy signal against a snapshot truncated at the
//     bar's date and buy at its close; while holding, update the peak
//     close and apply the exit rules, selling at the close on the first
//     rule that fires. A bar never triggers both a buy and a sell.
//  3. Force-close a position still open after the last window bar at
//     that bar's close.
//
// Snapshots are truncated from the full prepared series, so moving
// averages warmed up on pre-window history stay available. Indicator
// resolution failures mean "no signal today"; the engine never aborts
// for data or expression problems.
func (e *Engine) Run(snap *domain.Snapshot) *domain.BacktestResult {
	res := &domain.BacktestResult{Code: snap.Code, Name: snap.Name}
	ledger := NewLedger()

	window := e.windowIndices(snap.Daily)
	total := len(window)
	for done, i := range window {
		bar := snap.Daily.Bars[i]
		if !ledger.Holding() {
			if e.strategy.ShouldBuy(truncatedSnapshot(snap, bar.Date)) {
				ledger.Buy(snap.Code, snap.Name, bar.Date, bar.Close)
			}
		} else {
			pos := ledger.Position
			if bar.Close > pos.PeakClose {
				pos.PeakClose = bar.Close
			}
			if reason, ok := e.strategy.CheckExit(pos, bar); ok {
				ledger.Sell(bar.Date, bar.Close, reason)
			}
		}
		if e.progress != nil {
			e.progress(done+1, total)
		}
	}

	if ledger.Holding() {
		last := snap.Daily.Bars[window[total-1]]
		ledger.Sell(last.Date, last.Close, domain.SellReasonBacktestEnd)
	}

	res.Trades = ledger.Trades
	res.Statistics = stats.Compute(ledger.Trades, ledger.InitialCapital)
	return res
}

// windowIndices returns the indices of the daily bars inside the
// backtest window, in date order.
func (e *Engine) windowIndices(daily *domain.Series) []int {
	if daily == nil || len(daily.Bars) == 0 {
		return nil
	}
	asOf := e.asOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	start := asOf.AddDate(0, 0, -365*e.years)
	if first := daily.Bars[0].Date; first.After(start) {
		start = first
	}

	var window []int
	for i, b := range daily.Bars {
		if b.Date.Before(start) || b.Date.After(asOf) {
			continue
		}
		window = append(window, i)
	}
	return window
}

// truncatedSnapshot restricts every series to bars at or before cutoff,
// which is what the strategy is allowed to see on that date.
func truncatedSnapshot(snap *domain.Snapshot, cutoff time.Time) *domain.Snapshot {
	return &domain.Snapshot{
		Code:    snap.Code,
		Name:    snap.Name,
		Date:    cutoff,
		Daily:   lookup.TruncateTo(snap.Daily, cutoff),
		Weekly:  lookup.TruncateTo(snap.Weekly, cutoff),
		Monthly: lookup.TruncateTo(snap.Monthly, cutoff),
	}
}
