// Package simulation replays a strategy over many instruments in
// parallel and aggregates the combined outcome.
package simulation

import (
	"context"
	"log"
	"sync"
	"time"

	"astock-backtest-lab/internal/backtest"
	"astock-backtest-lab/internal/dataprovider"
	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/stats"
	"astock-backtest-lab/internal/strategy"
)

// DefaultWorkers bounds instrument-level parallelism.
const DefaultWorkers = 4

// Options configures a Runner.
type Options struct {
	Loader   dataprovider.Loader
	Strategy *strategy.Strategy
	Years    int
	AsOf     time.Time
	Workers  int
	Logger   *log.Logger
	// Progress is called after each instrument finishes, successful
	// or not. May be nil.
	Progress func(code string, done, total int)
}

// Runner fans one replay out per instrument.
type Runner struct {
	loader   dataprovider.Loader
	strategy *strategy.Strategy
	years    int
	asOf     time.Time
	workers  int
	logger   *log.Logger
	progress func(code string, done, total int)
}

// RunOutput is the collected result of one multi-instrument run.
type RunOutput struct {
	// Results holds one entry per instrument that completed, in
	// request order.
	Results []domain.BacktestResult
	// Skipped lists instruments whose data could not be loaded.
	Skipped []string
	// Combined aggregates every trade across Results over one shared
	// principal.
	Combined domain.Statistics
}

// NewRunner builds a Runner, defaulting the worker count and logger.
func NewRunner(opts Options) *Runner {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		loader:   opts.Loader,
		strategy: opts.Strategy,
		years:    opts.Years,
		asOf:     opts.AsOf,
		workers:  workers,
		logger:   logger,
		progress: opts.Progress,
	}
}

// Run replays every instrument and aggregates the results:
//  1. Fan out one goroutine per instrument, at most workers running
//     at once. Each loads its snapshot and replays it independently.
//  2. Collect into an index-addressed slice, so output order equals
//     request order regardless of scheduling.
//  3. Instruments whose data cannot be loaded are skipped with a
//     warning; they produce no result entry.
//
// A cancelled context aborts the run and is returned as the error.
func (r *Runner) Run(ctx context.Context, codes []string) (*RunOutput, error) {
	results := make([]*domain.BacktestResult, len(codes))
	loadErrs := make([]error, len(codes))

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, r.workers)
	done := 0

	for i, code := range codes {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				loadErrs[i] = err
				return
			}

			snap, err := r.loader.LoadSnapshot(ctx, code)
			if err != nil {
				loadErrs[i] = err
			} else {
				engine := backtest.NewEngine(backtest.Options{
					Strategy: r.strategy,
					Years:    r.years,
					AsOf:     r.asOf,
				})
				results[i] = engine.Run(snap)
			}

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			if r.progress != nil {
				r.progress(code, n, len(codes))
			}
		}(i, code)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &RunOutput{}
	for i, code := range codes {
		if loadErrs[i] != nil {
			r.logger.Printf("[simulation] skipping %s: %v", code, loadErrs[i])
			out.Skipped = append(out.Skipped, code)
			continue
		}
		out.Results = append(out.Results, *results[i])
	}
	out.Combined = stats.Combined(out.Results, backtest.InitialCapital)
	return out, nil
}
