// Package orchestrator coordinates a full backtest run.
// It wires config → data loading → replay → persistence → reporting.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"astock-backtest-lab/internal/config"
	"astock-backtest-lab/internal/dataprovider"
	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/idhash"
	"astock-backtest-lab/internal/observability"
	"astock-backtest-lab/internal/reporting"
	"astock-backtest-lab/internal/simulation"
	"astock-backtest-lab/internal/storage"
	"astock-backtest-lab/internal/strategy"
)

// ErrNoResults means every configured instrument failed to load data.
var ErrNoResults = errors.New("orchestrator: no instrument produced results")

// Orchestrator executes the pipeline end to end. The CLI and the web
// layer share it; options select which sinks are active.
type Orchestrator struct {
	cfg        *config.Config
	loader     dataprovider.Loader
	runStore   storage.BacktestRunStore
	tradeStore storage.TradeRecordStore
	reportDir  string
	workers    int
	asOf       time.Time
	progress   func(code string, done, total int)
	verbose    bool
	logger     *log.Logger
	now        func() time.Time
}

// Options for creating an Orchestrator.
type Options struct {
	// Config is the validated run configuration. Required.
	Config *config.Config

	// Loader produces instrument snapshots. Required.
	Loader dataprovider.Loader

	// RunStore and TradeStore persist run output when non-nil.
	RunStore   storage.BacktestRunStore
	TradeStore storage.TradeRecordStore

	// ReportDir enables artifact generation when non-empty.
	ReportDir string

	// Workers bounds replay parallelism; <= 0 uses the runner default.
	Workers int

	// AsOf fixes the replay window end; zero means now.
	AsOf time.Time

	// Progress receives per-instrument completion updates. Optional.
	Progress func(code string, done, total int)

	Verbose bool
	Logger  *log.Logger
	Now     func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Orchestrator{
		cfg:        opts.Config,
		loader:     opts.Loader,
		runStore:   opts.RunStore,
		tradeStore: opts.TradeStore,
		reportDir:  opts.ReportDir,
		workers:    opts.Workers,
		asOf:       opts.AsOf,
		progress:   opts.Progress,
		verbose:    opts.Verbose,
		logger:     logger,
		now:        now,
	}
}

// Summary contains the output of one orchestrated run.
type Summary struct {
	RunID     string
	Results   []domain.BacktestResult
	Skipped   []string
	Combined  domain.Statistics
	Document  *reporting.Document
	Artifacts []string
	Duration  time.Duration

	// Errors lists non-fatal persistence problems. The run result is
	// still valid when these are present.
	Errors []string
}

// Run executes the pipeline.
// Phases:
//  1. Validate config and compile the strategy
//  2. Replay every configured instrument
//  3. Persist run and trades (when stores are wired)
//  4. Generate report artifacts (when a report dir is set)
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	startedAt := o.now()

	// Phase 1: configuration
	o.log("Phase 1: Validating configuration...")
	if o.cfg == nil || o.loader == nil {
		return nil, errors.New("orchestrator: config and loader are required")
	}
	if err := config.Validate(o.cfg); err != nil {
		return nil, fmt.Errorf("phase 1 (validate config): %w", err)
	}
	strategyConfig := o.cfg.Strategy()
	strat, err := strategy.FromConfig(strategyConfig)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (compile strategy): %w", err)
	}
	codes := o.cfg.InstrumentCodes()
	o.log("  %d instruments, %d year window", len(codes), o.cfg.BacktestYear)

	// Phase 2: replay
	o.log("Phase 2: Replaying instruments...")
	runner := simulation.NewRunner(simulation.Options{
		Loader:   o.loader,
		Strategy: strat,
		Years:    o.cfg.BacktestYear,
		AsOf:     o.asOf,
		Workers:  o.workers,
		Logger:   o.logger,
		Progress: o.progress,
	})
	out, err := runner.Run(ctx, codes)
	if err != nil {
		observability.RecordBacktestRun("failed", time.Since(startedAt).Seconds())
		return nil, fmt.Errorf("phase 2 (replay): %w", err)
	}
	for range out.Skipped {
		observability.RecordInstrument(true)
	}
	for range out.Results {
		observability.RecordInstrument(false)
	}
	if len(out.Results) == 0 {
		observability.RecordBacktestRun("failed", time.Since(startedAt).Seconds())
		return nil, ErrNoResults
	}
	o.log("  %d replayed, %d skipped, %d trades",
		len(out.Results), len(out.Skipped), out.Combined.TotalTrades)

	summary := &Summary{
		RunID:    idhash.RunID(codes, strategyConfig, startedAt),
		Results:  out.Results,
		Skipped:  out.Skipped,
		Combined: out.Combined,
	}

	// Phase 3: persistence
	o.log("Phase 3: Persisting run %s...", summary.RunID)
	o.persist(ctx, summary, startedAt)

	// Phase 4: reporting
	if o.reportDir != "" {
		o.log("Phase 4: Writing artifacts to %s...", o.reportDir)
		doc, paths, err := reporting.NewGenerator(o.reportDir).
			WithClock(o.now).
			Generate(summary.RunID, summary.Results, summary.Combined)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("reporting: %v", err))
		} else {
			summary.Document = doc
			summary.Artifacts = paths
		}
	} else {
		summary.Document = reporting.NewDocument(summary.RunID, o.now(), summary.Results, summary.Combined)
	}

	summary.Duration = time.Since(startedAt)
	observability.RecordBacktestRun("ok", summary.Duration.Seconds())
	for _, res := range summary.Results {
		for _, tr := range res.Trades {
			observability.RecordTradeSimulated(string(tr.Reason))
		}
	}
	observability.MarkSuccessfulRun(o.now().Unix())

	o.log("Run %s completed in %s (%d trades)",
		summary.RunID, summary.Duration.Round(time.Millisecond), summary.Combined.TotalTrades)

	return summary, nil
}

// persist writes the run record and its trades. Failures are collected
// as warnings; replay output remains usable without storage.
func (o *Orchestrator) persist(ctx context.Context, summary *Summary, startedAt time.Time) {
	if o.runStore != nil {
		record := o.runRecord(summary, startedAt)
		if err := o.runStore.Insert(ctx, record); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				o.log("  run %s already stored", summary.RunID)
			} else {
				summary.Errors = append(summary.Errors, fmt.Sprintf("store run: %v", err))
			}
		}
	}

	if o.tradeStore != nil {
		trades := TradeRecords(summary.RunID, summary.Results)
		if len(trades) > 0 {
			if err := o.tradeStore.InsertBulk(ctx, trades); err != nil {
				if errors.Is(err, storage.ErrDuplicateKey) {
					o.log("  trades for %s already stored", summary.RunID)
				} else {
					summary.Errors = append(summary.Errors, fmt.Sprintf("store trades: %v", err))
				}
			}
		}
	}
}

func (o *Orchestrator) runRecord(summary *Summary, startedAt time.Time) *domain.RunRecord {
	configJSON, err := json.Marshal(o.cfg)
	if err != nil {
		configJSON = []byte("{}")
	}
	return &domain.RunRecord{
		RunID:           summary.RunID,
		CreatedAt:       startedAt,
		ConfigJSON:      string(configJSON),
		InstrumentCount: len(summary.Results),
		TradeCount:      summary.Combined.TotalTrades,
		Combined:        summary.Combined,
	}
}

// TradeRecords flattens run results into persistable trade rows with
// deterministic identifiers.
func TradeRecords(runID string, results []domain.BacktestResult) []*domain.TradeRecord {
	var records []*domain.TradeRecord
	for _, res := range results {
		for _, tr := range res.Trades {
			records = append(records, &domain.TradeRecord{
				TradeID:   idhash.TradeID(runID, res.Code, tr.BuyDate, tr.SellDate, tr.Seq),
				RunID:     runID,
				Code:      res.Code,
				Name:      res.Name,
				Seq:       tr.Seq,
				BuyDate:   tr.BuyDate,
				BuyPrice:  tr.BuyPrice,
				SellDate:  tr.SellDate,
				SellPrice: tr.SellPrice,
				Shares:    tr.Shares,
				Profit:    tr.Profit,
				ProfitPct: tr.ProfitPct,
				Reason:    tr.Reason,
				HoldDays:  tr.HoldDays,
			})
		}
	}
	return records
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		o.logger.Printf("[orchestrator] "+format, args...)
	}
}
