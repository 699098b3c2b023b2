// Package main runs the full backtest pipeline from the command line:
// config → data → replay → statistics → persistence → report artifacts.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"astock-backtest-lab/internal/backtest"
	"astock-backtest-lab/internal/config"
	"astock-backtest-lab/internal/dataprovider"
	"astock-backtest-lab/internal/orchestrator"
	"astock-backtest-lab/internal/storage"
	chstore "astock-backtest-lab/internal/storage/clickhouse"
	"astock-backtest-lab/internal/storage/memory"
	"astock-backtest-lab/internal/storage/migrations"
	pgstore "astock-backtest-lab/internal/storage/postgres"
	"astock-backtest-lab/internal/strategy"
	"astock-backtest-lab/internal/verification"
)

func main() {
	loadEnvFile()

	configPath := flag.String("config", envOr("ASTOCK_CONFIG", "config.json"), "Run configuration file")
	dataDir := flag.String("data-dir", envOr("ASTOCK_DATA_DIR", "data"), "Kline CSV cache directory")
	reportDir := flag.String("report-dir", envOr("ASTOCK_REPORT_DIR", "output"), "Report artifact directory ('' disables)")
	asOfStr := flag.String("asof", "", "Backtest window end, YYYY-MM-DD (default today)")
	workers := flag.Int("workers", 0, "Parallel instrument replays (0 = auto)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL DSN for run persistence (optional)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse DSN for the bar archive (optional)")
	offline := flag.Bool("offline", false, "Serve cached bars regardless of age; synthesize uncached instruments")
	verify := flag.Bool("verify", false, "Replay each instrument twice and require identical results")
	outputJSON := flag.Bool("json", false, "Print the result document as JSON")
	verbose := flag.Bool("verbose", false, "Log pipeline phases")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	asOf, err := parseAsOf(*asOfStr)
	if err != nil {
		logger.Fatalf("invalid --asof: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	cfg := config.Load(*configPath)

	var source dataprovider.Source
	if *offline {
		source = dataprovider.NewStubSource(0)
	}
	var barSink storage.BarStore
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("prepare clickhouse: %v", err)
		}
		defer conn.Close()
		barSink = chstore.NewBarStore(conn)
		logger.Printf("Archiving fetched bars to ClickHouse")
	}
	loader := dataprovider.NewProvider(dataprovider.ProviderOptions{
		Source:      source,
		Cache:       dataprovider.NewCache(*dataDir),
		SaveOffline: cfg.SaveOfflineData && !*offline,
		Offline:     *offline,
		BarSink:     barSink,
		Logger:      logger,
	})

	var runStore storage.BacktestRunStore
	var tradeStore storage.TradeRecordStore
	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("apply postgres migrations: %v", err)
		}
		runStore = pgstore.NewBacktestRunStore(pool)
		tradeStore = pgstore.NewTradeRecordStore(pool)
	} else {
		runStore = memory.NewBacktestRunStore()
		tradeStore = memory.NewTradeRecordStore()
	}

	orch := orchestrator.New(orchestrator.Options{
		Config:     cfg,
		Loader:     loader,
		RunStore:   runStore,
		TradeStore: tradeStore,
		ReportDir:  *reportDir,
		Workers:    *workers,
		AsOf:       asOf,
		Verbose:    *verbose,
		Logger:     logger,
	})

	summary, err := orch.Run(ctx)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoResults) {
			logger.Fatal("no instrument produced data; check codes and connectivity")
		}
		logger.Fatalf("backtest failed: %v", err)
	}
	for _, warn := range summary.Errors {
		logger.Printf("warning: %s", warn)
	}

	if *verify {
		if err := verifyRuns(ctx, cfg, loader, asOf, logger); err != nil {
			logger.Fatalf("verification failed: %v", err)
		}
		logger.Printf("verification passed for %d instruments", len(cfg.InstrumentCodes()))
	}

	if *outputJSON {
		out, err := json.MarshalIndent(summary.Document, "", "  ")
		if err != nil {
			logger.Fatalf("marshal document: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	printSummary(summary)
}

// verifyRuns replays every configured instrument twice and fails on the
// first divergence.
func verifyRuns(ctx context.Context, cfg *config.Config, loader dataprovider.Loader, asOf time.Time, logger *log.Logger) error {
	strat, err := strategy.FromConfig(cfg.Strategy())
	if err != nil {
		return err
	}
	v := verification.NewVerifier(backtest.Options{
		Strategy: strat,
		Years:    cfg.BacktestYear,
		AsOf:     asOf,
	})

	for _, code := range cfg.InstrumentCodes() {
		snap, err := loader.LoadSnapshot(ctx, code)
		if err != nil {
			logger.Printf("verify: skipping %s: %v", code, err)
			continue
		}
		report := v.Verify(snap)
		if !report.Deterministic() {
			for _, d := range report.Divergences {
				logger.Printf("verify %s: %s", code, d.String())
			}
			return fmt.Errorf("%s diverged in %d fields", code, len(report.Divergences))
		}
	}
	return nil
}

func printSummary(s *orchestrator.Summary) {
	c := s.Combined

	fmt.Println()
	fmt.Println("=== Backtest Summary ===")
	fmt.Printf("Run ID:         %s\n", s.RunID)
	fmt.Printf("Instruments:    %d (%d skipped)\n", len(s.Results), len(s.Skipped))
	fmt.Printf("Trades:         %d (%d won, %d lost)\n", c.TotalTrades, c.WinCount, c.LossCount)
	fmt.Printf("Win Rate:       %.2f%%\n", c.WinRate)
	fmt.Printf("Total Return:   %.2f (%.2f%%)\n", c.TotalReturn, c.TotalReturnPct)
	fmt.Printf("Final Capital:  %.2f\n", c.FinalCapital)
	fmt.Printf("Avg Hold Days:  %.1f\n", c.AvgHoldDays)
	fmt.Printf("Duration:       %v\n", s.Duration.Round(time.Millisecond))

	if len(s.Skipped) > 0 {
		fmt.Printf("Skipped:        %s\n", strings.Join(s.Skipped, ", "))
	}

	if len(s.Results) > 0 {
		fmt.Println()
		fmt.Printf("%-10s %-20s %7s %9s %13s %9s\n", "Code", "Name", "Trades", "Win Rate", "Return", "Return %")
		for _, res := range s.Results {
			st := res.Statistics
			fmt.Printf("%-10s %-20s %7d %8.2f%% %13.2f %8.2f%%\n",
				res.Code, truncateName(res.Name, 20), st.TotalTrades, st.WinRate, st.TotalReturn, st.TotalReturnPct)
		}
	}

	if len(s.Artifacts) > 0 {
		fmt.Println()
		fmt.Println("Artifacts:")
		for _, path := range s.Artifacts {
			fmt.Printf("  %s\n", path)
		}
	}
}

func truncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	return string(runes[:max-1]) + "…"
}

func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env if present without
// overriding variables already set.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if os.Getenv(key) == "" {
			os.Setenv(key, strings.TrimSpace(parts[1]))
		}
	}
}
