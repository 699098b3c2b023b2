// Package main regenerates report artifacts: either from a saved
// trades.json document or by rebuilding a persisted run from
// PostgreSQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"astock-backtest-lab/internal/backtest"
	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/reporting"
	"astock-backtest-lab/internal/stats"
	"astock-backtest-lab/internal/storage/migrations"
	pgstore "astock-backtest-lab/internal/storage/postgres"
)

func main() {
	loadEnvFile()

	tradesPath := flag.String("trades", envOr("ASTOCK_TRADES", "output/trades.json"), "Saved trades.json to render")
	outDir := flag.String("out", envOr("ASTOCK_REPORT_DIR", "output"), "Directory for the rendered artifacts")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "Rebuild the run from PostgreSQL instead of trades.json")
	runID := flag.String("run", "", "Run ID to rebuild (default: most recent)")

	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)
	ctx := context.Background()

	var written []string
	var err error
	if *postgresDSN != "" {
		written, err = renderFromPostgres(ctx, *postgresDSN, *runID, *outDir)
	} else {
		written, err = renderFromDisk(*tradesPath, *outDir)
	}
	if err != nil {
		logger.Fatal(err)
	}

	fmt.Println("Report generated successfully:")
	for _, path := range written {
		fmt.Printf("  - %s\n", path)
	}
}

// renderFromDisk re-renders the markdown and CSV artifacts from an
// existing trades.json without touching any store.
func renderFromDisk(tradesPath, outDir string) ([]string, error) {
	doc, err := reporting.LoadTradesJSON(tradesPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", tradesPath, err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	markdownPath := filepath.Join(outDir, fmt.Sprintf("report_%s.md", doc.RunID))
	csvPath := filepath.Join(outDir, fmt.Sprintf("trades_%s.csv", doc.RunID))

	if err := os.WriteFile(markdownPath, []byte(reporting.RenderMarkdown(doc)), 0o644); err != nil {
		return nil, fmt.Errorf("write markdown report: %w", err)
	}
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(doc)), 0o644); err != nil {
		return nil, fmt.Errorf("write csv export: %w", err)
	}
	return []string{markdownPath, csvPath}, nil
}

// renderFromPostgres reloads a persisted run and regenerates the full
// artifact set, trades.json included.
func renderFromPostgres(ctx context.Context, dsn, runID, outDir string) ([]string, error) {
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("apply postgres migrations: %w", err)
	}

	runStore := pgstore.NewBacktestRunStore(pool)
	tradeStore := pgstore.NewTradeRecordStore(pool)

	var run *domain.RunRecord
	if runID != "" {
		run, err = runStore.GetByID(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("load run %s: %w", runID, err)
		}
	} else {
		recent, err := runStore.ListRecent(ctx, 1)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if len(recent) == 0 {
			return nil, fmt.Errorf("no runs stored; run a backtest first")
		}
		run = recent[0]
	}

	records, err := tradeStore.ListByRun(ctx, run.RunID)
	if err != nil {
		return nil, fmt.Errorf("load trades for run %s: %w", run.RunID, err)
	}

	results := rebuildResults(records)
	_, written, err := reporting.NewGenerator(outDir).Generate(run.RunID, results, run.Combined)
	if err != nil {
		return nil, err
	}
	return written, nil
}

// rebuildResults regroups flat trade records into per-instrument
// results, recomputing each instrument's statistics.
func rebuildResults(records []*domain.TradeRecord) []domain.BacktestResult {
	byCode := make(map[string][]domain.Trade)
	names := make(map[string]string)
	for _, rec := range records {
		byCode[rec.Code] = append(byCode[rec.Code], domain.Trade{
			Seq:       rec.Seq,
			Code:      rec.Code,
			Name:      rec.Name,
			BuyDate:   rec.BuyDate,
			BuyPrice:  rec.BuyPrice,
			SellDate:  rec.SellDate,
			SellPrice: rec.SellPrice,
			Shares:    rec.Shares,
			Profit:    rec.Profit,
			ProfitPct: rec.ProfitPct,
			Reason:    rec.Reason,
			HoldDays:  rec.HoldDays,
		})
		names[rec.Code] = rec.Name
	}

	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	results := make([]domain.BacktestResult, 0, len(codes))
	for _, code := range codes {
		trades := byCode[code]
		sort.Slice(trades, func(i, j int) bool { return trades[i].Seq < trades[j].Seq })
		results = append(results, domain.BacktestResult{
			Code:       code,
			Name:       names[code],
			Trades:     trades,
			Statistics: stats.Compute(trades, backtest.InitialCapital),
		})
	}
	return results
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
