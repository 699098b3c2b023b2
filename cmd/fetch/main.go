// Package main prefetches kline history into the CSV cache so later
// backtests can run offline, optionally archiving every bar to
// ClickHouse.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"astock-backtest-lab/internal/config"
	"astock-backtest-lab/internal/dataprovider"
	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/observability"
	"astock-backtest-lab/internal/storage"
	chstore "astock-backtest-lab/internal/storage/clickhouse"
	"astock-backtest-lab/internal/storage/migrations"
)

var granularityNames = map[string]domain.Granularity{
	"daily":   domain.GranularityDaily,
	"weekly":  domain.GranularityWeekly,
	"monthly": domain.GranularityMonthly,
}

func main() {
	loadEnvFile()

	configPath := flag.String("config", envOr("ASTOCK_CONFIG", "config.json"), "Run configuration file")
	dataDir := flag.String("data-dir", envOr("ASTOCK_DATA_DIR", "data"), "Kline CSV cache directory")
	codesFlag := flag.String("codes", "", "Instrument codes to fetch (semicolon separated, default from config)")
	granularitiesFlag := flag.String("granularities", "daily,weekly,monthly", "Granularities to fetch")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse DSN for the bar archive (optional)")
	stub := flag.Bool("stub", false, "Synthesize bars instead of fetching")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[fetch] ", log.LstdFlags)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	granularities, err := parseGranularities(*granularitiesFlag)
	if err != nil {
		logger.Fatalf("invalid --granularities: %v", err)
	}

	codes := resolveCodes(*codesFlag, *configPath)
	if len(codes) == 0 {
		logger.Fatal("no instrument codes; set --codes or target_stock_code in the config")
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

	var source dataprovider.Source = dataprovider.NewEastMoneySource()
	if *stub {
		source = dataprovider.NewStubSource(0)
	}
	cache := dataprovider.NewCache(*dataDir)

	var barStore storage.BarStore
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("prepare clickhouse: %v", err)
		}
		defer conn.Close()
		barStore = chstore.NewBarStore(conn)
		logger.Printf("Archiving bars to ClickHouse")
	}

	var fetched, failed, totalBars int
	for _, code := range codes {
		if ctx.Err() != nil {
			logger.Println("Cancelled")
			break
		}

		n, err := fetchInstrument(ctx, source, cache, barStore, code, granularities, logger)
		if err != nil {
			logger.Printf("%s: %v", code, err)
			failed++
			continue
		}
		fetched++
		totalBars += n
	}

	logger.Printf("Done: %d instruments fetched, %d failed, %d bars", fetched, failed, totalBars)
	if fetched == 0 {
		os.Exit(1)
	}
}

// fetchInstrument pulls every requested granularity for one code,
// caching and optionally archiving the bars. Daily failure fails the
// instrument; coarser granularities degrade to a warning because the
// provider can resample them later.
func fetchInstrument(ctx context.Context, source dataprovider.Source, cache *dataprovider.Cache,
	barStore storage.BarStore, code string, granularities []domain.Granularity, logger *log.Logger) (int, error) {

	total := 0
	for _, g := range granularities {
		start := time.Now()
		bars, err := source.FetchKline(ctx, code, g)
		observability.RecordFetchLatency(string(g), time.Since(start).Seconds())
		if err != nil {
			observability.RecordKlineFetch(string(g), "error")
			if g == domain.GranularityDaily {
				return 0, fmt.Errorf("fetch daily bars: %w", err)
			}
			logger.Printf("%s %s: fetch failed, will resample from daily: %v", code, g, err)
			continue
		}
		observability.RecordKlineFetch(string(g), "ok")

		if err := cache.Store(code, g, bars); err != nil {
			return 0, fmt.Errorf("cache %s bars: %w", g, err)
		}
		if barStore != nil {
			if err := barStore.InsertBars(ctx, code, g, bars); err != nil {
				return 0, fmt.Errorf("archive %s bars: %w", g, err)
			}
			observability.RecordBarsIngested(len(bars))
		}

		total += len(bars)
		logger.Printf("%s %s: %d bars (%s .. %s)", code, g, len(bars),
			bars[0].Date.Format("2006-01-02"), bars[len(bars)-1].Date.Format("2006-01-02"))
	}
	return total, nil
}

func parseGranularities(s string) ([]domain.Granularity, error) {
	var out []domain.Granularity
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		g, ok := granularityNames[part]
		if !ok {
			return nil, fmt.Errorf("unknown granularity %q", part)
		}
		out = append(out, g)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no granularities selected")
	}
	return out, nil
}

func resolveCodes(codesFlag, configPath string) []string {
	if codesFlag != "" {
		var codes []string
		for _, p := range strings.FieldsFunc(codesFlag, func(r rune) bool { return r == ';' || r == ',' }) {
			if code := strings.TrimSpace(p); code != "" {
				codes = append(codes, code)
			}
		}
		return codes
	}
	return config.Load(configPath).InstrumentCodes()
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
