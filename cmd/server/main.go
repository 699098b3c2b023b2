// Package main serves the browser UI and JSON API over the backtester:
// config editing, run triggering, trade history and a WebSocket
// progress feed.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"astock-backtest-lab/internal/config"
	"astock-backtest-lab/internal/dataprovider"
	"astock-backtest-lab/internal/storage"
	"astock-backtest-lab/internal/storage/memory"
	"astock-backtest-lab/internal/storage/migrations"
	pgstore "astock-backtest-lab/internal/storage/postgres"
	"astock-backtest-lab/internal/web"
)

func main() {
	loadEnvFile()

	addr := flag.String("addr", envOr("ASTOCK_ADDR", ":8080"), "HTTP listen address")
	configPath := flag.String("config", envOr("ASTOCK_CONFIG", "config.json"), "Run configuration file")
	dataDir := flag.String("data-dir", envOr("ASTOCK_DATA_DIR", "data"), "Kline CSV cache directory")
	reportDir := flag.String("report-dir", envOr("ASTOCK_REPORT_DIR", "output"), "Report artifact directory ('' disables)")
	workers := flag.Int("workers", 0, "Parallel instrument replays (0 = auto)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL DSN for run persistence (optional)")
	offline := flag.Bool("offline", false, "Serve cached bars regardless of age; synthesize uncached instruments")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load(*configPath)

	var source dataprovider.Source
	if *offline {
		source = dataprovider.NewStubSource(0)
	}
	loader := dataprovider.NewProvider(dataprovider.ProviderOptions{
		Source:      source,
		Cache:       dataprovider.NewCache(*dataDir),
		SaveOffline: cfg.SaveOfflineData && !*offline,
		Offline:     *offline,
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
		logger.Println("Persisting runs to PostgreSQL")
	} else {
		runStore = memory.NewBacktestRunStore()
		tradeStore = memory.NewTradeRecordStore()
	}

	srv := web.NewServer(web.Options{
		ConfigPath: *configPath,
		Loader:     loader,
		RunStore:   runStore,
		TradeStore: tradeStore,
		ReportDir:  *reportDir,
		Workers:    *workers,
		Logger:     logger,
	})

	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err := srv.Run(ctx, *addr)
	close(done)

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
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
