// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Data metrics
	KlineFetches *prometheus.CounterVec
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	FetchLatency *prometheus.HistogramVec
	BarsIngested prometheus.Counter

	// Backtest metrics
	BacktestRunsTotal    *prometheus.CounterVec
	BacktestDuration     prometheus.Histogram
	InstrumentsProcessed prometheus.Counter
	InstrumentsSkipped   prometheus.Counter
	TradesSimulated      *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Web metrics
	HTTPRequestDuration *prometheus.HistogramVec
	ProgressClients     prometheus.Gauge

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "astock"
	}

	return &Metrics{
		// Data metrics
		KlineFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "kline_fetches_total",
			Help:      "Total number of kline fetches by granularity and outcome",
		}, []string{"granularity", "outcome"}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "cache_hits_total",
			Help:      "Total number of fresh offline cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "cache_misses_total",
			Help:      "Total number of offline cache misses or stale entries",
		}),
		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "fetch_latency_seconds",
			Help:      "Upstream kline fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"granularity"}),
		BarsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "bars_ingested_total",
			Help:      "Total number of bars written to the analytics archive",
		}),

		// Backtest metrics
		BacktestRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		BacktestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		InstrumentsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "instruments_processed_total",
			Help:      "Total number of instruments replayed",
		}),
		InstrumentsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "instruments_skipped_total",
			Help:      "Total number of instruments skipped because data loading failed",
		}),
		TradesSimulated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_simulated_total",
			Help:      "Total number of trades simulated by exit reason",
		}, []string{"reason"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Web metrics
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "web",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		ProgressClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "web",
			Name:      "progress_clients",
			Help:      "Number of connected progress WebSocket clients",
		}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful backtest run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordKlineFetch increments the fetch counter for one granularity.
func RecordKlineFetch(granularity, outcome string) {
	DefaultMetrics.KlineFetches.WithLabelValues(granularity, outcome).Inc()
}

// RecordCacheHit increments the fresh cache hit counter.
func RecordCacheHit() {
	DefaultMetrics.CacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	DefaultMetrics.CacheMisses.Inc()
}

// RecordFetchLatency records upstream fetch latency.
func RecordFetchLatency(granularity string, seconds float64) {
	DefaultMetrics.FetchLatency.WithLabelValues(granularity).Observe(seconds)
}

// RecordBarsIngested adds to the archive ingestion counter.
func RecordBarsIngested(n int) {
	DefaultMetrics.BarsIngested.Add(float64(n))
}

// RecordBacktestRun records a completed run and its duration.
func RecordBacktestRun(status string, durationSeconds float64) {
	DefaultMetrics.BacktestRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.BacktestDuration.Observe(durationSeconds)
}

// RecordInstrument counts one replayed or skipped instrument.
func RecordInstrument(skipped bool) {
	if skipped {
		DefaultMetrics.InstrumentsSkipped.Inc()
		return
	}
	DefaultMetrics.InstrumentsProcessed.Inc()
}

// RecordTradeSimulated counts one simulated trade by its exit reason.
func RecordTradeSimulated(reason string) {
	DefaultMetrics.TradesSimulated.WithLabelValues(reason).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, path, status string, seconds float64) {
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
}

// ProgressClientConnected adjusts the connected WebSocket client gauge.
func ProgressClientConnected(delta int) {
	DefaultMetrics.ProgressClients.Add(float64(delta))
}

// MarkSuccessfulRun stamps the last successful run gauge.
func MarkSuccessfulRun(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulRun.Set(float64(unixSeconds))
}
