// Package web serves the HTTP API and the single-page UI. The JSON
// contract is flat success/error envelopes: logical failures reply
// HTTP 200 with {"success": false, "error": ...} so the page can
// render them inline.
package web

import (
	"context"
	_ "embed"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"astock-backtest-lab/internal/dataprovider"
	"astock-backtest-lab/internal/observability"
	"astock-backtest-lab/internal/reporting"
	"astock-backtest-lab/internal/storage"
)

//go:embed index.html
var indexHTML []byte

// ErrRunInProgress is replied when a backtest is already executing.
var ErrRunInProgress = errors.New("backtest already running")

// Options configures a Server.
type Options struct {
	// ConfigPath is the JSON config file read and written by the
	// config endpoints and loaded for each run. Required.
	ConfigPath string

	// Loader produces instrument snapshots for runs. Required.
	Loader dataprovider.Loader

	// RunStore and TradeStore persist runs when non-nil.
	RunStore   storage.BacktestRunStore
	TradeStore storage.TradeRecordStore

	// ReportDir receives trades.json and report artifacts. When empty
	// runs are kept in memory only.
	ReportDir string

	// Workers bounds replay parallelism; <= 0 uses the runner default.
	Workers int

	Logger *log.Logger
	Now    func() time.Time
}

// Server is the HTTP API plus the progress WebSocket hub.
type Server struct {
	opts   Options
	logger *log.Logger
	now    func() time.Time
	engine *gin.Engine
	hub    *Hub

	// mu guards the single-run latch and the last document cache.
	mu      sync.Mutex
	running bool
	last    *reporting.Document
}

// NewServer wires routes and the hub. Call Run to serve.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	s := &Server{
		opts:   opts,
		logger: logger,
		now:    now,
		hub:    NewHub(logger),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), metricsMiddleware())
	s.registerRoutes(engine)
	s.engine = engine

	return s
}

func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/", s.handleIndex)
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/metrics", gin.WrapH(observability.Handler()))
	engine.GET("/ws/progress", gin.WrapF(s.hub.ServeWS))

	api := engine.Group("/api")
	{
		api.GET("/config", s.handleGetConfig)
		api.POST("/config", s.handleUpdateConfig)
		api.POST("/backtest", s.handleBacktest)
		api.GET("/trades", s.handleTrades)
		api.GET("/runs", s.handleRuns)
		api.POST("/explain", s.handleExplain)
	}
}

// Handler exposes the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves addr until the context is cancelled, then drains with a
// ten second grace period. The hub dispatch loop shares the lifetime.
func (s *Server) Run(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

// tradesFilePath is where the last run's document lands on disk.
func (s *Server) tradesFilePath() string {
	if s.opts.ReportDir == "" {
		return ""
	}
	return filepath.Join(s.opts.ReportDir, reporting.TradesFileName)
}

// metricsMiddleware records request counts and latency per route.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		observability.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}
