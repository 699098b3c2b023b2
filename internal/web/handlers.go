package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"astock-backtest-lab/internal/config"
	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/expr"
	"astock-backtest-lab/internal/lookup"
	"astock-backtest-lab/internal/orchestrator"
	"astock-backtest-lab/internal/reporting"
	"astock-backtest-lab/internal/strategy"
)

// ok replies HTTP 200 with success true plus the given payload keys.
func ok(c *gin.Context, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// fail replies HTTP 200 with success false. Logical errors ride the
// same status as successes so the page renders them inline.
func fail(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "error": msg})
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": s.now().Format(time.RFC3339)})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	ok(c, gin.H{"config": config.Load(s.opts.ConfigPath)})
}

func (s *Server) handleUpdateConfig(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		fail(c, "read request: "+err.Error())
		return
	}

	cfg, err := config.MergeWithDefaults(raw)
	if err != nil {
		fail(c, err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		fail(c, err.Error())
		return
	}
	if err := config.Save(cfg, s.opts.ConfigPath); err != nil {
		fail(c, "save config: "+err.Error())
		return
	}

	ok(c, gin.H{"message": "configuration saved"})
}

func (s *Server) handleBacktest(c *gin.Context) {
	if !s.beginRun() {
		fail(c, ErrRunInProgress.Error())
		return
	}
	defer s.endRun()

	cfg := config.Load(s.opts.ConfigPath)
	codes := cfg.InstrumentCodes()
	s.hub.Broadcast(Event{Type: "run-started", Total: len(codes)})

	orch := orchestrator.New(orchestrator.Options{
		Config:     cfg,
		Loader:     s.opts.Loader,
		RunStore:   s.opts.RunStore,
		TradeStore: s.opts.TradeStore,
		ReportDir:  s.opts.ReportDir,
		Workers:    s.opts.Workers,
		Logger:     s.logger,
		Now:        s.now,
		Progress: func(code string, done, total int) {
			s.hub.Broadcast(Event{Type: "progress", Code: code, Done: done, Total: total})
		},
	})

	summary, err := orch.Run(c.Request.Context())
	if err != nil {
		s.logger.Printf("backtest failed: %v", err)
		s.hub.Broadcast(Event{Type: "run-failed", Error: err.Error()})
		fail(c, err.Error())
		return
	}
	for _, warn := range summary.Errors {
		s.logger.Printf("backtest warning: %s", warn)
	}

	s.mu.Lock()
	s.last = summary.Document
	s.mu.Unlock()

	s.hub.Broadcast(Event{
		Type:  "run-finished",
		RunID: summary.RunID,
		Done:  len(summary.Results),
		Total: len(codes),
	})

	ok(c, gin.H{
		"run_id":              summary.RunID,
		"results":             summary.Document.Results,
		"combined_statistics": summary.Document.CombinedStatistics,
		"skipped":             summary.Skipped,
	})
}

func (s *Server) handleTrades(c *gin.Context) {
	s.mu.Lock()
	doc := s.last
	s.mu.Unlock()

	if doc == nil {
		if path := s.tradesFilePath(); path != "" {
			loaded, err := reporting.LoadTradesJSON(path)
			if err == nil {
				doc = loaded
			}
		}
	}
	if doc == nil {
		// Nothing recorded yet mirrors an empty history, not an error.
		ok(c, gin.H{
			"results":             []reporting.ResultJSON{},
			"combined_statistics": reporting.FromStatistics(domain.Statistics{}),
		})
		return
	}

	ok(c, gin.H{
		"run_id":              doc.RunID,
		"results":             doc.Results,
		"combined_statistics": doc.CombinedStatistics,
	})
}

// runJSON is one stored run in the /api/runs listing.
type runJSON struct {
	RunID           string                   `json:"run_id"`
	CreatedAt       string                   `json:"created_at"`
	InstrumentCount int                      `json:"instrument_count"`
	TradeCount      int                      `json:"trade_count"`
	Statistics      reporting.StatisticsJSON `json:"statistics"`
}

func (s *Server) handleRuns(c *gin.Context) {
	if s.opts.RunStore == nil {
		ok(c, gin.H{"runs": []runJSON{}})
		return
	}

	records, err := s.opts.RunStore.ListRecent(c.Request.Context(), 50)
	if err != nil {
		fail(c, "list runs: "+err.Error())
		return
	}

	runs := make([]runJSON, len(records))
	for i, r := range records {
		runs[i] = runJSON{
			RunID:           r.RunID,
			CreatedAt:       r.CreatedAt.UTC().Format(time.RFC3339),
			InstrumentCount: r.InstrumentCount,
			TradeCount:      r.TradeCount,
			Statistics:      reporting.FromStatistics(r.Combined),
		}
	}
	ok(c, gin.H{"runs": runs})
}

// explainRequest asks why the strategy would or would not buy one
// instrument, optionally as of a past date.
type explainRequest struct {
	StockCode string `json:"stock_code" binding:"required"`
	Date      string `json:"date"` // YYYY-MM-DD, empty means latest
}

type checkJSON struct {
	Name      string `json:"name"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
	Pass      bool   `json:"pass"`
}

type explanationJSON struct {
	Expression string      `json:"expression"`
	Expanded   string      `json:"expanded,omitempty"`
	Checks     []checkJSON `json:"checks"`
	Result     bool        `json:"result"`
}

func (s *Server) handleExplain(c *gin.Context) {
	var req explainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "stock_code is required")
		return
	}

	cfg := config.Load(s.opts.ConfigPath)
	strat, err := strategy.FromConfig(cfg.Strategy())
	if err != nil {
		fail(c, err.Error())
		return
	}

	snap, err := s.opts.Loader.LoadSnapshot(c.Request.Context(), req.StockCode)
	if err != nil {
		fail(c, "load "+req.StockCode+": "+err.Error())
		return
	}

	if req.Date != "" {
		cutoff, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			fail(c, "date must be YYYY-MM-DD")
			return
		}
		snap = &domain.Snapshot{
			Code:    snap.Code,
			Name:    snap.Name,
			Date:    cutoff,
			Daily:   lookup.TruncateTo(snap.Daily, cutoff),
			Weekly:  lookup.TruncateTo(snap.Weekly, cutoff),
			Monthly: lookup.TruncateTo(snap.Monthly, cutoff),
		}
		if snap.Daily == nil || len(snap.Daily.Bars) == 0 {
			fail(c, "no bars on or before "+req.Date)
			return
		}
	}

	kline, gate := strat.Explain(snap)

	ok(c, gin.H{
		"stock_code": snap.Code,
		"stock_name": snap.Name,
		"date":       lastBarDate(snap),
		"kline":      fromExplanation(kline),
		"day_gate":   fromCheck(gate),
		"would_buy":  kline.Result && gate.Pass,
	})
}

func lastBarDate(snap *domain.Snapshot) string {
	if snap.Daily == nil || len(snap.Daily.Bars) == 0 {
		return ""
	}
	return snap.Daily.Bars[len(snap.Daily.Bars)-1].Date.Format("2006-01-02")
}

func fromExplanation(e *expr.Explanation) explanationJSON {
	out := explanationJSON{
		Expression: e.Expression,
		Expanded:   e.Expanded,
		Checks:     make([]checkJSON, len(e.Checks)),
		Result:     e.Result,
	}
	for i, ch := range e.Checks {
		out.Checks[i] = fromCheck(ch)
	}
	return out
}

func fromCheck(ch expr.Check) checkJSON {
	return checkJSON{Name: ch.Name, Threshold: ch.Threshold, Actual: ch.Actual, Pass: ch.Pass}
}

// beginRun acquires the single-run latch.
func (s *Server) beginRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Server) endRun() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
