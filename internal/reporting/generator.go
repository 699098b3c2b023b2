package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"astock-backtest-lab/internal/domain"
)

// TradesFileName is the canonical latest-results artifact. The web layer
// reads it back for GET /api/trades when no run happened in-process.
const TradesFileName = "trades.json"

// Generator writes run artifacts into a target directory.
type Generator struct {
	dir string
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a generator writing into dir.
func NewGenerator(dir string) *Generator {
	return &Generator{
		dir: dir,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the document and writes trades.json plus the
// run-id-stamped markdown report and CSV export. Returns the document
// and the written paths.
func (g *Generator) Generate(runID string, results []domain.BacktestResult, combined domain.Statistics) (*Document, []string, error) {
	doc := NewDocument(runID, g.now(), results, combined)

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create report directory: %w", err)
	}

	tradesPath := filepath.Join(g.dir, TradesFileName)
	markdownPath := filepath.Join(g.dir, fmt.Sprintf("report_%s.md", runID))
	csvPath := filepath.Join(g.dir, fmt.Sprintf("trades_%s.csv", runID))

	if err := WriteTradesJSON(tradesPath, doc); err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(markdownPath, []byte(RenderMarkdown(doc)), 0o644); err != nil {
		return nil, nil, fmt.Errorf("write markdown report: %w", err)
	}
	if err := os.WriteFile(csvPath, []byte(RenderCSV(doc)), 0o644); err != nil {
		return nil, nil, fmt.Errorf("write csv export: %w", err)
	}

	return doc, []string{tradesPath, markdownPath, csvPath}, nil
}
