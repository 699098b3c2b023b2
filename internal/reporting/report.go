// Package reporting turns run output into artifacts: the trades.json
// document, a markdown report, and a CSV trade export.
package reporting

import (
	"math"
	"time"

	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/stats"
)

// Document is the root of trades.json and the wire form of run results.
// All prices, profits, and percentages are rounded to two decimals,
// average hold days to one.
type Document struct {
	RunID              string         `json:"run_id"`
	GeneratedAt        string         `json:"generated_at"` // RFC3339, UTC
	Results            []ResultJSON   `json:"results"`
	CombinedStatistics StatisticsJSON `json:"combined_statistics"`
}

// ResultJSON is one instrument's replay output.
type ResultJSON struct {
	StockCode  string         `json:"stock_code"`
	StockName  string         `json:"stock_name"`
	Trades     []TradeJSON    `json:"trades"`
	Statistics StatisticsJSON `json:"statistics"`
	Extended   ExtendedJSON   `json:"extended"`
}

// TradeJSON is one realized round trip.
type TradeJSON struct {
	StockCode string  `json:"stock_code"`
	StockName string  `json:"stock_name"`
	Seq       int     `json:"seq"`
	BuyDate   string  `json:"buy_date"`
	BuyPrice  float64 `json:"buy_price"`
	SellDate  string  `json:"sell_date"`
	SellPrice float64 `json:"sell_price"`
	Shares    int     `json:"shares"`
	Profit    float64 `json:"profit"`
	ProfitPct float64 `json:"profit_pct"`
	Reason    string  `json:"sell_reason"`
	HoldDays  int     `json:"hold_days"`
}

// StatisticsJSON is the aggregate reduction over a trade list.
type StatisticsJSON struct {
	TotalTrades    int     `json:"total_trades"`
	WinCount       int     `json:"win_count"`
	LossCount      int     `json:"loss_count"`
	WinRate        float64 `json:"win_rate"`
	TotalReturn    float64 `json:"total_return"`
	TotalReturnPct float64 `json:"total_return_pct"`
	FinalCapital   float64 `json:"final_capital"`
	AvgHoldDays    float64 `json:"avg_hold_days"`
}

// ExtendedJSON carries the extra per-instrument metrics.
type ExtendedJSON struct {
	MaxDrawdown          float64 `json:"max_drawdown"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	BestTrade            float64 `json:"best_trade"`
	WorstTrade           float64 `json:"worst_trade"`
	ProfitFactor         float64 `json:"profit_factor"`
}

// NewDocument converts run output into its wire form.
func NewDocument(runID string, generatedAt time.Time, results []domain.BacktestResult, combined domain.Statistics) *Document {
	doc := &Document{
		RunID:              runID,
		GeneratedAt:        generatedAt.UTC().Format(time.RFC3339),
		Results:            make([]ResultJSON, len(results)),
		CombinedStatistics: FromStatistics(combined),
	}
	for i, res := range results {
		doc.Results[i] = FromResult(res)
	}
	return doc
}

// FromResult converts one instrument's result.
func FromResult(res domain.BacktestResult) ResultJSON {
	out := ResultJSON{
		StockCode:  res.Code,
		StockName:  res.Name,
		Trades:     make([]TradeJSON, len(res.Trades)),
		Statistics: FromStatistics(res.Statistics),
		Extended:   fromExtended(stats.ComputeExtended(res.Trades)),
	}
	for i, tr := range res.Trades {
		out.Trades[i] = fromTrade(res.Code, res.Name, tr)
	}
	return out
}

// FromStatistics converts an aggregate block.
func FromStatistics(s domain.Statistics) StatisticsJSON {
	return StatisticsJSON{
		TotalTrades:    s.TotalTrades,
		WinCount:       s.WinCount,
		LossCount:      s.LossCount,
		WinRate:        round2(s.WinRate),
		TotalReturn:    round2(s.TotalReturn),
		TotalReturnPct: round2(s.TotalReturnPct),
		FinalCapital:   round2(s.FinalCapital),
		AvgHoldDays:    round1(s.AvgHoldDays),
	}
}

func fromTrade(code, name string, tr domain.Trade) TradeJSON {
	return TradeJSON{
		StockCode: code,
		StockName: name,
		Seq:       tr.Seq,
		BuyDate:   tr.BuyDate.Format("2006-01-02"),
		BuyPrice:  round2(tr.BuyPrice),
		SellDate:  tr.SellDate.Format("2006-01-02"),
		SellPrice: round2(tr.SellPrice),
		Shares:    tr.Shares,
		Profit:    round2(tr.Profit),
		ProfitPct: round2(tr.ProfitPct),
		Reason:    string(tr.Reason),
		HoldDays:  tr.HoldDays,
	}
}

func fromExtended(e stats.Extended) ExtendedJSON {
	return ExtendedJSON{
		MaxDrawdown:          round2(e.MaxDrawdown),
		MaxConsecutiveLosses: e.MaxConsecutiveLosses,
		BestTrade:            round2(e.BestTrade),
		WorstTrade:           round2(e.WorstTrade),
		ProfitFactor:         round2(e.ProfitFactor),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
