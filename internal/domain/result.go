package domain

import "time"

// Statistics is the aggregate reduction over a trade list.
// Zero trades leaves every field zero; no division is performed.
type Statistics struct {
	TotalTrades    int
	WinCount       int     // trades with Profit > 0
	LossCount      int     // trades with Profit <= 0
	WinRate        float64 // WinCount / TotalTrades * 100
	TotalReturn    float64 // sum of Profit
	TotalReturnPct float64 // TotalReturn / initial capital * 100
	FinalCapital   float64 // initial capital + TotalReturn
	AvgHoldDays    float64 // mean HoldDays
}

// BacktestResult is one instrument's completed replay output.
// Created fresh per run, never mutated after return.
type BacktestResult struct {
	Code       string
	Name       string
	Trades     []Trade
	Statistics Statistics
}

// RunRecord summarizes one multi-instrument backtest run for persistence.
// Corresponds to the backtest_runs table in PostgreSQL.
type RunRecord struct {
	RunID           string // deterministic base58 hash
	CreatedAt       time.Time
	ConfigJSON      string // configuration the run executed with
	InstrumentCount int
	TradeCount      int
	Combined        Statistics
}
