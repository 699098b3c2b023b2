package domain

import "time"

// SellReason labels the exit rule that closed a position.
type SellReason string

// Sell reason codes.
const (
	SellReasonTakeProfit   SellReason = "take-profit"
	SellReasonStopLoss     SellReason = "stop-loss"
	SellReasonTrailingStop SellReason = "trailing-stop"
	SellReasonExpired      SellReason = "expired"
	SellReasonBacktestEnd  SellReason = "backtest-end"
)

// DaysBetween counts whole calendar days from a to b. Bar dates carry no
// time of day, so the division is exact.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// Position is the single open holding of one instrument during a replay.
// At most one exists per instrument at any time; a buy while holding is
// a no-op. Created by a buy execution, destroyed by a sell execution.
type Position struct {
	Code      string
	Name      string
	BuyDate   time.Time
	BuyPrice  float64
	Shares    int
	Cost      float64 // Shares * BuyPrice at entry
	PeakClose float64 // highest close seen since entry
}

// Trade is one realized round trip. Append-only once created; trades are
// appended at sell time, so a ledger's trade list is ordered by sell date.
type Trade struct {
	Seq       int // 1-based sequence within one instrument's run
	Code      string
	Name      string
	BuyDate   time.Time
	BuyPrice  float64
	SellDate  time.Time
	SellPrice float64
	Shares    int
	Profit    float64 // Shares*SellPrice - Cost, exact
	ProfitPct float64 // (SellPrice - BuyPrice) / BuyPrice * 100
	Reason    SellReason
	HoldDays  int // calendar days between buy and sell
}
