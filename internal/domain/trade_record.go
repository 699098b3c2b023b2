package domain

import "time"

// TradeRecord is the persisted form of one realized trade, keyed by a
// deterministic TradeID within its run. Corresponds to the
// trade_records table in PostgreSQL.
type TradeRecord struct {
	TradeID   string
	RunID     string
	Code      string
	Name      string
	Seq       int
	BuyDate   time.Time
	BuyPrice  float64
	SellDate  time.Time
	SellPrice float64
	Shares    int
	Profit    float64
	ProfitPct float64
	Reason    SellReason
	HoldDays  int
}
