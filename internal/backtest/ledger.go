package backtest

import (
	"time"

	"astock-backtest-lab/internal/domain"
)

// InitialCapital is the fixed starting capital for every instrument run.
const InitialCapital = 1_000_000.0

// LotSize is the A-share round lot; orders are whole multiples of it.
const LotSize = 100

// Ledger tracks capital, the open position and realized trades for one
// instrument replay.
type Ledger struct {
	InitialCapital float64
	Capital        float64
	Position       *domain.Position
	Trades         []domain.Trade
}

// NewLedger creates a ledger holding the fixed initial capital.
func NewLedger() *Ledger {
	return &Ledger{
		InitialCapital: InitialCapital,
		Capital:        InitialCapital,
	}
}

// Holding reports whether a position is open.
func (l *Ledger) Holding() bool {
	return l.Position != nil
}

// Buy opens a position at the given price, spending as much capital as a
// whole number of round lots allows. Buying while holding, at a
// non-positive price, or with too little capital for one lot is a no-op.
func (l *Ledger) Buy(code, name string, date time.Time, price float64) bool {
	if l.Position != nil || price <= 0 {
		return false
	}
	shares := int(l.Capital/price/LotSize) * LotSize
	if shares <= 0 {
		return false
	}

	cost := float64(shares) * price
	l.Capital -= cost
	l.Position = &domain.Position{
		Code:      code,
		Name:      name,
		BuyDate:   date,
		BuyPrice:  price,
		Shares:    shares,
		Cost:      cost,
		PeakClose: price,
	}
	return true
}

// Sell closes the open position at the given price and appends the
// realized trade. Selling while flat is a no-op.
func (l *Ledger) Sell(date time.Time, price float64, reason domain.SellReason) bool {
	if l.Position == nil {
		return false
	}

	pos := l.Position
	revenue := float64(pos.Shares) * price
	l.Capital += revenue
	l.Trades = append(l.Trades, domain.Trade{
		Seq:       len(l.Trades) + 1,
		Code:      pos.Code,
		Name:      pos.Name,
		BuyDate:   pos.BuyDate,
		BuyPrice:  pos.BuyPrice,
		SellDate:  date,
		SellPrice: price,
		Shares:    pos.Shares,
		Profit:    revenue - pos.Cost,
		ProfitPct: (price - pos.BuyPrice) / pos.BuyPrice * 100,
		Reason:    reason,
		HoldDays:  domain.DaysBetween(pos.BuyDate, date),
	})
	l.Position = nil
	return true
}
