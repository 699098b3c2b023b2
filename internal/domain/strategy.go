package domain

// StrategyConfig holds the rule parameters for one backtest run.
// Immutable for the duration of the run.
type StrategyConfig struct {
	// KlineBuyExpression is the boolean temporal entry trigger, e.g.
	// "(D5MA > D10MA) && (D10MA > D30MA)". Empty imposes no constraint.
	KlineBuyExpression string

	// DayBuyExpression is the percentage-change day gate, e.g. "DK < -2%".
	// Empty imposes no constraint.
	DayBuyExpression string

	GainPct        float64 // take-profit threshold, percent
	LossPct        float64 // stop-loss threshold, percent (positive number)
	HoldPeriodDays int     // max hold in calendar days

	// TrailingStopPct closes when the close falls this far, in percent,
	// below the peak close since entry. Zero disables the rule.
	TrailingStopPct float64
}
