// Package dataprovider retrieves and caches instrument kline data and
// assembles the prepared snapshots the backtest layers consume.
package dataprovider

import (
	"context"
	"errors"

	"astock-backtest-lab/internal/domain"
)

// Source errors
var (
	ErrNoData = errors.New("no kline rows returned")
)

// Source retrieves raw kline bars for one instrument.
type Source interface {
	// FetchKline returns the instrument's bars for one granularity, in
	// date order.
	FetchKline(ctx context.Context, code string, g domain.Granularity) ([]domain.Bar, error)

	// InstrumentName returns the instrument's display name.
	InstrumentName(ctx context.Context, code string) (string, error)
}
