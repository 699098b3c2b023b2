package storage

import (
	"context"

	"astock-backtest-lab/internal/domain"
)

// BacktestRunStore provides access to backtest_runs storage.
type BacktestRunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// ListRecent retrieves up to limit runs, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.RunRecord, error)
}

// TradeRecordStore provides access to trade_records storage.
type TradeRecordStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// ListByRun retrieves all trades of a run, ordered by sell date then seq.
	ListByRun(ctx context.Context, runID string) ([]*domain.TradeRecord, error)

	// ListRecentByInstrument retrieves up to limit trades for an
	// instrument across runs, newest sell date first.
	ListRecentByInstrument(ctx context.Context, code string, limit int) ([]*domain.TradeRecord, error)
}

// BarStore provides access to the kline analytics sink.
type BarStore interface {
	// InsertBars appends prepared bars for one instrument and granularity.
	InsertBars(ctx context.Context, code string, g domain.Granularity, bars []domain.Bar) error

	// ListBars retrieves stored bars for one instrument and granularity,
	// ordered by date ascending.
	ListBars(ctx context.Context, code string, g domain.Granularity) ([]domain.Bar, error)

	// CountBars reports the stored bar count for one instrument.
	CountBars(ctx context.Context, code string) (uint64, error)
}
