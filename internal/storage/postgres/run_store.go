package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/storage"
)

// BacktestRunStore implements storage.BacktestRunStore using PostgreSQL.
type BacktestRunStore struct {
	pool *Pool
}

// NewBacktestRunStore creates a new BacktestRunStore.
func NewBacktestRunStore(pool *Pool) *BacktestRunStore {
	return &BacktestRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO backtest_runs (
			run_id, created_at, config_json, instrument_count, trade_count,
			total_trades, win_count, loss_count, win_rate,
			total_return, total_return_pct, final_capital, avg_hold_days
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.CreatedAt, r.ConfigJSON, r.InstrumentCount, r.TradeCount,
		r.Combined.TotalTrades, r.Combined.WinCount, r.Combined.LossCount, r.Combined.WinRate,
		r.Combined.TotalReturn, r.Combined.TotalReturnPct, r.Combined.FinalCapital, r.Combined.AvgHoldDays,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	query := `
		SELECT
			run_id, created_at, config_json, instrument_count, trade_count,
			total_trades, win_count, loss_count, win_rate,
			total_return, total_return_pct, final_capital, avg_hold_days
		FROM backtest_runs
		WHERE run_id = $1
	`

	row := s.pool.QueryRow(ctx, query, runID)
	r, err := scanRunRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by id: %w", err)
	}
	return r, nil
}

// ListRecent retrieves the most recent runs, newest first.
func (s *BacktestRunStore) ListRecent(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT
			run_id, created_at, config_json, instrument_count, trade_count,
			total_trades, win_count, loss_count, win_rate,
			total_return, total_return_pct, final_capital, avg_hold_days
		FROM backtest_runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.RunRecord
	for rows.Next() {
		r, err := scanRunRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}
	return runs, nil
}

// scanRunRecord scans a single row into a RunRecord.
func scanRunRecord(row pgx.Row) (*domain.RunRecord, error) {
	var r domain.RunRecord

	err := row.Scan(
		&r.RunID, &r.CreatedAt, &r.ConfigJSON, &r.InstrumentCount, &r.TradeCount,
		&r.Combined.TotalTrades, &r.Combined.WinCount, &r.Combined.LossCount, &r.Combined.WinRate,
		&r.Combined.TotalReturn, &r.Combined.TotalReturnPct, &r.Combined.FinalCapital, &r.Combined.AvgHoldDays,
	)
	if err != nil {
		return nil, err
	}

	return &r, nil
}
