package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const insertTradeRecordSQL = `
	INSERT INTO trade_records (
		trade_id, run_id, code, name, seq,
		buy_date, buy_price, sell_date, sell_price,
		shares, profit, profit_pct, reason, hold_days
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9,
		$10, $11, $12, $13, $14
	)
`

const selectTradeRecordSQL = `
	SELECT
		trade_id, run_id, code, name, seq,
		buy_date, buy_price, sell_date, sell_price,
		shares, profit, profit_pct, reason, hold_days
	FROM trade_records
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTradeRecordSQL,
		t.TradeID, t.RunID, t.Code, t.Name, t.Seq,
		t.BuyDate, t.BuyPrice, t.SellDate, t.SellPrice,
		t.Shares, t.Profit, t.ProfitPct, t.Reason, t.HoldDays,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeRecordStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}

		_, err := tx.Exec(ctx, insertTradeRecordSQL,
			t.TradeID, t.RunID, t.Code, t.Name, t.Seq,
			t.BuyDate, t.BuyPrice, t.SellDate, t.SellPrice,
			t.Shares, t.Profit, t.ProfitPct, t.Reason, t.HoldDays,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error) {
	query := selectTradeRecordSQL + `WHERE trade_id = $1`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTradeRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return t, nil
}

// ListByRun retrieves all trades of a run ordered by sell date, then seq.
func (s *TradeRecordStore) ListByRun(ctx context.Context, runID string) ([]*domain.TradeRecord, error) {
	query := selectTradeRecordSQL + `
		WHERE run_id = $1
		ORDER BY sell_date ASC, seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list trade records by run: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// ListRecentByInstrument retrieves the most recent trades of one instrument
// across runs, newest sell date first.
func (s *TradeRecordStore) ListRecentByInstrument(ctx context.Context, code string, limit int) ([]*domain.TradeRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := selectTradeRecordSQL + `
		WHERE code = $1
		ORDER BY sell_date DESC, seq DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, code, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent trade records by instrument: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// scanTradeRecord scans a single row into a TradeRecord.
func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var t domain.TradeRecord

	err := row.Scan(
		&t.TradeID, &t.RunID, &t.Code, &t.Name, &t.Seq,
		&t.BuyDate, &t.BuyPrice, &t.SellDate, &t.SellPrice,
		&t.Shares, &t.Profit, &t.ProfitPct, &t.Reason, &t.HoldDays,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// scanTradeRecords scans multiple rows into a slice of TradeRecord.
func scanTradeRecords(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord

	for rows.Next() {
		t, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}

	return trades, nil
}
