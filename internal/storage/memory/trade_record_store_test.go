package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/storage"
)

func tradeRecord(tradeID, runID, code string, sellDate time.Time, seq int) *domain.TradeRecord {
	return &domain.TradeRecord{
		TradeID:   tradeID,
		RunID:     runID,
		Code:      code,
		Name:      "Test " + code,
		Seq:       seq,
		BuyDate:   sellDate.AddDate(0, 0, -10),
		BuyPrice:  10,
		SellDate:  sellDate,
		SellPrice: 10.5,
		Shares:    100000,
		Profit:    50000,
		ProfitPct: 5,
		Reason:    domain.SellReasonTakeProfit,
		HoldDays:  10,
	}
}

func TestTradeRecordStore_InsertAndGet(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	sell := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if err := store.Insert(ctx, tradeRecord("t1", "run1", "000001", sell, 1)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Profit != 50000 {
		t.Errorf("Profit mismatch: got %f, want 50000", got.Profit)
	}
	if got.Reason != domain.SellReasonTakeProfit {
		t.Errorf("Reason mismatch: got %s", got.Reason)
	}
}

func TestTradeRecordStore_DuplicateKey(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	tr := tradeRecord("t1", "run1", "000001", time.Now(), 1)
	if err := store.Insert(ctx, tr); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, tr)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeRecordStore_NotFound(t *testing.T) {
	store := NewTradeRecordStore()

	_, err := store.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTradeRecordStore_InsertBulk(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	trades := []*domain.TradeRecord{
		tradeRecord("t1", "run1", "000001", day, 1),
		tradeRecord("t2", "run1", "000001", day.AddDate(0, 0, 5), 2),
		tradeRecord("t3", "run1", "600519", day.AddDate(0, 0, 3), 1),
	}

	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.ListByRun(ctx, "run1")
	if err != nil {
		t.Fatalf("ListByRun failed: %v", err)
	}
	if len(result) != 3 {
		t.Errorf("Expected 3 trades, got %d", len(result))
	}
}

func TestTradeRecordStore_InsertBulk_IntraBatchDuplicate(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	day := time.Now()
	trades := []*domain.TradeRecord{
		tradeRecord("t1", "run1", "000001", day, 1),
		tradeRecord("t1", "run1", "000001", day, 2),
	}

	err := store.InsertBulk(ctx, trades)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// The batch must fail atomically, nothing inserted.
	if _, err := store.GetByID(ctx, "t1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected empty store after failed batch, got %v", err)
	}
}

func TestTradeRecordStore_ListByRun_SellDateOrder(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	trades := []*domain.TradeRecord{
		tradeRecord("t-late", "run1", "000001", day.AddDate(0, 0, 20), 3),
		tradeRecord("t-early", "run1", "000001", day, 1),
		tradeRecord("t-mid", "run1", "600519", day.AddDate(0, 0, 10), 1),
		tradeRecord("t-other-run", "run2", "000001", day, 1),
	}
	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.ListByRun(ctx, "run1")
	if err != nil {
		t.Fatalf("ListByRun failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 trades for run1, got %d", len(result))
	}
	want := []string{"t-early", "t-mid", "t-late"}
	for i, id := range want {
		if result[i].TradeID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, result[i].TradeID)
		}
	}
}

func TestTradeRecordStore_ListByRun_SameDayOrderedBySeq(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	trades := []*domain.TradeRecord{
		tradeRecord("t-second", "run1", "600519", day, 2),
		tradeRecord("t-first", "run1", "000001", day, 1),
	}
	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.ListByRun(ctx, "run1")
	if err != nil {
		t.Fatalf("ListByRun failed: %v", err)
	}
	if result[0].TradeID != "t-first" || result[1].TradeID != "t-second" {
		t.Errorf("Expected seq order within a day, got %s then %s", result[0].TradeID, result[1].TradeID)
	}
}

func TestTradeRecordStore_ListRecentByInstrument(t *testing.T) {
	store := NewTradeRecordStore()
	ctx := context.Background()

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	trades := []*domain.TradeRecord{
		tradeRecord("t1", "run1", "000001", day, 1),
		tradeRecord("t2", "run2", "000001", day.AddDate(0, 0, 30), 1),
		tradeRecord("t3", "run3", "000001", day.AddDate(0, 0, 60), 1),
		tradeRecord("t4", "run1", "600519", day.AddDate(0, 0, 90), 2),
	}
	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.ListRecentByInstrument(ctx, "000001", 2)
	if err != nil {
		t.Fatalf("ListRecentByInstrument failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 trades, got %d", len(result))
	}
	if result[0].TradeID != "t3" || result[1].TradeID != "t2" {
		t.Errorf("Expected newest first across runs, got %s then %s", result[0].TradeID, result[1].TradeID)
	}
}
