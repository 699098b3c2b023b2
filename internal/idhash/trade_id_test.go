package idhash

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTradeID(t *testing.T) {
	tests := []struct {
		name     string
		runID    string
		code     string
		buyDate  time.Time
		sellDate time.Time
		seq      int
		wantLen  int // hash length should be 64
	}{
		{
			name:     "take profit trade",
			runID:    "3QJmnh2rB9d",
			code:     "000001",
			buyDate:  date(2024, 1, 2),
			sellDate: date(2024, 1, 15),
			seq:      1,
			wantLen:  64,
		},
		{
			name:     "same day forced close",
			runID:    "3QJmnh2rB9d",
			code:     "600519",
			buyDate:  date(2024, 3, 8),
			sellDate: date(2024, 3, 8),
			seq:      7,
			wantLen:  64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TradeID(tt.runID, tt.code, tt.buyDate, tt.sellDate, tt.seq)

			if len(got) != tt.wantLen {
				t.Errorf("TradeID() length = %d, want %d", len(got), tt.wantLen)
			}

			got2 := TradeID(tt.runID, tt.code, tt.buyDate, tt.sellDate, tt.seq)
			if got != got2 {
				t.Errorf("TradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestTradeID_DifferentInputs(t *testing.T) {
	buy := date(2024, 1, 2)
	sell := date(2024, 1, 15)
	base := TradeID("run", "000001", buy, sell, 1)

	if base == TradeID("other", "000001", buy, sell, 1) {
		t.Error("different run should produce different hash")
	}
	if base == TradeID("run", "600519", buy, sell, 1) {
		t.Error("different code should produce different hash")
	}
	if base == TradeID("run", "000001", buy.AddDate(0, 0, 1), sell, 1) {
		t.Error("different buy date should produce different hash")
	}
	if base == TradeID("run", "000001", buy, sell.AddDate(0, 0, 1), 1) {
		t.Error("different sell date should produce different hash")
	}
	if base == TradeID("run", "000001", buy, sell, 2) {
		t.Error("different seq should produce different hash")
	}
}
