package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault_FreshValuePerCall(t *testing.T) {
	a := Default()
	b := Default()

	a.TargetStockCode = "600519"
	a.TradeStrategy.Sell.Gain = 99

	if b.TargetStockCode != "000001" {
		t.Errorf("mutating one default leaked into another: %s", b.TargetStockCode)
	}
	if b.TradeStrategy.Sell.Gain != 5.0 {
		t.Errorf("mutating nested default leaked: %v", b.TradeStrategy.Sell.Gain)
	}
}

func TestLoad_MissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Load(path)
	if cfg.TargetStockCode != "000001" {
		t.Errorf("expected default code, got %s", cfg.TargetStockCode)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected defaults written to %s: %v", path, err)
	}
	if !strings.Contains(string(raw), "save_offline_data") {
		t.Errorf("written defaults missing expected keys: %s", raw)
	}
	if strings.Contains(string(raw), "TRAILING") {
		t.Errorf("zero trailing threshold must stay out of the file: %s", raw)
	}
}

func TestLoad_PartialFileMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	partial := `{
  "backtest_year": 5,
  "trade_strategy": {"SELL": {"GAIN": 7.5}}
}`
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := Load(path)
	if cfg.BacktestYear != 5 {
		t.Errorf("expected backtest_year 5, got %d", cfg.BacktestYear)
	}
	if cfg.TradeStrategy.Sell.Gain != 7.5 {
		t.Errorf("expected GAIN 7.5, got %v", cfg.TradeStrategy.Sell.Gain)
	}
	// Untouched keys keep their defaults, at every nesting level.
	if cfg.TradeStrategy.Sell.Loss != 10.0 {
		t.Errorf("expected default LOSS 10.0, got %v", cfg.TradeStrategy.Sell.Loss)
	}
	if cfg.TradeStrategy.Sell.Period != 60 {
		t.Errorf("expected default PERIOD 60, got %d", cfg.TradeStrategy.Sell.Period)
	}
	if cfg.KlineStrategy.Buy != "(D5MA > D10MA) && (D10MA > D30MA)" {
		t.Errorf("expected default kline buy, got %s", cfg.KlineStrategy.Buy)
	}
	if !cfg.SaveOfflineData {
		t.Error("expected default save_offline_data true")
	}
}

func TestLoad_InvalidJSONFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := Load(path)
	if cfg.TargetStockCode != "000001" || cfg.BacktestYear != 3 {
		t.Errorf("expected defaults for invalid file, got %+v", cfg)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.TargetStockCode = "000001;600519"
	cfg.TradeStrategy.Sell.Trailing = 8

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := Load(path)
	if loaded.TargetStockCode != "000001;600519" {
		t.Errorf("expected code list to round trip, got %s", loaded.TargetStockCode)
	}
	if loaded.TradeStrategy.Sell.Trailing != 8 {
		t.Errorf("expected TRAILING 8, got %v", loaded.TradeStrategy.Sell.Trailing)
	}
}

func TestValidate_DefaultsPass(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.TargetStockCode = " ; ; "
	cfg.BacktestYear = 0
	cfg.TradeStrategy.Sell.Gain = -1
	cfg.TradeStrategy.Sell.Loss = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation failure")
	}

	msg := err.Error()
	for _, want := range []string{
		"backtest_year must be a positive integer",
		"trade_strategy.SELL.GAIN must be positive",
		"trade_strategy.SELL.LOSS must be positive",
		"target_stock_code lists no instrument codes",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
	if !strings.Contains(msg, "; ") {
		t.Errorf("expected problems joined with semicolons: %q", msg)
	}
}

func TestValidate_NegativeTrailing(t *testing.T) {
	cfg := Default()
	cfg.TradeStrategy.Sell.Trailing = -2

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "TRAILING") {
		t.Errorf("expected trailing validation error, got %v", err)
	}
}

func TestInstrumentCodes(t *testing.T) {
	cfg := Default()
	cfg.TargetStockCode = " 000001;600519 ; ;000858"

	got := cfg.InstrumentCodes()
	want := []string{"000001", "600519", "000858"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("code %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestStrategy_MapsEveryField(t *testing.T) {
	cfg := Default()
	cfg.TradeStrategy.Sell.Trailing = 8

	sc := cfg.Strategy()
	if sc.KlineBuyExpression != cfg.KlineStrategy.Buy {
		t.Errorf("kline expression not mapped: %s", sc.KlineBuyExpression)
	}
	if sc.DayBuyExpression != "DK < -2%" {
		t.Errorf("day gate not mapped: %s", sc.DayBuyExpression)
	}
	if sc.GainPct != 5.0 || sc.LossPct != 10.0 || sc.HoldPeriodDays != 60 {
		t.Errorf("sell thresholds not mapped: %+v", sc)
	}
	if sc.TrailingStopPct != 8 {
		t.Errorf("trailing threshold not mapped: %v", sc.TrailingStopPct)
	}
}
