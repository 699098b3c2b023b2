// Package config loads, merges and validates the JSON run
// configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"astock-backtest-lab/internal/domain"
)

// DefaultPath is where Load looks when no path is given.
const DefaultPath = "config.json"

// Config mirrors the config.json schema. Key names, including the
// upper-case trade keys, are part of the on-disk contract.
type Config struct {
	SaveOfflineData bool          `json:"save_offline_data"`
	TargetStockCode string        `json:"target_stock_code" validate:"required"`
	BacktestYear    int           `json:"backtest_year" validate:"gt=0"`
	KlineStrategy   KlineStrategy `json:"kline_strategy"`
	TradeStrategy   TradeStrategy `json:"trade_strategy"`
}

// KlineStrategy holds the moving-average buy expression.
type KlineStrategy struct {
	Buy string `json:"buy"`
}

// TradeStrategy holds the day-of-buy gate and the sell thresholds.
type TradeStrategy struct {
	Buys string     `json:"BUYS"`
	Sell SellConfig `json:"SELL"`
}

// SellConfig holds exit thresholds. Trailing is optional; zero
// disables the trailing stop and keeps the key out of saved files.
type SellConfig struct {
	Gain     float64 `json:"GAIN" validate:"gt=0"`
	Loss     float64 `json:"LOSS" validate:"gt=0"`
	Period   int     `json:"PERIOD" validate:"gt=0"`
	Trailing float64 `json:"TRAILING,omitempty" validate:"gte=0"`
}

// Default returns a fresh default configuration. Every call allocates
// anew, so no caller can mutate another caller's defaults.
func Default() *Config {
	return &Config{
		SaveOfflineData: true,
		TargetStockCode: "000001",
		BacktestYear:    3,
		KlineStrategy: KlineStrategy{
			Buy: "(D5MA > D10MA) && (D10MA > D30MA)",
		},
		TradeStrategy: TradeStrategy{
			Buys: "DK < -2%",
			Sell: SellConfig{
				Gain:   5.0,
				Loss:   10.0,
				Period: 60,
			},
		},
	}
}

// MergeWithDefaults overlays the keys present in raw JSON onto a fresh
// default configuration and returns the result. Absent keys keep their
// default values, at every nesting level.
func MergeWithDefaults(raw []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the configuration at path. A missing file is created with
// the defaults; an unreadable or invalid file degrades to the defaults
// with a warning. Load never fails, validation is a separate step.
func Load(path string) *Config {
	if path == "" {
		path = DefaultPath
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			if err := Save(cfg, path); err != nil {
				log.Printf("[config] write default %s: %v", path, err)
			}
			return cfg
		}
		log.Printf("[config] read %s: %v, using defaults", path, err)
		return Default()
	}

	cfg, err := MergeWithDefaults(raw)
	if err != nil {
		log.Printf("[config] parse %s: %v, using defaults", path, err)
		return Default()
	}
	return cfg
}

// Save writes cfg to path as indented JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks cfg and reports every problem at once, joined with
// "; ". A nil return means the configuration can drive a run.
func Validate(cfg *Config) error {
	var problems []string

	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				problems = append(problems, describeFieldError(fe))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	if len(cfg.InstrumentCodes()) == 0 {
		problems = append(problems, "target_stock_code lists no instrument codes")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.StructField() {
	case "TargetStockCode":
		return "target_stock_code is required"
	case "BacktestYear":
		return "backtest_year must be a positive integer"
	case "Gain":
		return "trade_strategy.SELL.GAIN must be positive"
	case "Loss":
		return "trade_strategy.SELL.LOSS must be positive"
	case "Period":
		return "trade_strategy.SELL.PERIOD must be a positive integer"
	case "Trailing":
		return "trade_strategy.SELL.TRAILING must not be negative"
	default:
		return fmt.Sprintf("%s fails %s", fe.StructField(), fe.Tag())
	}
}

// InstrumentCodes splits the semicolon-separated code list, trimming
// whitespace and dropping empties.
func (c *Config) InstrumentCodes() []string {
	parts := strings.Split(c.TargetStockCode, ";")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if code := strings.TrimSpace(p); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

// Strategy produces the immutable strategy parameters for a run.
func (c *Config) Strategy() domain.StrategyConfig {
	return domain.StrategyConfig{
		KlineBuyExpression: c.KlineStrategy.Buy,
		DayBuyExpression:   c.TradeStrategy.Buys,
		GainPct:            c.TradeStrategy.Sell.Gain,
		LossPct:            c.TradeStrategy.Sell.Loss,
		HoldPeriodDays:     c.TradeStrategy.Sell.Period,
		TrailingStopPct:    c.TradeStrategy.Sell.Trailing,
	}
}
