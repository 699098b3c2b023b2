package idhash

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"astock-backtest-lab/internal/domain"
)

// RunID computes a deterministic run identifier.
// Formula: SHA256(codes|kline|day_gate|gain|loss|period|trailing|started_at)
// encoded as base58 and truncated to 11 characters, so the id is safe
// in URLs and report file names.
func RunID(codes []string, sc domain.StrategyConfig, startedAt time.Time) string {
	data := fmt.Sprintf("%s|%s|%s|%g|%g|%d|%g|%d",
		strings.Join(codes, ";"),
		sc.KlineBuyExpression,
		sc.DayBuyExpression,
		sc.GainPct,
		sc.LossPct,
		sc.HoldPeriodDays,
		sc.TrailingStopPct,
		startedAt.Unix(),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])[:11]
}
