package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// TradeID computes a deterministic trade identifier.
// Formula: SHA256(run_id|code|buy_date|sell_date|seq)
// Returns hex-encoded hash (64 characters). Replaying identical inputs
// yields the identical id, so persistence can upsert safely.
func TradeID(runID, code string, buyDate, sellDate time.Time, seq int) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		runID,
		code,
		buyDate.Format("2006-01-02"),
		sellDate.Format("2006-01-02"),
		seq,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
