package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/lookup"
)

// dayPattern matches the first kline comparison anywhere in the gate
// expression, e.g. "DK < -2%". The percent sign is optional.
var dayPattern = regexp.MustCompile(`([DWM]K)\s*([<>=!]+)\s*(-?\d+(?:\.\d+)?)\s*%?`)

// EvalDayGate reports whether the day-of-buy gate allows a purchase.
// An empty expression, or one without a recognizable comparison, allows
// every day. A recognized comparison blocks the purchase when its series
// is missing, when its operator is unknown, or when the latest percent
// change does not satisfy it.
func EvalDayGate(expression string, snap *domain.Snapshot) bool {
	pass, _ := dayGate(expression, snap)
	return pass
}

// ExplainDayGate evaluates the gate and reports the comparison it made.
func ExplainDayGate(expression string, snap *domain.Snapshot) Check {
	_, check := dayGate(expression, snap)
	return check
}

func dayGate(expression string, snap *domain.Snapshot) (bool, Check) {
	if strings.TrimSpace(expression) == "" {
		return true, Check{Name: "day gate", Threshold: "none", Actual: "empty expression", Pass: true}
	}
	m := dayPattern.FindStringSubmatch(expression)
	if m == nil {
		return true, Check{Name: "day gate", Threshold: "none", Actual: "no comparison found", Pass: true}
	}
	name := strings.TrimSpace(m[0])

	var g domain.Granularity
	switch m[1] {
	case "DK":
		g = domain.GranularityDaily
	case "WK":
		g = domain.GranularityWeekly
	case "MK":
		g = domain.GranularityMonthly
	}
	op := m[2]
	threshold, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return false, Check{Name: name, Threshold: op + " " + m[3], Actual: "bad threshold", Pass: false}
	}

	pct, err := lookup.LatestPctChange(snap.Series(g))
	if err != nil {
		return false, Check{
			Name:      name,
			Threshold: fmt.Sprintf("%s %s%%", op, m[3]),
			Actual:    "no " + string(g) + " data",
			Pass:      false,
		}
	}

	var pass bool
	switch op {
	case ">":
		pass = pct > threshold
	case "<":
		pass = pct < threshold
	case ">=":
		pass = pct >= threshold
	case "<=":
		pass = pct <= threshold
	case "==":
		pass = pct == threshold
	case "!=":
		pass = pct != threshold
	default:
		return false, Check{
			Name:      name,
			Threshold: fmt.Sprintf("%s %s%%", op, m[3]),
			Actual:    "unknown operator " + strconv.Quote(op),
			Pass:      false,
		}
	}
	return pass, Check{
		Name:      name,
		Threshold: fmt.Sprintf("%s %s%%", op, m[3]),
		Actual:    fmt.Sprintf("%.2f%%", pct),
		Pass:      pass,
	}
}
