package series

import (
	"fmt"
	"math"

	"astock-backtest-lab/internal/domain"
)

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult bundles the checks for one series.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
}

// CheckSufficiency reports whether a prepared series has any bars and
// enough history to warm up the longest rolling-mean window. The result
// is informational: callers log failures and continue, since evaluation
// degrades to "no signal" on thin history rather than erroring.
func CheckSufficiency(s *domain.Series, periods []int) *SufficiencyResult {
	result := &SufficiencyResult{AllPass: true}

	barCount := 0
	if s != nil {
		barCount = len(s.Bars)
	}

	nonEmpty := SufficiencyCheck{
		Name:      "Series has bars",
		Threshold: ">= 1",
		Actual:    fmt.Sprintf("%d", barCount),
		Pass:      barCount >= 1,
	}
	result.Checks = append(result.Checks, nonEmpty)
	if !nonEmpty.Pass {
		result.AllPass = false
	}

	longest := 0
	for _, p := range periods {
		if p > longest {
			longest = p
		}
	}
	if longest > 0 {
		warmup := SufficiencyCheck{
			Name:      "Longest window warmed up",
			Threshold: fmt.Sprintf(">= %d bars", longest),
			Actual:    fmt.Sprintf("%d bars", barCount),
			Pass:      barCount >= longest,
		}
		if warmup.Pass && s != nil {
			// The column must actually have a defined value at the end.
			if col, ok := s.MovingAverages[longest]; ok && len(col) > 0 && math.IsNaN(col[len(col)-1]) {
				warmup.Pass = false
				warmup.Actual += " (tail not warmed up)"
			}
		}
		result.Checks = append(result.Checks, warmup)
		if !warmup.Pass {
			result.AllPass = false
		}
	}

	return result
}
