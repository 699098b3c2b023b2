// Package expr compiles and evaluates the kline buy expressions and the
// day-of-buy gate used by the backtest strategies.
package expr

import (
	"fmt"
	"strconv"

	"astock-backtest-lab/internal/domain"
)

// CompareOp is a comparison operator between two operands.
type CompareOp string

// Comparison operators.
const (
	OpGT CompareOp = ">"
	OpLT CompareOp = "<"
	OpGE CompareOp = ">="
	OpLE CompareOp = "<="
	OpEQ CompareOp = "=="
	OpNE CompareOp = "!="
)

// LogicOp joins two boolean subtrees.
type LogicOp string

// Logical operators.
const (
	LogicAnd LogicOp = "&&"
	LogicOr  LogicOp = "||"
)

// Node is one node of a parsed expression tree.
type Node interface {
	node()
}

// Term references a moving-average value: granularity, window period and
// how many bars back from the evaluation date (0 = latest bar).
type Term struct {
	Gran   domain.Granularity
	Period int
	Offset int
}

// Number is a literal numeric operand.
type Number struct {
	Value float64
}

// Compare is a comparison between two operands (terms or numbers).
type Compare struct {
	Op   CompareOp
	L, R Node
}

// Logic is a conjunction or disjunction of two subtrees.
type Logic struct {
	Op   LogicOp
	L, R Node
}

// Not negates a subtree.
type Not struct {
	X Node
}

// Repeat is a group followed by a repetition count: (body) * N.
// Expand rewrites it into N shifted copies of the body joined by &&.
type Repeat struct {
	Body Node
	N    int
}

func (*Term) node()    {}
func (*Number) node()  {}
func (*Compare) node() {}
func (*Logic) node()   {}
func (*Not) node()     {}
func (*Repeat) node()  {}

// String renders the term in source form, e.g. "D5MA" or "W10MA-2".
func (t Term) String() string {
	var letter string
	switch t.Gran {
	case domain.GranularityDaily:
		letter = "D"
	case domain.GranularityWeekly:
		letter = "W"
	case domain.GranularityMonthly:
		letter = "M"
	}
	if t.Offset > 0 {
		return fmt.Sprintf("%s%dMA-%d", letter, t.Period, t.Offset)
	}
	return fmt.Sprintf("%s%dMA", letter, t.Period)
}

// Render writes the tree back out in source form.
func Render(n Node) string {
	switch v := n.(type) {
	case *Term:
		return v.String()
	case *Number:
		return strconv.FormatFloat(v.Value, 'g', -1, 64)
	case *Compare:
		return fmt.Sprintf("%s %s %s", Render(v.L), v.Op, Render(v.R))
	case *Logic:
		return fmt.Sprintf("(%s) %s (%s)", Render(v.L), v.Op, Render(v.R))
	case *Not:
		return fmt.Sprintf("!(%s)", Render(v.X))
	case *Repeat:
		return fmt.Sprintf("(%s) * %d", Render(v.Body), v.N)
	default:
		return ""
	}
}

// Terms returns the distinct terms of the tree in first-appearance order.
func Terms(n Node) []Term {
	var out []Term
	seen := make(map[Term]bool)
	collectTerms(n, seen, &out)
	return out
}

func collectTerms(n Node, seen map[Term]bool, out *[]Term) {
	switch v := n.(type) {
	case *Term:
		if !seen[*v] {
			seen[*v] = true
			*out = append(*out, *v)
		}
	case *Compare:
		collectTerms(v.L, seen, out)
		collectTerms(v.R, seen, out)
	case *Logic:
		collectTerms(v.L, seen, out)
		collectTerms(v.R, seen, out)
	case *Not:
		collectTerms(v.X, seen, out)
	case *Repeat:
		collectTerms(v.Body, seen, out)
	}
}
