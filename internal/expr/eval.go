package expr

import (
	"strings"

	"astock-backtest-lab/internal/domain"
	"astock-backtest-lab/internal/lookup"
)

// Resolver supplies moving-average values for terms during evaluation.
type Resolver interface {
	Resolve(t Term) (float64, error)
}

// SnapshotResolver resolves terms against the prepared series of one
// instrument snapshot.
type SnapshotResolver struct {
	Snapshot *domain.Snapshot
}

var _ Resolver = (*SnapshotResolver)(nil)

// Resolve looks up the term's moving average in the snapshot.
func (r *SnapshotResolver) Resolve(t Term) (float64, error) {
	return lookup.MAAt(r.Snapshot.Series(t.Gran), t.Period, t.Offset)
}

// Program is a compiled buy expression. Compiling once and evaluating
// per trading day avoids re-parsing inside the backtest loop.
type Program struct {
	Source string

	tokens   []token
	tree     Node // expanded; nil when empty or when parsing failed
	terms    []Term
	lexErr   error
	parseErr error
}

// Compile lexes, parses and expands the expression. Malformed input does
// not fail compilation: the error is recorded and Eval applies the
// documented fallback behavior.
func Compile(source string) *Program {
	p := &Program{Source: source}
	if strings.TrimSpace(source) == "" {
		return p
	}
	toks, err := lex(source)
	if err != nil {
		p.lexErr = err
		return p
	}
	p.tokens = toks
	tree, err := parse(toks)
	if err != nil {
		p.parseErr = err
		p.terms = termsFromTokens(toks)
		return p
	}
	p.tree = Expand(tree)
	p.terms = Terms(p.tree)
	return p
}

// Empty reports whether the source contains no expression at all.
func (p *Program) Empty() bool {
	return strings.TrimSpace(p.Source) == ""
}

// Err returns the lex or parse error recorded at compile time, if any.
func (p *Program) Err() error {
	if p.lexErr != nil {
		return p.lexErr
	}
	return p.parseErr
}

// Terms returns the distinct terms the program needs resolved.
func (p *Program) Terms() []Term {
	return p.terms
}

// Eval decides whether the expression holds:
//
//  1. An empty expression holds for every snapshot.
//  2. An expression that cannot be tokenized holds as well.
//  3. If any referenced term cannot be resolved, the expression fails.
//  4. After all terms resolved, an expression that did not parse holds.
//  5. Otherwise the expanded tree is evaluated.
//
// Step 3 runs before step 4 so that a malformed expression still demands
// real data for every term it mentions.
func (p *Program) Eval(r Resolver) bool {
	if p.Empty() || p.lexErr != nil {
		return true
	}
	vals := make(map[Term]float64, len(p.terms))
	for _, t := range p.terms {
		v, err := r.Resolve(t)
		if err != nil {
			return false
		}
		vals[t] = v
	}
	if p.parseErr != nil {
		return true
	}
	return evalNode(p.tree, vals)
}

// EvalKline compiles and evaluates the expression in one step.
func EvalKline(expression string, r Resolver) bool {
	return Compile(expression).Eval(r)
}

func evalNode(n Node, vals map[Term]float64) bool {
	switch v := n.(type) {
	case *Logic:
		if v.Op == LogicAnd {
			return evalNode(v.L, vals) && evalNode(v.R, vals)
		}
		return evalNode(v.L, vals) || evalNode(v.R, vals)
	case *Not:
		return !evalNode(v.X, vals)
	case *Compare:
		return compare(v.Op, operandValue(v.L, vals), operandValue(v.R, vals))
	default:
		return false
	}
}

func operandValue(n Node, vals map[Term]float64) float64 {
	switch v := n.(type) {
	case *Term:
		return vals[*v]
	case *Number:
		return v.Value
	}
	return 0
}

func compare(op CompareOp, l, r float64) bool {
	switch op {
	case OpGT:
		return l > r
	case OpLT:
		return l < r
	case OpGE:
		return l >= r
	case OpLE:
		return l <= r
	case OpEQ:
		return l == r
	case OpNE:
		return l != r
	default:
		return false
	}
}

// termsFromTokens recovers the distinct terms directly from the token
// stream when no tree is available.
func termsFromTokens(toks []token) []Term {
	var out []Term
	seen := make(map[Term]bool)
	for _, tok := range toks {
		if tok.kind != tokenTerm {
			continue
		}
		if !seen[tok.term] {
			seen[tok.term] = true
			out = append(out, tok.term)
		}
	}
	return out
}
