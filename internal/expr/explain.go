package expr

import "fmt"

// Check records one verifiable condition from an explain run.
type Check struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Explanation traces a buy-expression evaluation for one snapshot:
// every term resolution, every comparison, and the final verdict.
type Explanation struct {
	Expression string
	Expanded   string
	Checks     []Check
	Result     bool
}

// Explain evaluates the program the same way Eval does, recording a
// check for each step. The Result field always matches what Eval would
// return for the same resolver.
func (p *Program) Explain(r Resolver) *Explanation {
	out := &Explanation{Expression: p.Source}

	if p.Empty() {
		out.Result = true
		out.Checks = append(out.Checks, Check{
			Name: "expression", Threshold: "present", Actual: "empty", Pass: true,
		})
		return out
	}
	if p.lexErr != nil {
		out.Result = true
		out.Checks = append(out.Checks, Check{
			Name: "tokenize", Threshold: "valid expression", Actual: p.lexErr.Error(), Pass: false,
		})
		return out
	}
	if p.tree != nil {
		out.Expanded = Render(p.tree)
	}

	vals := make(map[Term]float64, len(p.terms))
	resolved := true
	for _, t := range p.terms {
		v, err := r.Resolve(t)
		if err != nil {
			resolved = false
			out.Checks = append(out.Checks, Check{
				Name: t.String(), Threshold: "resolvable", Actual: err.Error(), Pass: false,
			})
			continue
		}
		vals[t] = v
		out.Checks = append(out.Checks, Check{
			Name: t.String(), Threshold: "resolvable", Actual: fmt.Sprintf("%.4f", v), Pass: true,
		})
	}
	if !resolved {
		out.Result = false
		return out
	}
	if p.parseErr != nil {
		out.Result = true
		out.Checks = append(out.Checks, Check{
			Name: "parse", Threshold: "valid expression", Actual: p.parseErr.Error(), Pass: false,
		})
		return out
	}

	compareChecks(p.tree, vals, &out.Checks)
	out.Result = evalNode(p.tree, vals)
	return out
}

func compareChecks(n Node, vals map[Term]float64, out *[]Check) {
	switch v := n.(type) {
	case *Logic:
		compareChecks(v.L, vals, out)
		compareChecks(v.R, vals, out)
	case *Not:
		compareChecks(v.X, vals, out)
	case *Compare:
		l := operandValue(v.L, vals)
		r := operandValue(v.R, vals)
		*out = append(*out, Check{
			Name:      Render(v),
			Threshold: fmt.Sprintf("%s %.4f", v.Op, r),
			Actual:    fmt.Sprintf("%.4f", l),
			Pass:      compare(v.Op, l, r),
		})
	}
}
