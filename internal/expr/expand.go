package expr

// Expand rewrites every repetition group into an explicit conjunction.
//
// A group (body) * N becomes N copies of the body joined by &&, where
// copy i has every term offset increased by i. Copy 0 is the body
// unchanged. Nested groups are expanded innermost first, so offsets
// accumulate additively. The result contains no Repeat nodes, and
// expanding an already expanded tree returns an equal tree.
func Expand(n Node) Node {
	switch v := n.(type) {
	case *Repeat:
		body := Expand(v.Body)
		out := shift(body, 0)
		for i := 1; i < v.N; i++ {
			out = &Logic{Op: LogicAnd, L: out, R: shift(body, i)}
		}
		return out
	case *Logic:
		return &Logic{Op: v.Op, L: Expand(v.L), R: Expand(v.R)}
	case *Not:
		return &Not{X: Expand(v.X)}
	case *Compare:
		return &Compare{Op: v.Op, L: Expand(v.L), R: Expand(v.R)}
	case *Term:
		t := *v
		return &t
	case *Number:
		return &Number{Value: v.Value}
	default:
		return n
	}
}

// shift deep-copies a Repeat-free tree, adding delta to every term offset.
func shift(n Node, delta int) Node {
	switch v := n.(type) {
	case *Term:
		t := *v
		t.Offset += delta
		return &t
	case *Number:
		return &Number{Value: v.Value}
	case *Compare:
		return &Compare{Op: v.Op, L: shift(v.L, delta), R: shift(v.R, delta)}
	case *Logic:
		return &Logic{Op: v.Op, L: shift(v.L, delta), R: shift(v.R, delta)}
	case *Not:
		return &Not{X: shift(v.X, delta)}
	default:
		return n
	}
}
