// Package compose implements the Multi-pattern Composer (spec.md §4.4):
// given k independent per-pattern result streams, it produces the
// Cartesian product restricted to tuples whose shared metavariables
// unify, optionally enforcing global uniqueness across the whole unified
// tuple, in r1's source order.
//
// New to chasm; spec.md §4.4 is unambiguous and no example repo composes
// multiple independent query result streams, so this is built directly
// from the spec, following the teacher's habit (providers/golang/
// parallel_query.go) of fanning out independent query executions and
// folding results back together — composed here sequentially rather than
// via goroutines, since unification between tuples is itself a fast,
// in-memory join with no parse or query-execution cost to overlap.
package compose

import (
	"sort"

	"github.com/termfx/chasm/internal/matcher"
)

// Tuple is one surviving combination of k results, one per input pattern,
// with their metavariable bindings unified.
type Tuple struct {
	// Results holds, in pattern order, the per-pattern result each tuple
	// member was drawn from.
	Results []matcher.Result
	// Variables is the union of every pattern's bindings, reconciled:
	// shared metavariable names across patterns are only present here if
	// every pattern's result agreed on the bound text.
	Variables map[string]matcher.Binding
}

// Compose builds the Cartesian product of streams (one []matcher.Result
// per pattern) restricted to tuples whose shared metavariables unify
// (spec.md §4.4), optionally requiring every bound variable across the
// unified tuple to be pairwise distinct when unique is set (the
// --unique/-u per-tuple uniqueness scope spec.md §4.4 and the CLI flag
// table both name). Tuples are emitted in streams[0]'s source order;
// within a fixed first member, later streams are walked in their own
// given order, so the overall order is deterministic for a deterministic
// per-pattern order (spec.md §8's order-determinism invariant, extended
// to the composed result).
func Compose(streams [][]matcher.Result, unique bool) []Tuple {
	if len(streams) == 0 {
		return nil
	}
	for _, s := range streams {
		if len(s) == 0 {
			return nil
		}
	}

	first := make([]Tuple, 0, len(streams[0]))
	for _, r := range streams[0] {
		first = append(first, Tuple{
			Results:   []matcher.Result{r},
			Variables: cloneVars(r.Variables),
		})
	}

	acc := first
	for _, stream := range streams[1:] {
		var next []Tuple
		for _, t := range acc {
			for _, r := range stream {
				merged, ok := unify(t.Variables, r.Variables)
				if !ok {
					continue
				}
				next = append(next, Tuple{
					Results:   append(append([]matcher.Result{}, t.Results...), r),
					Variables: merged,
				})
			}
		}
		acc = next
		if len(acc) == 0 {
			return nil
		}
	}

	if !unique {
		return acc
	}

	out := make([]Tuple, 0, len(acc))
	for _, t := range acc {
		if distinctAcrossTuple(t.Variables) {
			out = append(out, t)
		}
	}
	return out
}

// unify merges b into a, requiring any metavariable name present in both
// to carry the same bound text (spec.md §4.4's "restricted by
// metavariable unification"). Returns the merged map and whether
// unification succeeded.
func unify(a, b map[string]matcher.Binding) (map[string]matcher.Binding, bool) {
	out := make(map[string]matcher.Binding, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if existing, ok := out[k]; ok && existing.Text != v.Text {
			return nil, false
		}
		out[k] = v
	}
	return out, true
}

func cloneVars(vars map[string]matcher.Binding) map[string]matcher.Binding {
	out := make(map[string]matcher.Binding, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

// distinctAcrossTuple reports whether every bound value in vars is
// pairwise distinct, the global-uniqueness rule spec.md §8 states for the
// composed result: "|values(result.variables)| == |keys(result.variables)|".
func distinctAcrossTuple(vars map[string]matcher.Binding) bool {
	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	sort.Strings(names)
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		text := vars[n].Text
		if seen[text] {
			return false
		}
		seen[text] = true
	}
	return true
}
