// Package matcher implements the Matcher (spec.md §4.3): given a target
// AST and a QueryTree (internal/querybuilder), it produces the set of
// QueryResult bindings, honoring greedy-matching rules, negation,
// uniqueness, and regex filters.
//
// This generalizes the teacher's internal/evaluator.UniversalEvaluator
// outer loop (parse, compile query, cursor.Exec, walk matches, extract
// captures) from a single flat tree-sitter query into the recursive
// Tree/Link structure the Query Builder produces, adding the
// side-channel semantics (equality classes, negation, recursive
// subexpression search, regex filters) a bare tree-sitter query cannot
// itself express.
package matcher

import (
	"sort"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"
)

// Binding is one metavariable's bound text and source span within a
// single QueryResult.
type Binding struct {
	Text  string
	Start int
	End   int
}

// Result is one QueryResult (spec.md §3): a successful match of a whole
// QueryTree, with every metavariable's binding (the Closure property,
// spec.md §8) and the outermost matched node, used for context
// printing, deduplication, and `--limit` bucketing.
type Result struct {
	RootStart int
	RootEnd   int
	RootNode  *sitter.Node
	Variables map[string]Binding
}

// key returns Dedup's identity key: the root span plus each variable in
// names with its bound text, in the order names gives (Dedup sorts it).
func (r Result) key(names []string) string {
	out := make([]byte, 0, 64)
	out = append(out, strconv.Itoa(r.RootStart)...)
	out = append(out, ':')
	out = append(out, strconv.Itoa(r.RootEnd)...)
	for _, n := range names {
		out = append(out, '|')
		out = append(out, n...)
		out = append(out, '=')
		out = append(out, r.Variables[n].Text...)
	}
	return string(out)
}

// distinctTexts reports whether every variable named in names binds to a
// pairwise-distinct text in vars, as `--unique` requires across a whole
// QueryTree (spec.md §4.3) or, at the composer layer, across a whole
// unified tuple (spec.md §4.4).
func distinctTexts(vars map[string]Binding, names []string) bool {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		b, ok := vars[n]
		if !ok {
			continue
		}
		if seen[b.Text] {
			return false
		}
		seen[b.Text] = true
	}
	return true
}

// variableNames returns vars' keys, in no particular order.
func variableNames(vars map[string]Binding) []string {
	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	return names
}

// FilterUnique applies `--unique` to a single pattern's own result stream
// (spec.md §4.3: "requires that distinct metavariables bind to distinct
// texts... across the whole QueryTree"), dropping every result whose
// bound variables are not all pairwise distinct. Results whose RootStart
// ties this scope to a single file (as produced by Match) are assumed;
// callers composing several patterns instead apply the equivalent rule
// to a unified tuple (internal/compose.distinctAcrossTuple).
func FilterUnique(results []Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if distinctTexts(r.Variables, variableNames(r.Variables)) {
			out = append(out, r)
		}
	}
	return out
}

// Dedup suppresses duplicate QueryResults (spec.md §4.3: "two results are
// equal when their root nodes coincide and their variable maps coincide;
// duplicates are suppressed"), preserving first-seen order. Scope it to a
// single file's result slice — RootStart/RootEnd are byte offsets into
// that file's own source buffer, not a cross-file identity.
func Dedup(results []Result) []Result {
	seen := make(map[string]bool, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		names := variableNames(r.Variables)
		sort.Strings(names)
		k := r.key(names)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
