package matcher

import (
	"context"
	"sort"
	"testing"

	"github.com/termfx/chasm/internal/langc"
	"github.com/termfx/chasm/internal/pattern"
	"github.com/termfx/chasm/internal/querybuilder"
	"github.com/termfx/chasm/internal/regexc"
)

func runPattern(t *testing.T, patternSrc, source string, regexes map[string]*regexc.Constraint) []Result {
	t.Helper()
	ctx := context.Background()

	ast, err := pattern.Normalize(ctx, patternSrc, langc.C, false)
	if err != nil {
		t.Fatalf("Normalize(%q): %v", patternSrc, err)
	}
	if err := pattern.ValidateSigilPositions(ast.Root, ast.Source, false); err != nil {
		t.Fatalf("ValidateSigilPositions: %v", err)
	}

	qtree, err := querybuilder.Build(ast, regexes)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	parser := langc.NewParser(langc.C)
	compiled, err := Compile(parser.SitterLanguage(), qtree, regexes)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	tree, err := parser.Parse(ctx, []byte(source))
	if err != nil {
		t.Fatalf("Parse(%q): %v", source, err)
	}
	defer tree.Close()

	results, err := Match(compiled, tree.RootNode(), []byte(source))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	return results
}

// Closure (spec §8 invariant): every metavariable named in the pattern
// must carry a binding in every emitted result.
func TestClosureEveryVariableBound(t *testing.T) {
	src := "void f(){ char b[16]; memcpy(b,src,16); }"
	results := runPattern(t, "{ _ $buf[_]; memcpy($buf,_,_); }", src, nil)
	if len(results) != 1 {
		t.Fatal("expected 1 result")
	}
	if _, ok := results[0].Variables["buf"]; !ok {
		t.Fatal("expected buf to be bound in the only result")
	}
}

// Equality (spec §8 invariant): a metavariable used twice in one pattern
// only matches when both occurrences carry the same source text.
func TestEqualityRejectsMismatchedUses(t *testing.T) {
	src := "void f(int a, int b){ a = b; }"
	results := runPattern(t, "$x = $x;", src, nil)
	if len(results) != 0 {
		t.Fatalf("expected 0 results for a = b, got %d: %+v", len(results), results)
	}

	src2 := "void f(int a){ a = a; }"
	results2 := runPattern(t, "$x = $x;", src2, nil)
	if len(results2) != 1 {
		t.Fatalf("expected 1 result for a = a, got %d: %+v", len(results2), results2)
	}
}

// Negation soundness (spec §8 invariant): a null-checked pointer's
// dereference must not surface, while an unchecked one does.
func TestNegationSoundness(t *testing.T) {
	src := `void f(int *p, int *q){
		if (p != NULL) *p = 1;
		*q = 2;
	}`
	results := runPattern(t, "{ not: $p==NULL; not: $p!=NULL; *$p; }", src, nil)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d: %+v", len(results), results)
	}
	if got := results[0].Variables["p"].Text; got != "q" {
		t.Fatalf("p = %q, want %q", got, "q")
	}
}

// Greedy superset (spec §8 invariant): a pattern written as an assignment
// also matches the structurally distinct declaration-with-initializer form.
func TestGreedySupersetMatchesBothShapes(t *testing.T) {
	assignSrc := "void f(int x){ x = 1; }"
	if results := runPattern(t, "$x = 1;", assignSrc, nil); len(results) != 1 {
		t.Fatalf("expected 1 result against assignment form, got %d", len(results))
	}

	declSrc := "void f(){ int x = 1; }"
	if results := runPattern(t, "$x = 1;", declSrc, nil); len(results) != 1 {
		t.Fatalf("expected 1 result against declaration form, got %d", len(results))
	}
}

// Order determinism (spec §8 invariant): running the same pattern on the
// same input twice must emit the same results in the same order.
func TestOrderDeterminism(t *testing.T) {
	src := "void f(){ int a=1; int b=1; int c=1; }"
	first := runPattern(t, "$x = 1;", src, nil)
	second := runPattern(t, "$x = 1;", src, nil)
	if len(first) != len(second) {
		t.Fatalf("result counts differ: %d vs %d", len(first), len(second))
	}
	sortByStart := func(rs []Result) {
		sort.Slice(rs, func(i, j int) bool { return rs[i].RootStart < rs[j].RootStart })
	}
	sortByStart(first)
	sortByStart(second)
	for i := range first {
		if first[i].RootStart != second[i].RootStart || first[i].Variables["x"].Text != second[i].Variables["x"].Text {
			t.Fatalf("result %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

// Uniqueness (spec §8 invariant, scenario 5): distinctTexts is the helper
// `--unique` enforcement is built on.
func TestUniqueHelperRejectsRepeatedBinding(t *testing.T) {
	vars := map[string]Binding{
		"a": {Text: "n"},
		"b": {Text: "n"},
	}
	if distinctTexts(vars, []string{"a", "b"}) {
		t.Fatal("expected distinctTexts to reject a == b")
	}
	vars["b"] = Binding{Text: "m"}
	if !distinctTexts(vars, []string{"a", "b"}) {
		t.Fatal("expected distinctTexts to accept a != b")
	}
}

// FilterUnique is what cmd/chasm actually calls for a single-pattern
// `--unique` run (spec.md §8 Scenario 5); exercised directly here since
// it builds on distinctTexts above.
func TestFilterUniqueDropsResultsWithRepeatedBinding(t *testing.T) {
	results := []Result{
		{RootStart: 0, RootEnd: 5, Variables: map[string]Binding{"a": {Text: "n"}, "b": {Text: "n"}}},
		{RootStart: 6, RootEnd: 10, Variables: map[string]Binding{"a": {Text: "n"}, "b": {Text: "m"}}},
	}
	out := FilterUnique(results)
	if len(out) != 1 || out[0].RootStart != 6 {
		t.Fatalf("expected only the second result to survive, got %+v", out)
	}
}

// Dedup is what cmd/chasm calls to implement spec.md §4.3's "two results
// are equal when their root nodes coincide and their variable maps
// coincide; duplicates are suppressed" rule.
func TestDedupSuppressesRepeatedRootAndBindings(t *testing.T) {
	results := []Result{
		{RootStart: 0, RootEnd: 5, Variables: map[string]Binding{"x": {Text: "n"}}},
		{RootStart: 0, RootEnd: 5, Variables: map[string]Binding{"x": {Text: "n"}}},
		{RootStart: 0, RootEnd: 5, Variables: map[string]Binding{"x": {Text: "m"}}},
	}
	out := Dedup(results)
	if len(out) != 2 {
		t.Fatalf("expected 2 distinct results after dedup, got %d: %+v", len(out), out)
	}
}
