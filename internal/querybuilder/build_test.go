package querybuilder

import (
	"context"
	"strings"
	"testing"

	"github.com/termfx/chasm/internal/langc"
	"github.com/termfx/chasm/internal/pattern"
	"github.com/termfx/chasm/internal/regexc"
)

func mustNormalize(t *testing.T, raw string) *pattern.AST {
	t.Helper()
	ast, err := pattern.Normalize(context.Background(), raw, langc.C, false)
	if err != nil {
		t.Fatalf("Normalize(%q): %v", raw, err)
	}
	return ast
}

func TestBuildLiteralAndVariableCapture(t *testing.T) {
	ast := mustNormalize(t, "{ _ $buf[_]; memcpy($buf,_,_); }")
	tree, err := Build(ast, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tree.Query != `(compound_statement) @__root` {
		t.Fatalf("unexpected root query: %q", tree.Query)
	}
	if len(tree.Children) != 2 {
		t.Fatalf("expected 2 child statements, got %d", len(tree.Children))
	}
	var callTree *Tree
	for _, link := range tree.Children {
		if strings.Contains(link.Tree.Query, "memcpy") {
			callTree = link.Tree
		}
	}
	if callTree == nil {
		t.Fatal("expected to find the memcpy statement among children")
	}
	if !strings.Contains(callTree.Query, `#eq?`) || !strings.Contains(callTree.Query, `"memcpy"`) {
		t.Fatalf("expected memcpy literal anchor predicate, got %q", callTree.Query)
	}
	if idxs, ok := tree.Variables["buf"]; !ok || len(idxs) == 0 {
		t.Fatalf("expected closed variable map to contain buf, got %v", tree.Variables)
	}
}

func TestBuildNegationSplitsIntoNegations(t *testing.T) {
	ast := mustNormalize(t, "{ not: $p==NULL; *$p; }")
	tree, err := Build(ast, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tree.Negations) != 1 {
		t.Fatalf("expected 1 negation, got %d", len(tree.Negations))
	}
	if len(tree.Children) != 1 {
		t.Fatalf("expected 1 non-negated child, got %d", len(tree.Children))
	}
	if tree.Negations[0].Scope != "__root" {
		t.Fatalf("negation scope = %q, want __root", tree.Negations[0].Scope)
	}
}

func TestBuildSubexpressionWildcardProducesChildLink(t *testing.T) {
	ast := mustNormalize(t, "f(_(buf))")
	tree, err := Build(ast, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tree.Children) != 1 {
		t.Fatalf("expected 1 recursive child for subexpression wildcard, got %d", len(tree.Children))
	}
	found := false
	for _, c := range tree.Captures {
		if c.Kind == CaptureSubexpression {
			found = true
			if c.Name != tree.Children[0].Scope {
				t.Fatalf("subexpression capture name %q does not match child scope %q", c.Name, tree.Children[0].Scope)
			}
		}
	}
	if !found {
		t.Fatal("expected a CaptureSubexpression in root captures")
	}
}

func TestBuildAttachesRegexConstraint(t *testing.T) {
	ast := mustNormalize(t, "$x = 1;")
	rc, err := regexc.Compile("x", "^tmp_", false)
	if err != nil {
		t.Fatalf("regexc.Compile: %v", err)
	}
	tree, err := Build(ast, map[string]*regexc.Constraint{"x": rc})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var foundRegex bool
	for _, c := range tree.Captures {
		if c.Variable == "x" && c.HasRegex {
			foundRegex = true
			if c.RegexExpr != "^tmp_" {
				t.Fatalf("RegexExpr = %q, want ^tmp_", c.RegexExpr)
			}
		}
	}
	if !foundRegex {
		t.Fatal("expected regex constraint attached to x's capture")
	}
}

func TestBuildGreedyAssignmentAlternation(t *testing.T) {
	ast := mustNormalize(t, "$x = 1;")
	tree, err := Build(ast, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(tree.Query, "assignment_expression") || !strings.Contains(tree.Query, "init_declarator") {
		t.Fatalf("expected greedy alternation covering both shapes, got %q", tree.Query)
	}
}

func TestBuildBareLiteralRootAttachesRootCapture(t *testing.T) {
	// "malloc" alone unwraps (via the statement-expression unwrap) down to
	// a bare identifier root, the one case where a literal lowers as the
	// pattern's own top-level node rather than inside enclosing structure.
	ast := mustNormalize(t, "malloc")
	tree, err := Build(ast, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(tree.Query, `"malloc"`) {
		t.Fatalf("expected malloc literal anchor, got %q", tree.Query)
	}
	rootCount := strings.Count(tree.Query, "@__root")
	if rootCount != 1 {
		t.Fatalf("expected exactly one @__root capture, got %d in %q", rootCount, tree.Query)
	}
	found := false
	for _, c := range tree.Captures {
		if c.Kind == CaptureAnchor && c.Name == "__root" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a CaptureAnchor named __root in tree.Captures")
	}
}

func TestBuildBareWildcardFullSubASTForCallArguments(t *testing.T) {
	// Call arguments have no declarator field, so each bare `_` must lower
	// as a full-sub-AST wildcard (any node at all, e.g. a number_literal),
	// not the narrow identifier-position `(identifier)` match. The memcpy
	// literal anchor lowers as a captured "(identifier) @k", so check for a
	// *bare* (uncaptured) "(identifier)" rather than the substring alone.
	ast := mustNormalize(t, "memcpy(_,_,_)")
	tree, err := Build(ast, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if strings.Count(tree.Query, "(identifier)") != strings.Count(tree.Query, "(identifier) @") {
		t.Fatalf("call-argument wildcards must not narrow to (identifier), got %q", tree.Query)
	}
	if strings.Count(tree.Query, "(_) @") != 3 {
		t.Fatalf("expected three full-sub-AST wildcard captures in %q", tree.Query)
	}
	checkCount := 0
	for _, c := range tree.Captures {
		if c.Kind == CaptureCheck {
			checkCount++
		}
	}
	if checkCount != 3 {
		t.Fatalf("expected 3 CaptureCheck captures, got %d", checkCount)
	}
}

func TestBuildBareWildcardIdentifierPositionForDeclaratorName(t *testing.T) {
	// A bare `_` filling a declaration's declarator field names the
	// variable itself, so it must narrow to `(identifier)` with no
	// CaptureCheck, unlike the call-argument case above.
	ast := mustNormalize(t, "int _;")
	tree, err := Build(ast, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(tree.Query, "(identifier)") {
		t.Fatalf("expected a narrow identifier-position wildcard in %q", tree.Query)
	}
	for _, c := range tree.Captures {
		if c.Kind == CaptureCheck {
			t.Fatalf("declarator-position wildcard must not produce a CaptureCheck, got %+v", tree.Captures)
		}
	}
}

func TestBuildBareWildcardFullSubASTForAssignmentRHS(t *testing.T) {
	// spec.md §8 Scenario 2: `$b[$r]=_;` must match `buf[n] = 0;`, i.e.
	// the RHS wildcard has to bind a number_literal, not just an
	// identifier. $b and $r legitimately lower as captured "(identifier)"
	// nodes, so check for a *bare* (uncaptured) "(identifier)" rather than
	// the substring alone, which the metavariables would also match.
	ast := mustNormalize(t, "$b[$r]=_;")
	tree, err := Build(ast, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	total := strings.Count(tree.Query, "(identifier)")
	captured := strings.Count(tree.Query, "(identifier) @")
	if total != captured {
		t.Fatalf("expected every (identifier) fragment to carry a capture, got %q", tree.Query)
	}
	found := false
	for _, c := range tree.Captures {
		if c.Kind == CaptureCheck {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a CaptureCheck capture for the assignment RHS wildcard")
	}
}
