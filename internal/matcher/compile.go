package matcher

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/termfx/chasm/internal/clog"
	"github.com/termfx/chasm/internal/querybuilder"
	"github.com/termfx/chasm/internal/regexc"
)

// CompiledCapture mirrors querybuilder.Capture with its regex constraint
// (if any) already compiled, so the hot match loop never recompiles a
// regex per candidate.
type CompiledCapture struct {
	querybuilder.Capture
	Regex *regexc.Constraint
}

// CompiledLink mirrors querybuilder.Link with its Tree compiled.
type CompiledLink struct {
	Scope string
	Tree  *Compiled
}

// Compiled is a querybuilder.Tree with its query text compiled against a
// specific grammar and its regex constraints pre-compiled. Spec.md §5
// requires the QueryTree be "immutable/shared read-only across workers":
// a Compiled is built once, before the worker pool starts, and its
// *sitter.Query values are read-only thereafter, so every worker
// goroutine can safely share one Compiled across concurrent Match calls
// (each call uses its own *sitter.QueryCursor).
type Compiled struct {
	Query *sitter.Query
	// QueryText is the tree-sitter query source Query was compiled from.
	// go-tree-sitter's *Query does not expose its own source text back,
	// so Compile keeps a copy for callers (the workpool's substring
	// pre-filter) that need to inspect the literal anchors it embeds.
	QueryText string
	Captures  []CompiledCapture
	Variables map[string][]int
	Negations []CompiledLink
	Children  []CompiledLink
}

// Compile recursively compiles a QueryTree's query text and regex
// constraints against lang. regexes maps metavariable name to an
// already-validated `-R` constraint (the same map passed to
// querybuilder.Build, reused here so the constraint is compiled exactly
// once per run).
func Compile(lang *sitter.Language, tree *querybuilder.Tree, regexes map[string]*regexc.Constraint) (*Compiled, error) {
	if tree == nil {
		return nil, clog.Wrap(clog.ParserInternal, "cannot compile a nil query tree", nil)
	}

	q, err := sitter.NewQuery([]byte(tree.Query), lang)
	if err != nil {
		return nil, clog.Wrap(clog.UnsupportedConstruct,
			fmt.Sprintf("query %q rejected by grammar", tree.Query), err)
	}

	caps := make([]CompiledCapture, len(tree.Captures))
	for i, c := range tree.Captures {
		cc := CompiledCapture{Capture: c}
		if c.HasRegex {
			cc.Regex = regexes[c.Variable]
		}
		caps[i] = cc
	}

	out := &Compiled{Query: q, QueryText: tree.Query, Captures: caps, Variables: tree.Variables}

	for _, link := range tree.Negations {
		childCompiled, err := Compile(lang, link.Tree, regexes)
		if err != nil {
			return nil, err
		}
		out.Negations = append(out.Negations, CompiledLink{Scope: link.Scope, Tree: childCompiled})
	}
	for _, link := range tree.Children {
		childCompiled, err := Compile(lang, link.Tree, regexes)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, CompiledLink{Scope: link.Scope, Tree: childCompiled})
	}

	return out, nil
}

// VariableNames returns every metavariable name appearing anywhere in the
// compiled tree (the keys of its Variables map), in no particular order.
func (c *Compiled) VariableNames() []string {
	names := make([]string, 0, len(c.Variables))
	for n := range c.Variables {
		names = append(names, n)
	}
	return names
}
