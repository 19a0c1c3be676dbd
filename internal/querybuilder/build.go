package querybuilder

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/termfx/chasm/internal/clog"
	"github.com/termfx/chasm/internal/langc"
	"github.com/termfx/chasm/internal/pattern"
	"github.com/termfx/chasm/internal/regexc"
)

// identifierLeafTypes are the grammar kinds a metavariable or bare
// wildcard may occupy directly, per spec.md §4.1's sigil-position rule
// and §4.2's identifier/type/field/namespace lowering rules.
var identifierLeafTypes = map[string]bool{
	"identifier":           true,
	"type_identifier":      true,
	"field_identifier":     true,
	"namespace_identifier": true,
}

// builder carries the state shared across an entire Build call: the
// pattern source, any `-R` regex constraints, and the monotonically
// increasing ID/capture-index sequences that let negations and children
// be correlated back to their parent (spec.md §3's `id` concept).
type builder struct {
	ast     *pattern.AST
	regexes map[string]*regexc.Constraint
	nextID  int
	nextCap int
}

// Build lowers a validated pattern AST into a QueryTree. regexes maps
// metavariable name to an already-compiled `-R` constraint; pass nil (or
// an empty map) when the pattern carries none.
func Build(ast *pattern.AST, regexes map[string]*regexc.Constraint) (*Tree, error) {
	if ast == nil || ast.Root == nil {
		return nil, clog.Wrap(clog.UnsupportedConstruct, "cannot build a query from an empty pattern", nil)
	}
	b := &builder{ast: ast, regexes: regexes}
	return b.buildNode(ast.Root)
}

func (b *builder) allocID() int {
	b.nextID++
	return b.nextID
}

func (b *builder) allocCap() int {
	idx := b.nextCap
	b.nextCap++
	return idx
}

// buildNode dispatches on whether n is a compound statement (searched via
// the anchor-and-children mechanism so its direct statements need not
// appear in a fixed sibling order) or any other node (lowered as one
// structural tree-sitter query). An expression statement is lowered as
// its inner expression, so the expression is found in any enclosing
// expression position and an assignment's greedy alternation can also
// reach the declaration-with-initializer shape.
func (b *builder) buildNode(n *sitter.Node) (*Tree, error) {
	if n.Type() == "expression_statement" && n.NamedChildCount() == 1 {
		return b.buildNode(n.NamedChild(0))
	}
	if n.Type() == "compound_statement" {
		return b.buildCompound(n)
	}
	return b.buildStructural(n)
}

// buildCompound implements the "recursive children" side of spec.md §4.2
// for a multi-statement compound-statement pattern: the compound
// statement itself becomes an anchor capture, and each of its direct
// statements becomes an independently (re-)searched child (or, if the
// statement carried a `not:` marker, a negation) scoped to that anchor.
// This is also how "order only matters inside negations" (spec.md §9) is
// realized: non-negated statements are children searched anywhere inside
// the scope, with no sibling-order constraint; order is never imposed at
// all, including among negations, since each negation independently
// re-searches the same scope.
func (b *builder) buildCompound(n *sitter.Node) (*Tree, error) {
	scopeName := RootCapture
	tree := &Tree{
		ID:        b.allocID(),
		Query:     fmt.Sprintf("(compound_statement) @%s", scopeName),
		Captures:  []Capture{{Kind: CaptureAnchor, Name: scopeName, Index: b.allocCap()}},
		Variables: map[string][]int{},
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if !child.IsNamed() {
			continue
		}
		childTree, err := b.buildNode(child)
		if err != nil {
			return nil, err
		}
		link := Link{Scope: scopeName, Tree: childTree}
		if b.ast.NegatedStarts[int(child.StartByte())] {
			tree.Negations = append(tree.Negations, link)
		} else {
			tree.Children = append(tree.Children, link)
		}
		mergeVariables(tree.Variables, childTree.Variables)
	}
	return tree, nil
}

// buildStructural lowers n as a single structural tree-sitter query,
// generalizing the teacher's fixed per-DSL-node-type template table into
// a walk over n's actual grammar shape: every named child is recursed
// into and reassembled with its tree-sitter field label when the grammar
// gives one. `_(inner)` subexpression wildcards encountered anywhere in
// the walk are split off into a recursive child Link rather than lowered
// in place, escaping tree-sitter's fixed-depth structural matching.
func (b *builder) buildStructural(n *sitter.Node) (*Tree, error) {
	lb := &localBuilder{b: b}
	frag, rootAttached, err := lb.lowerRoot(n)
	if err != nil {
		return nil, err
	}

	variables := map[string][]int{}
	for _, c := range lb.captures {
		if c.Kind == CaptureVariable {
			variables[c.Variable] = append(variables[c.Variable], c.Index)
		}
	}
	for _, link := range lb.children {
		mergeVariables(variables, link.Tree.Variables)
	}

	lb.captures = append(lb.captures, Capture{Kind: CaptureAnchor, Name: RootCapture, Index: b.allocCap()})
	if !rootAttached {
		frag = fmt.Sprintf("%s @%s", frag, RootCapture)
	}

	return &Tree{
		ID:        b.allocID(),
		Query:     frag,
		Captures:  lb.captures,
		Variables: variables,
		Children:  lb.children,
	}, nil
}

func mergeVariables(into map[string][]int, from map[string][]int) {
	for name, idxs := range from {
		into[name] = append(into[name], idxs...)
	}
}

// localBuilder accumulates the capture vector, capture-name sequence, and
// any recursive subexpression children discovered while lowering a single
// structural node into one tree-sitter query fragment.
type localBuilder struct {
	b        *builder
	captures []Capture
	children []Link
	seq      int
}

func (lb *localBuilder) newCaptureName() string {
	name := fmt.Sprintf("k%d", lb.seq)
	lb.seq++
	return name
}

// declaratorFields are the tree-sitter field names under which a node
// names the thing being declared — a variable, function, or parameter —
// rather than standing in for an arbitrary expression. A bare `_` plain
// identifier reached through one of these is an identifier-position
// wildcard (narrow, typed-node match); reached any other way, it is a
// full sub-AST wildcard (spec.md §4.2). This distinction only matters for
// the plain "identifier" node kind: `type_identifier`/`field_identifier`/
// `namespace_identifier` are grammar productions in their own right
// (tree-sitter-c aliases them by production, not by content), so they
// never need a field check to tell them apart from an expression.
var declaratorFields = map[string]bool{
	"declarator": true,
}

// lowerRoot is the single entry point buildStructural uses to lower the
// whole pattern. It reports whether the returned fragment already carries
// the `@RootCapture` binding, which only lowerLiteral needs to do itself
// since its fragment ends in a trailing `#eq?` predicate clause that a
// blanket-appended trailing capture cannot legally follow.
func (lb *localBuilder) lowerRoot(n *sitter.Node) (string, bool, error) {
	text := langc.Text(n, lb.b.ast.Source)
	if identifierLeafTypes[n.Type()] && !strings.HasPrefix(text, "$") && text != "_" {
		return lb.lowerLiteral(n, text, true), true, nil
	}
	frag, err := lb.lower(n, "")
	return frag, false, err
}

// lower implements spec.md §4.2's per-node-kind emission rules. field is
// the tree-sitter field name n was reached under in its parent ("" when
// n is a top-level pattern root or an unnamed child, e.g. an argument
// inside an argument_list), used to tell an identifier/type/field/
// namespace-position wildcard apart from a full-sub-AST one.
func (lb *localBuilder) lower(n *sitter.Node, field string) (string, error) {
	text := langc.Text(n, lb.b.ast.Source)

	if identifierLeafTypes[n.Type()] {
		switch {
		case strings.HasPrefix(text, "$") && len(text) > 1:
			return lb.lowerVariable(n, text[1:]), nil
		case text == "_" && (n.Type() != "identifier" || declaratorFields[field]):
			// Bare wildcard in an identifier/type/field position: the
			// typed node with no predicate at all. A plain "identifier"
			// only counts as this position when it fills a declarator
			// field; every other identifier-typed leaf kind is
			// unambiguous by grammar production alone.
			return fmt.Sprintf("(%s)", n.Type()), nil
		case text != "_":
			return lb.lowerLiteral(n, text, false), nil
		}
		// else: a bare "_" identifier outside a declarator field — falls
		// through to the full sub-AST wildcard case below.
	}

	if isSubexpressionWildcardCall(n, lb.b.ast.Source) {
		return lb.lowerSubexpressionWildcard(n)
	}

	if n.Type() == "assignment_expression" {
		return lb.lowerAssignmentGreedy(n)
	}

	if text == "_" && n.ChildCount() == 0 {
		// A bare wildcard standing in for a whole sub-AST (expression,
		// statement, array dimension, call argument, ...): match any
		// node, capture kind Check.
		capName := lb.newCaptureName()
		lb.captures = append(lb.captures, Capture{Kind: CaptureCheck, Name: capName, Index: lb.b.allocCap()})
		return fmt.Sprintf("(_) @%s", capName), nil
	}

	return lb.lowerStructural(n)
}

func (lb *localBuilder) lowerVariable(n *sitter.Node, name string) string {
	capName := lb.newCaptureName()
	vc := Capture{Kind: CaptureVariable, Name: capName, Variable: name, Index: lb.b.allocCap()}
	if rc, ok := lb.b.regexes[name]; ok {
		vc.HasRegex = true
		vc.RegexExpr = rc.Expr
		vc.RegexNegate = rc.Negate
	}
	lb.captures = append(lb.captures, vc)
	return fmt.Sprintf("(%s) @%s", n.Type(), capName)
}

// lowerLiteral emits a named-node identity constraint. When isRoot is true
// (this literal is the pattern's own top-level node, with no enclosing
// structure to attach RootCapture to instead), it also embeds @RootCapture
// directly after the node pattern, before the trailing #eq? predicate — a
// bare trailing capture cannot follow a predicate clause with no
// intervening node pattern, so buildStructural must not append one itself
// in this case.
func (lb *localBuilder) lowerLiteral(n *sitter.Node, text string, isRoot bool) string {
	capName := lb.newCaptureName()
	lb.captures = append(lb.captures, Capture{Kind: CaptureAnchor, Name: capName, Index: lb.b.allocCap()})
	escaped := strings.ReplaceAll(text, `"`, `\"`)
	if isRoot {
		return fmt.Sprintf(`(%s) @%s @%s (#eq? @%s "%s")`, n.Type(), capName, RootCapture, capName, escaped)
	}
	return fmt.Sprintf(`(%s) @%s (#eq? @%s "%s")`, n.Type(), capName, capName, escaped)
}

// isSubexpressionWildcardCall reports whether n is the pattern-language's
// `_(inner)` form: a call expression whose function name is the literal
// identifier `_` (spec.md §3).
func isSubexpressionWildcardCall(n *sitter.Node, src []byte) bool {
	if n.Type() != "call_expression" {
		return false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" {
		return false
	}
	return langc.Text(fn, src) == "_"
}

// lowerSubexpressionWildcard implements spec.md §4.2's subexpression
// wildcard rule: does not emit the call structurally. The current
// position becomes `(_) @k` (capturing whatever expression actually
// appears there), and the call's sole argument is built as a fresh child
// Tree, scoped to search anywhere inside that capture's subtree.
func (lb *localBuilder) lowerSubexpressionWildcard(n *sitter.Node) (string, error) {
	args := n.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return "", clog.Wrap(clog.UnsupportedConstruct, "subexpression wildcard `_(...)` requires an inner pattern argument", nil)
	}
	inner := args.NamedChild(0)

	capName := lb.newCaptureName()
	lb.captures = append(lb.captures, Capture{Kind: CaptureSubexpression, Name: capName, Index: lb.b.allocCap()})

	childTree, err := lb.b.buildNode(inner)
	if err != nil {
		return "", err
	}
	lb.children = append(lb.children, Link{Scope: capName, Tree: childTree})

	return fmt.Sprintf("(_) @%s", capName), nil
}

// lowerAssignmentGreedy implements spec.md §9's "greedy superset" property:
// a pattern written as an assignment (`$x = E`) also matches the
// structurally distinct but lexically equivalent shape of a declaration
// with an initializer (`T $x = E;`). Rather than defining two pattern
// kinds, the builder lowers the left/right sub-patterns once and embeds
// the resulting fragments into a tree-sitter alternation covering both
// grammar shapes, the same bracket-choice technique the teacher uses for
// its var/field templates (internal/lang/golang/query_builder.go).
func (lb *localBuilder) lowerAssignmentGreedy(n *sitter.Node) (string, error) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil {
		return lb.lowerStructural(n)
	}

	leftFrag, err := lb.lower(left, "left")
	if err != nil {
		return "", err
	}
	rightFrag, err := lb.lower(right, "right")
	if err != nil {
		return "", err
	}

	assign := fmt.Sprintf("(assignment_expression left: %s right: %s)", leftFrag, rightFrag)
	decl := fmt.Sprintf("(init_declarator declarator: %s value: %s)", leftFrag, rightFrag)
	return fmt.Sprintf("[%s %s]", assign, decl), nil
}

// lowerStructural recurses into n's named children, attaching field
// labels when the grammar assigns one, and reassembles the nested
// tree-sitter query text. This is the generalization of the teacher's
// fixed template table to an arbitrary C/C++ pattern shape.
func (lb *localBuilder) lowerStructural(n *sitter.Node) (string, error) {
	var parts []string
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if !child.IsNamed() {
			continue
		}
		field := n.FieldNameForChild(i)
		frag, err := lb.lower(child, field)
		if err != nil {
			return "", err
		}
		if field != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", field, frag))
		} else {
			parts = append(parts, frag)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("(%s)", n.Type()), nil
	}
	return fmt.Sprintf("(%s %s)", n.Type(), strings.Join(parts, " ")), nil
}
