// Package pattern implements the Pattern Frontend (spec.md §4.1): it turns
// a raw pattern string into a validated, singly-rooted pattern AST ready
// for the Query Builder.
package pattern

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/termfx/chasm/internal/clog"
	"github.com/termfx/chasm/internal/langc"
)

// AST is a validated cursor over a pattern's parse tree, plus the
// anchor-relaxation flag the statement-expression unwrap produces.
type AST struct {
	// Root is the accepted root node of the pattern (after normalization
	// and, if applicable, statement-expression unwrapping).
	Root *sitter.Node
	// Source is the exact byte buffer Root was parsed from — not the
	// user's raw string, since normalization may have wrapped it.
	Source []byte
	// AnchorRelax is set when the pattern was a compound statement holding
	// a single expression statement and Root was moved down to the inner
	// expression (spec.md §4.1). It records that the unwrap happened; the
	// Query Builder does not read it.
	AnchorRelax bool
	// Lang records which grammar parsed this pattern.
	Lang langc.Language
	// NegatedStarts holds, in Source's byte coordinates, the start offset
	// of every statement that carried a leading `not:` marker before the
	// marker text was stripped out ahead of parsing (spec.md §6: `not:`
	// is not valid C/C++ syntax, so it can never reach the grammar).
	NegatedStarts map[int]bool
}

// acceptedRootTypes are the grammar-node kinds spec.md §4.1 accepts as a
// pattern's root: compound statement, function definition, struct/union/
// enum/class definition, declaration, or top-level expression statement.
var acceptedRootTypes = map[string]bool{
	"compound_statement":       true,
	"function_definition":      true,
	"struct_specifier":         true,
	"union_specifier":          true,
	"enum_specifier":           true,
	"class_specifier":          true, // C++ only; harmless no-op under the C grammar
	"declaration":              true,
	"expression_statement":     true,
}

// wrapping is one progressively more aggressive wrapping of the raw
// pattern string, tried in order until one parses without error nodes.
// prefix is the exact literal prepended ahead of the (already
// negation-stripped) raw text, needed to shift NegatedStarts offsets into
// the final source buffer's coordinate space.
type wrapping struct {
	prefix string
	suffix string
}

var wrappingLadder = []wrapping{
	{prefix: "", suffix: ""},
	{prefix: "", suffix: ";"},
	{prefix: "{ ", suffix: " }"},
	{prefix: "void _() { ", suffix: " }"},
}

// Normalize implements spec.md §4.1's normalization ladder: it tries the
// raw string as-is, then with a trailing `;`, then wrapped in `{ }`, then
// wrapped as a throwaway function body, stopping at the first wrapping
// whose parse has no ERROR/MISSING nodes. If force is set and every
// wrapping still contains error nodes, the last (most permissive)
// wrapping is accepted anyway and validation is skipped.
func Normalize(ctx context.Context, raw string, lang langc.Language, force bool) (*AST, error) {
	parser := langc.NewParser(lang)

	stripped, negatedStarts := stripNegationMarkers(raw)

	var lastTree *sitter.Tree
	var lastSrc []byte
	var lastNegated map[int]bool
	for _, w := range wrappingLadder {
		src := []byte(w.prefix + stripped + w.suffix)
		shifted := shiftOffsets(negatedStarts, len(w.prefix))

		tree, err := parser.Parse(ctx, src)
		if err != nil {
			return nil, clog.Wrap(clog.ParserInternal, "pattern frontend: parser failure", err)
		}

		if !langc.HasErrorNode(tree.RootNode()) {
			return finish(tree, src, lang, force, shifted)
		}

		// Keep the most permissive attempt around in case force mode
		// needs it once the ladder is exhausted.
		if lastTree != nil {
			lastTree.Close()
		}
		lastTree, lastSrc, lastNegated = tree, src, shifted
	}

	if force {
		return finish(lastTree, lastSrc, lang, true, lastNegated)
	}
	if lastTree != nil {
		lastTree.Close()
	}
	return nil, clog.Wrap(clog.PatternSyntax, "pattern did not parse under any accepted wrapping", nil)
}

func finish(tree *sitter.Tree, src []byte, lang langc.Language, force bool, negatedStarts map[int]bool) (*AST, error) {
	root, err := rootedAt(tree.RootNode(), src, force)
	if err != nil {
		return nil, err
	}

	ast := &AST{Root: root, Source: src, Lang: lang, NegatedStarts: negatedStarts}
	collapseRedundantNesting(ast)
	unwrapStatementExpression(ast)
	return ast, nil
}

// collapseRedundantNesting strips away a compound_statement whose sole
// named child is itself a compound_statement. This happens when a raw
// pattern already supplied its own `{ }` and the normalization ladder
// still had to wrap it again (e.g. in the synthetic `void _() { ... }`
// function body) to reach a parseable top-level form.
func collapseRedundantNesting(ast *AST) {
	for ast.Root.Type() == "compound_statement" {
		var named []*sitter.Node
		for i := 0; i < int(ast.Root.ChildCount()); i++ {
			if c := ast.Root.Child(i); c.IsNamed() {
				named = append(named, c)
			}
		}
		if len(named) != 1 || named[0].Type() != "compound_statement" {
			return
		}
		ast.Root = named[0]
	}
}

func shiftOffsets(offsets map[int]bool, shift int) map[int]bool {
	if len(offsets) == 0 {
		return nil
	}
	out := make(map[int]bool, len(offsets))
	for off := range offsets {
		out[off+shift] = true
	}
	return out
}

// stripNegationMarkers removes a leading `not:` token (plus any
// whitespace that follows it) from the start of any statement in raw,
// since `not:` is not valid C/C++ and would otherwise surface as a parse
// error. It returns the stripped text and the set of byte offsets, in
// the stripped text's own coordinates, where a negated statement begins.
//
// A position counts as a statement start at the beginning of the string
// and immediately after `{`, `}`, or `;` (skipping intervening
// whitespace) — the same positions a statement may legally begin at
// inside a compound body.
func stripNegationMarkers(raw string) (string, map[int]bool) {
	var b []byte
	offsets := map[int]bool{}
	atStart := true
	i := 0
	for i < len(raw) {
		if atStart {
			j := i
			for j < len(raw) && isSpaceByte(raw[j]) {
				j++
			}
			if j+4 <= len(raw) && raw[j:j+4] == "not:" && !(j+4 < len(raw) && isIdentByte(raw[j+4])) {
				b = append(b, raw[i:j]...)
				k := j + 4
				for k < len(raw) && isSpaceByte(raw[k]) {
					k++
				}
				offsets[len(b)] = true
				i = k
				atStart = false
				continue
			}
		}
		c := raw[i]
		b = append(b, c)
		switch {
		case c == '{' || c == '}' || c == ';':
			atStart = true
		case !isSpaceByte(c):
			atStart = false
		}
		i++
	}
	if len(offsets) == 0 {
		return string(b), nil
	}
	return string(b), offsets
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// rootedAt implements spec.md §4.1's "singly rooted" validation: the
// translation-unit wrapper must have exactly one meaningful child, and
// that child's grammar kind must be one of acceptedRootTypes (unless
// force is set, in which case the check is skipped and the first child
// is used best-effort).
func rootedAt(translationUnit *sitter.Node, src []byte, force bool) (*sitter.Node, error) {
	var candidates []*sitter.Node
	for i := 0; i < int(translationUnit.ChildCount()); i++ {
		child := translationUnit.Child(i)
		if child.IsNamed() {
			candidates = append(candidates, child)
		}
	}

	if len(candidates) == 0 {
		if force {
			return translationUnit, nil
		}
		return nil, clog.Wrap(clog.PatternSyntax, "pattern has no root node", nil)
	}

	root := candidates[0]
	if force {
		return unwrapFunctionBody(root, src), nil
	}

	if len(candidates) != 1 {
		return nil, clog.Wrap(clog.PatternSyntax,
			fmt.Sprintf("pattern is not singly rooted: found %d top-level forms", len(candidates)), nil)
	}

	if !acceptedRootTypes[root.Type()] {
		return nil, clog.Wrap(clog.PatternSyntax,
			fmt.Sprintf("pattern root %q is not an accepted root form", root.Type()), nil)
	}

	return unwrapFunctionBody(root, src), nil
}

// unwrapFunctionBody descends past the synthetic `void _() { ... }`
// wrapper the normalization ladder may have introduced, so callers always
// see the user's actual pattern root.
func unwrapFunctionBody(root *sitter.Node, src []byte) *sitter.Node {
	if root.Type() != "function_definition" {
		return root
	}
	body := root.ChildByFieldName("body")
	if body == nil {
		return root
	}
	// Only unwrap when this function_definition is chasm's own synthetic
	// `void _()` wrapper, not a pattern the user genuinely wrote as a
	// function definition (e.g. `int f($t $p) { ... }`).
	declarator := root.ChildByFieldName("declarator")
	if declarator != nil && declaratorIsSyntheticSentinel(declarator, src) {
		return body
	}
	return root
}

func declaratorIsSyntheticSentinel(declarator *sitter.Node, src []byte) bool {
	// The synthetic wrapper always declares a function named "_" with an
	// empty parameter list; anything else is a pattern the user wrote.
	name := declarator.ChildByFieldName("declarator")
	params := declarator.ChildByFieldName("parameters")
	if name == nil || params == nil {
		return false
	}
	return name.Type() == "identifier" && langc.Text(name, src) == "_" && params.NamedChildCount() == 0
}

// unwrapStatementExpression implements the statement-expression unwrap
// from spec.md §4.1: if the sole child of a compound-statement root is an
// expression_statement, descend into the inner expression and set
// AnchorRelax. The inner expression then becomes the query root, and a
// structural query finds it at any depth, so it matches in any enclosing
// expression position.
func unwrapStatementExpression(ast *AST) {
	root := ast.Root
	if root.Type() != "compound_statement" {
		return
	}

	var stmts []*sitter.Node
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.IsNamed() {
			stmts = append(stmts, child)
		}
	}
	if len(stmts) != 1 || stmts[0].Type() != "expression_statement" {
		return
	}

	exprStmt := stmts[0]
	if exprStmt.NamedChildCount() == 0 {
		return
	}
	ast.Root = exprStmt.NamedChild(0)
	ast.AnchorRelax = true
}

// sigilBearingNodeTypes are the grammar leaf kinds a `$name` metavariable
// is allowed to occupy: identifier, type name, field, or namespace part
// (spec.md §4.1's validation rule (c)).
var sigilBearingNodeTypes = map[string]bool{
	"identifier":           true,
	"type_identifier":      true,
	"field_identifier":     true,
	"namespace_identifier": true,
}

// ValidateSigilPositions walks ast.Root and rejects any `$name` token that
// lands somewhere other than an identifier/type/field/namespace leaf. This
// is a separate pass from Normalize because the Query Builder (not the
// Frontend) is what actually knows, node by node, whether a `$` token is
// sitting in a position it is prepared to lower.
func ValidateSigilPositions(root *sitter.Node, src []byte, force bool) error {
	if force {
		return nil
	}
	return walkForBadSigils(root, src)
}

func walkForBadSigils(n *sitter.Node, src []byte) error {
	if n == nil {
		return nil
	}
	if n.ChildCount() == 0 && len(langc.Text(n, src)) > 0 && langc.Text(n, src)[0] == '$' {
		if !sigilBearingNodeTypes[n.Type()] {
			return clog.Wrap(clog.PatternSyntax,
				fmt.Sprintf("metavariable sigil in an unsupported position (%s)", n.Type()), nil)
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if err := walkForBadSigils(n.Child(i), src); err != nil {
			return err
		}
	}
	return nil
}
