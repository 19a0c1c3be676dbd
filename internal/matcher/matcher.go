package matcher

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/termfx/chasm/internal/langc"
	"github.com/termfx/chasm/internal/querybuilder"
)

// localMatch is one surviving match of a single Compiled tree's own Query,
// with every variable binding it is responsible for — its own captures,
// whatever it inherited from its seed, and whatever its Children/Negations
// contributed — already reconciled.
type localMatch struct {
	root *sitter.Node
	vars map[string]Binding
}

// Match executes a Compiled QueryTree against root (the file's translation
// unit, or any subtree) and returns every surviving QueryResult, per
// spec.md §4.3. src must be the exact byte buffer root was parsed from.
func Match(tree *Compiled, root *sitter.Node, src []byte) ([]Result, error) {
	locals, err := evaluate(tree, root, src, nil)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(locals))
	for _, lm := range locals {
		results = append(results, Result{
			RootStart: int(lm.root.StartByte()),
			RootEnd:   int(lm.root.EndByte()),
			RootNode:  lm.root,
			Variables: lm.vars,
		})
	}
	return results, nil
}

// evaluate runs tree's own Query against scope, applying the matcher
// pipeline spec.md §4.3 specifies in order for each candidate match:
// tree-sitter's own predicates (via FilterPredicates, covering the `#eq?`
// literal-anchor clauses the Query Builder embedded), then the `-R` regex
// filters the Query Builder cannot express as a tree-sitter predicate
// (Perl-style, not RE2), then equality-class enforcement against both the
// match's own repeated variable captures and whatever seed carries in from
// an enclosing scope, then recursive Children, then Negations.
func evaluate(tree *Compiled, scope *sitter.Node, src []byte, seed map[string]Binding) ([]localMatch, error) {
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(tree.Query, scope)

	var out []localMatch
matchLoop:
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		match = cursor.FilterPredicates(match, src)

		captureNodes := map[string]*sitter.Node{}
		for _, cap := range match.Captures {
			name := tree.Query.CaptureNameForId(cap.Index)
			node := cap.Node
			captureNodes[name] = node
		}

		for _, c := range tree.Captures {
			if c.Regex == nil {
				continue
			}
			node, ok := captureNodes[c.Name]
			if !ok {
				continue
			}
			if !regexFilter(c.Regex, langc.Text(node, src)) {
				continue matchLoop
			}
		}

		bindingsByVar := map[string][]Binding{}
		for _, c := range tree.Captures {
			if c.Kind != querybuilder.CaptureVariable {
				continue
			}
			node, ok := captureNodes[c.Name]
			if !ok {
				continue
			}
			b := Binding{Text: langc.Text(node, src), Start: int(node.StartByte()), End: int(node.EndByte())}
			bindingsByVar[c.Variable] = append(bindingsByVar[c.Variable], b)
		}

		working := map[string]Binding{}
		for name, b := range seed {
			working[name] = b
		}
		for name, bs := range bindingsByVar {
			first := bs[0]
			for _, b := range bs[1:] {
				if b.Text != first.Text {
					continue matchLoop
				}
			}
			if existing, ok := working[name]; ok && existing.Text != first.Text {
				continue matchLoop
			}
			working[name] = first
		}

		for _, link := range tree.Children {
			childScope, ok := captureNodes[link.Scope]
			if !ok {
				continue matchLoop
			}
			childMatches, err := evaluate(link.Tree, childScope, src, working)
			if err != nil {
				return nil, err
			}
			if len(childMatches) == 0 {
				continue matchLoop
			}
			// Greedy first-match semantics: the first surviving child
			// result contributes its (seed-reconciled) bindings upward.
			working = childMatches[0].vars
		}

		negated := false
		for _, link := range tree.Negations {
			negScope, ok := captureNodes[link.Scope]
			if !ok {
				continue
			}
			negMatches, err := evaluate(link.Tree, negScope, src, working)
			if err != nil {
				return nil, err
			}
			if len(negMatches) > 0 {
				negated = true
				break
			}
		}
		if negated {
			continue matchLoop
		}

		rootNode, ok := captureNodes[querybuilder.RootCapture]
		if !ok {
			rootNode = scope
		}
		out = append(out, localMatch{root: rootNode, vars: working})
	}
	return out, nil
}
