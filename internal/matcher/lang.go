package matcher

import sitter "github.com/smacker/go-tree-sitter"

// EnclosingFunction walks up from n to the nearest ancestor
// function_definition, falling back to the translation unit root when n
// is not nested in any function. This is `--limit`'s bucketing unit
// (spec.md §6): results are capped per enclosing function, with the
// translation unit itself as the bucket for file-scope matches.
func EnclosingFunction(n *sitter.Node) *sitter.Node {
	cur := n
	for cur != nil {
		if cur.Type() == "function_definition" {
			return cur
		}
		parent := cur.Parent()
		if parent == nil {
			return cur
		}
		cur = parent
	}
	return n
}
