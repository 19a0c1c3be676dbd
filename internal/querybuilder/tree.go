// Package querybuilder lowers a validated pattern AST (internal/pattern)
// into a QueryTree: a rooted tree of structural tree-sitter queries plus
// the side-channel metadata (capture kinds, variable equality classes,
// negative children, recursive children, regex constraints) spec.md §4.2
// requires to express what a single structural query cannot.
//
// This generalizes the teacher's internal/lang/golang/query_builder.go
// and predicate_builder.go: where the teacher selects from a small fixed
// template table keyed by a closed DSL node-type set, chasm walks an
// arbitrary C/C++ pattern AST and lowers whatever shape it finds, and
// extends the teacher's single flat query string into the recursive
// Tree/Link structure the matcher needs to escape tree-sitter's
// fixed-depth structural matching.
package querybuilder

// RootCapture is the reserved capture name every Tree's Query guarantees
// to emit, bound to the node that Tree as a whole matched. The matcher
// uses it to learn a match's overall span without needing a dedicated
// concept of "the node a query matched" from tree-sitter, which only
// reports per-capture nodes. User metavariables can never collide with
// it since `$__root` is not a pattern a metavariable lowering would ever
// produce from a single `$` sigil plus identifier characters alone.
const RootCapture = "__root"

// CaptureKind identifies what role a capture plays in a Tree's query, per
// spec.md §3.
type CaptureKind int

const (
	// CaptureVariable is a metavariable binding surfaced in QueryResults.
	CaptureVariable CaptureKind = iota
	// CaptureSubexpression anchors a `_(inner)` recursive child search.
	CaptureSubexpression
	// CaptureCheck is a bare `_` full-subtree wildcard: structurally
	// required but never surfaced to the user.
	CaptureCheck
	// CaptureAnchor is introduced by a literal name or node-identity
	// constraint; constrains structure but is not user-visible.
	CaptureAnchor
)

func (k CaptureKind) String() string {
	switch k {
	case CaptureVariable:
		return "Variable"
	case CaptureSubexpression:
		return "Subexpression"
	case CaptureCheck:
		return "Check"
	case CaptureAnchor:
		return "Anchor"
	default:
		return "Unknown"
	}
}

// Capture is one entry in a Tree's ordered capture vector.
type Capture struct {
	Kind CaptureKind
	// Name is the capture name used inside Query (without the leading @).
	Name string
	// Variable is the metavariable name this capture binds, set only when
	// Kind == CaptureVariable.
	Variable string
	// Index is a global, Build-wide unique identifier for this capture,
	// used to correlate captures across negations/children (spec.md §3's
	// `id` concept applied per-capture rather than per-tree).
	Index int
	// RegexExpr/RegexNegate hold a `-R` constraint attached to a Variable
	// capture, if the caller supplied one for this metavariable.
	RegexExpr   string
	RegexNegate bool
	HasRegex    bool
}

// Link points a Tree's negation or recursive-child entry at the capture
// name, within the containing Tree's own Query, whose matched node subtree
// the linked Tree must be (re-)searched within.
type Link struct {
	// Scope is the capture name in the *containing* Tree's Query whose
	// bound node supplies the search subtree for Tree.
	Scope string
	Tree   *Tree
}

// Tree is one QueryTree node (spec.md §3): a structural tree-sitter query
// plus the metadata the host query engine cannot itself express.
type Tree struct {
	// ID is a stable identifier correlating this Tree across negations
	// and children, per spec.md §3.
	ID int
	// Query is the structural tree-sitter query text for this node alone;
	// it does not include the text of recursive Children or Negations,
	// which are independently (re-)executed by the matcher.
	Query string
	// Captures is the ordered capture vector for Query.
	Captures []Capture
	// Variables maps each metavariable name appearing anywhere in this
	// node or any descendant (child/negation) to the set of global
	// capture indices that must bind equal text. Closed under descendants
	// per spec.md §3.
	Variables map[string][]int
	// Negations are child Trees whose non-matching, within the node bound
	// to Link.Scope, is required for this Tree to hold.
	Negations []Link
	// Children are child Trees representing recursive subexpression
	// matches: the matcher re-searches the subtree bound to Link.Scope.
	Children []Link
}

// AnyVariableIndices returns Variables itself: each metavariable name
// mapped to the global capture indices of its equality class. The map is
// neither flattened nor copied.
func (t *Tree) AnyVariableIndices() map[string][]int {
	return t.Variables
}
