// Package langc supplies the Grammar Extension dependency: parsing,
// cursoring, and querying C and C++ source with tree-sitter.
//
// chasm treats the grammars themselves as a fixed, external dependency —
// it does not fork tree-sitter-c/tree-sitter-cpp to teach the identifier
// production about the `$` metavariable sigil. Both grammars' identifier
// regex is assumed to already admit a leading `$`, the same way GCC and
// Clang accept `$` in identifiers as a documented extension.
package langc

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

// Language selects which tree-sitter grammar a pattern or source file is
// parsed with.
type Language int

const (
	// C selects the C grammar.
	C Language = iota
	// CPP selects the C++ grammar.
	CPP
)

func (l Language) String() string {
	if l == CPP {
		return "c++"
	}
	return "c"
}

// DefaultExtensions returns the file extensions associated with a language,
// matching spec.md §6 (C: .c/.h; C++: .cc/.cpp/.cxx/.h/.hpp).
func (l Language) DefaultExtensions() []string {
	if l == CPP {
		return []string{".cc", ".cpp", ".cxx", ".h", ".hpp"}
	}
	return []string{".c", ".h"}
}

// sitterLanguage returns the *sitter.Language backing l.
func sitterLanguage(l Language) *sitter.Language {
	if l == CPP {
		return cpp.GetLanguage()
	}
	return c.GetLanguage()
}

// Parser parses byte buffers into tree-sitter ASTs for one grammar.
type Parser struct {
	lang    Language
	sitter  *sitter.Language
	wrapped *sitter.Parser
}

// NewParser constructs a Parser bound to the given language.
func NewParser(lang Language) *Parser {
	sl := sitterLanguage(lang)
	p := sitter.NewParser()
	p.SetLanguage(sl)
	return &Parser{lang: lang, sitter: sl, wrapped: p}
}

// Language reports which grammar this parser uses.
func (p *Parser) Language() Language {
	return p.lang
}

// SitterLanguage exposes the underlying *sitter.Language, needed to build
// tree-sitter queries against the parsed AST.
func (p *Parser) SitterLanguage() *sitter.Language {
	return p.sitter
}

// Parse parses src and returns the resulting tree. Callers must Close the
// tree once they are done walking or querying it.
func (p *Parser) Parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	tree, err := p.wrapped.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("langc: parse failed: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("langc: parser returned no tree")
	}
	return tree, nil
}

// Walk returns a fresh tree-sitter cursor rooted at node, the idiomatic way
// to step through children/fields without re-walking from the root.
func Walk(node *sitter.Node) *sitter.TreeCursor {
	return sitter.NewTreeCursor(node)
}

// Query compiles a structural tree-sitter query for this parser's grammar.
func (p *Parser) Query(text string) (*sitter.Query, error) {
	q, err := sitter.NewQuery([]byte(text), p.sitter)
	if err != nil {
		return nil, fmt.Errorf("langc: invalid structural query: %w", err)
	}
	return q, nil
}

// HasErrorNode reports whether any node in the subtree rooted at n is an
// ERROR node or a MISSING node — tree-sitter's signal that the parse did
// not fully succeed. The Pattern Frontend uses this to decide whether a
// candidate normalization of a raw pattern string actually parsed cleanly.
func HasErrorNode(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	if n.IsError() || n.IsMissing() {
		return true
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if HasErrorNode(n.Child(i)) {
			return true
		}
	}
	return false
}

// Text returns the source slice spanned by n.
func Text(n *sitter.Node, src []byte) string {
	return string(src[n.StartByte():n.EndByte()])
}
