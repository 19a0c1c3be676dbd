// Package regexc wraps dlclark/regexp2 so the rest of chasm can compile and
// apply the Perl-style regex constraints spec.md §6's `-R` flag accepts
// (stdlib regexp is RE2-based and rejects backreferences/lookaround that
// weggli-style `-R` patterns commonly rely on).
package regexc

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/termfx/chasm/internal/clog"
)

// Constraint is one compiled `-R name=regex` or `-R name!=regex` binding.
type Constraint struct {
	Variable string
	Expr     string
	Negate   bool
	re       *regexp2.Regexp
}

// Compile compiles expr for use as a regex constraint. It returns a
// RegexCompile error (spec.md §7) on invalid syntax.
func Compile(variable, expr string, negate bool) (*Constraint, error) {
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, clog.Wrap(clog.RegexCompile,
			fmt.Sprintf("invalid regex for metavariable %q", variable), err)
	}
	return &Constraint{Variable: variable, Expr: expr, Negate: negate, re: re}, nil
}

// Matches reports whether text satisfies the constraint: for a positive
// constraint the regex must match somewhere in text; for a negative one it
// must not.
func (c Constraint) Matches(text string) bool {
	m, err := c.re.MatchString(text)
	if err != nil {
		// A catastrophic regex engine failure (e.g. timeout) is treated as
		// a non-match rather than aborting the whole run.
		return c.Negate
	}
	if c.Negate {
		return !m
	}
	return m
}

// ParseFlag parses the `-R` flag's `v=re` / `v!=re` surface syntax.
func ParseFlag(raw string) (variable, expr string, negate bool, err error) {
	if idx := strings.Index(raw, "!="); idx >= 0 {
		return raw[:idx], raw[idx+2:], true, nil
	}
	if idx := strings.Index(raw, "="); idx >= 0 {
		return raw[:idx], raw[idx+1:], false, nil
	}
	return "", "", false, clog.Wrap(clog.PatternSyntax,
		fmt.Sprintf("regex flag %q must be of the form v=re or v!=re", raw), nil)
}
