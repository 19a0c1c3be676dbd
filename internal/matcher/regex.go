package matcher

import "github.com/termfx/chasm/internal/regexc"

// regexFilter checks a bound metavariable's text against the compiled
// `-R` constraint spec.md §4.3's "Regex filters" step requires: a
// positive constraint's text must match, a negative one's must not.
// Anchor captures never carry a constraint (spec.md §9), so this is only
// ever consulted for Variable captures.
func regexFilter(c *regexc.Constraint, text string) bool {
	if c == nil {
		return true
	}
	return c.Matches(text)
}
