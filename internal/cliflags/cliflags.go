// Package cliflags builds the chasm command line: a single spf13/cobra
// root command whose flags mirror spec.md §6's CLI flag surface
// one-for-one. Grounded on the teacher's cmd/morfx/main.go flag
// definitions (pflag.StringP/BoolP/IntP/StringSlice style, one var per
// flag) adapted onto a cobra.Command's embedded FlagSet instead of a bare
// pflag.FlagSet, since SPEC_FULL.md's ambient CLI stack calls for cobra
// rather than morfx's own hand-wired pflag entry point.
package cliflags

import (
	"github.com/spf13/cobra"

	"github.com/termfx/chasm/internal/config"
)

// Options holds every flag and positional argument chasm's CLI accepts.
type Options struct {
	// Pattern is the primary pattern, given as the first positional
	// argument (weggli-style `chasm '<pattern>' <path>`).
	Pattern string
	// Root is the search root: a directory, a single file, or "-" for
	// stdin path-list mode (spec.md §6). Defaults to the current
	// directory when omitted.
	Root string

	// ExtraPatterns holds every `-p/--pattern` value; one or more
	// triggers multi-pattern composition (spec.md §4.4).
	ExtraPatterns []string
	// CPP selects the C++ grammar and C++ default extensions (`-X`).
	CPP bool
	// Extensions overrides the language's default extension set (`-e`).
	Extensions []string
	// Include and Exclude are path glob filters.
	Include []string
	Exclude []string
	// Unique applies global metavariable distinctness (`-u`).
	Unique bool
	// Regex holds every `-R v=re` / `-R v!=re` constraint, unparsed.
	Regex []string
	// Limit restricts results to the first match per enclosing function
	// (`-l`; spec.md §6 names it a bare flag, not a count).
	Limit bool
	// Force proceeds despite pattern syntax errors (`-f`).
	Force bool
	// Before and After are context line counts (`-B`/`-A`).
	Before int
	After   int
	// Color forces highlighting on (`-C`).
	Color bool

	// Workers is the parse/match pool size, sourced from CHASM_WORKERS
	// (spec.md §6 names no CLI flag for it; env-only, per the ambient
	// Configuration section). 0 means "let workpool fall back to
	// runtime.NumCPU()."
	Workers int
}

// NewRootCommand builds the chasm root command. run is invoked once flags
// and positional arguments have been parsed into an Options.
func NewRootCommand(run func(*Options, []string) error) *cobra.Command {
	opts := &Options{}
	defaults := config.Load()

	cmd := &cobra.Command{
		Use:   "chasm <pattern> [path]",
		Short: "Interactive semantic search for C/C++ source trees",
		Long: "chasm searches C/C++ source for structural patterns written in a superset\n" +
			"of C/C++ syntax: metavariables ($x), wildcards (_), subexpression search\n" +
			"(_(...)), and negation (not: ...).",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Workers = defaults.Workers
			opts.Pattern = args[0]
			if len(args) == 2 {
				opts.Root = args[1]
			}
			if opts.Root == "" {
				opts.Root = "."
			}
			return run(opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.ExtraPatterns, "pattern", "p", nil,
		"Additional top-level pattern; triggers multi-pattern composition.")
	flags.BoolVarP(&opts.CPP, "cpp", "X", false, "Select the C++ grammar and C++ default extensions.")
	flags.StringSliceVarP(&opts.Extensions, "extensions", "e", defaults.Extensions, "Override the default extension set.")
	flags.StringArrayVar(&opts.Include, "include", nil, "Glob filter (doublestar syntax, not a regex) on full path or base name: only search matching paths.")
	flags.StringArrayVar(&opts.Exclude, "exclude", nil, "Glob filter (doublestar syntax, not a regex) on full path or base name: skip matching paths.")
	flags.BoolVarP(&opts.Unique, "unique", "u", false, "Require distinct metavariables to bind distinct text.")
	flags.StringArrayVarP(&opts.Regex, "regex", "R", nil, "Attach a regex constraint to a metavariable: v=re or v!=re.")
	flags.BoolVarP(&opts.Limit, "limit", "l", false, "First match per enclosing function only.")
	flags.BoolVarP(&opts.Force, "force", "f", false, "Proceed despite pattern syntax errors.")
	flags.IntVarP(&opts.Before, "before", "B", defaults.Before, "Lines of context before each match.")
	flags.IntVarP(&opts.After, "after", "A", defaults.After, "Lines of context after each match.")
	flags.BoolVarP(&opts.Color, "color", "C", false, "Force color output.")

	return cmd
}
