// Command chasm is the CLI entry point: wires source discovery
// (internal/scan) through the Pattern Frontend, Query Builder, and
// Matcher, across the two-pool concurrency model (internal/workpool),
// optionally through the Multi-pattern Composer (internal/compose), to
// the Output collaborator (internal/present).
//
// Grounded on the teacher's cmd/morfx/main.go: flags are parsed into a
// config struct, files are discovered, the core engine runs, and results
// are printed — the same shape, generalized from file-transform results
// to search results. No summary line is printed after the results.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/termfx/chasm/internal/cliflags"
	"github.com/termfx/chasm/internal/clog"
	"github.com/termfx/chasm/internal/compose"
	"github.com/termfx/chasm/internal/langc"
	"github.com/termfx/chasm/internal/matcher"
	"github.com/termfx/chasm/internal/pattern"
	"github.com/termfx/chasm/internal/present"
	"github.com/termfx/chasm/internal/querybuilder"
	"github.com/termfx/chasm/internal/regexc"
	"github.com/termfx/chasm/internal/scan"
	"github.com/termfx/chasm/internal/workpool"
)

func main() {
	cmd := cliflags.NewRootCommand(run)
	if err := cmd.Execute(); err != nil {
		if cerr, ok := err.(clog.Error); ok {
			fmt.Fprintln(os.Stderr, cerr.Error())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(opts *cliflags.Options, _ []string) error {
	ctx := context.Background()
	lang := langc.C
	if opts.CPP {
		lang = langc.CPP
	}

	regexes, err := compileRegexes(opts.Regex)
	if err != nil {
		return err
	}

	patterns := append([]string{opts.Pattern}, opts.ExtraPatterns...)
	compiledTrees := make([]*matcher.Compiled, 0, len(patterns))
	for _, p := range patterns {
		compiled, err := compilePattern(ctx, p, lang, opts.Force, regexes)
		if err != nil {
			return err
		}
		compiledTrees = append(compiledTrees, compiled)
	}

	scanCfg := scan.Config{
		Extensions: opts.Extensions,
		Include:    opts.Include,
		Exclude:    opts.Exclude,
	}
	files, err := scan.Scan(ctx, opts.Root, lang, scanCfg, os.Stdin)
	if err != nil {
		return clog.Wrap(clog.InputUnreadable, "cannot discover source files", err)
	}

	limit := 0
	if opts.Limit {
		limit = 1
	}
	poolCfg := workpool.Config{Limit: limit, ParseWorkers: opts.Workers, MatchWorkers: opts.Workers}
	presentCfg := present.Config{Before: opts.Before, After: opts.After, Color: opts.Color}

	sink := clog.NewSink(256)
	go drainDiagnostics(sink)

	if len(compiledTrees) == 1 {
		runSingle(ctx, compiledTrees[0], files, lang, poolCfg, presentCfg, opts.Unique, sink)
	} else {
		runComposed(ctx, compiledTrees, files, lang, poolCfg, presentCfg, opts.Unique, sink)
	}
	sink.Close()

	return nil
}

func compileRegexes(raw []string) (map[string]*regexc.Constraint, error) {
	out := make(map[string]*regexc.Constraint, len(raw))
	for _, r := range raw {
		variable, expr, negate, err := regexc.ParseFlag(r)
		if err != nil {
			return nil, err
		}
		c, err := regexc.Compile(variable, expr, negate)
		if err != nil {
			return nil, err
		}
		out[variable] = c
	}
	return out, nil
}

func compilePattern(ctx context.Context, raw string, lang langc.Language, force bool, regexes map[string]*regexc.Constraint) (*matcher.Compiled, error) {
	ast, err := pattern.Normalize(ctx, raw, lang, force)
	if err != nil {
		return nil, err
	}
	if !force {
		if err := pattern.ValidateSigilPositions(ast.Root, ast.Source, force); err != nil {
			return nil, err
		}
	}

	tree, err := querybuilder.Build(ast, regexes)
	if err != nil {
		return nil, err
	}

	parser := langc.NewParser(lang)
	return matcher.Compile(parser.SitterLanguage(), tree, regexes)
}

func drainDiagnostics(sink *clog.Sink) {
	for d := range sink.Drain() {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", d.File, d.Message)
	}
}

// runSingle streams one pattern's matches file by file, printing each
// file's results as its workpool.FileResult arrives. Each file's results
// are deduplicated (spec.md §4.3: "duplicates are suppressed") and, when
// unique is set, filtered to results whose bound variables are pairwise
// distinct (spec.md §8 Scenario 5 is a single-pattern `--unique` case).
func runSingle(ctx context.Context, compiled *matcher.Compiled, files []string, lang langc.Language, poolCfg workpool.Config, presentCfg present.Config, unique bool, sink *clog.Sink) {
	results := workpool.Run(ctx, files, lang, compiled, poolCfg, sink)

	for fr := range results {
		if fr.Err != nil || len(fr.Results) == 0 {
			continue
		}
		rs := matcher.Dedup(fr.Results)
		if unique {
			rs = matcher.FilterUnique(rs)
		}
		if len(rs) == 0 {
			continue
		}
		src, err := os.ReadFile(fr.Path)
		if err != nil {
			continue
		}
		present.Print(os.Stdout, fr.Path, src, rs, presentCfg)
	}
}

// runComposed runs every pattern's workpool independently over the same
// file list (spec.md §4.4: "the matcher runs each one to produce k result
// streams per file"), then composes each file's k streams and prints the
// surviving tuples. Composition is per file, rather than one whole-corpus
// Cartesian product, since unifying two patterns' metavariables only makes
// sense within a shared file's coordinate space.
func runComposed(ctx context.Context, compiledTrees []*matcher.Compiled, files []string, lang langc.Language, poolCfg workpool.Config, presentCfg present.Config, unique bool, sink *clog.Sink) {
	perPattern := make([]map[string][]matcher.Result, len(compiledTrees))
	var order []string
	seen := map[string]bool{}

	for i, compiled := range compiledTrees {
		byPath := map[string][]matcher.Result{}
		for fr := range workpool.Run(ctx, files, lang, compiled, poolCfg, sink) {
			if fr.Err != nil || len(fr.Results) == 0 {
				continue
			}
			byPath[fr.Path] = matcher.Dedup(fr.Results)
			if i == 0 && !seen[fr.Path] {
				seen[fr.Path] = true
				order = append(order, fr.Path)
			}
		}
		perPattern[i] = byPath
	}

	for _, path := range order {
		streams := make([][]matcher.Result, len(perPattern))
		complete := true
		for i, byPath := range perPattern {
			rs, ok := byPath[path]
			if !ok {
				complete = false
				break
			}
			streams[i] = rs
		}
		if !complete {
			continue
		}

		tuples := compose.Compose(streams, unique)
		if len(tuples) == 0 {
			continue
		}

		src, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		for _, t := range tuples {
			present.Print(os.Stdout, path, src, t.Results, presentCfg)
		}
	}
}
