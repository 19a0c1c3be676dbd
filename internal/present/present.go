// Package present is the Output collaborator spec.md §6 describes: for
// each QueryResult it prints the surrounding source lines (before/after
// context, default 5 each) with captured-variable spans highlighted, and
// merges the context windows of results that overlap within the same
// enclosing function into a single printout.
//
// Grounded on the teacher's internal/config/output.go (PrintResultCLI's
// per-file "✓ file — ..." header line and its line-numbered match listing)
// generalized from a single post-edit summary line to a full context-window
// renderer, since chasm has no edits to summarize, only matches to show.
package present

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/termfx/chasm/internal/matcher"
)

// Config controls how much surrounding source is shown and whether
// captured variables are colorized.
type Config struct {
	// Before and After are the context line counts spec.md §6 names
	// (`-A`/`-B`); both default to 5 per the supplemented-features default.
	Before int
	After int
	// Color forces highlighting on regardless of whether stdout is a
	// terminal (`-C`, "Force color").
	Color bool
}

func (c Config) before() int {
	if c.Before > 0 {
		return c.Before
	}
	return 5
}

func (c Config) after() int {
	if c.After > 0 {
		return c.After
	}
	return 5
}

// window is one merged printout: a contiguous line range in one file and
// the results whose context it covers.
type window struct {
	startLine, endLine int // 0-indexed, inclusive
	results            []matcher.Result
}

// Print renders every result found in one file's source to w, merging
// overlapping context windows within the same enclosing function per
// spec.md §6.
func Print(w io.Writer, path string, src []byte, results []matcher.Result, cfg Config) {
	if len(results) == 0 {
		return
	}

	lines := splitLines(src)
	windows := buildWindows(lines, results, cfg)

	highlight := newHighlighter(cfg.Color)

	for _, win := range windows {
		fmt.Fprintf(w, "--- %s:%d\n", path, win.startLine+1)
		spans := highlightSpans(win.results)
		lineStart := lineByteOffsets(lines)[win.startLine]
		for ln := win.startLine; ln <= win.endLine && ln < len(lines); ln++ {
			lineText := lines[ln]
			lineByteStart := lineStart
			fmt.Fprintf(w, "%5d | %s\n", ln+1, highlight(lineText, lineByteStart, spans))
			lineStart += len(lineText) + 1
		}
		fmt.Fprintln(w)
	}
}

// buildWindows computes each result's raw [startLine-before, endLine+after]
// range, then merges any two windows that overlap and share the same
// enclosing function (comparing enclosing-function byte spans, the same
// bucket key internal/workpool uses for `--limit`), per spec.md §6:
// "Multiple results whose context windows overlap within the same function
// are merged into one printout."
func buildWindows(lines []string, results []matcher.Result, cfg Config) []window {
	offsets := lineByteOffsets(lines)

	type entry struct {
		win  window
		fn   [2]int
		hasF bool
	}
	entries := make([]entry, 0, len(results))
	for _, r := range results {
		startLine := lineForOffset(offsets, r.RootStart)
		endLine := lineForOffset(offsets, r.RootEnd)
		w := window{
			startLine: max0(startLine - cfg.before()),
			endLine:   min(endLine+cfg.after(), len(lines)-1),
			results:   []matcher.Result{r},
		}
		e := entry{win: w}
		if r.RootNode != nil {
			fn := matcher.EnclosingFunction(r.RootNode)
			e.fn = [2]int{int(fn.StartByte()), int(fn.EndByte())}
			e.hasF = true
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].win.startLine < entries[j].win.startLine
	})

	var merged []entry
	for _, e := range entries {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			sameFn := (!e.hasF && !last.hasF) || (e.hasF && last.hasF && e.fn == last.fn)
			overlaps := e.win.startLine <= last.win.endLine+1
			if sameFn && overlaps {
				if e.win.endLine > last.win.endLine {
					last.win.endLine = e.win.endLine
				}
				last.win.results = append(last.win.results, e.win.results...)
				continue
			}
		}
		merged = append(merged, e)
	}

	out := make([]window, 0, len(merged))
	for _, e := range merged {
		out = append(out, e.win)
	}
	return out
}

type span struct {
	start, end int
}

// highlightSpans flattens every captured variable's byte span across a
// window's results into one list sorted by start offset, ready for
// line-by-line rendering. Overlapping spans are kept; the highlighter
// skips any span that starts inside one it has already colored.
func highlightSpans(results []matcher.Result) []span {
	var spans []span
	for _, r := range results {
		for _, b := range r.Variables {
			spans = append(spans, span{start: b.Start, end: b.End})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans
}

// newHighlighter returns a function that renders one source line with any
// captured-variable spans falling inside it colorized, or left plain when
// forceColor is false and the underlying terminal isn't one fatih/color
// would colorize anyway (color.NoColor reflects that automatically).
func newHighlighter(forceColor bool) func(line string, lineByteStart int, spans []span) string {
	bold := color.New(color.FgYellow, color.Bold)
	if forceColor {
		bold.EnableColor()
	}
	return func(line string, lineByteStart int, spans []span) string {
		var b strings.Builder
		cursor := 0
		for _, sp := range spans {
			s := sp.start - lineByteStart
			e := sp.end - lineByteStart
			if e <= 0 || s >= len(line) {
				continue
			}
			if s < 0 {
				s = 0
			}
			if e > len(line) {
				e = len(line)
			}
			if s < cursor || s >= e {
				continue
			}
			b.WriteString(line[cursor:s])
			b.WriteString(bold.Sprint(line[s:e]))
			cursor = e
		}
		b.WriteString(line[cursor:])
		return b.String()
	}
}

func splitLines(src []byte) []string {
	text := string(src)
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func lineByteOffsets(lines []string) []int {
	offsets := make([]int, len(lines))
	pos := 0
	for i, l := range lines {
		offsets[i] = pos
		pos += len(l) + 1
	}
	return offsets
}

func lineForOffset(offsets []int, byteOffset int) int {
	i := sort.Search(len(offsets), func(i int) bool { return offsets[i] > byteOffset })
	if i == 0 {
		return 0
	}
	return i - 1
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
