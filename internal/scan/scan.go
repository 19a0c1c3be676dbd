// Package scan discovers the C/C++ source files a search run should read:
// recursive directory traversal, `--include`/`--exclude` glob filtering,
// .gitignore honoring, and a stdin path-list mode for piping in an
// explicit file set (spec.md §6).
package scan

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/termfx/chasm/internal/langc"
)

// Config controls which files Scan discovers under a root.
type Config struct {
	// Extensions restricts discovery to these file extensions (including
	// the leading dot); empty means the language's defaults apply.
	Extensions []string
	// Include, when non-empty, requires a file's path to match at least
	// one doublestar glob.
	Include []string
	// Exclude drops any file matching one of these doublestar globs.
	Exclude []string
	// NoGitignore disables .gitignore honoring.
	NoGitignore bool
	// FollowSymlinks makes the walk descend into symlinked directories.
	FollowSymlinks bool
}

// extensions returns cfg's explicit extension list, or lang's defaults.
func (cfg Config) extensions(lang langc.Language) map[string]bool {
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = lang.DefaultExtensions()
	}
	out := make(map[string]bool, len(exts))
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out[strings.ToLower(e)] = true
	}
	return out
}

// Scan discovers every file under root that Config accepts. root of "-"
// reads a newline-separated path list from stdin instead of walking a
// directory, matching spec.md §6's stdin path-list mode.
func Scan(ctx context.Context, root string, lang langc.Language, cfg Config, stdin io.Reader) ([]string, error) {
	if root == "-" {
		return scanStdin(stdin, lang, cfg)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan: cannot access %s: %w", root, err)
	}
	if !info.IsDir() {
		if acceptPath(root, lang, cfg, nil) {
			return []string{root}, nil
		}
		return nil, nil
	}

	var gi *ignore.GitIgnore
	if !cfg.NoGitignore {
		gi = loadGitignore(root)
	}

	var files []string
	walkErr := fs.WalkDir(os.DirFS(root), ".", func(relPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		full := filepath.Join(root, relPath)

		if d.IsDir() {
			if relPath != "." && shouldSkipDir(relPath, d.Name(), gi) {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 && !cfg.FollowSymlinks {
			return nil
		}

		if gi != nil && gi.MatchesPath(relPath) {
			return nil
		}

		if acceptPath(full, lang, cfg, gi) {
			files = append(files, full)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("scan: walking %s: %w", root, walkErr)
	}
	return files, nil
}

func scanStdin(r io.Reader, lang langc.Language, cfg Config) ([]string, error) {
	if r == nil {
		r = os.Stdin
	}
	var files []string
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if acceptPath(line, lang, cfg, nil) {
			files = append(files, line)
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan: reading stdin path list: %w", err)
	}
	return files, nil
}

func acceptPath(path string, lang langc.Language, cfg Config, gi *ignore.GitIgnore) bool {
	exts := cfg.extensions(lang)
	if !exts[strings.ToLower(filepath.Ext(path))] {
		return false
	}

	if len(cfg.Include) > 0 {
		matched := false
		for _, pat := range cfg.Include {
			if ok, _ := doublestar.PathMatch(pat, path); ok {
				matched = true
				break
			}
			if ok, _ := doublestar.PathMatch(pat, filepath.Base(path)); ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, pat := range cfg.Exclude {
		if ok, _ := doublestar.PathMatch(pat, path); ok {
			return false
		}
		if ok, _ := doublestar.PathMatch(pat, filepath.Base(path)); ok {
			return false
		}
	}

	return true
}

// defaultSkipDirs mirrors common non-source directories the teacher's
// scanner also refuses to descend into, independent of .gitignore.
var defaultSkipDirs = map[string]bool{
	".git": true, "vendor": true, "node_modules": true,
	"build": true, "dist": true, "cmake-build-debug": true,
}

func shouldSkipDir(relPath, name string, gi *ignore.GitIgnore) bool {
	if gi != nil && gi.MatchesPath(relPath) {
		return true
	}
	if defaultSkipDirs[name] {
		return true
	}
	return strings.HasPrefix(name, ".")
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
