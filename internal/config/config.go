// Package config loads the cross-machine defaults SPEC_FULL.md's ambient
// Configuration section names: default worker count, default context line
// counts, and the default extension set, each overridable by an
// environment variable and an optional `.env` file.
//
// Grounded on the teacher's internal/config.LoadConfig: read defaults,
// then override from named environment variables one at a time,
// validating each before accepting it. Generalized to load a `.env` file
// first via joho/godotenv (the teacher only exercises godotenv in its
// db/sqlite_integration_test.go fixture setup; here it is wired into the
// actual startup path instead of only a test).
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Defaults holds the values SPEC_FULL.md says may vary across machines.
type Defaults struct {
	// Workers is the worker count for both the parse and match pools
	// (internal/workpool); 0 means "let Config.parseWorkers/matchWorkers
	// fall back to runtime.NumCPU()."
	Workers int
	// Before and After are the default `-B`/`-A` context line counts.
	Before int
	After int
	// Extensions is the default file extension set, overriding the
	// language's built-in defaults when non-empty.
	Extensions []string
}

// Load reads a `.env` file in the current directory if present (a
// missing file is not an error — godotenv.Load's error is intentionally
// discarded, as the teacher's own integration test does), then applies
// any CHASM_* environment variable overrides on top of the baseline
// defaults (`-B`/`-A` at 5, matching spec.md §6's stated default).
func Load() Defaults {
	_ = godotenv.Load()

	d := Defaults{Before: 5, After: 5}

	if v := os.Getenv("CHASM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			d.Workers = n
		}
	}
	if v := os.Getenv("CHASM_CONTEXT_BEFORE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			d.Before = n
		}
	}
	if v := os.Getenv("CHASM_CONTEXT_AFTER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			d.After = n
		}
	}
	if v := os.Getenv("CHASM_EXTENSIONS"); v != "" {
		d.Extensions = strings.Split(v, ",")
	}

	return d
}
