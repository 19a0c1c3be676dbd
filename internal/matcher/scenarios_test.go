package matcher

import (
	"testing"

	"github.com/termfx/chasm/internal/regexc"
)

// Table-driven acceptance tests for spec.md §8's worked scenarios 1, 2
// and 6. Scenario 4 has its own test below. Scenario 3 (negation) is
// covered by TestNegationSoundness and scenario 5's --unique filtering by
// TestFilterUniqueDropsResultsWithRepeatedBinding, both in matcher_test.go,
// since they need assertions beyond a single "one result with these
// bindings" shape.
func TestScenarios(t *testing.T) {
	cases := []struct {
		name    string
		pattern string
		source  string
		regexes map[string]*regexc.Constraint
		want    map[string]string
	}{
		{
			name:    "stack buffer memcpy",
			pattern: "{ _ $buf[_]; memcpy($buf,_,_); }",
			source:  "void f(){ char b[16]; memcpy(b,src,16); }",
			want:    map[string]string{"buf": "b"},
		},
		{
			name:    "off-by-one snprintf",
			pattern: "{ $r = snprintf($b,_,_); $b[$r]=_; }",
			source:  "void f(char *buf, int s, char *fmt){ int n = snprintf(buf, s, fmt); buf[n] = 0; }",
			want:    map[string]string{"r": "n", "b": "buf"},
		},
		{
			name:    "regex filter",
			pattern: "$fn(_);",
			source:  "void f(char*a,char*b,int c,char*s){ memcpy(a,b,c); strlen(s); }",
			regexes: func() map[string]*regexc.Constraint {
				rc, err := regexc.Compile("fn", "^mem", false)
				if err != nil {
					t.Fatalf("regexc.Compile: %v", err)
				}
				return map[string]*regexc.Constraint{"fn": rc}
			}(),
			want: map[string]string{"fn": "memcpy"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results := runPattern(t, tc.pattern, tc.source, tc.regexes)
			if len(results) != 1 {
				t.Fatalf("expected 1 result, got %d: %+v", len(results), results)
			}
			for k, want := range tc.want {
				if got := results[0].Variables[k].Text; got != want {
					t.Fatalf("%s = %q, want %q", k, got, want)
				}
			}
		})
	}
}

// Scenario 4: the subexpression wildcard in `f(_(buf))` must find `buf`
// nested inside the argument `g(buf+1)`; the pattern has no
// metavariables, so the test checks that at least one result is produced.
func TestScenarioSubexpressionWildcard(t *testing.T) {
	src := "void f(int buf){ int x = f(g(buf+1)); }"
	results := runPattern(t, "f(_(buf))", src, nil)
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
}
