package regexc

import "testing"

func TestCompileAndMatchPositive(t *testing.T) {
	c, err := Compile("x", "^tmp_.*$", false)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !c.Matches("tmp_buf") {
		t.Fatal("expected match")
	}
	if c.Matches("buf") {
		t.Fatal("expected no match")
	}
}

func TestCompileAndMatchNegative(t *testing.T) {
	c, err := Compile("x", "^tmp_.*$", true)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if c.Matches("tmp_buf") {
		t.Fatal("expected negated constraint to reject tmp_ prefix")
	}
	if !c.Matches("buf") {
		t.Fatal("expected negated constraint to accept non tmp_ text")
	}
}

func TestCompileRejectsInvalidSyntax(t *testing.T) {
	if _, err := Compile("x", "(unclosed", false); err == nil {
		t.Fatal("expected RegexCompile error for invalid syntax")
	}
}

func TestParseFlagPositiveAndNegative(t *testing.T) {
	v, expr, neg, err := ParseFlag("buf=^tmp_")
	if err != nil || v != "buf" || expr != "^tmp_" || neg {
		t.Fatalf("ParseFlag positive = %q %q %v %v", v, expr, neg, err)
	}
	v, expr, neg, err = ParseFlag("buf!=^tmp_")
	if err != nil || v != "buf" || expr != "^tmp_" || !neg {
		t.Fatalf("ParseFlag negative = %q %q %v %v", v, expr, neg, err)
	}
}

func TestParseFlagRejectsMalformed(t *testing.T) {
	if _, _, _, err := ParseFlag("nope"); err == nil {
		t.Fatal("expected PatternSyntax error")
	}
}

func TestCompileSupportsBackreferences(t *testing.T) {
	// Backreferences are outside RE2's subset; regexp2 is wired in
	// specifically so this class of constraint works.
	c, err := Compile("x", `^(\w+)_\1$`, false)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !c.Matches("tmp_tmp") {
		t.Fatal("expected backreference pattern to match a repeated token")
	}
	if c.Matches("tmp_buf") {
		t.Fatal("expected backreference pattern to reject a non-repeated token")
	}
}
