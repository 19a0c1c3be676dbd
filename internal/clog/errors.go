// Package clog carries chasm's error-kind taxonomy and the small
// diagnostic log used for per-file anomalies. It generalizes the
// teacher's flat CLIError/Wrap pair (internal/core/errorfmt.go) into the
// five typed error kinds spec.md §7 names.
package clog

import "encoding/json"

// Kind identifies one of the five error categories spec.md §7 defines.
type Kind string

const (
	// PatternSyntax is raised when the Pattern Frontend cannot normalize
	// or validate a raw pattern string.
	PatternSyntax Kind = "PatternSyntax"
	// UnsupportedConstruct is raised when the Query Builder cannot lower
	// a pattern AST node to a structural query.
	UnsupportedConstruct Kind = "UnsupportedConstruct"
	// RegexCompile is raised when a -R metavariable regex fails to compile.
	RegexCompile Kind = "RegexCompile"
	// InputUnreadable is raised when the input root cannot be read.
	InputUnreadable Kind = "InputUnreadable"
	// ParserInternal is raised for host-parser failures unrelated to the
	// pattern or target source being malformed.
	ParserInternal Kind = "ParserInternal"
)

// Error is chasm's uniform error payload, printable as a short human
// string (Error) or marshaled whole as JSON (JSON).
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e Error) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// JSON renders e as a compact JSON object.
func (e Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Wrap builds an Error of the given kind, carrying inner's message as detail.
func Wrap(kind Kind, msg string, inner error) error {
	if inner == nil {
		return Error{Kind: kind, Message: msg}
	}
	return Error{Kind: kind, Message: msg, Detail: inner.Error()}
}

// Diagnostic is a non-fatal warning surfaced for a single file: a parse
// failure or match-time anomaly that causes that file to be skipped
// without aborting the run (spec.md §7).
type Diagnostic struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// Sink collects Diagnostics as they occur across the worker pool. It is
// safe for concurrent use; workers in internal/workpool append to it
// directly rather than plumbing errors back through a channel.
type Sink struct {
	ch chan Diagnostic
}

// NewSink creates a Sink with the given buffer capacity.
func NewSink(buffer int) *Sink {
	return &Sink{ch: make(chan Diagnostic, buffer)}
}

// Report enqueues a diagnostic. Once the buffer is full, Report blocks
// until a consumer drains the sink; callers should size the buffer to the
// expected file count or drain concurrently.
func (s *Sink) Report(file, message string) {
	s.ch <- Diagnostic{File: file, Message: message}
}

// Close signals that no further diagnostics will be reported.
func (s *Sink) Close() {
	close(s.ch)
}

// Drain returns the channel of reported diagnostics for a consumer to range over.
func (s *Sink) Drain() <-chan Diagnostic {
	return s.ch
}
