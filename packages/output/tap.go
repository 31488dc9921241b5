package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/runner"
)

// TAPFormatter formats check results in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer      io.Writer
	attachments *Attachments
	testCount   int
	results     []tapResult
}

type tapResult struct {
	number      int
	name        string
	outcome     outcome.Outcome
	skipReason  string
	failures    []string
	attachments []Attachment
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func TAPWithAttachments(a *Attachments) TAPOption {
	return func(f *TAPFormatter) {
		f.attachments = a
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		f.testCount++
		tr := tapResult{
			number:      f.testCount,
			name:        r.Name,
			outcome:     r.Outcome,
			skipReason:  r.SkipReason,
			attachments: f.attachments.For(r.Owner),
		}
		if !r.Passed() {
			tr.failures = failures(r)
		}
		f.results = append(f.results, tr)
	}
}

func (f *TAPFormatter) FormatError(err error) {
	// Errors are included in individual check results
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	// TAP version header
	fmt.Fprintf(f.writer, "TAP version 13\n")

	// Test plan
	fmt.Fprintf(f.writer, "1..%d\n", f.testCount)

	// Individual check results
	for _, r := range f.results {
		switch r.outcome {
		case outcome.Skipped:
			reason := r.skipReason
			if reason == "" || reason == "filtered out" {
				reason = "SKIP"
			}
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP %s\n", r.number, r.name, reason)
			continue
		case outcome.Success:
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
			continue
		}

		fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
		fmt.Fprintf(f.writer, "  ---\n")
		fmt.Fprintf(f.writer, "  outcome: %s\n", r.outcome)
		if len(r.failures) > 0 {
			fmt.Fprintf(f.writer, "  failures:\n")
			for _, msg := range r.failures {
				fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(msg))
			}
		}
		if len(r.attachments) > 0 {
			fmt.Fprintf(f.writer, "  attachments:\n")
			for _, a := range r.attachments {
				fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(a.Path))
			}
		}
		fmt.Fprintf(f.writer, "  ...\n")
	}

	// Add final newline for proper TAP output
	fmt.Fprintln(f.writer)

	return nil
}

func escapeYAML(s string) string {
	// Simple YAML escaping - wrap in quotes if contains special chars
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		return "\"" + s + "\""
	}
	return s
}
