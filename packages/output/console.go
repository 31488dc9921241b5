package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/runner"
	"github.com/abdul-hamid-achik/playspec/packages/metrics"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer      io.Writer
	verbose     bool
	noColor     bool
	attachments *Attachments
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func WithAttachments(a *Attachments) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.attachments = a
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Running: "+result.Suite+" ("+result.File+")"))
	fmt.Fprintf(f.writer, "\n")

	for _, r := range result.Results {
		if r.Outcome == outcome.Skipped {
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), r.Name)
			if r.SkipReason != "" && r.SkipReason != "filtered out" {
				fmt.Fprintf(f.writer, " (%s)", r.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		}

		symbol := green("✓")
		if !r.Passed() {
			symbol = red("✗")
		}

		fmt.Fprintf(f.writer, "  %s %s %s", symbol, r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
		if r.Outcome == outcome.Timeout {
			fmt.Fprintf(f.writer, " %s", red("TIMEOUT"))
		}
		if r.Attempts > 1 {
			fmt.Fprintf(f.writer, " %s", yellow(fmt.Sprintf("[%d attempts]", r.Attempts)))
		}
		fmt.Fprintf(f.writer, "\n")

		if f.verbose {
			for _, s := range r.Steps {
				mark := green("·")
				if !s.Passed {
					mark = red("·")
				}
				fmt.Fprintf(f.writer, "    %s %s %s\n", mark, s.Step, cyan(fmt.Sprintf("(%dms)", s.Duration.Milliseconds())))
			}
			if r.Response != nil {
				fmt.Fprintf(f.writer, "    Status: %d\n", r.Response.StatusCode)
			}
		}

		if r.Error != nil {
			fmt.Fprintf(f.writer, "    %s %v\n", red("→"), r.Error)
		}

		for _, a := range r.Assertions {
			if a.Passed {
				continue
			}
			fmt.Fprintf(f.writer, "    %s %s %s\n", red("→"), a.Assertion.Subject, a.Assertion.Operator)
			fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Assertion.Expected, 100))
			fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, 100))
			if a.Message != "" {
				fmt.Fprintf(f.writer, "      %s\n", a.Message)
			}
		}

		for _, att := range f.attachments.For(r.Owner) {
			fmt.Fprintf(f.writer, "    %s %s: %s\n", yellow("+"), att.Name, att.Path)
		}

		if f.verbose && len(r.Captures) > 0 {
			fmt.Fprintf(f.writer, "    Captures:\n")
			for name, value := range r.Captures {
				fmt.Fprintf(f.writer, "      %s = %v\n", name, value)
			}
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Checks: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	total := result.Passed + result.Failed + result.Skipped
	fmt.Fprintf(f.writer, "%d total\n", total)
	fmt.Fprintf(f.writer, "Time:   %dms\n", result.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
}

// FormatMetrics prints a latency table, one row per wait state or API method.
func (f *ConsoleFormatter) FormatMetrics(summaries []metrics.Summary) {
	if len(summaries) == 0 {
		return
	}
	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(f.writer, "%s\n", bold("Latency"))
	fmt.Fprintf(f.writer, "  %-16s %7s %7s %9s %9s %9s %9s\n", "", "count", "failed", "p50", "p95", "p99", "max")
	for _, s := range summaries {
		failed := fmt.Sprintf("%7d", s.Failures)
		if s.Failures > 0 {
			failed = red(failed)
		}
		fmt.Fprintf(f.writer, "  %-16s %7d %s %9s %9s %9s %9s\n",
			s.Name, s.Count, failed, ms(s.P50), ms(s.P95), ms(s.P99), ms(s.Max))
	}
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("playspec"), version)
}
