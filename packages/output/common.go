package output

import (
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/runner"
)

func ms(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
}

// status is the CSS class and JSON status of a check.
func status(r *runner.CheckResult) string {
	switch r.Outcome {
	case outcome.Success:
		return "passed"
	case outcome.Skipped:
		return "skipped"
	case outcome.Timeout:
		return "timeout"
	default:
		return "failed"
	}
}

// failures lists why a check did not pass: the failing step, failed
// assertions and the check error.
func failures(r *runner.CheckResult) []string {
	var out []string
	for _, s := range r.Steps {
		if !s.Passed {
			out = append(out, fmt.Sprintf("step %q: %v", s.Step, s.Error))
		}
	}
	for _, a := range r.Assertions {
		if !a.Passed {
			out = append(out, fmt.Sprintf("%s: expected %v, got %v. %s",
				a.Assertion.Subject+" "+a.Assertion.Operator, a.Assertion.Expected, a.Actual, a.Message))
		}
	}
	if len(out) == 0 && r.Error != nil {
		out = append(out, r.Error.Error())
	}
	return out
}
