// Package outcome defines the result classification a test runner hands to
// teardown, and the record diagnostics are captured against.
package outcome

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the result tag supplied by the runner at teardown time.
type Outcome int

const (
	Success Outcome = iota
	Failure
	FailureWithinThreshold
	Timeout
	Skipped
)

var names = map[Outcome]string{
	Success:                "SUCCESS",
	Failure:                "FAILURE",
	FailureWithinThreshold: "FAILURE_WITHIN_THRESHOLD",
	Timeout:                "TIMEOUT",
	Skipped:                "SKIPPED",
}

func (o Outcome) String() string {
	if n, ok := names[o]; ok {
		return n
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Parse maps a name such as "failure" or "FAILURE_WITHIN_THRESHOLD" to an Outcome.
func Parse(s string) (Outcome, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for o, n := range names {
		if n == want {
			return o, nil
		}
	}
	return Success, fmt.Errorf("unknown outcome %q", s)
}

// Failed reports whether the outcome requires diagnostics before disposal.
// FAILURE_WITHIN_THRESHOLD is opaque here and handled like a hard failure.
func (o Outcome) Failed() bool {
	switch o {
	case Failure, FailureWithinThreshold, Timeout:
		return true
	default:
		return false
	}
}

// Record describes a finished test.
type Record struct {
	Name     string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}
