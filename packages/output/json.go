package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/runner"
	"github.com/abdul-hamid-achik/playspec/packages/metrics"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary       `json:"summary"`
	Checks   []JSONCheck       `json:"checks"`
	Metrics  []metrics.Summary `json:"metrics,omitempty"`
	Duration float64           `json:"duration"`
	Time     string            `json:"time"`
}

// JSONSummary represents the run summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// JSONCheck represents a single check result
type JSONCheck struct {
	Name        string          `json:"name"`
	Suite       string          `json:"suite"`
	File        string          `json:"file"`
	Kind        string          `json:"kind"`
	Outcome     string          `json:"outcome"`
	Status      string          `json:"status"`
	Browser     string          `json:"browser,omitempty"`
	SkipReason  string          `json:"skipReason,omitempty"`
	Duration    float64         `json:"duration"`
	Attempts    int             `json:"attempts,omitempty"`
	Error       string          `json:"error,omitempty"`
	Steps       []JSONStep      `json:"steps,omitempty"`
	Request     *JSONRequest    `json:"request,omitempty"`
	Response    *JSONResponse   `json:"response,omitempty"`
	Assertions  []JSONAssertion `json:"assertions,omitempty"`
	Captures    map[string]any  `json:"captures,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
}

type JSONStep struct {
	Step     string  `json:"step"`
	Passed   bool    `json:"passed"`
	Duration float64 `json:"duration"`
	Error    string  `json:"error,omitempty"`
}

// JSONRequest represents request details
type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Duration   float64           `json:"duration"`
}

// JSONAssertion represents an assertion result
type JSONAssertion struct {
	Subject  string `json:"subject"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// JSONFormatter formats check results as JSON
type JSONFormatter struct {
	writer      io.Writer
	attachments *Attachments
	results     []JSONCheck
	metrics     []metrics.Summary
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONCheck, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func JSONWithAttachments(a *Attachments) JSONOption {
	return func(f *JSONFormatter) {
		f.attachments = a
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		check := JSONCheck{
			Name:        r.Name,
			Suite:       result.Suite,
			File:        result.File,
			Kind:        string(r.Kind),
			Outcome:     r.Outcome.String(),
			Status:      status(r),
			Browser:     r.Browser,
			Duration:    float64(r.Duration.Milliseconds()),
			Attempts:    r.Attempts,
			Attachments: f.attachments.For(r.Owner),
		}

		if r.SkipReason != "" && r.SkipReason != "filtered out" {
			check.SkipReason = r.SkipReason
		}

		if r.Error != nil {
			check.Error = r.Error.Error()
		}

		for _, s := range r.Steps {
			step := JSONStep{Step: s.Step, Passed: s.Passed, Duration: float64(s.Duration.Milliseconds())}
			if s.Error != nil {
				step.Error = s.Error.Error()
			}
			check.Steps = append(check.Steps, step)
		}

		if r.Request != nil {
			check.Request = &JSONRequest{
				Method:  r.Request.Method,
				URL:     r.Request.URL,
				Headers: r.Request.Headers,
			}
		}

		if r.Response != nil {
			check.Response = &JSONResponse{
				StatusCode: r.Response.StatusCode,
				Status:     r.Response.Status,
				Headers:    r.Response.Headers,
				Duration:   float64(r.Response.Duration.Milliseconds()),
			}
		}

		if len(r.Assertions) > 0 {
			check.Assertions = make([]JSONAssertion, len(r.Assertions))
			for i, a := range r.Assertions {
				check.Assertions[i] = JSONAssertion{
					Subject:  a.Assertion.Subject,
					Operator: a.Assertion.Operator,
					Expected: a.Assertion.Expected,
					Actual:   a.Actual,
					Passed:   a.Passed,
					Message:  a.Message,
				}
			}
		}

		if len(r.Captures) > 0 {
			check.Captures = r.Captures
		}

		f.results = append(f.results, check)
	}
}

func (f *JSONFormatter) FormatMetrics(summaries []metrics.Summary) {
	f.metrics = summaries
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual check results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var passed, failed, skipped int
	for _, c := range f.results {
		switch c.Outcome {
		case outcome.Skipped.String():
			skipped++
		case outcome.Success.String():
			passed++
		default:
			failed++
		}
	}

	output := JSONOutput{
		Summary: JSONSummary{
			Total:   len(f.results),
			Passed:  passed,
			Failed:  failed,
			Skipped: skipped,
		},
		Checks:   f.results,
		Metrics:  f.metrics,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
