package output

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/runner"
	"github.com/abdul-hamid-achik/playspec/packages/metrics"
)

// HTMLOutput represents the complete HTML output structure
type HTMLOutput struct {
	Version        string
	Summary        HTMLSummary
	Checks         []HTMLCheck
	Metrics        []HTMLMetric
	Duration       float64
	Time           string
	PassedPercent  float64
	FailedPercent  float64
	SkippedPercent float64
}

// HTMLSummary represents the run summary for HTML output
type HTMLSummary struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// HTMLCheck represents a single check result for HTML output
type HTMLCheck struct {
	Name        string
	Suite       string
	File        string
	Kind        string
	Outcome     string
	StatusClass string
	Browser     string
	SkipReason  string
	Duration    float64
	Error       string
	Steps       []HTMLStep
	Request     *HTMLRequest
	Response    *HTMLResponse
	Assertions  []HTMLAssertion
	Captures    map[string]any
	Images      []HTMLImage
	Files       []Attachment
}

type HTMLStep struct {
	Step     string
	Passed   bool
	Duration float64
	Error    string
}

// HTMLRequest represents request details for HTML output
type HTMLRequest struct {
	Method  string
	URL     string
	Headers map[string]string
}

// HTMLResponse represents response details for HTML output
type HTMLResponse struct {
	StatusCode int
	Status     string
	Duration   float64
}

// HTMLAssertion represents an assertion result for HTML output
type HTMLAssertion struct {
	Subject     string
	Operator    string
	ExpectedStr string
	ActualStr   string
	Passed      bool
	Message     string
}

// HTMLImage is an image attachment embedded as a data URI.
type HTMLImage struct {
	Name string
	Src  template.URL
}

type HTMLMetric struct {
	Name     string
	Count    int64
	Failures int64
	P50      string
	P95      string
	P99      string
	Max      string
}

// HTMLFormatter formats check results as a single self-contained HTML page
type HTMLFormatter struct {
	writer      io.Writer
	attachments *Attachments
	results     []HTMLCheck
	metrics     []HTMLMetric
	version     string
}

// HTMLOption is a functional option for HTMLFormatter
type HTMLOption func(*HTMLFormatter)

// NewHTMLFormatter creates a new HTML formatter
func NewHTMLFormatter(opts ...HTMLOption) *HTMLFormatter {
	f := &HTMLFormatter{
		writer:  os.Stdout,
		results: make([]HTMLCheck, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// HTMLWithWriter sets the output writer
func HTMLWithWriter(w io.Writer) HTMLOption {
	return func(f *HTMLFormatter) {
		f.writer = w
	}
}

// HTMLWithAttachments embeds image attachments and links the rest
func HTMLWithAttachments(a *Attachments) HTMLOption {
	return func(f *HTMLFormatter) {
		f.attachments = a
	}
}

// FormatResult accumulates a run result
func (f *HTMLFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		check := HTMLCheck{
			Name:        r.Name,
			Suite:       result.Suite,
			File:        result.File,
			Kind:        string(r.Kind),
			Outcome:     r.Outcome.String(),
			StatusClass: status(r),
			Browser:     r.Browser,
			Duration:    float64(r.Duration.Milliseconds()),
			Captures:    r.Captures,
		}

		if r.SkipReason != "" && r.SkipReason != "filtered out" {
			check.SkipReason = r.SkipReason
		}

		if r.Error != nil {
			check.Error = r.Error.Error()
		}

		for _, s := range r.Steps {
			step := HTMLStep{Step: s.Step, Passed: s.Passed, Duration: float64(s.Duration.Milliseconds())}
			if s.Error != nil {
				step.Error = s.Error.Error()
			}
			check.Steps = append(check.Steps, step)
		}

		if r.Request != nil {
			check.Request = &HTMLRequest{
				Method:  r.Request.Method,
				URL:     r.Request.URL,
				Headers: r.Request.Headers,
			}
		}

		if r.Response != nil {
			check.Response = &HTMLResponse{
				StatusCode: r.Response.StatusCode,
				Status:     r.Response.Status,
				Duration:   float64(r.Response.Duration.Milliseconds()),
			}
		}

		for _, a := range r.Assertions {
			check.Assertions = append(check.Assertions, HTMLAssertion{
				Subject:     a.Assertion.Subject,
				Operator:    a.Assertion.Operator,
				ExpectedStr: fmt.Sprintf("%v", a.Assertion.Expected),
				ActualStr:   fmt.Sprintf("%v", a.Actual),
				Passed:      a.Passed,
				Message:     a.Message,
			})
		}

		for _, att := range f.attachments.For(r.Owner) {
			if !strings.HasPrefix(att.MIMEType, "image/") {
				check.Files = append(check.Files, att)
				continue
			}
			data, err := os.ReadFile(att.Path)
			if err != nil {
				check.Files = append(check.Files, att)
				continue
			}
			check.Images = append(check.Images, HTMLImage{
				Name: att.Name,
				Src:  template.URL("data:" + att.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(data)),
			})
		}

		f.results = append(f.results, check)
	}
}

func (f *HTMLFormatter) FormatMetrics(summaries []metrics.Summary) {
	f.metrics = f.metrics[:0]
	for _, s := range summaries {
		f.metrics = append(f.metrics, HTMLMetric{
			Name:     s.Name,
			Count:    s.Count,
			Failures: s.Failures,
			P50:      ms(s.P50),
			P95:      ms(s.P95),
			P99:      ms(s.P99),
			Max:      ms(s.Max),
		})
	}
}

// FormatError handles errors (no-op for HTML, errors are in check results)
func (f *HTMLFormatter) FormatError(err error) {
	// Errors are included in individual check results
}

// FormatHeader captures the version for the HTML report
func (f *HTMLFormatter) FormatHeader(version string) {
	f.version = version
}

// Flush writes the accumulated HTML output
func (f *HTMLFormatter) Flush(totalDuration time.Duration) error {
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

	total := len(f.results)
	var passedPct, failedPct, skippedPct float64
	if total > 0 {
		passedPct = float64(passed) / float64(total) * 100
		failedPct = float64(failed) / float64(total) * 100
		skippedPct = float64(skipped) / float64(total) * 100
	}

	output := HTMLOutput{
		Version: f.version,
		Summary: HTMLSummary{
			Total:   total,
			Passed:  passed,
			Failed:  failed,
			Skipped: skipped,
		},
		Checks:         f.results,
		Metrics:        f.metrics,
		Duration:       float64(totalDuration.Milliseconds()),
		Time:           time.Now().Format("2006-01-02 15:04:05"),
		PassedPercent:  passedPct,
		FailedPercent:  failedPct,
		SkippedPercent: skippedPct,
	}

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	return tmpl.Execute(f.writer, output)
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>playspec report</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2rem; color: #222; }
  h1 small { color: #888; font-weight: normal; font-size: 0.6em; }
  .bar { display: flex; height: 10px; border-radius: 5px; overflow: hidden; margin: 1rem 0; background: #eee; }
  .bar .passed { background: #2da44e; } .bar .failed { background: #cf222e; } .bar .skipped { background: #bf8700; }
  .check { border: 1px solid #ddd; border-left-width: 6px; border-radius: 4px; margin: 0.75rem 0; padding: 0.5rem 1rem; }
  .check.passed { border-left-color: #2da44e; } .check.failed, .check.timeout { border-left-color: #cf222e; } .check.skipped { border-left-color: #bf8700; }
  .meta { color: #666; font-size: 0.85em; }
  .error { color: #cf222e; white-space: pre-wrap; }
  table { border-collapse: collapse; font-size: 0.9em; }
  td, th { padding: 0.2rem 0.6rem; text-align: left; border-bottom: 1px solid #eee; }
  .ok { color: #2da44e; } .ko { color: #cf222e; }
  img.attachment { max-width: 100%; border: 1px solid #ccc; margin-top: 0.5rem; }
</style>
</head>
<body>
<h1>playspec report {{if .Version}}<small>{{.Version}}</small>{{end}}</h1>
<p>{{.Summary.Total}} checks: {{.Summary.Passed}} passed, {{.Summary.Failed}} failed, {{.Summary.Skipped}} skipped in {{.Duration}}ms <span class="meta">({{.Time}})</span></p>
<div class="bar">
  <div class="passed" style="width: {{.PassedPercent}}%"></div>
  <div class="failed" style="width: {{.FailedPercent}}%"></div>
  <div class="skipped" style="width: {{.SkippedPercent}}%"></div>
</div>
{{if .Metrics}}
<h2>Latency</h2>
<table>
<tr><th></th><th>count</th><th>failed</th><th>p50</th><th>p95</th><th>p99</th><th>max</th></tr>
{{range .Metrics}}<tr><td>{{.Name}}</td><td>{{.Count}}</td><td>{{.Failures}}</td><td>{{.P50}}</td><td>{{.P95}}</td><td>{{.P99}}</td><td>{{.Max}}</td></tr>
{{end}}</table>
{{end}}
<h2>Checks</h2>
{{range .Checks}}
<div class="check {{.StatusClass}}">
  <strong>{{.Name}}</strong> <span class="meta">{{.Outcome}} · {{.Kind}}{{if .Browser}} · {{.Browser}}{{end}} · {{.Duration}}ms · {{.Suite}} ({{.File}})</span>
  {{if .SkipReason}}<div class="meta">skipped: {{.SkipReason}}</div>{{end}}
  {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
  {{if .Steps}}<table>{{range .Steps}}<tr><td class="{{if .Passed}}ok{{else}}ko{{end}}">{{if .Passed}}✓{{else}}✗{{end}}</td><td>{{.Step}}</td><td>{{.Duration}}ms</td><td class="error">{{.Error}}</td></tr>{{end}}</table>{{end}}
  {{if .Request}}<div class="meta">{{.Request.Method}} {{.Request.URL}}{{if .Response}} → {{.Response.StatusCode}} in {{.Response.Duration}}ms{{end}}</div>{{end}}
  {{if .Assertions}}<table>{{range .Assertions}}<tr><td class="{{if .Passed}}ok{{else}}ko{{end}}">{{if .Passed}}✓{{else}}✗{{end}}</td><td>{{.Subject}} {{.Operator}} {{.ExpectedStr}}</td><td>{{if not .Passed}}got {{.ActualStr}}{{end}}</td><td class="error">{{.Message}}</td></tr>{{end}}</table>{{end}}
  {{if .Captures}}<div class="meta">captured: {{range $k, $v := .Captures}}{{$k}}={{$v}} {{end}}</div>{{end}}
  {{range .Images}}<div><div class="meta">{{.Name}}</div><img class="attachment" alt="{{.Name}}" src="{{.Src}}"></div>{{end}}
  {{range .Files}}<div class="meta">{{.Name}}: <a href="{{.Path}}">{{.Path}}</a></div>{{end}}
</div>
{{end}}
</body>
</html>
`
