package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/playspec/packages/assertions"
	"github.com/abdul-hamid-achik/playspec/packages/capture"
)

// Suite is one check file.
type Suite struct {
	Path      string         `yaml:"-"`
	Name      string         `yaml:"name"`
	Variables map[string]any `yaml:"variables"`
	Checks    []*Check       `yaml:"-"`
}

// Check is either a UI check (Steps run in a browser) or an API check
// (a single Request with expectations).
type Check struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Skip        string   `yaml:"skip"`
	Only        bool     `yaml:"only"`
	Depends     []string `yaml:"depends"`
	Retry       int      `yaml:"retry"`
	RetryDelay  int      `yaml:"retryDelay"`

	// Browser is the logical browser name for UI checks. Empty uses the
	// configured "browser" setting.
	Browser string  `yaml:"browser"`
	Steps   []*Step `yaml:"steps"`

	Request *Request               `yaml:"request"`
	Expect  []assertions.Assertion `yaml:"expect"`
	Capture []capture.Capture      `yaml:"capture"`

	Line int `yaml:"-"`
}

// IsUI reports whether the check drives a browser.
func (c *Check) IsUI() bool {
	return len(c.Steps) > 0
}

// Request is an API call. Body is sent as is when it is a string and JSON
// encoded otherwise. Timeout is in milliseconds.
type Request struct {
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Query   map[string]string `yaml:"query"`
	Body    any               `yaml:"body"`
	Timeout int               `yaml:"timeout"`
}

// BodyString renders Body for sending.
func (r *Request) BodyString() (string, error) {
	switch b := r.Body.(type) {
	case nil:
		return "", nil
	case string:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return "", fmt.Errorf("encoding request body: %w", err)
		}
		return string(data), nil
	}
}

type StepKind string

const (
	StepOpen          StepKind = "open"
	StepClick         StepKind = "click"
	StepFill          StepKind = "fill"
	StepExpectText    StepKind = "expectText"
	StepExpectVisible StepKind = "expectVisible"
	StepWaitURL       StepKind = "waitUrl"
	StepWaitTitle     StepKind = "waitTitle"
)

// Step is one browser action. Exactly one of its fields is set.
type Step struct {
	Open          string    `yaml:"open,omitempty"`
	Click         string    `yaml:"click,omitempty"`
	Fill          *FillStep `yaml:"fill,omitempty"`
	ExpectText    *TextStep `yaml:"expectText,omitempty"`
	ExpectVisible string    `yaml:"expectVisible,omitempty"`
	WaitURL       string    `yaml:"waitUrl,omitempty"`
	WaitTitle     string    `yaml:"waitTitle,omitempty"`
}

type FillStep struct {
	Selector string `yaml:"selector"`
	Text     string `yaml:"text"`
}

// TextStep expects the element text to equal Equals, or to contain Contains.
type TextStep struct {
	Selector string `yaml:"selector"`
	Equals   string `yaml:"equals,omitempty"`
	Contains string `yaml:"contains,omitempty"`
}

// Kind returns the action the step performs.
func (s *Step) Kind() (StepKind, error) {
	var kinds []StepKind
	if s.Open != "" {
		kinds = append(kinds, StepOpen)
	}
	if s.Click != "" {
		kinds = append(kinds, StepClick)
	}
	if s.Fill != nil {
		kinds = append(kinds, StepFill)
	}
	if s.ExpectText != nil {
		kinds = append(kinds, StepExpectText)
	}
	if s.ExpectVisible != "" {
		kinds = append(kinds, StepExpectVisible)
	}
	if s.WaitURL != "" {
		kinds = append(kinds, StepWaitURL)
	}
	if s.WaitTitle != "" {
		kinds = append(kinds, StepWaitTitle)
	}

	switch len(kinds) {
	case 1:
		return kinds[0], nil
	case 0:
		return "", fmt.Errorf("step has no action")
	default:
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		return "", fmt.Errorf("step has more than one action: %s", strings.Join(names, ", "))
	}
}

func (s *Step) String() string {
	kind, err := s.Kind()
	if err != nil {
		return "invalid step"
	}
	switch kind {
	case StepOpen:
		return "open " + s.Open
	case StepClick:
		return "click " + s.Click
	case StepFill:
		return fmt.Sprintf("fill %s with %q", s.Fill.Selector, s.Fill.Text)
	case StepExpectText:
		if s.ExpectText.Contains != "" {
			return fmt.Sprintf("expect %s to contain %q", s.ExpectText.Selector, s.ExpectText.Contains)
		}
		return fmt.Sprintf("expect %s to be %q", s.ExpectText.Selector, s.ExpectText.Equals)
	case StepExpectVisible:
		return "expect " + s.ExpectVisible + " visible"
	case StepWaitURL:
		return "wait for URL containing " + s.WaitURL
	default:
		return "wait for title containing " + s.WaitTitle
	}
}

type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}
