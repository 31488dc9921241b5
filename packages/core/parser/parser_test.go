package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const elements = `
name: Elements
variables:
  user: John Doe
checks:
  - name: Text box
    browser: chrome
    tags: [ui, smoke]
    steps:
      - open: /text-box
      - fill: {selector: "#userName", text: "{{user}}"}
      - click: "#submit"
      - expectText: {selector: "#name", contains: "{{user}}"}
      - expectVisible: "#output"
      - waitUrl: text-box
      - waitTitle: DEMOQA

  - name: List users
    request:
      method: get
      url: /api/users
      query: {page: "2"}
    expect:
      - {subject: status, op: equals, value: 200}
      - {subject: data, op: length, value: 6}
    capture:
      - {name: firstId, from: data.0.id}

  - name: Create user
    depends: [List users]
    retry: 2
    request:
      method: POST
      url: /api/users
      body:
        name: morpheus
        job: leader
`

func TestParse(t *testing.T) {
	suite, err := Parse([]byte(elements), "elements.playspec.yaml")
	require.NoError(t, err)

	assert.Equal(t, "Elements", suite.Name)
	assert.Equal(t, "John Doe", suite.Variables["user"])
	require.Len(t, suite.Checks, 3)

	ui := suite.Checks[0]
	assert.True(t, ui.IsUI())
	assert.Equal(t, "chrome", ui.Browser)
	assert.Equal(t, []string{"ui", "smoke"}, ui.Tags)
	require.Len(t, ui.Steps, 7)

	kinds := make([]StepKind, len(ui.Steps))
	for i, s := range ui.Steps {
		kinds[i], err = s.Kind()
		require.NoError(t, err)
	}
	assert.Equal(t, []StepKind{
		StepOpen, StepFill, StepClick, StepExpectText, StepExpectVisible, StepWaitURL, StepWaitTitle,
	}, kinds)
	assert.Equal(t, "#userName", ui.Steps[1].Fill.Selector)
	assert.Equal(t, "{{user}}", ui.Steps[3].ExpectText.Contains)

	api := suite.Checks[1]
	assert.False(t, api.IsUI())
	assert.Equal(t, "GET", api.Request.Method)
	assert.Equal(t, "2", api.Request.Query["page"])
	require.Len(t, api.Expect, 2)
	assert.Equal(t, "status", api.Expect[0].Subject)
	assert.Equal(t, 200, api.Expect[0].Expected)
	require.Len(t, api.Capture, 1)
	assert.Equal(t, "data.0.id", api.Capture[0].From)

	create := suite.Checks[2]
	assert.Equal(t, []string{"List users"}, create.Depends)
	assert.Equal(t, 2, create.Retry)
	body, err := create.Request.BodyString()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"morpheus","job":"leader"}`, body)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{
			name:    "empty",
			input:   "",
			message: "empty check suite",
		},
		{
			name:    "unknown top level field",
			input:   "checkz: []",
			message: "field checkz not found",
		},
		{
			name: "unknown check field",
			input: `checks:
  - name: a
    stepz: []`,
			message: "field stepz not found",
		},
		{
			name: "neither steps nor request",
			input: `checks:
  - name: a`,
			message: "needs steps or a request",
		},
		{
			name: "both steps and request",
			input: `checks:
  - name: a
    steps: [{open: /}]
    request: {url: /}`,
			message: "not both",
		},
		{
			name: "two actions in one step",
			input: `checks:
  - name: a
    steps: [{open: /, click: "#b"}]`,
			message: "step 1: step has more than one action: open, click",
		},
		{
			name: "empty step",
			input: `checks:
  - name: a
    steps: [{}]`,
			message: "step has no action",
		},
		{
			name: "duplicate name",
			input: `checks:
  - name: a
    request: {url: /}
  - name: a
    request: {url: /}`,
			message: `duplicate check name "a"`,
		},
		{
			name: "unknown dependency",
			input: `checks:
  - name: a
    depends: [b]
    request: {url: /}`,
			message: `depends on unknown check "b"`,
		},
		{
			name: "expect on ui check",
			input: `checks:
  - name: a
    steps: [{open: /}]
    expect: [{subject: status, op: equals, value: 200}]`,
			message: "API checks only",
		},
		{
			name: "request without url",
			input: `checks:
  - name: a
    request: {method: GET}`,
			message: "request needs a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), "bad.playspec.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
			assert.Contains(t, err.Error(), "bad.playspec.yaml")
		})
	}
}

func TestParse_ErrorLine(t *testing.T) {
	input := `checks:
  - name: ok
    request: {url: /}
  - name: broken
    steps: [{}]`

	_, err := Parse([]byte(input), "s.playspec.yaml")

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 4, perr.Line)
}

func TestParse_DefaultNames(t *testing.T) {
	suite, err := Parse([]byte("checks:\n  - request: {url: /}\n"), "dir/login.playspec.yml")
	require.NoError(t, err)

	assert.Equal(t, "login", suite.Name)
	assert.Equal(t, "check 1", suite.Checks[0].Name)
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "click #submit", (&Step{Click: "#submit"}).String())
	assert.Equal(t, `fill #name with "x"`, (&Step{Fill: &FillStep{Selector: "#name", Text: "x"}}).String())
	assert.Equal(t, `expect #name to contain "John"`, (&Step{ExpectText: &TextStep{Selector: "#name", Contains: "John"}}).String())
	assert.Equal(t, "invalid step", (&Step{}).String())
}

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "api"), 0o755))
	for _, name := range []string{"ui.playspec.yaml", "api/users.playspec.yml", "notes.yaml", "playspec.properties"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("checks: []"), 0o644))
	}
	single := filepath.Join(dir, "notes.yaml")

	files, err := FindFiles([]string{dir, single})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "ui.playspec.yaml"),
		filepath.Join(dir, "api", "users.playspec.yml"),
		single,
	}, files)

	_, err = FindFiles([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}
