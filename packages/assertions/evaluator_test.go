package assertions

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/playspec/packages/http"
)

const userList = `{
  "page": 2,
  "per_page": 6,
  "total": 12,
  "data": [
    {"id": 7, "email": "michael.lawson@reqres.in", "first_name": "Michael"},
    {"id": 8, "email": "lindsay.ferguson@reqres.in", "first_name": "Lindsay"}
  ],
  "support": {"url": "https://reqres.in/#support-heading"}
}`

func createResponse(statusCode int, body string, headers map[string]string) *http.Response {
	if headers == nil {
		headers = map[string]string{"Content-Type": "application/json"}
	}
	return &http.Response{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       []byte(body),
		Duration:   100 * time.Millisecond,
	}
}

func TestEvaluator(t *testing.T) {
	e := NewEvaluator(createResponse(200, userList, nil), "")

	tests := []struct {
		name      string
		assertion Assertion
		passed    bool
	}{
		{"status equals", Assertion{"status", "==", 200}, true},
		{"status not equals", Assertion{"status", "not equals", 404}, true},
		{"status wrong", Assertion{"status", "equals", 201}, false},
		{"duration below", Assertion{"duration", "lt", 500}, true},
		{"header contains", Assertion{"header content-type", "contains", "json"}, true},
		{"path number", Assertion{"body.page", "equals", 2}, true},
		{"path without body prefix", Assertion{"per_page", ">=", 6}, true},
		{"bracket index", Assertion{"data[1].first_name", "equals", "Lindsay"}, true},
		{"gjson index", Assertion{"data.0.email", "matches", `/^[a-z.]+@reqres\.in$/`}, true},
		{"exists", Assertion{"support.url", "exists", nil}, true},
		{"missing does not exist", Assertion{"support.text", "not exists", nil}, true},
		{"missing exists", Assertion{"support.text", "exists", nil}, false},
		{"length", Assertion{"data", "length", 2}, true},
		{"gjson count", Assertion{"data.#", "equals", 2}, true},
		{"includes", Assertion{"data.#.id", "includes", 8}, true},
		{"in", Assertion{"page", "in", []any{1, 2, 3}}, true},
		{"type", Assertion{"data", "type", "array"}, true},
		{"non numeric gt", Assertion{"support.url", "gt", 1}, false},
		{"starts with", Assertion{"support.url", "startsWith", "https://"}, true},
		{"unknown operator", Assertion{"page", "roughly", 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Evaluate(tt.assertion)
			assert.Equal(t, tt.passed, result.Passed, result.Message)
			if !tt.passed {
				assert.NotEmpty(t, result.Message)
			}
		})
	}
}

func TestEvaluator_NonJSONBody(t *testing.T) {
	e := NewEvaluator(createResponse(200, "<html>ok</html>", map[string]string{"Content-Type": "text/html"}), "")

	assert.True(t, e.Evaluate(Assertion{"body", "contains", "ok"}).Passed)

	result := e.Evaluate(Assertion{"data.id", "exists", nil})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "not JSON")
}

func TestEvaluator_Schema(t *testing.T) {
	dir := t.TempDir()
	schema := `{
	  "type": "object",
	  "required": ["page", "data"],
	  "properties": {
	    "page": {"type": "integer"},
	    "data": {"type": "array", "items": {"type": "object", "required": ["id", "email"]}}
	  }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user-list.json"), []byte(schema), 0o644))

	ok := NewEvaluator(createResponse(200, userList, nil), dir).
		Evaluate(Assertion{"body", "schema", "user-list.json"})
	assert.True(t, ok.Passed, ok.Message)

	bad := NewEvaluator(createResponse(200, `{"page": "two"}`, nil), dir).
		Evaluate(Assertion{"body", "schema", "user-list.json"})
	assert.False(t, bad.Passed)
	assert.Contains(t, bad.Message, "schema validation failed")

	missing := NewEvaluator(createResponse(200, userList, nil), dir).
		Evaluate(Assertion{"body", "schema", "nope.json"})
	assert.False(t, missing.Passed)
	assert.Contains(t, missing.Message, "failed to read schema file")
}

func TestEvaluateAll(t *testing.T) {
	results := EvaluateAll(createResponse(404, `{}`, nil), "", []Assertion{
		{Subject: "status", Operator: "equals", Expected: 200},
		{Subject: "body", Operator: "type", Expected: "object"},
	})

	require.Len(t, results, 2)
	failed := Failed(results)
	require.Len(t, failed, 1)
	assert.Equal(t, "status", failed[0].Assertion.Subject)
	assert.Equal(t, "expected 200, got 404", failed[0].Message)
}

func TestAssertionString(t *testing.T) {
	assert.Equal(t, "status equals 200", Assertion{"status", "equals", 200}.String())
	assert.Equal(t, "data exists", Assertion{"data", "exists", nil}.String())
	assert.Contains(t, Operators(), "schema")
}
