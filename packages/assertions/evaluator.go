package assertions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/abdul-hamid-achik/playspec/packages/http"
)

// Assertion is one expectation on an API response.
//
// Subject is "status", "duration", "header <Name>", "body" or a gjson path
// into the body ("body.data.0.id" or just "data.0.id"). Operator is one of
// the names listed by Operators, optionally prefixed with "not ".
type Assertion struct {
	Subject  string `yaml:"subject" json:"subject"`
	Operator string `yaml:"op" json:"op"`
	Expected any    `yaml:"value,omitempty" json:"value,omitempty"`
}

func (a Assertion) String() string {
	if a.Expected == nil {
		return fmt.Sprintf("%s %s", a.Subject, a.Operator)
	}
	return fmt.Sprintf("%s %s %v", a.Subject, a.Operator, a.Expected)
}

type Result struct {
	Passed    bool
	Message   string
	Assertion Assertion
	Actual    any
}

type operator func(e *Evaluator, actual, expected any) (bool, string)

var operators = map[string]operator{
	"equals":     (*Evaluator).equals,
	"==":         (*Evaluator).equals,
	"gt":         numeric(">"),
	">":          numeric(">"),
	"gte":        numeric(">="),
	">=":         numeric(">="),
	"lt":         numeric("<"),
	"<":          numeric("<"),
	"lte":        numeric("<="),
	"<=":         numeric("<="),
	"contains":   (*Evaluator).contains,
	"startsWith": (*Evaluator).startsWith,
	"matches":    (*Evaluator).matches,
	"exists":     (*Evaluator).exists,
	"length":     (*Evaluator).length,
	"includes":   (*Evaluator).includes,
	"in":         (*Evaluator).in,
	"type":       (*Evaluator).typeCheck,
	"schema":     (*Evaluator).schema,
}

// Operators lists the supported operator names.
func Operators() []string {
	names := make([]string, 0, len(operators))
	for name := range operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluator checks assertions against one response.
type Evaluator struct {
	response *http.Response
	bodyJSON gjson.Result
	baseDir  string
}

// NewEvaluator returns an Evaluator. Schema paths are resolved against baseDir.
func NewEvaluator(resp *http.Response, baseDir string) *Evaluator {
	e := &Evaluator{response: resp, baseDir: baseDir}
	if gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
	}
	return e
}

func (e *Evaluator) Evaluate(a Assertion) *Result {
	result := &Result{Assertion: a}

	name, negate := strings.CutPrefix(strings.TrimSpace(a.Operator), "not ")
	op, ok := operators[strings.TrimSpace(name)]
	if !ok {
		result.Message = fmt.Sprintf("unknown operator: %s", a.Operator)
		return result
	}

	actual, err := e.actual(a.Subject)
	if err != nil {
		result.Message = err.Error()
		return result
	}
	result.Actual = actual

	passed, msg := op(e, actual, a.Expected)
	if negate {
		passed = !passed
		msg = ""
		if !passed {
			msg = fmt.Sprintf("expected %v not %s %v", actual, name, a.Expected)
		}
	}
	result.Passed = passed
	result.Message = msg
	return result
}

// EvaluateAll evaluates every assertion in order.
func EvaluateAll(resp *http.Response, baseDir string, list []Assertion) []*Result {
	e := NewEvaluator(resp, baseDir)
	results := make([]*Result, len(list))
	for i, a := range list {
		results[i] = e.Evaluate(a)
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []*Result) []*Result {
	var failed []*Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// gjsonPath turns "items[0].tags[1]" into "items.0.tags.1".
func gjsonPath(path string) string {
	return strings.TrimPrefix(bracketIndex.ReplaceAllString(path, ".$1"), ".")
}

func (e *Evaluator) actual(subject string) (any, error) {
	subject = strings.TrimSpace(subject)
	switch {
	case subject == "status":
		return e.response.StatusCode, nil
	case subject == "duration":
		return e.response.DurationMs(), nil
	case strings.HasPrefix(subject, "header "):
		return e.response.Header(strings.TrimSpace(strings.TrimPrefix(subject, "header "))), nil
	case subject == "body":
		if e.bodyJSON.Exists() {
			return e.bodyJSON.Value(), nil
		}
		return e.response.BodyString(), nil
	}

	if !e.bodyJSON.Exists() {
		return nil, fmt.Errorf("response body is not JSON, cannot evaluate %s", subject)
	}
	path := gjsonPath(strings.TrimPrefix(subject, "body."))
	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, nil
	}
	return result.Value(), nil
}

func (e *Evaluator) equals(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}
	a, aOk := toFloat64(actual)
	b, bOk := toFloat64(expected)
	if aOk && bOk && a == b {
		return true, ""
	}
	if fmt.Sprint(actual) == fmt.Sprint(expected) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func numeric(op string) operator {
	return func(_ *Evaluator, actual, expected any) (bool, string) {
		a, aOk := toFloat64(actual)
		b, bOk := toFloat64(expected)
		if !aOk || !bOk {
			return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
		}

		var passed bool
		switch op {
		case ">":
			passed = a > b
		case ">=":
			passed = a >= b
		case "<":
			passed = a < b
		case "<=":
			passed = a <= b
		}
		if passed {
			return true, ""
		}
		return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
	}
}

func (e *Evaluator) contains(actual, expected any) (bool, string) {
	if strings.Contains(fmt.Sprint(actual), fmt.Sprint(expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to contain '%v'", actual, expected)
}

func (e *Evaluator) startsWith(actual, expected any) (bool, string) {
	if strings.HasPrefix(fmt.Sprint(actual), fmt.Sprint(expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to start with '%v'", actual, expected)
}

func (e *Evaluator) matches(actual, expected any) (bool, string) {
	pattern := strings.Trim(fmt.Sprint(expected), "/")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern: %v", err)
	}
	if re.MatchString(fmt.Sprint(actual)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to match /%v/", actual, pattern)
}

func (e *Evaluator) exists(actual, _ any) (bool, string) {
	if actual == nil {
		return false, "expected to exist"
	}
	return true, ""
}

func (e *Evaluator) length(actual, expected any) (bool, string) {
	want, ok := toInt(expected)
	if !ok {
		return false, fmt.Sprintf("expected length must be a number, got %v", expected)
	}

	var got int
	switch v := actual.(type) {
	case string:
		got = len(v)
	case []any:
		got = len(v)
	case map[string]any:
		got = len(v)
	default:
		return false, fmt.Sprintf("cannot get length of %T", actual)
	}

	if got == want {
		return true, ""
	}
	return false, fmt.Sprintf("expected length %d, got %d", want, got)
}

func (e *Evaluator) includes(actual, expected any) (bool, string) {
	arr, ok := actual.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array, got %T", actual)
	}
	for _, item := range arr {
		if passed, _ := e.equals(item, expected); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected array to include %v", expected)
}

func (e *Evaluator) in(actual, expected any) (bool, string) {
	arr, ok := expected.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array for 'in' operator, got %T", expected)
	}
	for _, item := range arr {
		if passed, _ := e.equals(actual, item); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected %v to be in %v", actual, expected)
}

func (e *Evaluator) typeCheck(actual, expected any) (bool, string) {
	var got string
	switch actual.(type) {
	case nil:
		got = "null"
	case bool:
		got = "boolean"
	case float64, int, int64:
		got = "number"
	case string:
		got = "string"
	case []any:
		got = "array"
	case map[string]any:
		got = "object"
	default:
		got = fmt.Sprintf("%T", actual)
	}

	if want := fmt.Sprint(expected); got != want {
		return false, fmt.Sprintf("expected type %s, got %s", want, got)
	}
	return true, ""
}

// schema validates the subject against a JSON schema file.
func (e *Evaluator) schema(actual, expected any) (bool, string) {
	path := fmt.Sprint(expected)
	if !filepath.IsAbs(path) && e.baseDir != "" {
		path = filepath.Join(e.baseDir, path)
	}

	schemaData, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Sprintf("failed to read schema file: %v", err)
	}

	document, err := json.Marshal(actual)
	if err != nil {
		return false, fmt.Sprintf("failed to marshal actual value: %v", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaData), gojsonschema.NewBytesLoader(document))
	if err != nil {
		return false, fmt.Sprintf("schema validation error: %v", err)
	}
	if result.Valid() {
		return true, ""
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return false, fmt.Sprintf("schema validation failed: %s", strings.Join(violations, "; "))
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	f, ok := toFloat64(v)
	return int(f), ok
}
