package env

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/google/uuid"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverResolve(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		variables map[string]any
		captures  map[string]string
		env       map[string]string
		expected  string
	}{
		{
			name:     "no placeholders",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:      "simple variable",
			input:     "{{ui.url}}/login",
			variables: map[string]any{"ui.url": "https://demoqa.com"},
			expected:  "https://demoqa.com/login",
		},
		{
			name:      "multiple variables",
			input:     "{{user}}:{{password}}",
			variables: map[string]any{"user": "john", "password": 42},
			expected:  "john:42",
		},
		{
			name:     "capture wins over variable",
			input:    "Bearer {{token}}",
			captures: map[string]string{"token": "abc"},
			expected: "Bearer abc",
		},
		{
			name:     "environment",
			input:    "{{$API_TOKEN}}",
			env:      map[string]string{"API_TOKEN": "secret"},
			expected: "secret",
		},
		{
			name:     "unresolved stays as-is",
			input:    "hello {{unknown}} {{$MISSING}} {{nope()}}",
			expected: "hello {{unknown}} {{$MISSING}} {{nope()}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			r.SetLookupEnv(func(k string) (string, bool) {
				v, ok := tt.env[k]
				return v, ok
			})
			r.SetVariables(tt.variables)
			for k, v := range tt.captures {
				r.SetCapture("login", k, v)
			}

			assert.Equal(t, tt.expected, r.Resolve(tt.input))
		})
	}
}

func TestResolverCaptures(t *testing.T) {
	r := NewResolver()
	r.SetCapture("createUser", "userId", "u-1")

	v, ok := r.GetVariable("createUser.userId")
	require.True(t, ok)
	assert.Equal(t, "u-1", v)
	assert.Equal(t, "/users/u-1", r.Resolve("/users/{{userId}}"))
	assert.Len(t, r.Captures(), 2)
}

func TestResolverUnresolvedVariables(t *testing.T) {
	r := NewResolver()
	r.SetVariable("bar", "middle")

	assert.Equal(t, []string{"foo", "baz"}, r.GetUnresolvedVariables("{{foo}} and {{bar}} and {{baz}}"))
	assert.Nil(t, r.GetUnresolvedVariables("{{bar}} {{$HOME}} {{uuid()}}"))
	assert.True(t, r.HasUnresolvedVariables("{{setup.projectId}}/tasks"))

	r.SetCapture("setup", "projectId", "123")
	assert.False(t, r.HasUnresolvedVariables("{{setup.projectId}}/tasks"))
}

func TestResolverLogsUnresolved(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	r := NewResolver()
	r.SetLogger(logger)

	r.Resolve("{{ghost}}")

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "ghost", hook.LastEntry().Data["placeholder"])
}

func TestResolverClone(t *testing.T) {
	r := NewResolver()
	r.SetVariable("a", "1")

	clone := r.Clone()
	clone.SetVariable("a", "2")
	clone.SetCapture("c", "b", "3")

	assert.Equal(t, "1", r.Resolve("{{a}}"))
	assert.Equal(t, "{{b}}", r.Resolve("{{b}}"))
	assert.Equal(t, "2 3", clone.Resolve("{{a}} {{b}}"))
}

func TestBuiltinFunctions(t *testing.T) {
	r := NewResolver()

	_, err := uuid.Parse(r.Resolve("{{uuid()}}"))
	assert.NoError(t, err)

	ts, err := strconv.ParseInt(r.Resolve("{{timestamp()}}"), 10, 64)
	require.NoError(t, err)
	assert.Positive(t, ts)

	assert.Regexp(t, regexp.MustCompile(`^[a-z]{8}@[a-z]{6}\.com$`), r.Resolve("{{randomEmail()}}"))
	assert.Len(t, r.Resolve("{{randomString(12)}}"), 12)
	assert.Equal(t, "aGVsbG8=", r.Resolve(`{{base64("hello")}}`))

	n, err := strconv.Atoi(r.Resolve("{{random(5, 5)}}"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []string{"a", "b, c", "d"}, parseArgs(`a, "b, c", 'd'`))
	assert.Nil(t, parseArgs(""))
}

func TestFunctionsBadArgumentFallsBack(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	f := NewFunctions()
	f.log = logger

	v, ok := f.Call("randomString(abc)")

	require.True(t, ok)
	assert.Len(t, v, 16)
	assert.Len(t, hook.AllEntries(), 1)
}
