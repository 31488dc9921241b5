package env

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Resolver substitutes placeholders. It is safe for concurrent use; checks
// running in parallel each get a Clone.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	captures  map[string]any
	funcs     *Functions
	lookupEnv func(string) (string, bool)
	log       logrus.FieldLogger
}

// NewResolver returns a Resolver with the built-in functions registered.
func NewResolver() *Resolver {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Resolver{
		variables: make(map[string]any),
		captures:  make(map[string]any),
		funcs:     NewFunctions(),
		lookupEnv: os.LookupEnv,
		log:       l,
	}
}

// SetLogger sets where unresolved placeholders are reported.
func (r *Resolver) SetLogger(log logrus.FieldLogger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = log
	r.funcs.log = log
}

// SetLookupEnv replaces os.LookupEnv for {{$NAME}} placeholders.
func (r *Resolver) SetLookupEnv(fn func(string) (string, bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookupEnv = fn
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// SetCapture stores a value captured by check under both "check.name" and "name".
func (r *Resolver) SetCapture(check, name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures[check+"."+name] = value
	r.captures[name] = value
}

// Captures returns a copy of every captured value.
func (r *Resolver) Captures() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.captures))
	for k, v := range r.captures {
		out[k] = v
	}
	return out
}

// GetVariable looks name up in the captures, then the variables.
func (r *Resolver) GetVariable(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.captures[name]; ok {
		return v, true
	}
	if v, ok := r.variables[name]; ok {
		return v, true
	}
	return nil, false
}

func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		if val, ok := r.lookup(expr); ok {
			return val
		}
		r.mu.RLock()
		log := r.log
		r.mu.RUnlock()
		log.WithField("placeholder", expr).Warn("Unresolved placeholder")
		return match
	})
}

func (r *Resolver) lookup(expr string) (string, bool) {
	if name, ok := strings.CutPrefix(expr, "$"); ok {
		r.mu.RLock()
		lookupEnv := r.lookupEnv
		r.mu.RUnlock()
		if val, ok := lookupEnv(name); ok && val != "" {
			return val, true
		}
		return "", false
	}

	if strings.Contains(expr, "(") {
		if result, ok := r.funcs.Call(expr); ok {
			return fmt.Sprintf("%v", result), true
		}
		return "", false
	}

	if val, ok := r.GetVariable(expr); ok {
		return fmt.Sprintf("%v", val), true
	}
	return "", false
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// GetUnresolvedVariables lists the plain variable placeholders in input that
// have no value. Environment and function placeholders are not reported.
func (r *Resolver) GetUnresolvedVariables(input string) []string {
	var missing []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if strings.HasPrefix(expr, "$") || strings.Contains(expr, "(") {
			continue
		}
		if _, ok := r.GetVariable(expr); !ok {
			missing = append(missing, expr)
		}
	}
	return missing
}

func (r *Resolver) HasUnresolvedVariables(input string) bool {
	return len(r.GetUnresolvedVariables(input)) > 0
}

// Clone copies variables and captures into an independent Resolver.
func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver()
	clone.lookupEnv = r.lookupEnv
	clone.log = r.log
	clone.funcs.log = r.log
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	for k, v := range r.captures {
		clone.captures[k] = v
	}
	return clone
}
