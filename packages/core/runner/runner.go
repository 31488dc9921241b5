package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abdul-hamid-achik/playspec/packages/assertions"
	"github.com/abdul-hamid-achik/playspec/packages/browser"
	"github.com/abdul-hamid-achik/playspec/packages/core/config"
	"github.com/abdul-hamid-achik/playspec/packages/core/env"
	"github.com/abdul-hamid-achik/playspec/packages/core/lifecycle"
	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/parser"
	"github.com/abdul-hamid-achik/playspec/packages/core/testctx"
	"github.com/abdul-hamid-achik/playspec/packages/http"
	"github.com/abdul-hamid-achik/playspec/packages/wait"
)

const (
	// DefaultConcurrency is the default number of concurrent checks in parallel mode
	DefaultConcurrency = 5
	// DefaultRetryDelayMs is the default delay between retries in milliseconds
	DefaultRetryDelayMs = 1000
)

// Deps are shared by every check the runner invokes.
type Deps struct {
	Settings *config.Resolver
	Driver   browser.Driver
	Store    *testctx.Store
	// Client sends API checks. When nil one is built from the settings on
	// first use.
	Client      *http.Client
	Diagnostics lifecycle.Diagnostics
	Recorder    wait.Recorder
	Logger      logrus.FieldLogger
}

type Config struct {
	Bail        bool
	NameFilter  string
	TagsFilter  []string
	Parallel    bool
	Concurrency int
}

type Runner struct {
	deps   Deps
	config *Config
	log    logrus.FieldLogger

	clientOnce sync.Once
	client     *http.Client
	clientErr  error
}

func NewRunner(deps Deps, cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	if deps.Store == nil {
		deps.Store = testctx.NewStore(deps.Logger)
	}
	if deps.Settings == nil {
		deps.Settings = config.New(nil)
	}
	log := deps.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Runner{deps: deps, config: cfg, log: log}
}

type RunResult struct {
	File     string
	Suite    string
	Results  []*CheckResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
}

type Kind string

const (
	KindUI  Kind = "ui"
	KindAPI Kind = "api"
)

type CheckResult struct {
	Name        string
	Kind        Kind
	Owner       string
	Browser     string
	Outcome     outcome.Outcome
	SkipReason  string
	Duration    time.Duration
	Attempts    int
	Steps       []*StepResult
	Request     *http.Request
	Response    *http.Response
	Assertions  []*assertions.Result
	Captures    map[string]any
	Diagnostics bool
	Error       error
}

func (r *CheckResult) Passed() bool {
	return r.Outcome == outcome.Success
}

type StepResult struct {
	Step     string
	Passed   bool
	Duration time.Duration
	Error    error
}

// RunFile parses and runs one check suite.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	suite, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	return r.RunSuite(ctx, suite)
}

// RunSuite runs the checks of suite in dependency order, or concurrently when
// parallel mode is on and no check depends on another.
func (r *Runner) RunSuite(ctx context.Context, suite *parser.Suite) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{File: suite.Path, Suite: suite.Name}
	baseDir := filepath.Dir(suite.Path)

	vars := env.NewResolver()
	vars.SetLogger(r.log)
	vars.SetVariables(r.deps.Settings.Variables())
	for name, value := range suite.Variables {
		vars.SetVariable(name, value)
	}

	hasOnly := false
	for _, check := range suite.Checks {
		if check.Only {
			hasOnly = true
			break
		}
	}

	sorted, err := r.topologicalSort(suite.Checks)
	if err != nil {
		return nil, err
	}

	var runnable []*parser.Check
	for _, check := range sorted {
		if !r.shouldRun(check, hasOnly) {
			result.add(skipped(check, "filtered out"))
			continue
		}
		if check.Skip != "" {
			result.add(skipped(check, check.Skip))
			continue
		}
		runnable = append(runnable, check)
	}

	hasDependencies := false
	for _, check := range runnable {
		if len(check.Depends) > 0 {
			hasDependencies = true
			break
		}
	}

	if r.config.Parallel && !hasDependencies {
		for _, res := range r.runParallel(ctx, runnable, vars, baseDir) {
			result.add(res)
		}
		result.Duration = time.Since(start)
		return result, nil
	}

	executed := make(map[string]*CheckResult)
	for _, check := range runnable {
		if ctx.Err() != nil {
			result.add(skipped(check, "run cancelled"))
			continue
		}
		if dependencyFailed(check, executed) {
			result.add(skipped(check, "dependency failed"))
			continue
		}

		res := r.runCheck(ctx, check, vars, baseDir)
		executed[check.Name] = res
		result.add(res)

		if !res.Passed() && res.Outcome != outcome.Skipped && r.config.Bail {
			break
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (rr *RunResult) add(res *CheckResult) {
	rr.Results = append(rr.Results, res)
	switch {
	case res.Outcome == outcome.Skipped:
		rr.Skipped++
	case res.Passed():
		rr.Passed++
	default:
		rr.Failed++
	}
}

func skipped(check *parser.Check, reason string) *CheckResult {
	return &CheckResult{
		Name:       check.Name,
		Kind:       kindOf(check),
		Outcome:    outcome.Skipped,
		SkipReason: reason,
	}
}

func kindOf(check *parser.Check) Kind {
	if check.IsUI() {
		return KindUI
	}
	return KindAPI
}

func dependencyFailed(check *parser.Check, executed map[string]*CheckResult) bool {
	for _, dep := range check.Depends {
		res, ok := executed[dep]
		if !ok || !res.Passed() {
			return true
		}
	}
	return false
}

func (r *Runner) runParallel(ctx context.Context, checks []*parser.Check, vars *env.Resolver, baseDir string) []*CheckResult {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*CheckResult, len(checks))
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, check := range checks {
		wg.Add(1)
		sem <- struct{}{} // acquire semaphore

		go func(idx int, check *parser.Check) {
			defer wg.Done()
			defer func() { <-sem }() // release semaphore

			// Captures stay local to the check in parallel mode
			results[idx] = r.runCheck(ctx, check, vars.Clone(), baseDir)
		}(i, check)
	}

	wg.Wait()
	return results
}

// runCheck runs check with its retries. Every attempt gets a fresh owner.
func (r *Runner) runCheck(ctx context.Context, check *parser.Check, vars *env.Resolver, baseDir string) *CheckResult {
	delay := DefaultRetryDelayMs
	if check.RetryDelay > 0 {
		delay = check.RetryDelay
	}

	var res *CheckResult
	for attempt := 0; attempt <= check.Retry; attempt++ {
		if check.IsUI() {
			res = r.runUI(ctx, check, vars)
		} else {
			res = r.runAPI(ctx, check, vars, baseDir)
		}
		res.Attempts = attempt + 1
		if res.Passed() || attempt == check.Retry {
			break
		}

		r.log.WithFields(logrus.Fields{
			"check":   check.Name,
			"attempt": attempt + 1,
			"outcome": res.Outcome.String(),
		}).Info("Retrying check")

		select {
		case <-ctx.Done():
			return res
		case <-time.After(time.Duration(delay) * time.Millisecond):
		}
	}
	return res
}

// outcomeOf maps a check error onto the outcome teardown acts on.
func outcomeOf(err error) outcome.Outcome {
	switch {
	case err == nil:
		return outcome.Success
	case wait.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return outcome.Timeout
	default:
		return outcome.Failure
	}
}

// topologicalSort returns checks in dependency-respecting order, keeping file
// order among checks at the same level.
func (r *Runner) topologicalSort(checks []*parser.Check) ([]*parser.Check, error) {
	inDegree := make(map[string]int, len(checks))
	adjacency := make(map[string][]string)
	byName := make(map[string]*parser.Check, len(checks))

	for _, check := range checks {
		inDegree[check.Name] = 0
		byName[check.Name] = check
	}

	for _, check := range checks {
		for _, dep := range check.Depends {
			if _, exists := byName[dep]; !exists {
				r.log.WithFields(logrus.Fields{"check": check.Name, "dependency": dep}).
					Warn("Check depends on a check that does not exist")
				continue
			}
			adjacency[dep] = append(adjacency[dep], check.Name)
			inDegree[check.Name]++
		}
	}

	// Kahn's algorithm, seeded in file order
	var queue []string
	for _, check := range checks {
		if inDegree[check.Name] == 0 {
			queue = append(queue, check.Name)
		}
	}

	sorted := make([]*parser.Check, 0, len(checks))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, byName[current])

		for _, next := range adjacency[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(sorted) != len(checks) {
		return nil, fmt.Errorf("circular dependency detected in checks")
	}
	return sorted, nil
}

func (r *Runner) shouldRun(check *parser.Check, hasOnly bool) bool {
	if hasOnly && !check.Only {
		return false
	}
	if r.config.NameFilter != "" && !matchesPattern(check.Name, r.config.NameFilter) {
		return false
	}
	if len(r.config.TagsFilter) > 0 && !hasAnyTag(check.Tags, r.config.TagsFilter) {
		return false
	}
	return true
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}
	prefix := strings.HasPrefix(pattern, "*")
	suffix := len(pattern) > 1 && strings.HasSuffix(pattern, "*")
	core := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")

	switch {
	case prefix && suffix:
		return strings.Contains(name, core)
	case prefix:
		return strings.HasSuffix(name, core)
	case suffix:
		return strings.HasPrefix(name, core)
	default:
		return name == pattern
	}
}

func hasAnyTag(tags []string, filters []string) bool {
	for _, filter := range filters {
		for _, tag := range tags {
			if tag == filter {
				return true
			}
		}
	}
	return false
}
