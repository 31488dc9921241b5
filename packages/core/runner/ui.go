package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abdul-hamid-achik/playspec/packages/core/config"
	"github.com/abdul-hamid-achik/playspec/packages/core/env"
	"github.com/abdul-hamid-achik/playspec/packages/core/lifecycle"
	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/parser"
	"github.com/abdul-hamid-achik/playspec/packages/core/testctx"
	"github.com/abdul-hamid-achik/playspec/packages/pages"
	"github.com/abdul-hamid-achik/playspec/packages/wait"
)

// TextMismatchError is returned by an expectText step whose element text
// does not match.
type TextMismatchError struct {
	Selector string
	Want     string
	Got      string
	Contains bool
}

func (e *TextMismatchError) Error() string {
	if e.Contains {
		return fmt.Sprintf("expected %s text to contain %q, got %q", e.Selector, e.Want, e.Got)
	}
	return fmt.Sprintf("expected %s text %q, got %q", e.Selector, e.Want, e.Got)
}

// runUI sets up a browser for check, runs its steps and tears down with the
// outcome the steps produced.
func (r *Runner) runUI(ctx context.Context, check *parser.Check, vars *env.Resolver) *CheckResult {
	ctx, owner := testctx.NewOwner(ctx)
	settings := r.deps.Settings

	logical := vars.Resolve(check.Browser)
	if logical == "" {
		logical = settings.Resolve(config.KeyBrowser, config.DefaultBrowser)
	}

	res := &CheckResult{
		Name:    check.Name,
		Kind:    KindUI,
		Owner:   owner,
		Browser: logical,
	}
	log := r.log.WithFields(logrus.Fields{"owner": owner, "check": check.Name})

	controller := lifecycle.New(lifecycle.Deps{
		Settings:    settings,
		Driver:      r.deps.Driver,
		Store:       r.deps.Store,
		Diagnostics: r.deps.Diagnostics,
		Logger:      r.log,
	})

	start := time.Now()
	err := controller.Setup(ctx, logical)
	if err == nil {
		err = r.runSteps(ctx, check, vars, res, log)
	}
	res.Duration = time.Since(start)
	res.Outcome = outcomeOf(err)
	res.Error = err

	report := controller.Teardown(ctx, outcome.Record{
		Name:     check.Name,
		Outcome:  res.Outcome,
		Err:      err,
		Duration: res.Duration,
	})
	res.Diagnostics = report.Diagnostics
	return res
}

func (r *Runner) runSteps(ctx context.Context, check *parser.Check, vars *env.Resolver, res *CheckResult, log logrus.FieldLogger) error {
	opts := wait.OptionsFrom(r.deps.Settings)
	opts.Recorder = r.deps.Recorder
	opts.Logger = log
	waits := wait.New(r.deps.Store, opts)

	page, err := pages.NewBase(ctx, r.deps.Store, waits, log)
	if err != nil {
		return err
	}

	for _, step := range check.Steps {
		start := time.Now()
		err := r.runStep(ctx, page, waits, step, vars)
		res.Steps = append(res.Steps, &StepResult{
			Step:     step.String(),
			Passed:   err == nil,
			Duration: time.Since(start),
			Error:    err,
		})
		if err != nil {
			log.WithError(err).WithField("step", step.String()).Debug("Step failed")
			return err
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, page *pages.Base, waits *wait.Engine, step *parser.Step, vars *env.Resolver) error {
	kind, err := step.Kind()
	if err != nil {
		return err
	}

	switch kind {
	case parser.StepOpen:
		timeout := r.deps.Settings.ResolveDuration(config.KeyNavigationTimeout, config.DefaultNavigationTimeout)
		return page.Open(ctx, r.pageURL(vars.Resolve(step.Open)), timeout)
	case parser.StepClick:
		return page.Click(ctx, vars.Resolve(step.Click))
	case parser.StepFill:
		return page.Type(ctx, vars.Resolve(step.Fill.Selector), vars.Resolve(step.Fill.Text))
	case parser.StepExpectText:
		selector := vars.Resolve(step.ExpectText.Selector)
		got, err := page.Text(ctx, selector)
		if err != nil {
			return err
		}
		if step.ExpectText.Contains != "" {
			want := vars.Resolve(step.ExpectText.Contains)
			if !strings.Contains(got, want) {
				return &TextMismatchError{Selector: selector, Want: want, Got: got, Contains: true}
			}
			return nil
		}
		want := vars.Resolve(step.ExpectText.Equals)
		if got != want {
			return &TextMismatchError{Selector: selector, Want: want, Got: got}
		}
		return nil
	case parser.StepExpectVisible:
		_, err := waits.WaitVisible(ctx, vars.Resolve(step.ExpectVisible))
		return err
	case parser.StepWaitURL:
		return page.WaitURLContains(ctx, vars.Resolve(step.WaitURL))
	case parser.StepWaitTitle:
		return page.WaitTitleContains(ctx, vars.Resolve(step.WaitTitle))
	default:
		return fmt.Errorf("unsupported step %q", kind)
	}
}

// pageURL joins relative targets onto ui.url.
func (r *Runner) pageURL(target string) string {
	if strings.Contains(target, "://") {
		return target
	}
	base := r.deps.Settings.Resolve(config.KeyUIURL, "")
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(target, "/")
}
