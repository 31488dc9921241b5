package wait

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abdul-hamid-achik/playspec/packages/browser"
	"github.com/abdul-hamid-achik/playspec/packages/core/config"
	"github.com/abdul-hamid-achik/playspec/packages/core/testctx"
)

// State is the condition a wait polls for.
type State string

const (
	Visible       State = "visible"
	Clickable     State = "clickable"
	URLContains   State = "urlContains"
	TitleContains State = "titleContains"
	Custom        State = "custom"
)

// Condition is polled against the bound page until it reports true.
// A returned error is remembered for the timeout message but does not stop the wait.
type Condition func(page browser.Page) (bool, error)

// Spec describes a single wait. Target is a selector for element states and a
// fragment for URL and title states. A zero Timeout uses the engine default.
type Spec struct {
	Target    string
	State     State
	Timeout   time.Duration
	Condition Condition
}

// Recorder receives the duration and result of every wait.
type Recorder interface {
	Record(name string, duration time.Duration, err error)
}

// Options configure an Engine.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
	Recorder Recorder
	Logger   logrus.FieldLogger
}

// OptionsFrom reads timeout.element and timeout.poll.
func OptionsFrom(settings *config.Resolver) Options {
	return Options{
		Timeout:  settings.ResolveDuration(config.KeyElementTimeout, config.DefaultElementTimeout),
		Interval: settings.ResolveDuration(config.KeyPollInterval, config.DefaultPollInterval),
	}
}

// Engine polls conditions against the page bound to the calling test.
type Engine struct {
	store *testctx.Store
	opts  Options
	log   logrus.FieldLogger
}

// New returns an Engine reading pages from store.
func New(store *testctx.Store, opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultElementTimeout
	}
	if opts.Interval <= 0 {
		opts.Interval = config.DefaultPollInterval
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Engine{store: store, opts: opts, log: log}
}

// Timeout returns the default bound applied when a Spec carries none.
func (e *Engine) Timeout() time.Duration {
	return e.opts.Timeout
}

// Wait runs spec to completion. Element states return the matched element.
func (e *Engine) Wait(ctx context.Context, spec Spec) (browser.Element, error) {
	var (
		el   browser.Element
		cond Condition
	)

	switch spec.State {
	case Visible:
		cond = func(page browser.Page) (bool, error) {
			el = page.Locate(spec.Target)
			return el.IsVisible()
		}
	case Clickable:
		cond = func(page browser.Page) (bool, error) {
			el = page.Locate(spec.Target)
			visible, err := el.IsVisible()
			if err != nil || !visible {
				return false, err
			}
			return el.IsEnabled()
		}
	case URLContains:
		cond = func(page browser.Page) (bool, error) {
			return strings.Contains(page.URL(), spec.Target), nil
		}
	case TitleContains:
		cond = func(page browser.Page) (bool, error) {
			title, err := page.Title()
			if err != nil {
				return false, err
			}
			return strings.Contains(title, spec.Target), nil
		}
	case Custom:
		if spec.Condition == nil {
			return nil, fmt.Errorf("custom wait for %q has no condition", spec.Target)
		}
		cond = spec.Condition
	default:
		return nil, fmt.Errorf("unknown wait state %q", spec.State)
	}

	if err := e.poll(ctx, spec, cond); err != nil {
		return nil, err
	}
	return el, nil
}

// WaitVisible waits until the first element matching selector is visible.
func (e *Engine) WaitVisible(ctx context.Context, selector string) (browser.Element, error) {
	return e.Wait(ctx, Spec{Target: selector, State: Visible})
}

// WaitClickable waits until the first element matching selector is visible and enabled.
func (e *Engine) WaitClickable(ctx context.Context, selector string) (browser.Element, error) {
	return e.Wait(ctx, Spec{Target: selector, State: Clickable})
}

// WaitURLContains waits until the page URL contains fragment.
func (e *Engine) WaitURLContains(ctx context.Context, fragment string) error {
	_, err := e.Wait(ctx, Spec{Target: fragment, State: URLContains})
	return err
}

// WaitTitleContains waits until the page title contains fragment.
func (e *Engine) WaitTitleContains(ctx context.Context, fragment string) error {
	_, err := e.Wait(ctx, Spec{Target: fragment, State: TitleContains})
	return err
}

// WaitFor polls a caller supplied condition; description names it in errors.
func (e *Engine) WaitFor(ctx context.Context, description string, cond Condition) error {
	_, err := e.Wait(ctx, Spec{Target: description, State: Custom, Condition: cond})
	return err
}

// Text waits for selector to be visible and returns its trimmed text. Inputs
// have no text content, so an empty text falls back to the value attribute.
func (e *Engine) Text(ctx context.Context, selector string) (string, error) {
	el, err := e.WaitVisible(ctx, selector)
	if err != nil {
		return "", err
	}
	text, err := el.TextContent()
	if err != nil {
		return "", err
	}
	if text = strings.TrimSpace(text); text != "" {
		return text, nil
	}
	value, err := el.GetAttribute("value")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func (e *Engine) poll(ctx context.Context, spec Spec, cond Condition) error {
	page, err := e.store.Page(ctx)
	if err != nil {
		return err
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = e.opts.Timeout
	}

	log := e.log.WithFields(logrus.Fields{
		"state":  string(spec.State),
		"target": spec.Target,
	})

	start := time.Now()
	deadline := start.Add(timeout)
	var lastErr error

	for {
		ok, err := cond(page)
		if err != nil {
			lastErr = err
		}
		if ok && err == nil {
			e.record(spec.State, time.Since(start), nil)
			log.WithField("elapsed", time.Since(start)).Debug("Wait satisfied")
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			terr := &TimeoutError{
				State:   spec.State,
				Target:  spec.Target,
				Timeout: timeout,
				Elapsed: time.Since(start),
				LastErr: lastErr,
			}
			e.record(spec.State, terr.Elapsed, terr)
			log.WithError(terr).Debug("Wait timed out")
			return terr
		}

		timer := time.NewTimer(min(e.opts.Interval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			e.record(spec.State, time.Since(start), ctx.Err())
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (e *Engine) record(state State, elapsed time.Duration, err error) {
	if e.opts.Recorder != nil {
		e.opts.Recorder.Record(string(state), elapsed, err)
	}
}
