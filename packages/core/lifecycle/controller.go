package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abdul-hamid-achik/playspec/packages/browser"
	"github.com/abdul-hamid-achik/playspec/packages/core/config"
	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/testctx"
)

// State is the position of a test in its browser lifecycle.
type State int

const (
	Idle State = iota
	BrowserReady
	ContextBound
	Navigated
	TearingDown
	Released
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case BrowserReady:
		return "browser-ready"
	case ContextBound:
		return "context-bound"
	case Navigated:
		return "navigated"
	case TearingDown:
		return "tearing-down"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Diagnostics captures evidence from a failed test while its page is still open.
type Diagnostics interface {
	CaptureOnFailure(ctx context.Context, rec outcome.Record) bool
}

// ErrNoDriver is returned by Setup when Deps.Driver is nil.
var ErrNoDriver = errors.New("lifecycle: no browser driver configured")

// Deps are the collaborators a Controller drives. Diagnostics may be nil; nil
// Settings and Store get an empty resolver and a private store.
type Deps struct {
	Settings    *config.Resolver
	Driver      browser.Driver
	Store       *testctx.Store
	Diagnostics Diagnostics
	Logger      logrus.FieldLogger
}

// Report summarises a teardown.
type Report struct {
	Outcome         outcome.Outcome
	Diagnostics     bool
	Disposed        bool
	AlreadyReleased bool
	Duration        time.Duration
}

// Controller runs setup and teardown for one test. It is not reusable: once
// released, a new Controller is needed.
type Controller struct {
	deps Deps
	log  logrus.FieldLogger

	mu      sync.Mutex
	state   State
	session *browser.Session
}

// New returns an idle Controller.
func New(deps Deps) *Controller {
	log := deps.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if deps.Settings == nil {
		deps.Settings = config.New(nil, config.WithLogger(log))
	}
	if deps.Store == nil {
		deps.Store = testctx.NewStore(log)
	}
	return &Controller{deps: deps, log: log}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the live session, or nil outside setup..teardown.
func (c *Controller) Session() *browser.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) transition(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Setup creates a browser for the logical name, binds it to the owner carried
// by ctx and opens ui.url. On any failure the browser is disposed and the
// binding cleared before the error is returned.
func (c *Controller) Setup(ctx context.Context, logical string) (err error) {
	c.mu.Lock()
	if c.state != Idle || c.session != nil {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("setup called in state %s", state)
	}
	c.mu.Unlock()

	if c.deps.Driver == nil {
		return ErrNoDriver
	}

	owner, _ := testctx.Owner(ctx)
	log := c.log.WithFields(logrus.Fields{"owner": owner, "browser": logical})

	engine, err := browser.MapEngine(c.deps.Settings, logical)
	if err != nil {
		return err
	}

	settings := c.deps.Settings
	session, err := browser.NewSession(ctx, c.deps.Driver, browser.Options{
		Engine:   engine,
		Headless: settings.ResolveBool(config.KeyHeadless, config.DefaultHeadless),
		Viewport: browser.Viewport{
			Width:  settings.ResolveInt(config.KeyViewportWidth, config.DefaultViewportWidth),
			Height: settings.ResolveInt(config.KeyViewportHeight, config.DefaultViewportHeight),
		},
		Logger: log,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session = session
	c.state = BrowserReady
	c.mu.Unlock()

	defer func() {
		if err != nil {
			log.WithError(err).Error("Setup failed, releasing browser")
			session.Dispose()
			c.deps.Store.Clear(ctx)
			c.mu.Lock()
			c.session = nil
			c.state = Idle
			c.mu.Unlock()
		}
	}()

	if err = c.deps.Store.BindSession(ctx, session); err != nil {
		return err
	}
	c.transition(ContextBound)

	url, err := settings.Require(config.KeyUIURL)
	if err != nil {
		return err
	}

	timeout := settings.ResolveDuration(config.KeyNavigationTimeout, config.DefaultNavigationTimeout)
	if err = session.Page.Navigate(url, timeout); err != nil {
		return err
	}
	c.transition(Navigated)

	log.WithField("url", url).Info("Test setup complete")
	return nil
}

// Teardown releases the test's browser. Failure-like outcomes get diagnostics
// first, while the page is still live; the binding is cleared after disposal.
// Teardown never fails, never panics and only acts once.
func (c *Controller) Teardown(ctx context.Context, rec outcome.Record) (report Report) {
	c.mu.Lock()
	if c.state == TearingDown || c.state == Released {
		c.mu.Unlock()
		return Report{Outcome: rec.Outcome, AlreadyReleased: true}
	}
	session := c.session
	c.state = TearingDown
	c.mu.Unlock()

	start := time.Now()
	owner, _ := testctx.Owner(ctx)
	log := c.log.WithFields(logrus.Fields{
		"owner":   owner,
		"test":    rec.Name,
		"outcome": rec.Outcome.String(),
	})

	report = Report{Outcome: rec.Outcome, Disposed: session != nil}

	defer func() {
		defer c.release(ctx)
		session.Dispose()
		report.Duration = time.Since(start)
		log.WithFields(logrus.Fields{
			"diagnostics": report.Diagnostics,
			"duration":    report.Duration,
		}).Info("Test torn down")
	}()

	if session != nil && rec.Outcome.Failed() && c.deps.Diagnostics != nil {
		report.Diagnostics = c.capture(ctx, rec, log)
	}
	return report
}

// capture runs the diagnostics hook and contains its panics.
func (c *Controller) capture(ctx context.Context, rec outcome.Record, log logrus.FieldLogger) (attached bool) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Diagnostics capture panicked")
			attached = false
		}
	}()
	return c.deps.Diagnostics.CaptureOnFailure(ctx, rec)
}

func (c *Controller) release(ctx context.Context) {
	c.deps.Store.Clear(ctx)
	c.mu.Lock()
	c.session = nil
	c.state = Released
	c.mu.Unlock()
}
