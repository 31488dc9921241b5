// Package harness binds the browser lifecycle to Go tests. A test asks its
// Suite for a browser; teardown is registered with t.Cleanup and takes its
// outcome from the test's own status.
package harness

import (
	"context"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abdul-hamid-achik/playspec/packages/browser"
	"github.com/abdul-hamid-achik/playspec/packages/core/config"
	"github.com/abdul-hamid-achik/playspec/packages/core/lifecycle"
	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/testctx"
	"github.com/abdul-hamid-achik/playspec/packages/diagnostics"
	"github.com/abdul-hamid-achik/playspec/packages/output"
	"github.com/abdul-hamid-achik/playspec/packages/pages"
	"github.com/abdul-hamid-achik/playspec/packages/wait"
)

// T is the part of testing.TB the harness needs.
type T interface {
	Helper()
	Name() string
	Cleanup(func())
	Failed() bool
	Skipped() bool
	Fatalf(format string, args ...any)
}

type Deps struct {
	Settings *config.Resolver
	Driver   browser.Driver
	Store    *testctx.Store
	// Sink receives failure screenshots. Nil writes them under output.dir.
	Sink     diagnostics.ReportSink
	Recorder wait.Recorder
	Logger   logrus.FieldLogger
}

// Suite hands out browsers to tests. It is safe for parallel tests.
type Suite struct {
	deps        Deps
	diagnostics *diagnostics.Capturer
	log         logrus.FieldLogger
}

func NewSuite(deps Deps) *Suite {
	log := deps.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if deps.Settings == nil {
		deps.Settings = config.New(nil)
	}
	if deps.Store == nil {
		deps.Store = testctx.NewStore(log)
	}
	if deps.Sink == nil {
		deps.Sink = output.NewAttachments(deps.Settings.Resolve(config.KeyOutputDir, config.DefaultOutputDir), log)
	}
	return &Suite{
		deps:        deps,
		diagnostics: diagnostics.NewCapturer(deps.Store, deps.Sink, log),
		log:         log,
	}
}

// FromEnv builds a Suite driving real browsers through Playwright, with
// settings from the file named by PLAYSPEC_CONFIG or the first default
// settings file found in dir. No file is a *config.MissingError unless
// PLAYSPEC_NO_CONFIG is true.
func FromEnv(dir string) (*Suite, error) {
	driver := &browser.PlaywrightDriver{}
	explicit := os.Getenv("PLAYSPEC_CONFIG")
	if noConfig, _ := strconv.ParseBool(os.Getenv("PLAYSPEC_NO_CONFIG")); noConfig && explicit == "" {
		return NewSuite(Deps{Driver: driver}), nil
	}
	path, err := config.Locate(explicit, dir)
	if err != nil {
		return nil, err
	}
	settings, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return NewSuite(Deps{Settings: settings, Driver: driver}), nil
}

func (s *Suite) Settings() *config.Resolver {
	return s.deps.Settings
}

// Browser is a test's live browser.
type Browser struct {
	// Ctx carries the test's owner id; pass it to every page call.
	Ctx     context.Context
	Owner   string
	Page    *pages.Base
	Waits   *wait.Engine
	Session *browser.Session
}

// Browser sets up the logical browser for t, navigated to ui.url, and
// registers teardown. Setup failures end the test with Fatalf.
func (s *Suite) Browser(t T, logical string) *Browser {
	t.Helper()

	ctx, owner := testctx.NewOwner(context.Background())
	log := s.log.WithFields(logrus.Fields{"owner": owner, "test": t.Name()})

	controller := lifecycle.New(lifecycle.Deps{
		Settings:    s.deps.Settings,
		Driver:      s.deps.Driver,
		Store:       s.deps.Store,
		Diagnostics: s.diagnostics,
		Logger:      s.log,
	})

	start := time.Now()
	if err := controller.Setup(ctx, logical); err != nil {
		t.Fatalf("browser setup: %v", err)
		return nil
	}

	t.Cleanup(func() {
		controller.Teardown(ctx, outcome.Record{
			Name:     t.Name(),
			Outcome:  outcomeOf(t),
			Duration: time.Since(start),
		})
	})

	opts := wait.OptionsFrom(s.deps.Settings)
	opts.Recorder = s.deps.Recorder
	opts.Logger = log
	waits := wait.New(s.deps.Store, opts)

	page, err := pages.NewBase(ctx, s.deps.Store, waits, log)
	if err != nil {
		t.Fatalf("page: %v", err)
		return nil
	}

	return &Browser{
		Ctx:     ctx,
		Owner:   owner,
		Page:    page,
		Waits:   waits,
		Session: controller.Session(),
	}
}

func outcomeOf(t T) outcome.Outcome {
	switch {
	case t.Skipped():
		return outcome.Skipped
	case t.Failed():
		return outcome.Failure
	default:
		return outcome.Success
	}
}
