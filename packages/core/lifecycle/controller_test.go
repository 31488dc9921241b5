package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/abdul-hamid-achik/playspec/packages/browser"
	"github.com/abdul-hamid-achik/playspec/packages/browser/browsertest"
	"github.com/abdul-hamid-achik/playspec/packages/core/config"
	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/testctx"
	"github.com/abdul-hamid-achik/playspec/packages/diagnostics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func noEnv(string) (string, bool) { return "", false }

func settings(kv map[string]string) *config.Resolver {
	return config.New(kv, config.WithLookupEnv(noEnv))
}

var defaultSettings = map[string]string{
	"ui.url":          "https://demoqa.com",
	"browser.chrome":  "chromium",
	"viewport.width":  "1280",
	"viewport.height": "720",
}

// recordingSink notes whether the page was still open when the screenshot arrived.
type recordingSink struct {
	mu          sync.Mutex
	page        *browsertest.Page
	attachments []string
	pageOpen    []bool
}

func (s *recordingSink) Attach(_ context.Context, name, mimeType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = append(s.attachments, name+" "+mimeType)
	s.pageOpen = append(s.pageOpen, !s.page.Closed())
	return nil
}

type fixture struct {
	ctx    context.Context
	driver *browsertest.Driver
	store  *testctx.Store
	sink   *recordingSink
	ctrl   *Controller
}

func newFixture(t *testing.T, kv map[string]string) *fixture {
	t.Helper()
	f := &fixture{
		ctx:    testctx.WithOwner(context.Background(), t.Name()),
		driver: browsertest.NewDriver(),
		store:  testctx.NewStore(nil),
		sink:   &recordingSink{},
	}
	f.driver.OnPage = func(p *browsertest.Page) {
		f.sink.mu.Lock()
		f.sink.page = p
		f.sink.mu.Unlock()
	}
	f.ctrl = New(Deps{
		Settings:    settings(kv),
		Driver:      f.driver,
		Store:       f.store,
		Diagnostics: diagnostics.NewCapturer(f.store, f.sink, nil),
	})
	return f
}

func TestSetup(t *testing.T) {
	f := newFixture(t, defaultSettings)

	require.NoError(t, f.ctrl.Setup(f.ctx, "chrome"))

	assert.Equal(t, Navigated, f.ctrl.State())
	assert.Equal(t, []string{"launch chromium", "new context 1280x720", "new page"}, f.driver.Calls())

	page, err := f.store.Page(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://demoqa.com", page.URL())
	assert.True(t, f.ctrl.Session().Headless, "headless defaults to true")
}

func TestSetup_Defaults(t *testing.T) {
	f := newFixture(t, map[string]string{"ui.url": "https://example.test"})

	require.NoError(t, f.ctrl.Setup(f.ctx, "chrome"))

	assert.Equal(t, []string{"launch chromium", "new context 1920x1080", "new page"}, f.driver.Calls())
	session := f.ctrl.Session()
	assert.True(t, session.Headless)
	assert.Equal(t, browser.Viewport{Width: 1920, Height: 1080}, session.Viewport)

	page, err := f.store.Page(f.ctx)
	require.NoError(t, err)
	assert.Same(t, session.Page, page)
	assert.Equal(t, "https://example.test", page.URL())
	f.ctrl.Teardown(f.ctx, outcome.Record{Outcome: outcome.Success})
}

func TestSetup_MissingDeps(t *testing.T) {
	t.Setenv("UI_URL", "")
	t.Setenv("BROWSER_CHROME", "")
	ctx := testctx.WithOwner(context.Background(), t.Name())

	ctrl := New(Deps{})
	err := ctrl.Setup(ctx, "chrome")
	assert.ErrorIs(t, err, ErrNoDriver)
	assert.Equal(t, Idle, ctrl.State())

	ctrl = New(Deps{Driver: browsertest.NewDriver()})
	var missing *config.MissingError
	assert.NotPanics(t, func() { err = ctrl.Setup(ctx, "chrome") })
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "ui.url", missing.Key)

	report := ctrl.Teardown(ctx, outcome.Record{Outcome: outcome.Failure})
	assert.False(t, report.Disposed)
	assert.Equal(t, Released, ctrl.State())
}

func TestSetup_TwiceFails(t *testing.T) {
	f := newFixture(t, defaultSettings)
	require.NoError(t, f.ctrl.Setup(f.ctx, "chrome"))

	assert.Error(t, f.ctrl.Setup(f.ctx, "chrome"))
	f.ctrl.Teardown(f.ctx, outcome.Record{Outcome: outcome.Success})
}

func TestSetup_UnsupportedBrowser(t *testing.T) {
	f := newFixture(t, defaultSettings)

	err := f.ctrl.Setup(f.ctx, "netscape")

	var unsupported *browser.UnsupportedEngineError
	require.ErrorAs(t, err, &unsupported)
	assert.Empty(t, f.driver.Calls())
	assert.Equal(t, Idle, f.ctrl.State())
}

func TestSetup_MissingURLReleasesBrowser(t *testing.T) {
	f := newFixture(t, map[string]string{"browser.chrome": "chromium"})

	err := f.ctrl.Setup(f.ctx, "chrome")

	var missing *config.MissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "ui.url", missing.Key)

	calls := f.driver.Calls()
	assert.Equal(t, []string{"close page", "close context", "close engine"}, calls[len(calls)-3:])
	_, err = f.store.Get(f.ctx)
	assert.ErrorIs(t, err, testctx.ErrContextNotBound)
	assert.Equal(t, Idle, f.ctrl.State())
	assert.Nil(t, f.ctrl.Session())

	report := f.ctrl.Teardown(f.ctx, outcome.Record{Outcome: outcome.Failure})
	assert.False(t, report.Disposed)
	assert.False(t, report.Diagnostics)
	assert.Equal(t, Released, f.ctrl.State())
}

func TestSetup_NavigationFailureReleasesBrowser(t *testing.T) {
	f := newFixture(t, defaultSettings)
	f.driver.OnPage = func(p *browsertest.Page) {
		p.FailNavigation(errors.New("net::ERR_NAME_NOT_RESOLVED"))
	}

	err := f.ctrl.Setup(f.ctx, "chrome")

	assert.ErrorContains(t, err, "ERR_NAME_NOT_RESOLVED")
	assert.True(t, browsertest.Contains(f.driver.Calls(), "close engine"))
	assert.Equal(t, 0, f.store.Len())
}

func TestTeardown_SuccessSkipsDiagnostics(t *testing.T) {
	for _, o := range []outcome.Outcome{outcome.Success, outcome.Skipped} {
		t.Run(o.String(), func(t *testing.T) {
			f := newFixture(t, defaultSettings)
			require.NoError(t, f.ctrl.Setup(f.ctx, "chrome"))

			report := f.ctrl.Teardown(f.ctx, outcome.Record{Name: "profile", Outcome: o})

			assert.True(t, report.Disposed)
			assert.False(t, report.Diagnostics)
			assert.Empty(t, f.sink.attachments)
			assert.Equal(t, Released, f.ctrl.State())
			assert.Equal(t, 0, f.store.Len())
		})
	}
}

func TestTeardown_FailureCapturesBeforeDispose(t *testing.T) {
	for _, o := range []outcome.Outcome{outcome.Failure, outcome.FailureWithinThreshold, outcome.Timeout} {
		t.Run(o.String(), func(t *testing.T) {
			f := newFixture(t, defaultSettings)
			require.NoError(t, f.ctrl.Setup(f.ctx, "chrome"))

			report := f.ctrl.Teardown(f.ctx, outcome.Record{Name: "login", Outcome: o})

			assert.True(t, report.Diagnostics)
			assert.True(t, report.Disposed)
			assert.Equal(t, []string{"Failure Screenshot image/png"}, f.sink.attachments)
			assert.Equal(t, []bool{true}, f.sink.pageOpen, "screenshot must be taken before the page closes")
			assert.True(t, f.sink.page.Closed())
			assert.Equal(t, 0, f.store.Len())
		})
	}
}

func TestTeardown_DiagnosticsFailureStillReleases(t *testing.T) {
	f := newFixture(t, defaultSettings)
	f.driver.OnPage = func(p *browsertest.Page) {
		f.sink.page = p
		p.FailScreenshot(errors.New("target closed"))
	}
	f.driver.CloseEngine = errors.New("already exited")
	require.NoError(t, f.ctrl.Setup(f.ctx, "chrome"))

	report := f.ctrl.Teardown(f.ctx, outcome.Record{Outcome: outcome.Timeout})

	assert.False(t, report.Diagnostics)
	assert.True(t, report.Disposed)
	assert.Equal(t, Released, f.ctrl.State())
	assert.Equal(t, 0, f.store.Len())
}

type panickingDiagnostics struct{}

func (panickingDiagnostics) CaptureOnFailure(context.Context, outcome.Record) bool {
	panic("report sink exploded")
}

func TestTeardown_DiagnosticsPanicIsContained(t *testing.T) {
	f := newFixture(t, defaultSettings)
	f.ctrl.deps.Diagnostics = panickingDiagnostics{}
	require.NoError(t, f.ctrl.Setup(f.ctx, "chrome"))

	var report Report
	assert.NotPanics(t, func() {
		report = f.ctrl.Teardown(f.ctx, outcome.Record{Name: "checkout", Outcome: outcome.Failure})
	})

	assert.False(t, report.Diagnostics)
	assert.True(t, report.Disposed)
	assert.True(t, browsertest.Contains(f.driver.Calls(), "close engine"))
	assert.Equal(t, Released, f.ctrl.State())
	assert.Equal(t, 0, f.store.Len())
}

func TestTeardown_DurationIncludesDisposal(t *testing.T) {
	f := newFixture(t, defaultSettings)
	f.driver.EngineCloseDelay = 50 * time.Millisecond
	require.NoError(t, f.ctrl.Setup(f.ctx, "chrome"))

	report := f.ctrl.Teardown(f.ctx, outcome.Record{Outcome: outcome.Success})

	assert.GreaterOrEqual(t, report.Duration, 50*time.Millisecond)
}

func TestTeardown_Idempotent(t *testing.T) {
	f := newFixture(t, defaultSettings)
	require.NoError(t, f.ctrl.Setup(f.ctx, "chrome"))

	first := f.ctrl.Teardown(f.ctx, outcome.Record{Outcome: outcome.Failure})
	callsAfterFirst := len(f.driver.Calls())
	second := f.ctrl.Teardown(f.ctx, outcome.Record{Outcome: outcome.Failure})

	assert.False(t, first.AlreadyReleased)
	assert.True(t, second.AlreadyReleased)
	assert.Equal(t, callsAfterFirst, len(f.driver.Calls()))
	assert.Len(t, f.sink.attachments, 1)
}

func TestControllers_AreIsolated(t *testing.T) {
	driver := browsertest.NewDriver()
	store := testctx.NewStore(nil)
	resolver := settings(defaultSettings)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := testctx.WithOwner(context.Background(), fmt.Sprintf("test-%d", i))
			ctrl := New(Deps{Settings: resolver, Driver: driver, Store: store})

			if !assert.NoError(t, ctrl.Setup(ctx, "chrome")) {
				return
			}
			page, err := store.Page(ctx)
			if assert.NoError(t, err) {
				assert.Same(t, ctrl.Session().Page, page)
			}
			ctrl.Teardown(ctx, outcome.Record{Outcome: outcome.Success})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, store.Len())
	assert.Len(t, driver.Pages(), 8)
	for _, p := range driver.Pages() {
		assert.True(t, p.Closed())
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "navigated", Navigated.String())
	assert.Equal(t, "released", Released.String())
	assert.Equal(t, "State(42)", State(42).String())
}
