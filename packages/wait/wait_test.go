package wait

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/abdul-hamid-achik/playspec/packages/browser"
	"github.com/abdul-hamid-achik/playspec/packages/browser/browsertest"
	"github.com/abdul-hamid-achik/playspec/packages/core/config"
	"github.com/abdul-hamid-achik/playspec/packages/core/testctx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorded struct {
	name string
	err  error
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []recorded
}

func (r *fakeRecorder) Record(name string, _ time.Duration, err error) {
	r.mu.Lock()
	r.entries = append(r.entries, recorded{name: name, err: err})
	r.mu.Unlock()
}

func bound(t *testing.T, opts Options) (context.Context, *browsertest.Page, *Engine) {
	t.Helper()
	store := testctx.NewStore(nil)
	ctx := testctx.WithOwner(context.Background(), t.Name())
	page := browsertest.NewPage()
	require.NoError(t, store.Bind(ctx, testctx.Binding{Page: page}))
	return ctx, page, New(store, opts)
}

func TestWaitVisible_MissingElementTimesOut(t *testing.T) {
	ctx, _, engine := bound(t, Options{Interval: 100 * time.Millisecond})

	start := time.Now()
	_, err := engine.Wait(ctx, Spec{Target: "#missing", State: Visible, Timeout: 500 * time.Millisecond})
	elapsed := time.Since(start)

	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
	assert.Less(t, elapsed, 550*time.Millisecond)
	assert.Contains(t, err.Error(), "#missing")
	assert.Contains(t, err.Error(), "500ms")
	assert.True(t, IsTimeout(err))
}

func TestWaitVisible_ElementAppears(t *testing.T) {
	ctx, page, engine := bound(t, Options{Timeout: 2 * time.Second, Interval: 20 * time.Millisecond})

	go func() {
		time.Sleep(100 * time.Millisecond)
		page.Add("#late", browsertest.NewElement("here"))
	}()

	el, err := engine.WaitVisible(ctx, "#late")

	require.NoError(t, err)
	assert.Equal(t, "#late", el.Selector())
}

func TestWaitVisible_HiddenElement(t *testing.T) {
	ctx, page, engine := bound(t, Options{Timeout: 150 * time.Millisecond, Interval: 20 * time.Millisecond})
	page.Add("#hidden", browsertest.NewElement("x").SetVisible(false))

	_, err := engine.WaitVisible(ctx, "#hidden")

	assert.True(t, IsTimeout(err))
}

func TestWaitClickable_DisabledElementTimesOut(t *testing.T) {
	ctx, page, engine := bound(t, Options{Timeout: 200 * time.Millisecond, Interval: 20 * time.Millisecond})
	page.Add("#submit", browsertest.NewElement("Submit").SetEnabled(false))

	_, err := engine.WaitClickable(ctx, "#submit")

	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, Clickable, terr.State)
	assert.Contains(t, err.Error(), "#submit to be clickable")
}

func TestWaitClickable_BecomesEnabled(t *testing.T) {
	ctx, page, engine := bound(t, Options{Timeout: 2 * time.Second, Interval: 20 * time.Millisecond})
	el := page.Add("#submit", browsertest.NewElement("Submit").SetEnabled(false))

	go func() {
		time.Sleep(60 * time.Millisecond)
		el.SetEnabled(true)
	}()

	got, err := engine.WaitClickable(ctx, "#submit")
	require.NoError(t, err)
	require.NoError(t, got.Click())
	assert.Equal(t, 1, el.Clicks())
}

func TestWaitURLAndTitle(t *testing.T) {
	ctx, page, engine := bound(t, Options{Timeout: time.Second, Interval: 10 * time.Millisecond})
	page.SetURL("https://example.test/login")
	page.SetTitle("Sign in")

	go func() {
		time.Sleep(40 * time.Millisecond)
		page.SetURL("https://example.test/profile")
		page.SetTitle("Profile - ToolsQA")
	}()

	require.NoError(t, engine.WaitURLContains(ctx, "/profile"))
	require.NoError(t, engine.WaitTitleContains(ctx, "Profile"))

	_, err := engine.Wait(ctx, Spec{Target: "/admin", State: URLContains, Timeout: 50 * time.Millisecond})
	assert.True(t, IsTimeout(err))
	assert.Contains(t, err.Error(), `URL to contain "/admin"`)
}

func TestWaitFor_KeepsLastConditionError(t *testing.T) {
	ctx, _, engine := bound(t, Options{Timeout: 80 * time.Millisecond, Interval: 10 * time.Millisecond})
	boom := errors.New("stale element")

	err := engine.WaitFor(ctx, "table to load", func(browser.Page) (bool, error) {
		return false, boom
	})

	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "table to load")
}

func TestWaitFor_ConditionErrorIsNotFatal(t *testing.T) {
	ctx, _, engine := bound(t, Options{Timeout: time.Second, Interval: 10 * time.Millisecond})

	calls := 0
	err := engine.WaitFor(ctx, "third time lucky", func(browser.Page) (bool, error) {
		calls++
		if calls < 3 {
			return false, errors.New("not yet")
		}
		return true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWait_NotBound(t *testing.T) {
	engine := New(testctx.NewStore(nil), Options{})
	ctx := testctx.WithOwner(context.Background(), "nobody")

	_, err := engine.WaitVisible(ctx, "#anything")

	assert.ErrorIs(t, err, testctx.ErrContextNotBound)
}

func TestWait_ContextCancelled(t *testing.T) {
	ctx, _, engine := bound(t, Options{Timeout: 10 * time.Second, Interval: 50 * time.Millisecond})
	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	_, err := engine.WaitVisible(ctx, "#never")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsTimeout(err))
}

func TestWait_InvalidSpecs(t *testing.T) {
	ctx, _, engine := bound(t, Options{})

	_, err := engine.Wait(ctx, Spec{Target: "x", State: "shimmering"})
	assert.Error(t, err)

	_, err = engine.Wait(ctx, Spec{Target: "x", State: Custom})
	assert.Error(t, err)
}

func TestText(t *testing.T) {
	ctx, page, engine := bound(t, Options{Timeout: 100 * time.Millisecond, Interval: 10 * time.Millisecond})
	page.Add("#name", browsertest.NewElement("  Name:John  "))
	page.Add("#email", browsertest.NewElement("").SetAttr("value", "john@example.test"))

	text, err := engine.Text(ctx, "#name")
	require.NoError(t, err)
	assert.Equal(t, "Name:John", text)

	text, err = engine.Text(ctx, "#email")
	require.NoError(t, err)
	assert.Equal(t, "john@example.test", text)
}

func TestWait_Recorder(t *testing.T) {
	rec := &fakeRecorder{}
	ctx, page, engine := bound(t, Options{Timeout: 30 * time.Millisecond, Interval: 10 * time.Millisecond, Recorder: rec})
	page.Add("#ok", browsertest.NewElement("ok"))

	_, err := engine.WaitVisible(ctx, "#ok")
	require.NoError(t, err)
	_, err = engine.WaitVisible(ctx, "#missing")
	require.Error(t, err)

	require.Len(t, rec.entries, 2)
	assert.Equal(t, "visible", rec.entries[0].name)
	assert.NoError(t, rec.entries[0].err)
	assert.True(t, IsTimeout(rec.entries[1].err))
}

func TestOptionsFrom(t *testing.T) {
	settings := config.New(map[string]string{
		config.KeyElementTimeout: "2500",
		config.KeyPollInterval:   "50ms",
	}, config.WithLookupEnv(func(string) (string, bool) { return "", false }))

	opts := OptionsFrom(settings)
	assert.Equal(t, 2500*time.Millisecond, opts.Timeout)
	assert.Equal(t, 50*time.Millisecond, opts.Interval)

	engine := New(testctx.NewStore(nil), OptionsFrom(config.New(nil)))
	assert.Equal(t, config.DefaultElementTimeout, engine.Timeout())
}
