package pages

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/playspec/packages/browser/browsertest"
	"github.com/abdul-hamid-achik/playspec/packages/core/testctx"
	"github.com/abdul-hamid-achik/playspec/packages/wait"
)

func setup(t *testing.T) (context.Context, *browsertest.Page, *Base) {
	t.Helper()
	store := testctx.NewStore(nil)
	ctx := testctx.WithOwner(context.Background(), t.Name())
	page := browsertest.NewPage()
	require.NoError(t, store.Bind(ctx, testctx.Binding{Page: page}))

	waits := wait.New(store, wait.Options{Timeout: 100 * time.Millisecond, Interval: 10 * time.Millisecond})
	base, err := NewBase(ctx, store, waits, nil)
	require.NoError(t, err)
	return ctx, page, base
}

func TestNewBase_NotBound(t *testing.T) {
	store := testctx.NewStore(nil)

	_, err := NewBase(testctx.WithOwner(context.Background(), "x"), store, wait.New(store, wait.Options{}), nil)

	assert.ErrorIs(t, err, testctx.ErrContextNotBound)
}

func TestBase_TypeReplacesValue(t *testing.T) {
	ctx, page, base := setup(t)
	input := page.Add("#userName", browsertest.NewElement("").SetAttr("value", "old"))

	require.NoError(t, base.Type(ctx, "#userName", "John Doe"))

	assert.Equal(t, "John Doe", input.Attr("value"))
	text, err := base.Text(ctx, "#userName")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", text)
}

func TestBase_Click(t *testing.T) {
	ctx, page, base := setup(t)
	submit := page.Add("#submit", browsertest.NewElement("Submit"))

	require.NoError(t, base.Click(ctx, "#submit"))
	assert.Equal(t, 1, submit.Clicks())

	submit.SetEnabled(false)
	err := base.Click(ctx, "#submit")
	assert.True(t, wait.IsTimeout(err))
}

func TestBase_IsVisible(t *testing.T) {
	ctx, page, base := setup(t)
	page.Add("#output", browsertest.NewElement("ok"))

	assert.True(t, base.IsVisible(ctx, "#output"))
	assert.False(t, base.IsVisible(ctx, "#missing"))
}

func TestBase_OpenAndWaitURL(t *testing.T) {
	ctx, page, base := setup(t)

	require.NoError(t, base.Open(ctx, "https://demoqa.com/text-box", time.Second))

	assert.Equal(t, []string{"https://demoqa.com/text-box"}, page.Navigated())
	assert.NoError(t, base.WaitURLContains(ctx, "text-box"))
}
