// Package pages is the base for page objects: selector-level actions that
// wait for their element first and always act on the calling test's page.
package pages

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abdul-hamid-achik/playspec/packages/core/testctx"
	"github.com/abdul-hamid-achik/playspec/packages/wait"
)

// Base is embedded by page objects.
type Base struct {
	store *testctx.Store
	waits *wait.Engine
	log   logrus.FieldLogger
}

// NewBase fails with testctx.ErrContextNotBound when ctx's test has no page.
func NewBase(ctx context.Context, store *testctx.Store, waits *wait.Engine, log logrus.FieldLogger) (*Base, error) {
	if _, err := store.Page(ctx); err != nil {
		return nil, err
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Base{store: store, waits: waits, log: log}, nil
}

func (b *Base) logger(ctx context.Context) logrus.FieldLogger {
	owner, _ := testctx.Owner(ctx)
	return b.log.WithField("owner", owner)
}

// Open navigates the bound page to url.
func (b *Base) Open(ctx context.Context, url string, timeout time.Duration) error {
	page, err := b.store.Page(ctx)
	if err != nil {
		return err
	}
	b.logger(ctx).WithField("url", url).Debug("Opening page")
	return page.Navigate(url, timeout)
}

// Click waits for selector to be clickable and clicks it.
func (b *Base) Click(ctx context.Context, selector string) error {
	b.logger(ctx).WithField("selector", selector).Debug("Clicking element")
	el, err := b.waits.WaitClickable(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Type waits for selector to be visible, clears it and fills in text.
func (b *Base) Type(ctx context.Context, selector, text string) error {
	b.logger(ctx).WithField("selector", selector).Debug("Typing into element")
	el, err := b.waits.WaitVisible(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Clear(); err != nil {
		return fmt.Errorf("clear %s: %w", selector, err)
	}
	if err := el.Fill(text); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

// Text returns the trimmed text of selector once visible.
func (b *Base) Text(ctx context.Context, selector string) (string, error) {
	b.logger(ctx).WithField("selector", selector).Debug("Reading element text")
	return b.waits.Text(ctx, selector)
}

// IsVisible waits for selector and reports false instead of failing.
func (b *Base) IsVisible(ctx context.Context, selector string) bool {
	_, err := b.waits.WaitVisible(ctx, selector)
	if err != nil {
		b.logger(ctx).WithError(err).WithField("selector", selector).Debug("Element not visible")
		return false
	}
	return true
}

func (b *Base) WaitURLContains(ctx context.Context, fragment string) error {
	return b.waits.WaitURLContains(ctx, fragment)
}

func (b *Base) WaitTitleContains(ctx context.Context, fragment string) error {
	return b.waits.WaitTitleContains(ctx, fragment)
}
