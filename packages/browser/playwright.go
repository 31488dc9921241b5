package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/playwright-community/playwright-go"
)

// DefaultActionTimeout bounds a single element action (click, fill, text lookup).
const DefaultActionTimeout = 5 * time.Second

// PlaywrightDriver drives real browsers through playwright-go. Every launched
// Engine owns its own Playwright driver process, so sessions share nothing.
type PlaywrightDriver struct {
	// ActionTimeout bounds element actions; zero means DefaultActionTimeout.
	ActionTimeout time.Duration
	// Output receives the Playwright driver's own output; nil discards it.
	Output io.Writer
}

var _ Driver = (*PlaywrightDriver)(nil)

func (d *PlaywrightDriver) runOptions() *playwright.RunOptions {
	out := d.Output
	if out == nil {
		out = io.Discard
	}
	return &playwright.RunOptions{
		Verbose: false,
		Stdout:  out,
		Stderr:  out,
	}
}

// Install downloads the Playwright driver and the given engines (all when empty).
func (d *PlaywrightDriver) Install(engines ...string) error {
	opts := d.runOptions()
	opts.Browsers = engines
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	return nil
}

// Launch starts a Playwright driver process and launches the engine in it.
func (d *PlaywrightDriver) Launch(ctx context.Context, engine string, headless bool) (Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run(d.runOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	var browserType playwright.BrowserType
	switch engine {
	case Chromium:
		browserType = pw.Chromium
	case Firefox:
		browserType = pw.Firefox
	case WebKit:
		browserType = pw.WebKit
	default:
		_ = pw.Stop()
		return nil, &UnsupportedEngineError{Name: engine}
	}

	b, err := browserType.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, err
	}

	timeout := d.ActionTimeout
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	return &pwEngine{pw: pw, browser: b, actionTimeout: timeout}, nil
}

type pwEngine struct {
	pw            *playwright.Playwright
	browser       playwright.Browser
	actionTimeout time.Duration
}

func (e *pwEngine) NewContext(viewport Viewport) (BrowsingContext, error) {
	c, err := e.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  viewport.Width,
			Height: viewport.Height,
		},
	})
	if err != nil {
		return nil, err
	}
	return &pwContext{ctx: c, actionTimeout: e.actionTimeout}, nil
}

func (e *pwEngine) Close() error {
	return errors.Join(e.browser.Close(), e.pw.Stop())
}

type pwContext struct {
	ctx           playwright.BrowserContext
	actionTimeout time.Duration
}

func (c *pwContext) NewPage() (Page, error) {
	p, err := c.ctx.NewPage()
	if err != nil {
		return nil, err
	}
	return &pwPage{page: p, actionTimeout: c.actionTimeout}, nil
}

func (c *pwContext) Close() error {
	return c.ctx.Close()
}

type pwPage struct {
	page          playwright.Page
	actionTimeout time.Duration
}

func (p *pwPage) Navigate(url string, timeout time.Duration) error {
	opts := playwright.PageGotoOptions{}
	if timeout > 0 {
		opts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	if _, err := p.page.Goto(url, opts); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (p *pwPage) Locate(selector string) Element {
	return &pwElement{
		selector: selector,
		locator:  p.page.Locator(selector).First(),
		timeout:  playwright.Float(float64(p.actionTimeout.Milliseconds())),
	}
}

func (p *pwPage) URL() string {
	return p.page.URL()
}

func (p *pwPage) Title() (string, error) {
	return p.page.Title()
}

func (p *pwPage) Screenshot(fullPage bool) ([]byte, error) {
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
	})
}

func (p *pwPage) Close() error {
	return p.page.Close()
}

type pwElement struct {
	selector string
	locator  playwright.Locator
	timeout  *float64
}

func (e *pwElement) Selector() string {
	return e.selector
}

func (e *pwElement) Click() error {
	return e.locator.Click(playwright.LocatorClickOptions{Timeout: e.timeout})
}

func (e *pwElement) Fill(value string) error {
	return e.locator.Fill(value, playwright.LocatorFillOptions{Timeout: e.timeout})
}

func (e *pwElement) Clear() error {
	return e.locator.Clear(playwright.LocatorClearOptions{Timeout: e.timeout})
}

func (e *pwElement) TextContent() (string, error) {
	return e.locator.TextContent(playwright.LocatorTextContentOptions{Timeout: e.timeout})
}

func (e *pwElement) GetAttribute(name string) (string, error) {
	return e.locator.GetAttribute(name, playwright.LocatorGetAttributeOptions{Timeout: e.timeout})
}

func (e *pwElement) IsVisible() (bool, error) {
	return e.locator.IsVisible()
}

// IsEnabled checks the match count first: Playwright's IsEnabled waits for the
// element to exist, which would turn a single poll into a blocking call.
func (e *pwElement) IsEnabled() (bool, error) {
	n, err := e.locator.Count()
	if err != nil || n == 0 {
		return false, err
	}
	return e.locator.IsEnabled(playwright.LocatorIsEnabledOptions{Timeout: e.timeout})
}
