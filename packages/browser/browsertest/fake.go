// Package browsertest provides an in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/playspec/packages/browser"
)

// PNG is the screenshot payload returned by default: the PNG signature.
var PNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ErrNoElement is returned by element actions when nothing matches the selector.
var ErrNoElement = errors.New("no element matches selector")

// Driver records every call made through the handles it creates, in order.
// Fields ending in Err are returned by the matching call when set.
type Driver struct {
	LaunchErr     error
	NewContextErr error
	NewPageErr    error
	CloseEngine   error
	CloseContext  error
	ClosePage     error

	// EngineCloseDelay stalls engine shutdown, like a browser process exiting.
	EngineCloseDelay time.Duration

	mu       sync.Mutex
	calls    []string
	pages    []*Page
	launched []string
	// OnPage, when set, prepares each page before it is handed out.
	OnPage func(*Page)
}

var _ browser.Driver = (*Driver)(nil)

// NewDriver returns an empty fake driver.
func NewDriver() *Driver {
	return &Driver{}
}

func (d *Driver) record(call string) {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

// Calls returns the ordered call log, e.g. "launch chromium", "close page".
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Pages returns every page created so far.
func (d *Driver) Pages() []*Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Page(nil), d.pages...)
}

// Launched returns the engines launched so far.
func (d *Driver) Launched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.launched...)
}

func (d *Driver) Launch(ctx context.Context, engine string, headless bool) (browser.Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.record("launch " + engine)
	if d.LaunchErr != nil {
		return nil, d.LaunchErr
	}
	d.mu.Lock()
	d.launched = append(d.launched, engine)
	d.mu.Unlock()
	return &engineHandle{d: d, headless: headless}, nil
}

type engineHandle struct {
	d        *Driver
	headless bool
}

func (e *engineHandle) NewContext(viewport browser.Viewport) (browser.BrowsingContext, error) {
	e.d.record(fmt.Sprintf("new context %dx%d", viewport.Width, viewport.Height))
	if e.d.NewContextErr != nil {
		return nil, e.d.NewContextErr
	}
	return &contextHandle{d: e.d, viewport: viewport}, nil
}

func (e *engineHandle) Close() error {
	e.d.record("close engine")
	if e.d.EngineCloseDelay > 0 {
		time.Sleep(e.d.EngineCloseDelay)
	}
	return e.d.CloseEngine
}

type contextHandle struct {
	d        *Driver
	viewport browser.Viewport
}

func (c *contextHandle) NewPage() (browser.Page, error) {
	c.d.record("new page")
	if c.d.NewPageErr != nil {
		return nil, c.d.NewPageErr
	}
	p := NewPage()
	p.Viewport = c.viewport
	p.closeErr = c.d.ClosePage
	p.onClose = func() { c.d.record("close page") }
	if c.d.OnPage != nil {
		c.d.OnPage(p)
	}
	c.d.mu.Lock()
	c.d.pages = append(c.d.pages, p)
	c.d.mu.Unlock()
	return p, nil
}

func (c *contextHandle) Close() error {
	c.d.record("close context")
	return c.d.CloseContext
}

// Page is a scriptable page. Tests add elements and change URL or title while
// a wait is polling.
type Page struct {
	Viewport browser.Viewport

	mu            sync.Mutex
	url           string
	title         string
	elements      map[string]*Element
	navigateErr   error
	navigated     []string
	screenshot    []byte
	screenshotErr error
	screenshotFn  func() ([]byte, error)
	shots         int
	closed        bool
	closeErr      error
	onClose       func()
}

var _ browser.Page = (*Page)(nil)

// NewPage returns a blank page at about:blank.
func NewPage() *Page {
	return &Page{
		url:        "about:blank",
		elements:   make(map[string]*Element),
		screenshot: PNG,
	}
}

// Add places an element on the page, replacing any previous one for the selector.
func (p *Page) Add(selector string, el *Element) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	el.selector = selector
	p.elements[selector] = el
	return el
}

// Remove takes the element for selector off the page.
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

// SetURL changes the current URL.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
}

// SetTitle changes the document title.
func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	p.title = title
	p.mu.Unlock()
}

// FailNavigation makes every following Navigate return err.
func (p *Page) FailNavigation(err error) {
	p.mu.Lock()
	p.navigateErr = err
	p.mu.Unlock()
}

// FailScreenshot makes every following Screenshot return err.
func (p *Page) FailScreenshot(err error) {
	p.mu.Lock()
	p.screenshotErr = err
	p.mu.Unlock()
}

// ScreenshotFunc replaces the screenshot behaviour entirely.
func (p *Page) ScreenshotFunc(fn func() ([]byte, error)) {
	p.mu.Lock()
	p.screenshotFn = fn
	p.mu.Unlock()
}

// Navigated returns every URL passed to Navigate.
func (p *Page) Navigated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

// Screenshots returns how many screenshots were taken.
func (p *Page) Screenshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shots
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) Navigate(url string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("page is closed")
	}
	p.navigated = append(p.navigated, url)
	if p.navigateErr != nil {
		return p.navigateErr
	}
	p.url = url
	return nil
}

func (p *Page) Locate(selector string) browser.Element {
	return &locator{page: p, selector: selector}
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Title() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

func (p *Page) Screenshot(fullPage bool) ([]byte, error) {
	p.mu.Lock()
	fn := p.screenshotFn
	closed := p.closed
	p.shots++
	data, err := p.screenshot, p.screenshotErr
	p.mu.Unlock()

	if closed {
		return nil, errors.New("page is closed")
	}
	if fn != nil {
		return fn()
	}
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	onClose, err := p.onClose, p.closeErr
	p.mu.Unlock()
	if onClose != nil {
		onClose()
	}
	return err
}

func (p *Page) element(selector string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elements[selector]
}

// Element is a scriptable DOM element. The zero value is hidden and disabled.
type Element struct {
	selector string

	mu      sync.Mutex
	text    string
	attrs   map[string]string
	visible bool
	enabled bool
	clicks  int
	onClick func()
}

// NewElement returns a visible, enabled element with the given text.
func NewElement(text string) *Element {
	return &Element{text: text, visible: true, enabled: true, attrs: make(map[string]string)}
}

// SetVisible toggles visibility.
func (e *Element) SetVisible(v bool) *Element {
	e.mu.Lock()
	e.visible = v
	e.mu.Unlock()
	return e
}

// SetEnabled toggles the enabled state.
func (e *Element) SetEnabled(v bool) *Element {
	e.mu.Lock()
	e.enabled = v
	e.mu.Unlock()
	return e
}

// SetText changes the text content.
func (e *Element) SetText(text string) *Element {
	e.mu.Lock()
	e.text = text
	e.mu.Unlock()
	return e
}

// SetAttr sets an attribute.
func (e *Element) SetAttr(name, value string) *Element {
	e.mu.Lock()
	if e.attrs == nil {
		e.attrs = make(map[string]string)
	}
	e.attrs[name] = value
	e.mu.Unlock()
	return e
}

// Attr returns an attribute value.
func (e *Element) Attr(name string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attrs[name]
}

// OnClick runs fn after every successful click, outside the element's lock.
func (e *Element) OnClick(fn func()) *Element {
	e.mu.Lock()
	e.onClick = fn
	e.mu.Unlock()
	return e
}

// Clicks returns how many times the element was clicked.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// locator resolves its element at call time, like a Playwright locator.
type locator struct {
	page     *Page
	selector string
}

func (l *locator) resolve() (*Element, error) {
	el := l.page.element(l.selector)
	if el == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, l.selector)
	}
	return el, nil
}

func (l *locator) Selector() string {
	return l.selector
}

func (l *locator) Click() error {
	el, err := l.resolve()
	if err != nil {
		return err
	}
	el.mu.Lock()
	if !el.visible || !el.enabled {
		el.mu.Unlock()
		return fmt.Errorf("element %s is not clickable", l.selector)
	}
	el.clicks++
	fn := el.onClick
	el.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

func (l *locator) Fill(value string) error {
	el, err := l.resolve()
	if err != nil {
		return err
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	if !el.enabled {
		return fmt.Errorf("element %s is disabled", l.selector)
	}
	if el.attrs == nil {
		el.attrs = make(map[string]string)
	}
	el.attrs["value"] = el.attrs["value"] + value
	return nil
}

func (l *locator) Clear() error {
	el, err := l.resolve()
	if err != nil {
		return err
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.attrs != nil {
		el.attrs["value"] = ""
	}
	return nil
}

func (l *locator) TextContent() (string, error) {
	el, err := l.resolve()
	if err != nil {
		return "", err
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.text, nil
}

func (l *locator) GetAttribute(name string) (string, error) {
	el, err := l.resolve()
	if err != nil {
		return "", err
	}
	return el.Attr(name), nil
}

func (l *locator) IsVisible() (bool, error) {
	el := l.page.element(l.selector)
	if el == nil {
		return false, nil
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.visible, nil
}

func (l *locator) IsEnabled() (bool, error) {
	el := l.page.element(l.selector)
	if el == nil {
		return false, nil
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.enabled, nil
}

// Contains reports whether the call log has a call starting with prefix.
func Contains(calls []string, prefix string) bool {
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}
