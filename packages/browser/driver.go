package browser

import (
	"context"
	"time"
)

// Viewport is the page size of a browsing context.
type Viewport struct {
	Width  int
	Height int
}

// Driver launches browser engines.
type Driver interface {
	Launch(ctx context.Context, engine string, headless bool) (Engine, error)
}

// Engine is a running browser instance.
type Engine interface {
	NewContext(viewport Viewport) (BrowsingContext, error)
	Close() error
}

// BrowsingContext is an isolated set of cookies, storage and pages.
type BrowsingContext interface {
	NewPage() (Page, error)
	Close() error
}

// Page is a single tab.
type Page interface {
	Navigate(url string, timeout time.Duration) error
	// Locate returns a lazy handle; it does not wait for the element to exist.
	Locate(selector string) Element
	URL() string
	Title() (string, error)
	Screenshot(fullPage bool) ([]byte, error)
	Close() error
}

// Element is a lazy handle to the first element matching a selector.
// IsVisible and IsEnabled report false rather than erroring when nothing matches.
type Element interface {
	Selector() string
	Click() error
	Fill(value string) error
	Clear() error
	TextContent() (string, error)
	GetAttribute(name string) (string, error)
	IsVisible() (bool, error)
	IsEnabled() (bool, error)
}
