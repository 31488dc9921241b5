package browser

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Options describe the session to create.
type Options struct {
	Engine   string
	Headless bool
	Viewport Viewport
	Logger   logrus.FieldLogger
}

// Session is one engine, one browsing context and one page owned by a single test.
type Session struct {
	Engine   Engine
	Context  BrowsingContext
	Page     Page
	Name     string
	Headless bool
	Viewport Viewport

	CreatedAt time.Time

	log      logrus.FieldLogger
	once     sync.Once
	disposed atomic.Bool
}

// DisposalError is logged when releasing a session handle fails. It is never returned.
type DisposalError struct {
	Handle string
	Err    error
}

func (e *DisposalError) Error() string {
	return fmt.Sprintf("closing %s: %v", e.Handle, e.Err)
}

func (e *DisposalError) Unwrap() error {
	return e.Err
}

// NewSession launches the engine, opens a browsing context with the requested
// viewport and a page in it. When a later step fails the handles acquired so
// far are released before the error is returned.
func NewSession(ctx context.Context, driver Driver, opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	if !supportedEngines[opts.Engine] {
		return nil, &UnsupportedEngineError{Name: opts.Engine}
	}
	log = log.WithField("engine", opts.Engine)

	engine, err := driver.Launch(ctx, opts.Engine, opts.Headless)
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", opts.Engine, err)
	}

	bctx, err := engine.NewContext(opts.Viewport)
	if err != nil {
		closeLogged(log, "engine", engine)
		return nil, fmt.Errorf("failed to create browsing context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		closeLogged(log, "browsing context", bctx)
		closeLogged(log, "engine", engine)
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	log.WithFields(logrus.Fields{
		"headless": opts.Headless,
		"width":    opts.Viewport.Width,
		"height":   opts.Viewport.Height,
	}).Info("Browser session created")

	return &Session{
		Engine:    engine,
		Context:   bctx,
		Page:      page,
		Name:      opts.Engine,
		Headless:  opts.Headless,
		Viewport:  opts.Viewport,
		CreatedAt: time.Now(),
		log:       log,
	}, nil
}

// Dispose closes the page, the browsing context and the engine, in that order.
// It is safe to call more than once; failures are logged and never returned.
func (s *Session) Dispose() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		closeLogged(s.log, "page", s.Page)
		closeLogged(s.log, "browsing context", s.Context)
		closeLogged(s.log, "engine", s.Engine)
		s.disposed.Store(true)
		s.log.Info("Browser session disposed")
	})
}

// Disposed reports whether Dispose has completed.
func (s *Session) Disposed() bool {
	return s.disposed.Load()
}

type closer interface {
	Close() error
}

func closeLogged(log logrus.FieldLogger, handle string, c closer) {
	if c == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.WithError(&DisposalError{Handle: handle, Err: fmt.Errorf("panic: %v", r)}).Error("Disposal failed")
		}
	}()
	if err := c.Close(); err != nil {
		log.WithError(&DisposalError{Handle: handle, Err: err}).Error("Disposal failed")
	}
}
