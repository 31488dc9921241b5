package testctx

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abdul-hamid-achik/playspec/packages/browser"
)

// ErrContextNotBound is returned when a test asks for its browser before setup
// bound one, or after teardown cleared it.
var ErrContextNotBound = errors.New("execution context not bound: no browser session for this test")

type ownerKey struct{}

// WithOwner returns a context carrying the owner id of the running test.
func WithOwner(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ownerKey{}, id)
}

// NewOwner returns a context carrying a fresh random owner id.
func NewOwner(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return WithOwner(ctx, id), id
}

// Owner returns the owner id carried by ctx.
func Owner(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey{}).(string)
	return id, ok && id != ""
}

// Binding is what a test sees of its browser.
type Binding struct {
	Session *browser.Session
	Context browser.BrowsingContext
	Page    browser.Page
}

// Store keeps at most one Binding per owner.
type Store struct {
	mu       sync.RWMutex
	bindings map[string]Binding
	log      logrus.FieldLogger
}

// NewStore returns an empty store. A nil logger discards.
func NewStore(log logrus.FieldLogger) *Store {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Store{
		bindings: make(map[string]Binding),
		log:      log,
	}
}

// BindSession binds the session's own context and page.
func (s *Store) BindSession(ctx context.Context, session *browser.Session) error {
	return s.Bind(ctx, Binding{Session: session, Context: session.Context, Page: session.Page})
}

// Bind associates b with the owner carried by ctx, replacing a stale binding.
func (s *Store) Bind(ctx context.Context, b Binding) error {
	owner, ok := Owner(ctx)
	if !ok {
		return ErrContextNotBound
	}

	s.mu.Lock()
	_, stale := s.bindings[owner]
	s.bindings[owner] = b
	s.mu.Unlock()

	if stale {
		s.log.WithField("owner", owner).Warn("Replacing stale execution context binding")
	}
	return nil
}

// Get returns the binding for the owner carried by ctx.
func (s *Store) Get(ctx context.Context) (Binding, error) {
	owner, ok := Owner(ctx)
	if !ok {
		return Binding{}, ErrContextNotBound
	}

	s.mu.RLock()
	b, bound := s.bindings[owner]
	s.mu.RUnlock()

	if !bound {
		return Binding{}, ErrContextNotBound
	}
	return b, nil
}

// Page returns the bound page.
func (s *Store) Page(ctx context.Context) (browser.Page, error) {
	b, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return b.Page, nil
}

// Clear drops the owner's binding. It never fails.
func (s *Store) Clear(ctx context.Context) {
	owner, ok := Owner(ctx)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.bindings, owner)
	s.mu.Unlock()
}

// Len returns the number of live bindings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bindings)
}
