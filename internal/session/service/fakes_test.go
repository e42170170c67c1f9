package service

import (
	"context"
	"sync"
	"time"

	"github.com/hifat/mallow-sale-back-office-sub000/internal/identity/client"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/domain"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/repository"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/telemetry"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeAuth struct {
	mu     sync.Mutex
	calls  int
	result *client.SignInResult
	err    error
}

func (a *fakeAuth) SignIn(ctx context.Context, creds client.Credentials) (*client.SignInResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

// fakeRefreshAPI answers refresh calls. When gate is non-nil each call blocks until it is closed.
type fakeRefreshAPI struct {
	mu     sync.Mutex
	calls  int
	seen   []string
	tokens domain.Tokens
	err    error
	gate   chan struct{}
}

func (f *fakeRefreshAPI) Refresh(ctx context.Context, in client.RefreshInput) (*domain.Tokens, error) {
	f.mu.Lock()
	f.calls++
	f.seen = append(f.seen, in.RefreshToken)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t := f.tokens
	return &t, nil
}

func (f *fakeRefreshAPI) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingNav struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNav) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNav) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

type captureEmitter struct {
	events chan *telemetry.Event
}

func (e *captureEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	e.events <- event
	return nil
}

func testUser() *domain.User {
	return &domain.User{ID: "u1", Name: "A", Username: "a"}
}

func authedSession() domain.Session {
	return domain.Session{User: testUser(), AccessToken: "A1", RefreshToken: "R1"}
}

type harness struct {
	store *repository.Store
	api   *fakeRefreshAPI
	auth  *fakeAuth
	nav   *recordingNav
	clock *fakeClock
	ctrl  *Controller
}

func newHarness(opts Options) *harness {
	h := &harness{
		store: repository.NewStore(repository.NewMemoryBackend(), ""),
		api:   &fakeRefreshAPI{tokens: domain.Tokens{AccessToken: "A2", RefreshToken: "R2"}},
		auth:  &fakeAuth{},
		nav:   &recordingNav{},
		clock: newFakeClock(),
	}
	opts.Now = h.clock.Now
	r := NewRefresher(h.api)
	r.now = h.clock.Now
	h.ctrl = NewController(h.store, r, h.auth, h.nav, opts)
	return h
}
