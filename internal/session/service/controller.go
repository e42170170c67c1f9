// Package service holds the session controller, the in-memory authoritative view of
// "who is signed in", and the shared token refresher.
package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hifat/mallow-sale-back-office-sub000/internal/identity/client"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/security"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/domain"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/repository"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/telemetry"
)

// Defaults applied to zero Options fields.
const (
	DefaultRefreshInterval     = 10 * time.Minute
	DefaultInactivityThreshold = 30 * time.Minute
	DefaultLandingRoute        = "/"
	DefaultSignInRoute         = "/signin"
)

// Event sources recorded on telemetry events.
const (
	sourceUser          = "user"
	sourceSilentRefresh = "silent-refresh"
)

// Authenticator performs sign-in.
type Authenticator interface {
	SignIn(ctx context.Context, creds client.Credentials) (*client.SignInResult, error)
}

// Navigator performs an in-app route change.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

// Navigate calls f(route).
func (f NavigatorFunc) Navigate(route string) { f(route) }

// Options configures a Controller.
type Options struct {
	LandingRoute        string
	SignInRoute         string
	RefreshInterval     time.Duration
	InactivityThreshold time.Duration
	// Events receives session lifecycle events. Optional.
	Events telemetry.EventEmitter
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.LandingRoute == "" {
		o.LandingRoute = DefaultLandingRoute
	}
	if o.SignInRoute == "" {
		o.SignInRoute = DefaultSignInRoute
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = DefaultRefreshInterval
	}
	if o.InactivityThreshold <= 0 {
		o.InactivityThreshold = DefaultInactivityThreshold
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Controller owns the in-memory session and keeps it in step with the store.
type Controller struct {
	store     *repository.Store
	refresher *Refresher
	auth      Authenticator
	nav       Navigator
	opts      Options

	mu           sync.Mutex
	sess         domain.Session
	initializing bool
	route        string
	lastActivity time.Time

	// loopCtx is non-nil once Start has been called and until Stop.
	loopCtx context.Context
	loop    *refreshLoop
}

type refreshLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController returns a Controller in the initializing state. Call Hydrate next.
func NewController(store *repository.Store, refresher *Refresher, auth Authenticator, nav Navigator, opts Options) *Controller {
	return &Controller{
		store:        store,
		refresher:    refresher,
		auth:         auth,
		nav:          nav,
		opts:         opts.withDefaults(),
		initializing: true,
	}
}

// Options returns the effective options.
func (c *Controller) Options() Options { return c.opts }

// Hydrate adopts the stored snapshot and ends initialization, then guards the current route.
func (c *Controller) Hydrate(ctx context.Context) {
	sess := c.store.Get(ctx)
	c.mu.Lock()
	c.sess = sess
	if sess.IsAuthenticated() {
		c.lastActivity = c.opts.Now()
		c.armLocked()
	} else {
		c.disarmLocked()
	}
	c.initializing = false
	target := c.guardLocked()
	c.mu.Unlock()
	c.navigate(target)
}

// Reload is a full page load at route: in-memory state is dropped and rebuilt from storage
// as if the controller had just been constructed.
func (c *Controller) Reload(ctx context.Context, route string) {
	c.mu.Lock()
	c.route = route
	c.sess = domain.Session{}
	c.initializing = true
	c.disarmLocked()
	c.mu.Unlock()
	c.Hydrate(ctx)
}

// SignIn authenticates creds, persists the new session and navigates to the landing route.
// On failure the state is unchanged.
func (c *Controller) SignIn(ctx context.Context, creds client.Credentials) error {
	res, err := c.auth.SignIn(ctx, creds)
	if err != nil {
		return err
	}
	sess := res.Session()
	c.mu.Lock()
	c.sess = sess
	c.store.Set(ctx, sess)
	c.lastActivity = c.opts.Now()
	c.armLocked()
	c.mu.Unlock()

	c.emit(telemetry.EventSignedIn, sess, sourceUser, "")
	c.navigate(c.opts.LandingRoute)
	return nil
}

// SignOut drops the session and navigates to the sign-in route. Safe to call repeatedly.
func (c *Controller) SignOut(ctx context.Context) {
	c.signOut(ctx, sourceUser, "")
}

func (c *Controller) signOut(ctx context.Context, source, reason string) {
	c.mu.Lock()
	prev := c.sess
	c.sess = domain.Session{}
	c.disarmLocked()
	if prev.IsAuthenticated() {
		// ctx may be the loop's own context, cancelled just above.
		c.store.Clear(context.WithoutCancel(ctx))
	}
	c.mu.Unlock()

	if prev.IsAuthenticated() {
		c.emit(telemetry.EventSignedOut, prev, source, reason)
	}
	c.navigate(c.opts.SignInRoute)
}

// UpdateTokens stores a renewed pair, keeping the user.
func (c *Controller) UpdateTokens(ctx context.Context, tokens domain.Tokens) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setTokensLocked(ctx, tokens)
}

func (c *Controller) setTokensLocked(ctx context.Context, tokens domain.Tokens) {
	was := c.sess.IsAuthenticated()
	c.sess = c.sess.WithTokens(tokens)
	c.store.Set(ctx, c.sess)
	if !was && c.sess.IsAuthenticated() {
		c.lastActivity = c.opts.Now()
		c.armLocked()
	}
}

// Resync replaces the in-memory session with the stored one. Used after something else
// (the gateway) changed storage.
func (c *Controller) Resync(ctx context.Context) {
	sess := c.store.Get(ctx)
	c.mu.Lock()
	was := c.sess.IsAuthenticated()
	c.sess = sess
	target := ""
	if sess.IsAuthenticated() {
		if !was {
			c.lastActivity = c.opts.Now()
		}
		c.armLocked()
	} else {
		c.disarmLocked()
		target = c.guardLocked()
	}
	c.mu.Unlock()
	c.navigate(target)
}

// SetRoute records the current route and applies the route guard. It returns the route in
// effect afterwards.
func (c *Controller) SetRoute(route string) string {
	c.mu.Lock()
	c.route = route
	target := c.guardLocked()
	c.mu.Unlock()
	c.navigate(target)
	return c.Route()
}

// Route returns the current route.
func (c *Controller) Route() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.route
}

// guardLocked returns the route to redirect to, or "".
func (c *Controller) guardLocked() string {
	if c.initializing {
		return ""
	}
	authed := c.sess.IsAuthenticated()
	switch {
	case !authed && c.route != c.opts.SignInRoute:
		return c.opts.SignInRoute
	case authed && c.route == c.opts.SignInRoute:
		return c.opts.LandingRoute
	}
	return ""
}

func (c *Controller) navigate(route string) {
	if route == "" {
		return
	}
	c.mu.Lock()
	c.route = route
	c.mu.Unlock()
	if c.nav != nil {
		c.nav.Navigate(route)
	}
}

// RecordActivity marks the user as active now.
func (c *Controller) RecordActivity() {
	now := c.opts.Now()
	c.mu.Lock()
	c.lastActivity = now
	c.mu.Unlock()
}

// LastActivity returns the last recorded activity.
func (c *Controller) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// User returns a copy of the signed-in user, or nil.
func (c *Controller) User() *domain.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.User == nil {
		return nil
	}
	u := *c.sess.User
	return &u
}

// Session returns a copy of the in-memory session.
func (c *Controller) Session() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess := c.sess
	if sess.User != nil {
		u := *sess.User
		sess.User = &u
	}
	return sess
}

// IsAuthenticated reports whether both tokens are held.
func (c *Controller) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.IsAuthenticated()
}

// IsInitializing reports whether Hydrate has not completed yet.
func (c *Controller) IsInitializing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializing
}

// Start enables the silent-refresh loop under ctx. The loop runs while a refresh token is
// held and is re-armed on every transition into the authenticated state.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loopCtx = ctx
	if c.sess.RefreshToken != "" {
		c.armLocked()
	}
}

// Stop disables the loop and waits for it to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.loopCtx = nil
	done := c.disarmLocked()
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Controller) armLocked() {
	if c.loopCtx == nil || c.loop != nil {
		return
	}
	ctx, cancel := context.WithCancel(c.loopCtx)
	l := &refreshLoop{cancel: cancel, done: make(chan struct{})}
	c.loop = l
	go c.run(ctx, l)
}

// disarmLocked cancels the loop without waiting, since it may be called from the loop itself.
func (c *Controller) disarmLocked() <-chan struct{} {
	if c.loop == nil {
		return nil
	}
	l := c.loop
	c.loop = nil
	l.cancel()
	return l.done
}

func (c *Controller) run(ctx context.Context, l *refreshLoop) {
	defer close(l.done)
	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick is one silent-refresh check: skip without a refresh token or when the user has
// been idle past the threshold; otherwise refresh, signing out on failure.
func (c *Controller) tick(ctx context.Context) {
	c.mu.Lock()
	refreshToken := c.sess.RefreshToken
	idle := c.opts.Now().Sub(c.lastActivity)
	c.mu.Unlock()

	if refreshToken == "" || idle > c.opts.InactivityThreshold {
		return
	}
	tokens, err := c.refresher.Refresh(ctx, refreshToken)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Printf("session: silent refresh failed: %v", err)
		sess := c.Session()
		c.emit(telemetry.EventRefreshFailed, sess, sourceSilentRefresh, err.Error())
		c.signOut(ctx, sourceSilentRefresh, "refresh failed")
		return
	}

	c.mu.Lock()
	// Another path may have rotated or dropped the session while the call was in flight.
	if c.sess.RefreshToken != refreshToken {
		c.mu.Unlock()
		return
	}
	c.setTokensLocked(ctx, tokens)
	sess := c.sess
	c.mu.Unlock()
	c.emit(telemetry.EventRefreshed, sess, sourceSilentRefresh, "")
}

func (c *Controller) emit(eventType string, sess domain.Session, source, reason string) {
	if c.opts.Events == nil {
		return
	}
	e := &telemetry.Event{
		Type:             eventType,
		Source:           source,
		Reason:           reason,
		TokenFingerprint: security.ShortFingerprint(sess.RefreshToken),
		CreatedAt:        c.opts.Now().UTC(),
	}
	if sess.User != nil {
		e.UserID = sess.User.ID
		e.Username = sess.User.Username
	}
	telemetry.EmitAsync(c.opts.Events, e)
}
