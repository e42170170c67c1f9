// Package gateway attaches the stored access token to outgoing API requests and, when the
// API reports TOKEN_EXPIRED, refreshes once and retries once.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hifat/mallow-sale-back-office-sub000/internal/platform/apierror"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/security"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/domain"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/repository"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/telemetry"
)

// ErrSessionExpired is returned when the session could not be recovered; storage has been
// cleared and a hard redirect to sign-in issued.
var ErrSessionExpired = errors.New("gateway: session expired")

const (
	defaultSignInRoute = "/signin"
	requestIDHeader    = "X-Request-ID"
	// maxPeekBytes bounds how much of a failing body is inspected for an error code.
	maxPeekBytes = 64 << 10
)

// Refresher renews a token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (domain.Tokens, error)
}

// Redirector performs a full reload to a route, discarding in-memory UI state.
type Redirector interface {
	HardRedirect(route string)
}

// RedirectFunc adapts a function to Redirector.
type RedirectFunc func(route string)

// HardRedirect calls f(route).
func (f RedirectFunc) HardRedirect(route string) { f(route) }

// Options configures a Gateway. All fields are optional.
type Options struct {
	SignInRoute string
	// Base sends the requests. Defaults to http.DefaultTransport.
	Base http.RoundTripper
	// OnTokensRefreshed runs after renewed tokens were persisted.
	OnTokensRefreshed func(ctx context.Context, tokens domain.Tokens)
	// OnSignedOut runs after a forced sign-out.
	OnSignedOut func(ctx context.Context)
	Events      telemetry.EventEmitter
}

// Gateway is an http.RoundTripper for authorized back-office calls.
type Gateway struct {
	store     *repository.Store
	refresher Refresher
	redirect  Redirector
	opts      Options

	tracer trace.Tracer
	forced metric.Int64Counter
}

// New returns a Gateway reading and writing tokens through store.
func New(store *repository.Store, refresher Refresher, redirect Redirector, opts Options) *Gateway {
	if opts.SignInRoute == "" {
		opts.SignInRoute = defaultSignInRoute
	}
	if opts.Base == nil {
		opts.Base = http.DefaultTransport
	}
	forced, err := otel.Meter("mallow-sale/gateway").Int64Counter("gateway.forced_signouts",
		metric.WithDescription("Sessions dropped because a token could not be renewed"))
	if err != nil {
		log.Printf("gateway: forced sign-out counter: %v", err)
	}
	return &Gateway{
		store:     store,
		refresher: refresher,
		redirect:  redirect,
		opts:      opts,
		tracer:    otel.Tracer("mallow-sale/gateway"),
		forced:    forced,
	}
}

// Client returns an http.Client that sends through g.
func (g *Gateway) Client() *http.Client {
	return &http.Client{Transport: g}
}

// Do sends req through g.
func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	return g.RoundTrip(req)
}

// RoundTrip implements http.RoundTripper. A caller-set Authorization header is sent as is.
func (g *Gateway) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	out, err := prepare(req)
	if err != nil {
		return nil, err
	}
	attached := false
	if out.Header.Get("Authorization") == "" {
		if sess := g.store.Get(ctx); sess.AccessToken != "" {
			out.Header.Set("Authorization", "Bearer "+sess.AccessToken)
			attached = true
		}
	}
	if out.Header.Get(requestIDHeader) == "" {
		out.Header.Set(requestIDHeader, uuid.NewString())
	}

	resp, err := g.opts.Base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}
	data, err := peek(resp)
	if err != nil {
		return resp, nil
	}
	if !apierror.IsTokenExpired(data) {
		return resp, nil
	}
	resp.Body.Close()
	return g.recover(ctx, out, attached)
}

// recover renews the tokens and retries out once.
func (g *Gateway) recover(ctx context.Context, out *http.Request, attached bool) (*http.Response, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.recover", trace.WithAttributes(
		attribute.String("http.request.method", out.Method),
		attribute.String("url.path", out.URL.Path),
	))
	defer span.End()

	current := g.store.Get(ctx)
	if current.RefreshToken == "" {
		g.forceSignOut(ctx, span, current, "no refresh token")
		return nil, ErrSessionExpired
	}
	tokens, err := g.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.forceSignOut(ctx, span, current, "refresh failed")
		return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	g.store.Set(ctx, current.WithTokens(tokens))
	if g.opts.OnTokensRefreshed != nil {
		g.opts.OnTokensRefreshed(ctx, tokens)
	}
	telemetry.EmitAsync(g.opts.Events, event(telemetry.EventRefreshed, current, ""))

	retry := out.Clone(ctx)
	if out.GetBody != nil {
		body, err := out.GetBody()
		if err != nil {
			return nil, fmt.Errorf("gateway: replay body: %w", err)
		}
		retry.Body = body
	}
	if attached {
		retry.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	}
	resp, err := g.opts.Base.RoundTrip(retry)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}
	data, err := peek(resp)
	if err == nil && apierror.IsTokenExpired(data) {
		resp.Body.Close()
		g.forceSignOut(ctx, span, current.WithTokens(tokens), "expired after refresh")
		return nil, ErrSessionExpired
	}
	return resp, nil
}

func (g *Gateway) forceSignOut(ctx context.Context, span trace.Span, sess domain.Session, reason string) {
	span.SetStatus(codes.Error, reason)
	log.Printf("gateway: forced sign-out: %s", reason)
	g.store.Clear(context.WithoutCancel(ctx))
	if g.forced != nil {
		g.forced.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
	telemetry.EmitAsync(g.opts.Events, event(telemetry.EventForcedSignOut, sess, reason))
	if g.redirect != nil {
		g.redirect.HardRedirect(g.opts.SignInRoute)
	}
	if g.opts.OnSignedOut != nil {
		g.opts.OnSignedOut(ctx)
	}
}

func event(eventType string, sess domain.Session, reason string) *telemetry.Event {
	e := &telemetry.Event{
		Type:             eventType,
		Source:           "gateway",
		Reason:           reason,
		TokenFingerprint: security.ShortFingerprint(sess.RefreshToken),
	}
	if sess.User != nil {
		e.UserID = sess.User.ID
		e.Username = sess.User.Username
	}
	return e
}

// prepare clones req and makes its body replayable.
func prepare(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return out, nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("gateway: read request body: %w", err)
	}
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	out.Body, _ = out.GetBody()
	return out, nil
}

// peek reads the head of resp's body and puts it back so the caller still sees the whole body.
func peek(resp *http.Response) ([]byte, error) {
	if resp.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPeekBytes))
	rest := resp.Body
	resp.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(data), rest), Closer: rest}
	return data, err
}

type readCloser struct {
	io.Reader
	io.Closer
}
