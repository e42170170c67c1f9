package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/hifat/mallow-sale-back-office-sub000/internal/identity/client"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/security"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/domain"
)

// reuseWindow is how long a completed rotation is replayed to late callers that still
// present the old refresh token.
const reuseWindow = 30 * time.Second

// TokenRefresher is the refresh call of the authentication client.
type TokenRefresher interface {
	Refresh(ctx context.Context, in client.RefreshInput) (*domain.Tokens, error)
}

// Refresher is the single path through which both the silent-refresh loop and the gateway
// renew tokens. Concurrent callers presenting the same refresh token share one network call.
type Refresher struct {
	api   TokenRefresher
	group singleflight.Group
	now   func() time.Time

	mu   sync.Mutex
	last rotation

	attempts metric.Int64Counter
	failures metric.Int64Counter
}

type rotation struct {
	fingerprint string
	tokens      domain.Tokens
	at          time.Time
}

// NewRefresher returns a Refresher over api.
func NewRefresher(api TokenRefresher) *Refresher {
	meter := otel.Meter("mallow-sale/session")
	attempts, err := meter.Int64Counter("session.refresh.attempts",
		metric.WithDescription("Token refresh calls made to the authentication API"))
	if err != nil {
		log.Printf("session: refresh attempts counter: %v", err)
	}
	failures, err := meter.Int64Counter("session.refresh.failures",
		metric.WithDescription("Token refresh calls that failed"))
	if err != nil {
		log.Printf("session: refresh failures counter: %v", err)
	}
	return &Refresher{api: api, now: time.Now, attempts: attempts, failures: failures}
}

// Refresh exchanges refreshToken for a new pair. The network call is detached from ctx so
// one waiter giving up does not fail the others; ctx only bounds this caller's wait.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (domain.Tokens, error) {
	if refreshToken == "" {
		return domain.Tokens{}, client.ErrRefreshTokenRequired
	}
	fp := security.TokenFingerprint(refreshToken)
	if t, ok := r.recent(fp); ok {
		return t, nil
	}
	detached := context.WithoutCancel(ctx)
	ch := r.group.DoChan(fp, func() (any, error) {
		return r.call(detached, fp, refreshToken)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Tokens{}, res.Err
		}
		return res.Val.(domain.Tokens), nil
	case <-ctx.Done():
		return domain.Tokens{}, fmt.Errorf("session: refresh wait: %w", ctx.Err())
	}
}

func (r *Refresher) call(ctx context.Context, fp, refreshToken string) (domain.Tokens, error) {
	r.count(ctx, r.attempts)
	tokens, err := r.api.Refresh(ctx, client.RefreshInput{RefreshToken: refreshToken})
	if err != nil {
		r.count(ctx, r.failures)
		return domain.Tokens{}, err
	}
	r.mu.Lock()
	r.last = rotation{fingerprint: fp, tokens: *tokens, at: r.now()}
	r.mu.Unlock()
	return *tokens, nil
}

func (r *Refresher) recent(fp string) (domain.Tokens, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last.fingerprint != fp || r.now().Sub(r.last.at) > reuseWindow {
		return domain.Tokens{}, false
	}
	return r.last.tokens, true
}

func (r *Refresher) count(ctx context.Context, c metric.Int64Counter) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("component", "session")))
}
