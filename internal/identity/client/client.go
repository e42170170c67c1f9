// Package client calls the back-office authentication endpoints: sign-in and refresh.
// It holds no state; persisting the result is the caller's job.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hifat/mallow-sale-back-office-sub000/internal/platform/apierror"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/domain"
)

const (
	signInPath  = "/auth/signin"
	refreshPath = "/auth/refresh"

	// DefaultErrorMessage is used when a failing response has no readable message.
	DefaultErrorMessage = "authentication failed"

	// RequestIDHeader is set on every outgoing request.
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 1 << 20
)

// Sentinel errors. Validation failures never reach the network.
var (
	ErrValidation           = errors.New("validation failed")
	ErrUsernameRequired     = fmt.Errorf("%w: username is required", ErrValidation)
	ErrPasswordRequired     = fmt.Errorf("%w: password is required", ErrValidation)
	ErrRefreshTokenRequired = fmt.Errorf("%w: refresh token is required", ErrValidation)
	ErrAuthentication       = errors.New("authentication error")
)

// AuthError is a rejected or malformed authentication response.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth: %s (%s, status %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("auth: %s (status %d)", e.Message, e.Status)
}

// Is makes errors.Is(err, ErrAuthentication) true for any *AuthError.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuthentication
}

// Credentials is the sign-in form.
type Credentials struct {
	Username string
	Password string
}

// RefreshInput carries the refresh token to exchange.
type RefreshInput struct {
	RefreshToken string
}

// SignInResult is a successful sign-in.
type SignInResult struct {
	AuthID string
	User   domain.User
	Tokens domain.Tokens
}

// Session builds the authenticated session for r.
func (r *SignInResult) Session() domain.Session {
	u := r.User
	return domain.Session{User: &u, AccessToken: r.Tokens.AccessToken, RefreshToken: r.Tokens.RefreshToken}
}

// Client talks to the authentication API at a base URL.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

// New returns a Client for baseURL. A nil httpClient means http.DefaultClient.
// The client must not route through the authorized gateway.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		tracer:  otel.Tracer("mallow-sale/identity/client"),
	}
}

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signInResponse struct {
	AuthID string `json:"authID"`
	User   struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Username     string `json:"username"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SignIn exchanges credentials for a user and token pair.
func (c *Client) SignIn(ctx context.Context, creds Credentials) (*SignInResult, error) {
	if strings.TrimSpace(creds.Username) == "" {
		return nil, ErrUsernameRequired
	}
	if strings.TrimSpace(creds.Password) == "" {
		return nil, ErrPasswordRequired
	}
	ctx, span := c.tracer.Start(ctx, "auth.signin")
	defer span.End()

	var out signInResponse
	if err := c.post(ctx, signInPath, signInRequest{Username: creds.Username, Password: creds.Password}, &out); err != nil {
		recordError(span, err)
		return nil, err
	}
	if out.User.AccessToken == "" || out.User.RefreshToken == "" {
		err := invalidResponse("sign-in response is missing tokens")
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", out.User.ID))
	return &SignInResult{
		AuthID: out.AuthID,
		User:   domain.User{ID: out.User.ID, Name: out.User.Name, Username: out.User.Username},
		Tokens: domain.Tokens{AccessToken: out.User.AccessToken, RefreshToken: out.User.RefreshToken},
	}, nil
}

// Refresh exchanges a refresh token for a new pair. The returned refresh token may be
// rotated; callers persist whatever comes back.
func (c *Client) Refresh(ctx context.Context, in RefreshInput) (*domain.Tokens, error) {
	if in.RefreshToken == "" {
		return nil, ErrRefreshTokenRequired
	}
	ctx, span := c.tracer.Start(ctx, "auth.refresh")
	defer span.End()

	var out refreshResponse
	if err := c.post(ctx, refreshPath, refreshRequest{RefreshToken: in.RefreshToken}, &out); err != nil {
		recordError(span, err)
		return nil, err
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		err := invalidResponse("refresh response is missing tokens")
		recordError(span, err)
		return nil, err
	}
	return &domain.Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("auth: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("auth: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth: %s: %w", path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("auth: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := apierror.FromResponse(resp.StatusCode, data, DefaultErrorMessage)
		return &AuthError{Status: apiErr.Status, Code: apiErr.Code, Message: apiErr.Message}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &AuthError{Status: resp.StatusCode, Code: apierror.CodeInvalidResponse, Message: "malformed response body"}
	}
	return nil
}

func invalidResponse(msg string) *AuthError {
	return &AuthError{Status: http.StatusOK, Code: apierror.CodeInvalidResponse, Message: msg}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
