package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims are the claims the client reads from an access token. The client cannot
// verify the signature; these values are informational only.
type AccessClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
}

// InspectAccessToken decodes token without verifying its signature. ok is false when the
// token is not a JWT (opaque tokens are valid for the API; they just carry no claims).
func InspectAccessToken(token string) (claims *AccessClaims, ok bool) {
	if token == "" {
		return nil, false
	}
	claims = &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// AccessTokenExpiry returns the exp claim of token. ok is false when the token has no
// readable exp.
func AccessTokenExpiry(token string) (time.Time, bool) {
	claims, ok := InspectAccessToken(token)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
