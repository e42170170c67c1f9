package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenFingerprint returns the hex SHA-256 of token. Used as a map/singleflight key and in
// log lines so raw tokens are never held or printed.
func TokenFingerprint(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ShortFingerprint returns the first 12 hex characters of TokenFingerprint, for logs.
// Returns "-" for an empty token.
func ShortFingerprint(token string) string {
	if token == "" {
		return "-"
	}
	return TokenFingerprint(token)[:12]
}
