// Package apierror decodes the error body returned by the back-office API on failing responses.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error codes the client reacts to. Any other code is opaque to this module.
const (
	CodeTokenExpired    = "TOKEN_EXPIRED"
	CodeInvalidResponse = "INVALID_RESPONSE"
)

// ErrAPI is matched by every *Error via errors.Is.
var ErrAPI = errors.New("api error")

// Body is the JSON error shape {code?, message?}.
type Body struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Parse decodes data as an error body. It reports false when data is not a JSON object.
func Parse(data []byte) (Body, bool) {
	var b Body
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed[0] != '{' {
		return Body{}, false
	}
	if err := json.Unmarshal([]byte(trimmed), &b); err != nil {
		return Body{}, false
	}
	return b, true
}

// IsTokenExpired reports whether data is an error body carrying CodeTokenExpired.
func IsTokenExpired(data []byte) bool {
	b, ok := Parse(data)
	return ok && b.Code == CodeTokenExpired
}

// Error is a failed API call: HTTP status plus the decoded body.
type Error struct {
	Status  int
	Code    string
	Message string
}

// FromResponse builds an Error from a status and raw body. defaultMessage is used when
// the body is unparseable or carries no message.
func FromResponse(status int, data []byte, defaultMessage string) *Error {
	e := &Error{Status: status, Message: defaultMessage}
	if b, ok := Parse(data); ok {
		e.Code = b.Code
		if b.Message != "" {
			e.Message = b.Message
		}
	}
	return e
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// Is makes errors.Is(err, ErrAPI) true for any *Error.
func (e *Error) Is(target error) bool {
	return target == ErrAPI
}
