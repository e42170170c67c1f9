package security

import (
	"errors"
	"os"
	"strings"
)

// ErrEmptySecret is returned when a secret resolves to nothing.
var ErrEmptySecret = errors.New("secret is empty")

const secretFilePrefix = "file:"

// LoadSecret returns s as bytes, or the trimmed contents of the file when s is "file:<path>".
func LoadSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptySecret
	}
	if !strings.HasPrefix(s, secretFilePrefix) {
		return []byte(s), nil
	}
	b, err := os.ReadFile(strings.TrimPrefix(s, secretFilePrefix))
	if err != nil {
		return nil, err
	}
	b = []byte(strings.TrimSpace(string(b)))
	if len(b) == 0 {
		return nil, ErrEmptySecret
	}
	return b, nil
}
