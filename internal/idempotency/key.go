// Package idempotency stores the response of a side-effecting request under
// a caller-chosen key so retries of that request replay the same response.
package idempotency

import (
	"errors"
	"fmt"
)

// ErrInvalidKey is returned by ParseKey. Callers treat it as a client error.
var ErrInvalidKey = errors.New("invalid idempotency key")

const maxKeyLength = 50

// Key is a validated idempotency key.
type Key string

// ParseKey accepts 1 to 50 characters drawn from letters, digits, '-' and
// '_'. A UUID in canonical form is a valid key.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return "", fmt.Errorf("%w: cannot be empty", ErrInvalidKey)
	}
	if len(s) > maxKeyLength {
		return "", fmt.Errorf("%w: must be shorter than %d characters", ErrInvalidKey, maxKeyLength+1)
	}
	for _, c := range s {
		if !isKeyChar(c) {
			return "", fmt.Errorf("%w: contains %q", ErrInvalidKey, c)
		}
	}
	return Key(s), nil
}

func isKeyChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}

func (k Key) String() string {
	return string(k)
}
