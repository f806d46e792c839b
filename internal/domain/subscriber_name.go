package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidName is returned for blank, overlong or unsafe subscriber names.
var ErrInvalidName = errors.New("invalid subscriber name")

const maxNameLength = 256

const forbiddenNameChars = `/()"<>\{};`

// SubscriberName is a display name that passed ParseSubscriberName.
type SubscriberName struct {
	value string
}

// ParseSubscriberName rejects whitespace-only names, names longer than 256
// characters and names containing any of / ( ) " < > \ { } ;.
func ParseSubscriberName(s string) (SubscriberName, error) {
	if strings.TrimSpace(s) == "" {
		return SubscriberName{}, fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if utf8.RuneCountInString(s) > maxNameLength {
		return SubscriberName{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxNameLength)
	}
	if strings.ContainsAny(s, forbiddenNameChars) {
		return SubscriberName{}, fmt.Errorf("%w: %q contains a forbidden character", ErrInvalidName, s)
	}
	return SubscriberName{value: s}, nil
}

func (n SubscriberName) String() string {
	return n.value
}
