package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ErrInvalidEmail is returned when a string is not a deliverable address.
var ErrInvalidEmail = errors.New("invalid subscriber email")

// SubscriberEmail is an address that passed ParseSubscriberEmail.
type SubscriberEmail struct {
	value string
}

// ParseSubscriberEmail validates s as a bare RFC 5322 addr-spec. Display
// names ("Jane <jane@example.com>"), surrounding whitespace and domains
// without a dot are rejected.
func ParseSubscriberEmail(s string) (SubscriberEmail, error) {
	if s == "" {
		return SubscriberEmail{}, fmt.Errorf("%w: empty", ErrInvalidEmail)
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return SubscriberEmail{}, fmt.Errorf("%w: %q: %v", ErrInvalidEmail, s, err)
	}
	if addr.Name != "" || addr.Address != s {
		return SubscriberEmail{}, fmt.Errorf("%w: %q is not a bare address", ErrInvalidEmail, s)
	}
	at := strings.LastIndex(s, "@")
	if at <= 0 || !isValidDomain(s[at+1:]) {
		return SubscriberEmail{}, fmt.Errorf("%w: %q has no valid domain", ErrInvalidEmail, s)
	}
	return SubscriberEmail{value: s}, nil
}

// String returns the address.
func (e SubscriberEmail) String() string {
	return e.value
}

// isValidDomain checks that the domain is non-empty, does not start or end
// with a dot, and contains at least one dot separator.
func isValidDomain(domain string) bool {
	if domain == "" {
		return false
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	return strings.Contains(domain, ".")
}
