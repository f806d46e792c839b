package domain

import (
	"errors"
	"testing"
)

func TestParseSubscriberEmail_Valid(t *testing.T) {
	validAddresses := []string{
		"user@example.com",
		"user+tag@example.com",
		"first.last@example.com",
		"user@sub.domain.example.com",
		"ursula_le_guin@gmail.com",
	}

	for _, addr := range validAddresses {
		t.Run(addr, func(t *testing.T) {
			got, err := ParseSubscriberEmail(addr)
			if err != nil {
				t.Fatalf("expected %q to be valid, got error: %v", addr, err)
			}
			if got.String() != addr {
				t.Errorf("expected %q, got %q", addr, got.String())
			}
		})
	}
}

func TestParseSubscriberEmail_Invalid(t *testing.T) {
	invalidAddresses := []string{
		"",
		"plaintext",
		"@no-local.com",
		"missing-at-sign",
		"@",
		"user@",
		"user@localhost",
		"user@.example.com",
		" user@example.com",
		"Jane <jane@example.com>",
		"<jane@example.com>",
	}

	for _, addr := range invalidAddresses {
		t.Run(addr, func(t *testing.T) {
			_, err := ParseSubscriberEmail(addr)
			if err == nil {
				t.Fatalf("expected %q to be invalid, got no error", addr)
			}
			if !errors.Is(err, ErrInvalidEmail) {
				t.Errorf("expected ErrInvalidEmail, got %v", err)
			}
		})
	}
}
