package subscription

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestGenerateToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := generateToken()
		if err != nil {
			t.Fatalf("generateToken() error = %v", err)
		}
		if len(token) != tokenLength {
			t.Errorf("len(token) = %d, want %d", len(token), tokenLength)
		}
		for _, c := range token {
			if !strings.ContainsRune(tokenAlphabet, c) {
				t.Errorf("token %q contains %q", token, c)
			}
		}
		if seen[token] {
			t.Errorf("duplicate token %q", token)
		}
		seen[token] = true
	}
}

func TestConfirmationLink(t *testing.T) {
	s := NewService(nil, nil, "https://news.example.com/", zerolog.Nop())

	got := s.confirmationLink("abc123")
	want := "https://news.example.com/subscriptions/confirm?subscription_token=abc123"
	if got != want {
		t.Errorf("confirmationLink() = %q, want %q", got, want)
	}
}

func TestConfirm_EmptyToken(t *testing.T) {
	s := NewService(nil, nil, "http://localhost", zerolog.Nop())
	if err := s.Confirm(context.Background(), ""); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("Confirm(\"\") error = %v, want %v", err, ErrUnknownToken)
	}
}
