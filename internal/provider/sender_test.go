package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sungwon/newsletter/internal/domain"
)

type recordingProvider struct {
	sent []*Message
	err  error
}

func (r *recordingProvider) Send(_ context.Context, msg *Message) (*DeliveryResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.sent = append(r.sent, msg)
	return &DeliveryResult{ProviderMessageID: "rec-1", Status: StatusSent}, nil
}

func (r *recordingProvider) GetName() string { return "recording" }

func (r *recordingProvider) HealthCheck(context.Context) error { return r.err }

func mustEmail(t *testing.T, s string) domain.SubscriberEmail {
	t.Helper()
	e, err := domain.ParseSubscriberEmail(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return e
}

func TestSender_SendEmail(t *testing.T) {
	p := &recordingProvider{}
	s := NewSender(p, mustEmail(t, "newsletter@example.com"), zerolog.Nop())

	err := s.SendEmail(context.Background(), mustEmail(t, "reader@example.com"), "Title", "<p>H</p>", "H")
	if err != nil {
		t.Fatalf("SendEmail() error = %v", err)
	}
	if len(p.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(p.sent))
	}
	msg := p.sent[0]
	if msg.From != "newsletter@example.com" || msg.To != "reader@example.com" {
		t.Errorf("unexpected envelope %s -> %s", msg.From, msg.To)
	}
	if msg.Subject != "Title" || msg.HTMLBody != "<p>H</p>" || msg.TextBody != "H" {
		t.Errorf("unexpected content %+v", msg)
	}
	if msg.ID == "" {
		t.Error("expected a message id")
	}
}

func TestSender_SendEmail_PropagatesProviderError(t *testing.T) {
	p := &recordingProvider{err: &ProviderError{Provider: "recording", Message: "down"}}
	s := NewSender(p, mustEmail(t, "newsletter@example.com"), zerolog.Nop())

	err := s.SendEmail(context.Background(), mustEmail(t, "reader@example.com"), "T", "h", "t")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if err := s.HealthCheck(context.Background()); err == nil {
		t.Error("expected health check to surface provider error")
	}
}
