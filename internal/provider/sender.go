package provider

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungwon/newsletter/internal/domain"
)

// Sender sends newsletter emails from a fixed address through a Provider.
type Sender struct {
	provider Provider
	from     domain.SubscriberEmail
	log      zerolog.Logger
}

// NewSender returns a Sender using from as the sender address.
func NewSender(p Provider, from domain.SubscriberEmail, log zerolog.Logger) *Sender {
	return &Sender{
		provider: p,
		from:     from,
		log:      log.With().Str("provider", p.GetName()).Logger(),
	}
}

// SendEmail delivers one email to recipient.
func (s *Sender) SendEmail(ctx context.Context, recipient domain.SubscriberEmail, subject, htmlBody, textBody string) error {
	msg := &Message{
		ID:       uuid.NewString() + "@newsletter",
		From:     s.from.String(),
		To:       recipient.String(),
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	result, err := s.provider.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("send to %s: %w", recipient, err)
	}

	s.log.Debug().
		Str("message_id", msg.ID).
		Str("provider_message_id", result.ProviderMessageID).
		Msg("email handed to provider")
	return nil
}

// HealthCheck delegates to the underlying provider.
func (s *Sender) HealthCheck(ctx context.Context) error {
	return s.provider.HealthCheck(ctx)
}
