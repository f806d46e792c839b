// Package subscription manages the double opt-in flow that produces the
// confirmed subscribers newsletter issues are delivered to.
package subscription

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/sungwon/newsletter/internal/domain"
	"github.com/sungwon/newsletter/internal/storage"
)

const (
	tokenLength   = 25
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// ErrUnknownToken is returned by Confirm when no subscriber owns the token.
var ErrUnknownToken = errors.New("no subscriber is associated with the provided token")

// EmailSender delivers the confirmation email.
type EmailSender interface {
	SendEmail(ctx context.Context, recipient domain.SubscriberEmail, subject, htmlBody, textBody string) error
}

// TxBeginner opens transactions. *storage.DB implements it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service registers and confirms subscribers.
type Service struct {
	db      TxBeginner
	sender  EmailSender
	baseURL string
	log     zerolog.Logger
}

// NewService creates a Service. baseURL is the public address the
// confirmation link points at.
func NewService(db TxBeginner, sender EmailSender, baseURL string, log zerolog.Logger) *Service {
	return &Service{
		db:      db,
		sender:  sender,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// Subscribe stores sub as pending and emails it a confirmation link. An
// address that is already confirmed is left untouched and gets no email;
// a pending one gets a fresh token.
func (s *Service) Subscribe(ctx context.Context, sub domain.NewSubscriber) error {
	log := s.log.With().Str("subscriber_email", sub.Email.String()).Logger()

	token, send, err := s.register(ctx, sub)
	if err != nil {
		return err
	}
	if !send {
		log.Info().Msg("subscriber already confirmed")
		return nil
	}

	link := s.confirmationLink(token)
	html := fmt.Sprintf("Welcome to our newsletter!<br />Click <a href=\"%s\">here</a> to confirm your subscription.", link)
	text := fmt.Sprintf("Welcome to our newsletter!\nVisit %s to confirm your subscription.", link)
	if err := s.sender.SendEmail(ctx, sub.Email, "Welcome!", html, text); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}

	log.Info().Msg("confirmation email sent")
	return nil
}

func (s *Service) register(ctx context.Context, sub domain.NewSubscriber) (token string, send bool, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", false, fmt.Errorf("begin subscribe: %w", err)
	}
	defer func() {
		if err != nil || !send {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	q := storage.New(tx)
	var subscriberID uuid.UUID

	existing, err := q.GetSubscriberByEmail(ctx, sub.Email.String())
	switch {
	case err == nil && existing.Status == storage.SubscriptionStatusConfirmed:
		return "", false, nil
	case err == nil:
		subscriberID = existing.ID
	case errors.Is(err, pgx.ErrNoRows):
		subscriberID = uuid.New()
		if err := q.InsertSubscriber(ctx, storage.InsertSubscriberParams{
			ID:           subscriberID,
			Email:        sub.Email.String(),
			Name:         sub.Name.String(),
			SubscribedAt: time.Now().UTC(),
		}); err != nil {
			return "", false, fmt.Errorf("insert subscriber: %w", err)
		}
	default:
		return "", false, fmt.Errorf("get subscriber: %w", err)
	}

	token, err = generateToken()
	if err != nil {
		return "", false, err
	}
	if err := q.StoreSubscriptionToken(ctx, token, subscriberID); err != nil {
		return "", false, fmt.Errorf("store subscription token: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", false, fmt.Errorf("commit subscribe: %w", err)
	}
	return token, true, nil
}

// Confirm marks the owner of token as confirmed. Confirming twice is not
// an error.
func (s *Service) Confirm(ctx context.Context, token string) error {
	if token == "" {
		return ErrUnknownToken
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin confirm: %w", err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	q := storage.New(tx)
	subscriberID, err := q.GetSubscriberIDFromToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUnknownToken
		}
		return fmt.Errorf("get subscriber id from token: %w", err)
	}
	if err := q.ConfirmSubscriber(ctx, subscriberID); err != nil {
		return fmt.Errorf("confirm subscriber: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit confirm: %w", err)
	}

	s.log.Info().Str("subscriber_id", subscriberID.String()).Msg("subscriber confirmed")
	return nil
}

func (s *Service) confirmationLink(token string) string {
	return s.baseURL + "/subscriptions/confirm?subscription_token=" + url.QueryEscape(token)
}

func generateToken() (string, error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate subscription token: %w", err)
	}
	for i := range b {
		b[i] = tokenAlphabet[int(b[i])%len(tokenAlphabet)]
	}
	return string(b), nil
}
