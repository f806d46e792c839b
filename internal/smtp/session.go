package smtp

import (
	"context"
	"errors"
	"io"
	"net/mail"
	"strings"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungwon/newsletter/internal/auth"
	"github.com/sungwon/newsletter/internal/idempotency"
	"github.com/sungwon/newsletter/internal/metrics"
	"github.com/sungwon/newsletter/internal/newsletter"
)

var (
	errAuthRequired = &gosmtp.SMTPError{
		Code:         530,
		EnhancedCode: gosmtp.EnhancedCode{5, 7, 0},
		Message:      "Authentication required",
	}
	errAuthFailed = &gosmtp.SMTPError{
		Code:         535,
		EnhancedCode: gosmtp.EnhancedCode{5, 7, 8},
		Message:      "Authentication failed",
	}
)

// Session handles a single SMTP connection and implements the go-smtp
// Session and AuthSession interfaces.
type Session struct {
	ctx           context.Context
	log           zerolog.Logger
	backend       *Backend
	userID        uuid.UUID
	username      string
	authenticated bool
	sender        string
	recipients    []string
}

// AuthMechanisms lists the SASL mechanisms offered after EHLO.
func (s *Session) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

// Auth starts a SASL exchange for mech. Only PLAIN is supported.
func (s *Session) Auth(mech string) (sasl.Server, error) {
	if mech != sasl.Plain {
		return nil, &gosmtp.SMTPError{
			Code:         504,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 4},
			Message:      "Unsupported authentication mechanism",
		}
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if identity != "" && identity != username {
			return errAuthFailed
		}
		return s.authPlain(username, password)
	}), nil
}

// authPlain validates the credentials against the admin users table.
func (s *Session) authPlain(username, password string) error {
	s.log.Info().Str("username", username).Msg("auth attempt")

	user, err := auth.ValidateCredentials(s.ctx, s.backend.users, username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.log.Warn().Str("username", username).Msg("auth failed: invalid credentials")
			return errAuthFailed
		}
		s.log.Error().Err(err).Str("username", username).Msg("auth failed: lookup error")
		return &gosmtp.SMTPError{
			Code:         454,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "Temporary authentication failure",
		}
	}

	s.userID = user.UserID
	s.username = user.Username
	s.authenticated = true

	s.log.Info().
		Str("username", username).
		Str("user_id", user.UserID.String()).
		Msg("auth successful")

	return nil
}

// Mail handles the MAIL FROM command.
func (s *Session) Mail(from string, opts *gosmtp.MailOptions) error {
	if !s.authenticated {
		return errAuthRequired
	}

	addr, err := mail.ParseAddress(from)
	if err != nil {
		s.log.Warn().Str("from", from).Msg("invalid sender address format")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 7},
			Message:      "Invalid sender address",
		}
	}

	s.sender = addr.Address
	s.log.Info().Str("from", s.sender).Msg("MAIL FROM accepted")
	return nil
}

// Rcpt handles the RCPT TO command. Only the ingress address is accepted.
func (s *Session) Rcpt(to string, opts *gosmtp.RcptOptions) error {
	if !s.authenticated {
		return errAuthRequired
	}

	addr, err := mail.ParseAddress(to)
	if err != nil {
		s.log.Warn().Str("to", to).Msg("invalid recipient address format")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "Invalid recipient address",
		}
	}

	if s.backend.address != "" && !strings.EqualFold(addr.Address, s.backend.address) {
		s.log.Warn().Str("to", addr.Address).Msg("recipient is not the publish address")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
			Message:      "Unknown recipient",
		}
	}

	s.recipients = append(s.recipients, addr.Address)
	s.log.Info().Str("to", addr.Address).Msg("RCPT TO accepted")
	return nil
}

// Data handles the DATA command. The message is parsed into an issue and
// published; a retried message with the same key replays the first outcome.
// Message bodies are never logged.
func (s *Session) Data(r io.Reader) error {
	if !s.authenticated {
		return errAuthRequired
	}

	if len(s.recipients) == 0 {
		return &gosmtp.SMTPError{
			Code:         503,
			EnhancedCode: gosmtp.EnhancedCode{5, 5, 1},
			Message:      "No recipients specified",
		}
	}

	issue, key, err := parseMessage(r)
	if err != nil {
		s.log.Warn().Err(err).Msg("rejected unparseable message")
		metrics.SMTPMessagesTotal.WithLabelValues("rejected").Inc()
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
			Message:      "Message is not a valid newsletter issue",
		}
	}

	resp, err := s.backend.publisher.Publish(s.ctx, s.userID, key, issue)
	if err != nil {
		if errors.Is(err, idempotency.ErrInvalidKey) || errors.Is(err, newsletter.ErrInvalidIssue) {
			s.log.Warn().Err(err).Msg("rejected invalid issue")
			metrics.SMTPMessagesTotal.WithLabelValues("rejected").Inc()
			return &gosmtp.SMTPError{
				Code:         550,
				EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
				Message:      err.Error(),
			}
		}
		s.log.Error().Err(err).Msg("failed to publish issue")
		metrics.SMTPMessagesTotal.WithLabelValues("failed").Inc()
		return &gosmtp.SMTPError{
			Code:         451,
			EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
			Message:      "Error publishing issue",
		}
	}

	metrics.SMTPMessagesTotal.WithLabelValues("accepted").Inc()
	s.log.Info().
		Str("from", s.sender).
		Str("idempotency_key", key).
		Int("status", resp.StatusCode).
		Msg("issue submitted by mail")

	return nil
}

// Reset is called between messages in the same session. It clears the sender
// and recipients but preserves the authentication state.
func (s *Session) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Logout frees the session slot when the client disconnects.
func (s *Session) Logout() error {
	s.backend.release()
	metrics.SMTPActiveConnections.Dec()
	s.log.Info().Msg("session closed")
	return nil
}
