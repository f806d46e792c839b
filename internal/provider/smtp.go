package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
)

// SMTPConfig configures the SMTP relay provider.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// SMTP relays messages to an SMTP server, authenticating with SASL PLAIN
// when a username is configured.
type SMTP struct {
	addr     string
	username string
	password string
	timeout  time.Duration
}

// NewSMTP creates an SMTP provider for the given relay.
func NewSMTP(cfg SMTPConfig) *SMTP {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &SMTP{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		username: cfg.Username,
		password: cfg.Password,
		timeout:  timeout,
	}
}

func (s *SMTP) GetName() string { return "smtp" }

// Send opens a connection per message and submits it.
func (s *SMTP) Send(ctx context.Context, msg *Message) (*DeliveryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("smtp: %w", err)
	}

	raw, err := buildMIME(msg, time.Now())
	if err != nil {
		return nil, fmt.Errorf("smtp: build message: %w", err)
	}

	c, err := s.dial()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if s.username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.username, s.password)); err != nil {
			return nil, s.classify("auth", err)
		}
	}

	if err := c.Mail(msg.From, nil); err != nil {
		return nil, s.classify("mail from", err)
	}
	if err := c.Rcpt(msg.To, nil); err != nil {
		return nil, s.classify("rcpt to", err)
	}

	w, err := c.Data()
	if err != nil {
		return nil, s.classify("data", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, s.classify("write", err)
	}
	if err := w.Close(); err != nil {
		return nil, s.classify("close data", err)
	}

	if err := c.Quit(); err != nil {
		return nil, s.classify("quit", err)
	}

	return &DeliveryResult{
		ProviderMessageID: msg.ID,
		Status:            StatusSent,
		Timestamp:         time.Now(),
		Metadata:          map[string]string{"relay": s.addr},
	}, nil
}

// HealthCheck connects, greets and disconnects.
func (s *SMTP) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := s.dial()
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Noop(); err != nil {
		return s.classify("noop", err)
	}
	return c.Quit()
}

func (s *SMTP) dial() (*gosmtp.Client, error) {
	c, err := gosmtp.Dial(s.addr)
	if err != nil {
		return nil, &ProviderError{Provider: "smtp", Message: "dial " + s.addr + ": " + err.Error()}
	}
	c.CommandTimeout = s.timeout
	c.SubmissionTimeout = s.timeout
	return c, nil
}

func (s *SMTP) classify(stage string, err error) error {
	var smtpErr *gosmtp.SMTPError
	if errors.As(err, &smtpErr) {
		return ClassifySMTPError("smtp", smtpErr.Code, stage+": "+smtpErr.Message)
	}
	return &ProviderError{Provider: "smtp", Message: stage + ": " + err.Error()}
}
