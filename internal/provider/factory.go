package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/sungwon/newsletter/internal/config"
)

const defaultTimeout = 30 * time.Second

// Validate checks that the fields required by the selected provider are set.
func Validate(cfg config.EmailClientConfig) error {
	if cfg.SenderEmail == "" {
		return errors.New("email_client: sender_email is required")
	}

	switch cfg.Provider {
	case "postmark":
		if cfg.AuthorizationToken == "" {
			return errors.New("postmark: authorization_token is required")
		}
	case "smtp":
		if cfg.SMTPHost == "" {
			return errors.New("smtp: smtp_host is required")
		}
		if cfg.SMTPPort <= 0 {
			return errors.New("smtp: smtp_port is required")
		}
	case "stdout", "file":
		// No further configuration required.
	case "":
		return errors.New("email_client: provider is required")
	default:
		return errors.New("unknown provider type: " + cfg.Provider)
	}
	return nil
}

// NewFromConfig creates the provider selected by cfg.Provider.
func NewFromConfig(cfg config.EmailClientConfig) (Provider, error) {
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid email client config: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	switch cfg.Provider {
	case "postmark":
		return NewPostmark(cfg.BaseURL, cfg.AuthorizationToken, NewHTTPClient(timeout)), nil
	case "smtp":
		return NewSMTP(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			Timeout:  timeout,
		}), nil
	case "stdout":
		return NewStdout(), nil
	default:
		return NewFile(cfg.OutputDir), nil
	}
}
