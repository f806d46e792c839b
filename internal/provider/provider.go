// Package provider hands finished newsletter emails to an email service:
// Postmark over HTTP, a relay over SMTP, or a local file/stdout sink in
// development. Errors are classified so the delivery worker knows whether a
// task is worth retrying.
package provider

import (
	"context"
	"time"
)

// Provider is one outbound email transport.
type Provider interface {
	Send(ctx context.Context, msg *Message) (*DeliveryResult, error)
	// GetName identifies the transport in logs and errors.
	GetName() string
	// HealthCheck is run once at startup. Failures are logged, not fatal.
	HealthCheck(ctx context.Context) error
}

// Message is one email to one subscriber. Both bodies are always present.
type Message struct {
	// ID becomes the Message-ID local part and the .eml file name.
	ID       string
	From     string
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// DeliveryStatus is what the transport reported for an accepted message.
type DeliveryStatus string

const StatusSent DeliveryStatus = "sent"

// DeliveryResult describes a message the transport accepted. Metadata holds
// transport-specific details such as the file path or HTTP status.
type DeliveryResult struct {
	ProviderMessageID string
	Status            DeliveryStatus
	Timestamp         time.Time
	Metadata          map[string]string
}

// HTTPClient is the seam between HTTP-based providers and net/http.
type HTTPClient interface {
	Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}
