package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	postmarkDefaultEndpoint = "https://api.postmarkapp.com"
	postmarkSendPath        = "/email"
	postmarkServerPath      = "/server"
	postmarkTokenHeader     = "X-Postmark-Server-Token"
)

// Postmark sends email through the Postmark HTTP API.
type Postmark struct {
	token    string
	endpoint string
	client   HTTPClient
}

// NewPostmark creates a Postmark provider. An empty endpoint selects the
// public API.
func NewPostmark(endpoint, token string, client HTTPClient) *Postmark {
	if endpoint == "" {
		endpoint = postmarkDefaultEndpoint
	}
	return &Postmark{
		token:    token,
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
	}
}

func (p *Postmark) GetName() string { return "postmark" }

// postmarkPayload matches the Postmark single email JSON schema.
type postmarkPayload struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

type postmarkResponse struct {
	MessageID string `json:"MessageID"`
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// Send delivers a message via POST /email.
func (p *Postmark) Send(ctx context.Context, msg *Message) (*DeliveryResult, error) {
	body, err := json.Marshal(postmarkPayload{
		From:     msg.From,
		To:       msg.To,
		Subject:  msg.Subject,
		HtmlBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	})
	if err != nil {
		return nil, fmt.Errorf("postmark: marshal request: %w", err)
	}

	resp, err := p.client.Do(ctx, &HTTPRequest{
		Method: "POST",
		URL:    p.endpoint + postmarkSendPath,
		Headers: map[string]string{
			postmarkTokenHeader: p.token,
			"Content-Type":      "application/json",
			"Accept":            "application/json",
		},
		Body: body,
	})
	if err != nil {
		return nil, fmt.Errorf("postmark: send request: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var parsed postmarkResponse
		// A 2xx without a parseable body still counts as sent.
		_ = json.Unmarshal(resp.Body, &parsed)
		return &DeliveryResult{
			ProviderMessageID: parsed.MessageID,
			Status:            StatusSent,
			Timestamp:         time.Now(),
			Metadata: map[string]string{
				"status_code": fmt.Sprintf("%d", resp.StatusCode),
			},
		}, nil
	}

	return nil, ClassifyHTTPError("postmark", resp.StatusCode, string(resp.Body))
}

// HealthCheck verifies the server token by reading the server settings.
func (p *Postmark) HealthCheck(ctx context.Context) error {
	resp, err := p.client.Do(ctx, &HTTPRequest{
		Method: "GET",
		URL:    p.endpoint + postmarkServerPath,
		Headers: map[string]string{
			postmarkTokenHeader: p.token,
			"Accept":            "application/json",
		},
	})
	if err != nil {
		return fmt.Errorf("postmark: health check request: %w", err)
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("postmark: health check returned status %d", resp.StatusCode)
	}
	return nil
}
