package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	userAgent = "newsletter-delivery/1.0"
	// ESP replies are small JSON documents; anything larger is truncated.
	maxResponseBytes = 1 << 20
)

// APIClient performs ESP API calls over a shared net/http client with
// keep-alive connections, so concurrent delivery workers reuse sockets.
type APIClient struct {
	http *http.Client
}

// NewHTTPClient returns an APIClient whose requests are bounded by timeout
// in addition to the caller's context.
func NewHTTPClient(timeout time.Duration) *APIClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 32
	return &APIClient{
		http: &http.Client{Timeout: timeout, Transport: transport},
	}
}

// Do sends req and buffers at most maxResponseBytes of the reply. Repeated
// response headers are joined with ", ".
func (c *APIClient) Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	// Drain the remainder so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	headers := make(map[string]string, len(resp.Header))
	for name, values := range resp.Header {
		headers[name] = strings.Join(values, ", ")
	}

	return &HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       payload,
	}, nil
}
