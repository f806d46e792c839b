package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ProviderError is a failed delivery attempt with enough detail for the
// worker to decide between retrying the task and giving up on it.
type ProviderError struct {
	Provider string
	// StatusCode is the HTTP status or SMTP reply code, 0 if unknown.
	StatusCode int
	// Code is the ESP's own error code when the reply carried one.
	Code      int
	Message   string
	Permanent bool
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code %d)", e.Provider, e.Message, e.Code)
	}
	return e.Provider + ": " + e.Message
}

// IsPermanent reports whether err, or anything it wraps, is a ProviderError
// that a retry cannot fix.
func IsPermanent(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Permanent
}

// Postmark API error codes that mean the request itself is wrong: the token,
// the sender signature or the recipient. Everything else is worth a retry.
var postmarkPermanentCodes = map[int]bool{
	10:  true, // bad or missing server token
	300: true, // invalid email request
	400: true, // sender signature not found
	401: true, // sender signature not confirmed
	402: true, // invalid JSON
	403: true, // incompatible JSON
	405: true, // not allowed to send
	406: true, // inactive recipient
	409: true, // JSON required
	412: true, // account pending approval
}

// Fallback phrases for replies whose body is not Postmark JSON.
var (
	rejectedRecipientPhrases = []string{
		"invalid email",
		"invalid address",
		"invalid recipient",
		"inactive recipient",
		"recipient rejected",
		"mailbox not found",
		"does not exist",
		"sender signature not",
	}
	brokenAccountPhrases = []string{
		"invalid server token",
		"invalid api key",
		"account suspended",
		"unauthorized",
	}
)

// ClassifyHTTPError turns an ESP HTTP reply into a ProviderError. It returns
// nil for 2xx. Postmark JSON bodies are classified by ErrorCode; other
// bodies by status code and a few well-known phrases.
func ClassifyHTTPError(providerName string, statusCode int, body string) *ProviderError {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	pe := &ProviderError{Provider: providerName, StatusCode: statusCode, Message: body}

	var reply struct {
		ErrorCode int    `json:"ErrorCode"`
		Message   string `json:"Message"`
	}
	if json.Unmarshal([]byte(body), &reply) == nil && reply.Message != "" {
		pe.Code = reply.ErrorCode
		pe.Message = reply.Message
		if postmarkPermanentCodes[reply.ErrorCode] {
			pe.Permanent = true
			return pe
		}
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		pe.Permanent = false
	case statusCode == http.StatusBadRequest, statusCode == http.StatusUnprocessableEntity:
		pe.Permanent = mentionsAny(pe.Message, rejectedRecipientPhrases)
	case statusCode >= 500:
		pe.Permanent = mentionsAny(pe.Message, brokenAccountPhrases)
	default:
		// 401, 403, 404, 406 and the rest of 4xx will fail the same way again.
		pe.Permanent = statusCode >= 400 && statusCode < 500
	}
	return pe
}

// ClassifySMTPError classifies an SMTP reply: 5xx is permanent, anything
// else transient.
func ClassifySMTPError(providerName string, code int, message string) *ProviderError {
	return &ProviderError{
		Provider:   providerName,
		StatusCode: code,
		Message:    message,
		Permanent:  code >= 500 && code < 600,
	}
}

func mentionsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
