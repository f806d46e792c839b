package newsletter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungwon/newsletter/internal/idempotency"
	"github.com/sungwon/newsletter/internal/notify"
)

// A Publisher without a database: validation must fail before any store
// interaction.
func newDetachedPublisher() *Publisher {
	return &Publisher{notifier: notify.Noop{}, log: zerolog.Nop()}
}

func validIssue() Issue {
	return Issue{Title: "T", HTMLContent: "<p>H</p>", TextContent: "H"}
}

func TestIssue_Validate(t *testing.T) {
	tests := []struct {
		name    string
		issue   Issue
		wantErr bool
	}{
		{"complete", validIssue(), false},
		{"missing title", Issue{HTMLContent: "<p>H</p>", TextContent: "H"}, true},
		{"missing html", Issue{Title: "T", TextContent: "H"}, true},
		{"missing text", Issue{Title: "T", HTMLContent: "<p>H</p>"}, true},
		{"empty", Issue{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.issue.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIssue) {
					t.Errorf("expected ErrInvalidIssue, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestPublish_RejectsMalformedKey(t *testing.T) {
	p := newDetachedPublisher()

	for _, key := range []string{"", "has space", "semi;colon", strings.Repeat("a", 51)} {
		_, err := p.Publish(context.Background(), uuid.New(), key, validIssue())
		if !errors.Is(err, idempotency.ErrInvalidKey) {
			t.Errorf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestPublish_RejectsIncompleteIssue(t *testing.T) {
	p := newDetachedPublisher()

	_, err := p.Publish(context.Background(), uuid.New(), "11111111-1111-1111-1111-111111111111", Issue{Title: "T"})
	if !errors.Is(err, ErrInvalidIssue) {
		t.Errorf("expected ErrInvalidIssue, got %v", err)
	}
}

func TestAcceptedResponse(t *testing.T) {
	issueID := uuid.New()
	resp, err := acceptedResponse(issueID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", resp.StatusCode)
	}
	if ct := resp.Header("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var body AcceptedBody
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Status != "accepted" {
		t.Errorf("expected status accepted, got %q", body.Status)
	}
	if body.Message != AcceptedMessage {
		t.Errorf("unexpected message %q", body.Message)
	}
	if body.IssueID != issueID {
		t.Errorf("expected issue id %s, got %s", issueID, body.IssueID)
	}
	if !bytes.HasSuffix(resp.Body, []byte("}\n")) {
		t.Errorf("expected the newline-terminated encoding the API writes, got %q", resp.Body)
	}
}
