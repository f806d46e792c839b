package provider

import (
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"
)

func TestBuildMIME_Alternatives(t *testing.T) {
	msg := testMessage()
	msg.Subject = "Ünïcode subject"

	raw, err := buildMIME(msg, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("buildMIME() error = %v", err)
	}

	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(parsed.Header.Get("Subject"))
	if err != nil {
		t.Fatalf("decode subject: %v", err)
	}
	if subject != "Ünïcode subject" {
		t.Errorf("unexpected subject %q", subject)
	}
	if parsed.Header.Get("Message-ID") != "<abc@newsletter>" {
		t.Errorf("unexpected Message-ID %q", parsed.Header.Get("Message-ID"))
	}

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	if mediaType != "multipart/alternative" {
		t.Fatalf("expected multipart/alternative, got %s", mediaType)
	}

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var types, bodies []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		content, err := io.ReadAll(part)
		if err != nil {
			t.Fatalf("read part: %v", err)
		}
		types = append(types, part.Header.Get("Content-Type"))
		bodies = append(bodies, string(content))
	}

	if len(types) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(types))
	}
	if !strings.HasPrefix(types[0], "text/plain") || !strings.HasPrefix(types[1], "text/html") {
		t.Errorf("unexpected part order %v", types)
	}
	// multipart.Reader decodes quoted-printable parts transparently.
	if bodies[0] != "Hello reader" || bodies[1] != "<p>Hello reader</p>" {
		t.Errorf("unexpected bodies %q", bodies)
	}
}
