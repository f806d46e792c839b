package smtp

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/sungwon/newsletter/internal/newsletter"
)

var errNoKey = errors.New("message has neither an Idempotency-Key nor a Message-ID header")

// parseMessage turns an RFC 5322 message into an issue and its idempotency
// key. The Subject becomes the title and the text/html and text/plain parts
// become the bodies. A plain-text-only message gets a preformatted HTML body.
//
// The key is the Idempotency-Key header when present, otherwise a digest of
// the Message-ID, so a client resending the same message replays the first
// outcome.
func parseMessage(r io.Reader) (newsletter.Issue, string, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return newsletter.Issue{}, "", fmt.Errorf("read message: %w", err)
	}

	key, err := messageKey(msg.Header)
	if err != nil {
		return newsletter.Issue{}, "", err
	}

	dec := new(mime.WordDecoder)
	title, err := dec.DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		return newsletter.Issue{}, "", fmt.Errorf("decode subject: %w", err)
	}

	issue := newsletter.Issue{Title: strings.TrimSpace(title)}
	if err := readBody(msg.Header, msg.Body, &issue); err != nil {
		return newsletter.Issue{}, "", err
	}

	if issue.HTMLContent == "" && issue.TextContent != "" {
		issue.HTMLContent = "<pre>" + html.EscapeString(issue.TextContent) + "</pre>"
	}
	return issue, key, nil
}

func messageKey(h mail.Header) (string, error) {
	if key := strings.TrimSpace(h.Get("Idempotency-Key")); key != "" {
		return key, nil
	}
	id := strings.Trim(strings.TrimSpace(h.Get("Message-Id")), "<>")
	if id == "" {
		return "", errNoKey
	}
	sum := sha256.Sum256([]byte(id))
	return "msg-" + hex.EncodeToString(sum[:20]), nil
}

// header is satisfied by both mail.Header and textproto.MIMEHeader.
type header interface {
	Get(key string) string
}

// readBody fills issue from a single entity, descending into multipart
// containers. The first text/html and text/plain parts win.
func readBody(h header, body io.Reader, issue *newsletter.Issue) error {
	contentType := h.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("parse content type: %w", err)
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read multipart: %w", err)
			}
			if err := readBody(part.Header, part, issue); err != nil {
				return err
			}
		}
	}

	if mediaType != "text/html" && mediaType != "text/plain" {
		return nil
	}

	content, err := io.ReadAll(decodeTransfer(h.Get("Content-Transfer-Encoding"), body))
	if err != nil {
		return fmt.Errorf("read %s part: %w", mediaType, err)
	}

	switch {
	case mediaType == "text/html" && issue.HTMLContent == "":
		issue.HTMLContent = string(content)
	case mediaType == "text/plain" && issue.TextContent == "":
		issue.TextContent = string(content)
	}
	return nil
}

// decodeTransfer undoes a Content-Transfer-Encoding. multipart.Reader
// already strips quoted-printable from parts and clears the header.
func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}
