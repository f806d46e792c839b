package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const stdoutPreviewLen = 60

// Stdout prints each delivery as a single line instead of sending it. It is
// the development transport: every newsletter task completes immediately and
// the output shows which subscriber would have received which issue.
type Stdout struct {
	mu    sync.Mutex
	out   io.Writer
	sent  uint64
	clock func() time.Time
}

// NewStdout returns a Stdout provider that writes to os.Stdout.
func NewStdout() *Stdout {
	return newStdoutTo(os.Stdout)
}

func newStdoutTo(w io.Writer) *Stdout {
	return &Stdout{out: w, clock: time.Now}
}

func (s *Stdout) GetName() string { return "stdout" }

// Send writes one line per delivery. Concurrent workers share the writer, so
// lines are serialized.
func (s *Stdout) Send(_ context.Context, msg *Message) (*DeliveryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent++
	now := s.clock()
	line := fmt.Sprintf("[newsletter #%d] %s -> %s subject=%q text=%dB html=%dB preview=%q\n",
		s.sent, msg.From, msg.To, msg.Subject, len(msg.TextBody), len(msg.HTMLBody), preview(msg.TextBody))
	if _, err := io.WriteString(s.out, line); err != nil {
		return nil, fmt.Errorf("stdout: write: %w", err)
	}

	return &DeliveryResult{
		ProviderMessageID: "stdout-" + msg.ID,
		Status:            StatusSent,
		Timestamp:         now,
		Metadata:          map[string]string{"sequence": fmt.Sprintf("%d", s.sent)},
	}, nil
}

// HealthCheck never fails.
func (s *Stdout) HealthCheck(context.Context) error { return nil }

// preview collapses whitespace and truncates the plain-text body.
func preview(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	r := []rune(flat)
	if len(r) <= stdoutPreviewLen {
		return flat
	}
	return string(r[:stdoutPreviewLen]) + "..."
}
