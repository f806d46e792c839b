// Package smtp accepts newsletter issues by mail. An admin authenticates
// with AUTH PLAIN and sends the issue to the ingress address; the message
// goes through the same idempotent publish path as the HTTP API.
package smtp

import (
	"context"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungwon/newsletter/internal/auth"
	"github.com/sungwon/newsletter/internal/idempotency"
	"github.com/sungwon/newsletter/internal/logger"
	"github.com/sungwon/newsletter/internal/metrics"
	"github.com/sungwon/newsletter/internal/newsletter"
)

// Publisher publishes an issue on behalf of an actor.
type Publisher interface {
	Publish(ctx context.Context, actor uuid.UUID, rawKey string, issue newsletter.Issue) (idempotency.SavedResponse, error)
}

var errTooManySessions = &gosmtp.SMTPError{
	Code:         421,
	EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
	Message:      "Too many connections, try again later",
}

// Backend hands out publish sessions. Concurrent sessions are capped by a
// slot channel sized to maxConns.
type Backend struct {
	users     auth.UserByUsername
	publisher Publisher
	address   string
	log       zerolog.Logger
	slots     chan struct{}
	base      context.Context
}

// NewBackend returns a Backend that only accepts mail for address, or for
// any recipient when address is empty.
func NewBackend(users auth.UserByUsername, publisher Publisher, address string, log zerolog.Logger, maxConns int) *Backend {
	if maxConns <= 0 {
		maxConns = 1
	}
	return &Backend{
		users:     users,
		publisher: publisher,
		address:   address,
		log:       log,
		slots:     make(chan struct{}, maxConns),
		base:      context.Background(),
	}
}

// SetBaseContext makes every session context a child of ctx, so cancelling
// ctx aborts publishes still in flight during shutdown.
func (b *Backend) SetBaseContext(ctx context.Context) { b.base = ctx }

// NewSession runs once per connection after the greeting.
func (b *Backend) NewSession(conn *gosmtp.Conn) (gosmtp.Session, error) {
	if !b.tryAcquire() {
		b.log.Warn().Int("max", cap(b.slots)).Msg("session limit reached, refusing connection")
		return nil, errTooManySessions
	}
	metrics.SMTPActiveConnections.Inc()

	id := logger.NewCorrelationID()
	log := b.log.With().
		Str("correlation_id", id).
		Str("remote_addr", conn.Conn().RemoteAddr().String()).
		Str("helo", conn.Hostname()).
		Logger()
	ctx := logger.WithLogger(logger.WithCorrelationID(b.base, id), log)

	log.Info().Msg("publish session opened")
	return b.newSession(ctx, log), nil
}

func (b *Backend) newSession(ctx context.Context, log zerolog.Logger) *Session {
	return &Session{ctx: ctx, log: log, backend: b}
}

func (b *Backend) tryAcquire() bool {
	select {
	case b.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (b *Backend) release() { <-b.slots }

// ActiveSessions reports how many sessions hold a slot.
func (b *Backend) ActiveSessions() int { return len(b.slots) }
