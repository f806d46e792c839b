// Package logger builds the zerolog loggers used by every binary and carries
// a request-scoped logger and correlation ID through context.
package logger

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungwon/newsletter/internal/config"
)

type ctxKey int

const (
	loggerCtxKey ctxKey = iota
	correlationCtxKey
)

// fallback serves FromContext callers that run outside a request.
var fallback = newWithWriter("info", os.Stderr)

// New returns a JSON logger on stdout. Unknown levels mean info.
func New(level string) zerolog.Logger {
	return newWithWriter(level, os.Stdout)
}

// NewFromConfig builds the process logger from the logging section and tags
// every line with service. Output "file" goes to a rotating file, "stderr"
// to standard error and anything else to stdout.
func NewFromConfig(cfg config.LoggingConfig, service string) zerolog.Logger {
	var w io.Writer = os.Stdout
	switch cfg.Output {
	case "file":
		w = rotatingFile(cfg)
	case "stderr":
		w = os.Stderr
	}

	log := newWithWriter(cfg.Level, w)
	if service != "" {
		log = log.With().Str("service", service).Logger()
	}
	return log
}

func newWithWriter(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// WithLogger returns a copy of ctx carrying log.
func WithLogger(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, log)
}

// WithCorrelationID returns a copy of ctx carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationCtxKey, id)
}

// CorrelationIDFromContext returns the ID stored by WithCorrelationID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationCtxKey).(string)
	return id
}

// FromContext returns the logger stored in ctx with the correlation ID
// attached. Without one it returns a stderr logger at info level.
func FromContext(ctx context.Context) zerolog.Logger {
	log, ok := ctx.Value(loggerCtxKey).(zerolog.Logger)
	if !ok {
		log = fallback
	}
	if id := CorrelationIDFromContext(ctx); id != "" {
		return log.With().Str("correlation_id", id).Logger()
	}
	return log
}

// NewCorrelationID returns a time-ordered UUID, so IDs sort by arrival in
// log searches.
func NewCorrelationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
