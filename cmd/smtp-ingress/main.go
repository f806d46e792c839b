// Command smtp-ingress lets the admin publish an issue by sending it as an
// email. It shares the database and wake-up channel with the API server.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sungwon/newsletter/internal/config"
	"github.com/sungwon/newsletter/internal/logger"
	"github.com/sungwon/newsletter/internal/newsletter"
	"github.com/sungwon/newsletter/internal/notify"
	smtpserver "github.com/sungwon/newsletter/internal/smtp"
	"github.com/sungwon/newsletter/internal/storage"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewFromConfig(cfg.Logging, "smtp-ingress")
	ingress := cfg.SMTPIngress

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.NewDB(ctx, cfg.Database, "newsletter-smtp-ingress")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer rdb.Close()
		notifier = notify.NewRedisNotifier(rdb, log)
	}

	backend := smtpserver.NewBackend(
		storage.New(db.Pool),
		newsletter.NewPublisher(db, notifier, log),
		ingress.Address,
		log,
		ingress.MaxConnections,
	)
	// Sessions outlive the signal context by the grace period so a DATA
	// command in progress can still commit.
	sessionCtx, cancelSessions := context.WithCancel(context.Background())
	defer cancelSessions()
	backend.SetBaseContext(sessionCtx)

	srv := gosmtp.NewServer(backend)
	srv.Addr = fmt.Sprintf("%s:%d", ingress.Host, ingress.Port)
	srv.Domain = ingress.Domain
	srv.ReadTimeout = ingress.ReadTimeout
	srv.WriteTimeout = ingress.WriteTimeout
	srv.MaxMessageBytes = ingress.MaxMessageSize
	srv.MaxRecipients = 1
	srv.AllowInsecureAuth = false
	srv.TLSConfig = loadTLS(ingress, log)

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", srv.Addr).Msg("failed to listen")
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("publish_address", ingress.Address).
			Bool("starttls", srv.TLSConfig != nil).
			Msg("SMTP ingress listening")
		serveErr <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down SMTP ingress")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, gosmtp.ErrServerClosed) {
			log.Error().Err(err).Msg("SMTP server stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("SMTP ingress did not drain in time, aborting sessions")
		cancelSessions()
	}
	log.Info().Msg("SMTP ingress stopped")
}

// loadTLS returns the STARTTLS config, or nil when no certificate is set.
// Without TLS the server refuses AUTH, so nothing can be published.
func loadTLS(ingress config.SMTPIngressConfig, log zerolog.Logger) *tls.Config {
	if ingress.TLSCertFile == "" || ingress.TLSKeyFile == "" {
		log.Warn().Msg("no TLS certificate configured; AUTH is unavailable until STARTTLS is enabled")
		return nil
	}
	cert, err := tls.LoadX509KeyPair(ingress.TLSCertFile, ingress.TLSKeyFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load TLS certificate")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
}
