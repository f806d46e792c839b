package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sungwon/newsletter/internal/api"
	"github.com/sungwon/newsletter/internal/auth"
	"github.com/sungwon/newsletter/internal/bootstrap"
	"github.com/sungwon/newsletter/internal/config"
	"github.com/sungwon/newsletter/internal/domain"
	"github.com/sungwon/newsletter/internal/logger"
	"github.com/sungwon/newsletter/internal/newsletter"
	"github.com/sungwon/newsletter/internal/notify"
	"github.com/sungwon/newsletter/internal/provider"
	"github.com/sungwon/newsletter/internal/storage"
	"github.com/sungwon/newsletter/internal/subscription"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewFromConfig(cfg.Logging, "api-server")
	log.Info().Msg("starting API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Apply schema migrations before taking traffic
	if cfg.Database.MigrateOnStart {
		if err := storage.Migrate(cfg.Database.URL); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Msg("database migrations applied")
	}

	// Connect to database
	db, err := storage.NewDB(ctx, cfg.Database, "newsletter-api")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	go db.ReportStats(ctx, 15*time.Second)

	log.Info().Msg("database connection established")

	queries := storage.New(db.Pool)

	if _, err := bootstrap.SeedAdmin(ctx, queries, log, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		log.Fatal().Err(err).Msg("failed to seed admin user")
	}

	// Redis is optional: without it login throttling is off and workers
	// fall back to polling.
	var (
		redisClient *redis.Client
		notifier    notify.Notifier = notify.Noop{}
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisClient.Close()
		notifier = notify.NewRedisNotifier(redisClient, log)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connection established")
	}

	// Confirmation emails go out synchronously through the configured provider
	emailProvider, err := provider.NewFromConfig(cfg.EmailClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create email provider")
	}
	senderAddr, err := domain.ParseSubscriberEmail(cfg.EmailClient.SenderEmail)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid sender email")
	}
	sender := provider.NewSender(emailProvider, senderAddr, log)

	jwtService := auth.NewJWTService(cfg.Auth)
	if cfg.Auth.SigningKey == "" || cfg.Auth.SigningKey == "change-me-in-production-use-a-strong-secret" {
		log.Warn().Msg("JWT signing key is not set or using default value; set NEWSLETTER_AUTH_SIGNING_KEY in production")
	}

	readiness := map[string]api.Pinger{"database": db}
	if redisClient != nil {
		readiness["redis"] = api.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	router := api.NewRouter(api.RouterConfig{
		Queries:       queries,
		Readiness:     readiness,
		Publisher:     newsletter.NewPublisher(db, notifier, log),
		Subscriptions: subscription.NewService(db, sender, cfg.Application.BaseURL, log),
		JWTService:    jwtService,
		RateLimiter:   auth.NewRateLimiter(redisClient, cfg.Auth),
		Log:           log,
	})

	// Configure HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info().Msg("shutting down server")

	// Graceful shutdown with 30-second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
