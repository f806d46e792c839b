package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sungwon/newsletter/internal/config"
	"github.com/sungwon/newsletter/internal/domain"
	"github.com/sungwon/newsletter/internal/logger"
	"github.com/sungwon/newsletter/internal/notify"
	"github.com/sungwon/newsletter/internal/provider"
	"github.com/sungwon/newsletter/internal/storage"
	"github.com/sungwon/newsletter/internal/worker"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before exit.
func run() int {
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	log := logger.NewFromConfig(cfg.Logging, "delivery-worker")
	log.Info().Msg("starting delivery worker")

	ctx := context.Background()
	db, err := storage.NewDB(ctx, cfg.Database, "newsletter-worker")
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to database")
		return 1
	}
	defer db.Close()

	emailProvider, err := provider.NewFromConfig(cfg.EmailClient)
	if err != nil {
		log.Error().Err(err).Msg("failed to create email provider")
		return 1
	}
	if err := emailProvider.HealthCheck(ctx); err != nil {
		log.Warn().Err(err).Str("provider", emailProvider.GetName()).Msg("email provider health check failed")
	}
	senderAddr, err := domain.ParseSubscriberEmail(cfg.EmailClient.SenderEmail)
	if err != nil {
		log.Error().Err(err).Msg("invalid sender email")
		return 1
	}
	sender := provider.NewSender(emailProvider, senderAddr, log)

	// Wake-ups are optional; without Redis workers poll every empty_queue_delay.
	var listener notify.Listener = notify.Noop{}
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error().Err(err).Msg("failed to connect to Redis")
			return 1
		}
		listener = notify.NewRedisNotifier(redisClient, log)
	}

	pool := worker.NewPool(worker.NewPostgresQueue(db), sender, listener, cfg.Worker, log)
	pool.Start(ctx)

	var metricsSrv *http.Server
	if cfg.Worker.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:        fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
			Handler:     mux,
			ReadTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", metricsSrv.Addr).Msg("serving worker metrics")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	// Wait for interrupt signal for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("shutting down delivery worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout+5*time.Second)
	defer cancel()

	code := 0
	if err := pool.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("worker pool did not stop cleanly")
		code = 1
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	log.Info().Msg("delivery worker stopped")
	return code
}
