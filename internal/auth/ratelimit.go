package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sungwon/newsletter/internal/config"
)

const (
	defaultLoginAttemptsLimit   = 5
	defaultLoginLockoutDuration = 15 * time.Minute
)

// ErrLoginLocked is returned once a username has used up its failed
// login attempts.
var ErrLoginLocked = errors.New("account temporarily locked due to too many failed login attempts")

// RateLimiter throttles failed logins per username using Redis counters.
// A nil client disables throttling.
type RateLimiter struct {
	client   *redis.Client
	attempts int
	lockout  time.Duration
}

// NewRateLimiter creates a new RateLimiter with the given Redis client and configuration.
func NewRateLimiter(client *redis.Client, cfg config.AuthConfig) *RateLimiter {
	rl := &RateLimiter{
		client:   client,
		attempts: cfg.LoginAttemptsLimit,
		lockout:  cfg.LoginLockoutDuration,
	}
	if rl.attempts <= 0 {
		rl.attempts = defaultLoginAttemptsLimit
	}
	if rl.lockout <= 0 {
		rl.lockout = defaultLoginLockoutDuration
	}
	return rl
}

// CheckLoginRateLimit returns ErrLoginLocked when username is locked out.
func (rl *RateLimiter) CheckLoginRateLimit(ctx context.Context, username string) error {
	if rl.client == nil {
		return nil
	}

	count, err := rl.client.Get(ctx, loginKey(username)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("check login rate limit: %w", err)
	}
	if int(count) >= rl.attempts {
		return ErrLoginLocked
	}
	return nil
}

// RecordFailedLogin increments the failed login counter for username. The
// counter expires after the lockout duration.
func (rl *RateLimiter) RecordFailedLogin(ctx context.Context, username string) error {
	if rl.client == nil {
		return nil
	}

	key := loginKey(username)
	pipe := rl.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.lockout)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}
	return nil
}

// ResetLoginAttempts clears the failed login counter for username.
func (rl *RateLimiter) ResetLoginAttempts(ctx context.Context, username string) error {
	if rl.client == nil {
		return nil
	}
	return rl.client.Del(ctx, loginKey(username)).Err()
}

func loginKey(username string) string {
	return "ratelimit:login:" + username
}
