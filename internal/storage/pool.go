package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sungwon/newsletter/internal/config"
	"github.com/sungwon/newsletter/internal/metrics"
)

const defaultConnectTimeout = 10 * time.Second

// DB is the shared Postgres pool. Every binary opens exactly one.
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB opens a pool sized by cfg and pings it before returning. appName is
// reported as application_name so API, worker and ingress sessions can be
// told apart in pg_stat_activity. Zero pool limits keep the pgxpool defaults.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, appName string) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if cfg.PoolMin > 0 {
		poolCfg.MinConns = cfg.PoolMin
	}
	if cfg.PoolMax > 0 {
		poolCfg.MaxConns = cfg.PoolMax
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute
	if appName != "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = appName
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Begin opens a read-committed transaction on a pooled connection. The
// caller owns the transaction and must commit or roll it back.
func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

func (db *DB) Close() { db.Pool.Close() }

// Ping acquires a connection and round-trips to the server.
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

// ReportStats samples the pool into the connection gauges every interval
// until ctx is done.
func (db *DB) ReportStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		db.sampleStats()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (db *DB) sampleStats() {
	stat := db.Pool.Stat()
	metrics.DBConnectionsActive.Set(float64(stat.AcquiredConns()))
	metrics.DBConnectionsIdle.Set(float64(stat.IdleConns()))
}
