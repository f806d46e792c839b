// Package storagetest starts a throwaway PostgreSQL container with the
// schema applied, for integration tests across packages.
package storagetest

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sungwon/newsletter/internal/config"
	"github.com/sungwon/newsletter/internal/storage"
)

// Postgres is a running, migrated database.
type Postgres struct {
	DB        *storage.DB
	DSN       string
	container testcontainers.Container
}

// StartPostgres starts postgres:15-alpine, applies all migrations and opens
// a pool against it.
func StartPostgres(ctx context.Context) (*Postgres, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	pg := &Postgres{container: container}

	host, err := container.Host(ctx)
	if err != nil {
		pg.Terminate(ctx)
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		pg.Terminate(ctx)
		return nil, fmt.Errorf("get container port: %w", err)
	}
	pg.DSN = fmt.Sprintf("postgres://test:test@%s:%s/test?sslmode=disable", host, port.Port())

	if err := storage.Migrate(pg.DSN); err != nil {
		pg.Terminate(ctx)
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pg.DB, err = storage.NewDB(ctx, config.DatabaseConfig{
		URL:            pg.DSN,
		PoolMin:        2,
		PoolMax:        20,
		ConnectTimeout: 10 * time.Second,
	}, "newsletter-test")
	if err != nil {
		pg.Terminate(ctx)
		return nil, fmt.Errorf("create DB: %w", err)
	}
	return pg, nil
}

// Truncate empties every application table.
func (p *Postgres) Truncate(ctx context.Context) error {
	_, err := p.DB.Pool.Exec(ctx,
		`TRUNCATE issue_delivery_queue, newsletter_issues, idempotency, subscription_tokens, subscriptions, users CASCADE`)
	return err
}

// Terminate closes the pool and removes the container.
func (p *Postgres) Terminate(ctx context.Context) error {
	if p.DB != nil {
		p.DB.Close()
	}
	return p.container.Terminate(ctx)
}
