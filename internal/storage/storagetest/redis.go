package storagetest

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Redis is a running Redis server with a connected client.
type Redis struct {
	Client    *redis.Client
	Addr      string
	container testcontainers.Container
}

// StartRedis starts redis:7-alpine and connects a client to it.
func StartRedis(ctx context.Context) (*Redis, error) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start redis container: %w", err)
	}

	r := &Redis{container: container}

	host, err := container.Host(ctx)
	if err != nil {
		r.Terminate(ctx)
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		r.Terminate(ctx)
		return nil, fmt.Errorf("get container port: %w", err)
	}
	r.Addr = fmt.Sprintf("%s:%s", host, port.Port())

	r.Client = redis.NewClient(&redis.Options{Addr: r.Addr})
	if err := r.Client.Ping(ctx).Err(); err != nil {
		r.Terminate(ctx)
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return r, nil
}

// Flush removes every key.
func (r *Redis) Flush(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}

// Terminate closes the client and removes the container.
func (r *Redis) Terminate(ctx context.Context) error {
	if r.Client != nil {
		r.Client.Close()
	}
	return r.container.Terminate(ctx)
}
