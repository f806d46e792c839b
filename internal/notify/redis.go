package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisNotifier publishes and receives wake-up signals over Redis pub/sub.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	log     zerolog.Logger
}

// NewRedisNotifier returns a notifier on DeliveryChannel.
func NewRedisNotifier(client *redis.Client, log zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: DeliveryChannel,
		log:     log,
	}
}

// Notify publishes a single wake-up signal.
func (n *RedisNotifier) Notify(ctx context.Context) error {
	if err := n.client.Publish(ctx, n.channel, "wake").Err(); err != nil {
		return fmt.Errorf("publish wake-up: %w", err)
	}
	return nil
}

// Subscribe forwards every message on the channel as one signal. Bursts
// collapse into a single pending signal when the reader is busy.
func (n *RedisNotifier) Subscribe(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	pubsub := n.client.Subscribe(ctx, n.channel)

	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					n.log.Warn().Str("channel", n.channel).Msg("wake-up subscription closed")
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out
}
