// Package notify lets the publish path wake idle delivery workers instead
// of waiting for their next poll. Signals carry no payload and may be lost;
// the outbox table stays the only source of work.
package notify

import "context"

// DeliveryChannel is the pub/sub channel used for wake-up signals.
const DeliveryChannel = "newsletter:delivery"

// Notifier announces that new delivery tasks were committed.
type Notifier interface {
	Notify(ctx context.Context) error
}

// Listener delivers wake-up signals. The returned channel is closed when
// ctx is done. A nil channel means signals are never delivered.
type Listener interface {
	Subscribe(ctx context.Context) <-chan struct{}
}

// Noop is used when no signalling backend is configured.
type Noop struct{}

func (Noop) Notify(context.Context) error { return nil }

func (Noop) Subscribe(context.Context) <-chan struct{} { return nil }
