package notify

import (
	"context"
	"sync"
)

// Fanout shares one upstream subscription between many listeners, so a pool
// of workers holds a single Redis connection for wake-ups.
type Fanout struct {
	mu   sync.Mutex
	subs []chan struct{}
}

// NewFanout returns a Fanout with no subscribers.
func NewFanout() *Fanout {
	return &Fanout{}
}

// Run forwards every signal from src to all subscribers until src is closed
// or ctx is done, then closes every subscriber channel.
func (f *Fanout) Run(ctx context.Context, src <-chan struct{}) {
	defer f.closeAll()
	if src == nil {
		<-ctx.Done()
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-src:
			if !ok {
				return
			}
			f.broadcast()
		}
	}
}

// Subscribe registers a new listener. ctx is ignored; subscriber channels
// live as long as Run.
func (f *Fanout) Subscribe(context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch
}

func (f *Fanout) broadcast() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (f *Fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}
