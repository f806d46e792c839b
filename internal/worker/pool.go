package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/newsletter/internal/config"
	"github.com/sungwon/newsletter/internal/metrics"
	"github.com/sungwon/newsletter/internal/notify"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	depthReportInterval    = 15 * time.Second
)

// Pool runs cfg.Count competing workers against one Queue. Workers share a
// single wake-up subscription through a notify.Fanout.
type Pool struct {
	queue    Queue
	sender   EmailSender
	listener notify.Listener
	cfg      config.WorkerConfig
	log      zerolog.Logger
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewPool creates a Pool. listener may be notify.Noop{}.
func NewPool(queue Queue, sender EmailSender, listener notify.Listener, cfg config.WorkerConfig, log zerolog.Logger) *Pool {
	if cfg.Count <= 0 {
		cfg.Count = 1
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Pool{
		queue:    queue,
		sender:   sender,
		listener: listener,
		cfg:      cfg,
		log:      log,
	}
}

// Start launches the configured number of worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	fanout := notify.NewFanout()
	wakes := make([]<-chan struct{}, p.cfg.Count)
	for i := range wakes {
		wakes[i] = fanout.Subscribe(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fanout.Run(ctx, p.listener.Subscribe(ctx))
	}()

	for i := range p.cfg.Count {
		w := New(p.queue, p.sender, wakes[i], p.cfg, p.log.With().Str("worker", fmt.Sprintf("worker-%d", i)).Logger())
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			_ = w.Run(ctx)
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reportDepth(ctx)
	}()

	p.log.Info().
		Int("worker_count", p.cfg.Count).
		Dur("empty_queue_delay", p.cfg.EmptyQueueDelay).
		Msg("worker pool started")
}

// Stop signals all workers to stop and waits for in-flight iterations to
// finish, up to the shutdown timeout or until ctx is done.
func (p *Pool) Stop(ctx context.Context) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info().Msg("worker pool stopped gracefully")
		return nil
	case <-time.After(p.cfg.ShutdownTimeout):
		p.log.Warn().Msg("worker pool shutdown timed out")
		return fmt.Errorf("shutdown timed out after %s", p.cfg.ShutdownTimeout)
	case <-ctx.Done():
		p.log.Warn().Msg("worker pool shutdown interrupted")
		return ctx.Err()
	}
}

func (p *Pool) reportDepth(ctx context.Context) {
	ticker := time.NewTicker(depthReportInterval)
	defer ticker.Stop()

	for {
		if depth, err := p.queue.Depth(ctx); err == nil {
			metrics.DeliveryQueueDepth.Set(float64(depth))
		} else if ctx.Err() == nil {
			p.log.Warn().Err(err).Msg("failed to read delivery queue depth")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
