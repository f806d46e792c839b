// Package worker drains the delivery queue: each iteration claims one task,
// sends its email at most once and removes it in the same transaction.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/newsletter/internal/config"
	"github.com/sungwon/newsletter/internal/domain"
	"github.com/sungwon/newsletter/internal/metrics"
	"github.com/sungwon/newsletter/internal/provider"
	"github.com/sungwon/newsletter/internal/storage"
)

// EmailSender delivers one email. Errors are logged by the worker and never
// retried.
type EmailSender interface {
	SendEmail(ctx context.Context, recipient domain.SubscriberEmail, subject, htmlBody, textBody string) error
}

// ExecutionOutcome is the result of a successful TryExecuteTask.
type ExecutionOutcome int

const (
	// TaskCompleted means a task was claimed and removed from the queue,
	// whether or not its email went out.
	TaskCompleted ExecutionOutcome = iota
	// EmptyQueue means no claimable task was found.
	EmptyQueue
)

func (o ExecutionOutcome) String() string {
	switch o {
	case TaskCompleted:
		return "task_completed"
	case EmptyQueue:
		return "empty_queue"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

const (
	defaultEmptyQueueDelay = 10 * time.Second
	defaultErrorDelay      = 1 * time.Second
)

// Worker runs the claim-send-delete loop against a Queue.
type Worker struct {
	queue  Queue
	sender EmailSender
	wake   <-chan struct{}
	cfg    config.WorkerConfig
	log    zerolog.Logger
}

// New creates a Worker. wake may be nil; a signal on it cuts an empty-queue
// wait short.
func New(queue Queue, sender EmailSender, wake <-chan struct{}, cfg config.WorkerConfig, log zerolog.Logger) *Worker {
	if cfg.EmptyQueueDelay <= 0 {
		cfg.EmptyQueueDelay = defaultEmptyQueueDelay
	}
	if cfg.ErrorDelay <= 0 {
		cfg.ErrorDelay = defaultErrorDelay
	}
	return &Worker{
		queue:  queue,
		sender: sender,
		wake:   wake,
		cfg:    cfg,
		log:    log,
	}
}

// TryExecuteTask performs one iteration. An error means nothing was
// committed: the claimed task, if any, stays in the queue.
func (w *Worker) TryExecuteTask(ctx context.Context) (ExecutionOutcome, error) {
	claim, ok, err := w.queue.Claim(ctx)
	if err != nil {
		return 0, fmt.Errorf("claim task: %w", err)
	}
	if !ok {
		return EmptyQueue, nil
	}

	completed := false
	defer func() {
		if !completed {
			if err := claim.Release(context.WithoutCancel(ctx)); err != nil {
				w.log.Warn().Err(err).Msg("failed to release claimed task")
			}
		}
	}()

	task := claim.Task()
	log := w.log.With().
		Str("newsletter_issue_id", task.NewsletterIssueID.String()).
		Str("subscriber_email", task.SubscriberEmail).
		Logger()

	issue, err := claim.Issue(ctx)
	if err != nil {
		return 0, err
	}

	recipient, err := domain.ParseSubscriberEmail(task.SubscriberEmail)
	if err != nil {
		log.Error().Err(err).Msg("skipping a confirmed subscriber: stored contact details are invalid")
		metrics.DeliveryTasksProcessedTotal.WithLabelValues("invalid_recipient").Inc()
	} else if err := w.send(ctx, recipient, issue); err != nil {
		// Rejected and failed sends differ only in how they are reported:
		// neither is retried.
		permanent := provider.IsPermanent(err)
		outcome := "send_failed"
		if permanent {
			outcome = "send_rejected"
		}
		log.Error().Err(err).Bool("permanent", permanent).Msg("failed to deliver issue to a confirmed subscriber, skipping")
		metrics.DeliveryTasksProcessedTotal.WithLabelValues(outcome).Inc()
	} else {
		log.Info().Msg("issue delivered")
		metrics.DeliveryTasksProcessedTotal.WithLabelValues("sent").Inc()
	}

	if err := claim.Complete(ctx); err != nil {
		return 0, err
	}
	completed = true
	return TaskCompleted, nil
}

// send bounds only the transport call by SendTimeout. The claim stays on the
// caller's context, so a send that runs out of time still gets its task
// deleted and committed.
func (w *Worker) send(ctx context.Context, to domain.SubscriberEmail, issue storage.NewsletterIssue) error {
	if w.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.SendTimeout)
		defer cancel()
	}
	return w.sender.SendEmail(ctx, to, issue.Title, issue.HtmlContent, issue.TextContent)
}

// Run loops until ctx is cancelled and then returns ctx.Err(). Cancellation
// is observed between iterations only: an iteration in progress runs to the
// end on a detached context, with its send bounded by SendTimeout.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Msg("worker started")
	defer w.log.Info().Msg("worker stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome, err := w.iterate(ctx)
		switch {
		case err != nil:
			metrics.WorkerIterationsTotal.WithLabelValues("error").Inc()
			w.log.Error().Err(err).Msg("delivery iteration failed")
			w.sleep(ctx, w.cfg.ErrorDelay, false)
		case outcome == EmptyQueue:
			metrics.WorkerIterationsTotal.WithLabelValues(outcome.String()).Inc()
			w.sleep(ctx, w.cfg.EmptyQueueDelay, true)
		default:
			metrics.WorkerIterationsTotal.WithLabelValues(outcome.String()).Inc()
		}
	}
}

func (w *Worker) iterate(ctx context.Context) (ExecutionOutcome, error) {
	start := time.Now()
	defer func() {
		metrics.WorkerIterationDuration.Observe(time.Since(start).Seconds())
	}()

	return w.TryExecuteTask(context.WithoutCancel(ctx))
}

// sleep waits for d, ctx cancellation or, when wakeable, a wake-up signal.
func (w *Worker) sleep(ctx context.Context, d time.Duration, wakeable bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	var wake <-chan struct{}
	if wakeable {
		wake = w.wake
	}

	select {
	case <-ctx.Done():
	case <-timer.C:
	case _, ok := <-wake:
		if !ok {
			w.wake = nil
		}
	}
}
