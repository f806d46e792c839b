package worker

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sungwon/newsletter/internal/storage"
)

// Claim is a delivery task locked by an open transaction. Exactly one of
// Complete or Release must be called.
type Claim interface {
	Task() storage.DeliveryTask
	// Issue loads the content of the claimed task's issue.
	Issue(ctx context.Context) (storage.NewsletterIssue, error)
	// Complete deletes the task and commits, releasing the lock.
	Complete(ctx context.Context) error
	// Release rolls back, leaving the task in the queue.
	Release(ctx context.Context) error
}

// Queue hands out delivery tasks to workers.
type Queue interface {
	// Claim locks one unclaimed task. ok is false when every task is either
	// gone or locked by another worker.
	Claim(ctx context.Context) (claim Claim, ok bool, err error)
	// Depth reports the number of tasks still in the queue.
	Depth(ctx context.Context) (int64, error)
}

// PostgresQueue claims rows of issue_delivery_queue with FOR UPDATE SKIP
// LOCKED, one transaction per claim.
type PostgresQueue struct {
	db *storage.DB
}

// NewPostgresQueue returns a queue backed by db.
func NewPostgresQueue(db *storage.DB) *PostgresQueue {
	return &PostgresQueue{db: db}
}

func (q *PostgresQueue) Claim(ctx context.Context) (Claim, bool, error) {
	tx, err := q.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}

	queries := storage.New(tx)
	maybeTask, err := queries.DequeueDeliveryTask(ctx)
	if err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return nil, false, fmt.Errorf("dequeue task: %w", err)
	}
	if maybeTask.IsEmpty() {
		_ = tx.Rollback(ctx)
		return nil, false, nil
	}

	c := &pgClaim{tx: tx, queries: queries}
	maybeTask.IfPresent(func(t *storage.DeliveryTask) { c.task = *t })
	return c, true, nil
}

func (q *PostgresQueue) Depth(ctx context.Context) (int64, error) {
	return storage.New(q.db.Pool).CountDeliveryTasks(ctx)
}

type pgClaim struct {
	tx      pgx.Tx
	queries *storage.Queries
	task    storage.DeliveryTask
}

func (c *pgClaim) Task() storage.DeliveryTask {
	return c.task
}

func (c *pgClaim) Issue(ctx context.Context) (storage.NewsletterIssue, error) {
	issue, err := c.queries.GetNewsletterIssue(ctx, c.task.NewsletterIssueID)
	if err != nil {
		return storage.NewsletterIssue{}, fmt.Errorf("get issue %s: %w", c.task.NewsletterIssueID, err)
	}
	return issue, nil
}

func (c *pgClaim) Complete(ctx context.Context) error {
	if err := c.queries.DeleteDeliveryTask(ctx, c.task.NewsletterIssueID, c.task.SubscriberEmail); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if err := c.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit task: %w", err)
	}
	return nil
}

func (c *pgClaim) Release(ctx context.Context) error {
	return c.tx.Rollback(ctx)
}

