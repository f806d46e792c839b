package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/moveaxlab/go-optional"
)

const enqueueDeliveryTasks = `
INSERT INTO issue_delivery_queue (newsletter_issue_id, subscriber_email)
SELECT $1, email FROM unnest($2::text[]) AS email
ON CONFLICT DO NOTHING
`

// EnqueueDeliveryTasks inserts one delivery task per recipient for the issue
// and returns how many rows were created. Duplicate recipients collapse into
// a single task.
func (q *Queries) EnqueueDeliveryTasks(ctx context.Context, issueID uuid.UUID, recipients []string) (int64, error) {
	if len(recipients) == 0 {
		return 0, nil
	}
	tag, err := q.db.Exec(ctx, enqueueDeliveryTasks, issueID, recipients)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Rows locked by another open transaction are skipped rather than waited
// on, so concurrent workers never claim the same task.
const dequeueDeliveryTask = `
SELECT newsletter_issue_id, subscriber_email
FROM issue_delivery_queue
FOR UPDATE
SKIP LOCKED
LIMIT 1
`

// DequeueDeliveryTask locks and returns one pending task. It must run inside
// a transaction: the lock is held until that transaction ends.
func (q *Queries) DequeueDeliveryTask(ctx context.Context) (optional.Optional[DeliveryTask], error) {
	row := q.db.QueryRow(ctx, dequeueDeliveryTask)
	var t DeliveryTask
	if err := row.Scan(&t.NewsletterIssueID, &t.SubscriberEmail); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return optional.Empty[DeliveryTask](), nil
		}
		return optional.Empty[DeliveryTask](), err
	}
	return optional.Of(&t), nil
}

const deleteDeliveryTask = `
DELETE FROM issue_delivery_queue
WHERE newsletter_issue_id = $1 AND subscriber_email = $2
`

func (q *Queries) DeleteDeliveryTask(ctx context.Context, issueID uuid.UUID, subscriberEmail string) error {
	_, err := q.db.Exec(ctx, deleteDeliveryTask, issueID, subscriberEmail)
	return err
}

const countDeliveryTasks = `SELECT count(*) FROM issue_delivery_queue`

func (q *Queries) CountDeliveryTasks(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countDeliveryTasks)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countDeliveryTasksForIssue = `
SELECT count(*) FROM issue_delivery_queue WHERE newsletter_issue_id = $1
`

func (q *Queries) CountDeliveryTasksForIssue(ctx context.Context, issueID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countDeliveryTasksForIssue, issueID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
