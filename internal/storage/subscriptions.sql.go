package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const insertSubscriber = `
INSERT INTO subscriptions (id, email, name, subscribed_at, status)
VALUES ($1, $2, $3, $4, 'pending_confirmation')
`

type InsertSubscriberParams struct {
	ID           uuid.UUID
	Email        string
	Name         string
	SubscribedAt time.Time
}

func (q *Queries) InsertSubscriber(ctx context.Context, arg InsertSubscriberParams) error {
	_, err := q.db.Exec(ctx, insertSubscriber, arg.ID, arg.Email, arg.Name, arg.SubscribedAt)
	return err
}

const getSubscriberByEmail = `
SELECT id, email, name, subscribed_at, status
FROM subscriptions
WHERE email = $1
`

func (q *Queries) GetSubscriberByEmail(ctx context.Context, email string) (Subscription, error) {
	row := q.db.QueryRow(ctx, getSubscriberByEmail, email)
	var s Subscription
	err := row.Scan(&s.ID, &s.Email, &s.Name, &s.SubscribedAt, &s.Status)
	return s, err
}

const storeSubscriptionToken = `
INSERT INTO subscription_tokens (subscription_token, subscriber_id)
VALUES ($1, $2)
`

func (q *Queries) StoreSubscriptionToken(ctx context.Context, token string, subscriberID uuid.UUID) error {
	_, err := q.db.Exec(ctx, storeSubscriptionToken, token, subscriberID)
	return err
}

const getSubscriberIDFromToken = `
SELECT subscriber_id FROM subscription_tokens WHERE subscription_token = $1
`

func (q *Queries) GetSubscriberIDFromToken(ctx context.Context, token string) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, getSubscriberIDFromToken, token)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}

const confirmSubscriber = `
UPDATE subscriptions SET status = 'confirmed' WHERE id = $1
`

func (q *Queries) ConfirmSubscriber(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, confirmSubscriber, id)
	return err
}

const listConfirmedSubscriberEmails = `
SELECT email FROM subscriptions WHERE status = 'confirmed'
`

func (q *Queries) ListConfirmedSubscriberEmails(ctx context.Context) ([]string, error) {
	rows, err := q.db.Query(ctx, listConfirmedSubscriberEmails)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return emails, nil
}
