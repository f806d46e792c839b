package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// SubscriptionStatus is the lifecycle state of a subscription row.
type SubscriptionStatus string

const (
	SubscriptionStatusPendingConfirmation SubscriptionStatus = "pending_confirmation"
	SubscriptionStatusConfirmed           SubscriptionStatus = "confirmed"
)

// User is an admin allowed to publish newsletter issues.
type User struct {
	UserID       uuid.UUID
	Username     string
	PasswordHash string
	ApiKey       string
	CreatedAt    time.Time
}

// Subscription is a newsletter subscriber.
type Subscription struct {
	ID           uuid.UUID
	Email        string
	Name         string
	SubscribedAt time.Time
	Status       SubscriptionStatus
}

// NewsletterIssue is the immutable content of one published issue.
type NewsletterIssue struct {
	NewsletterIssueID uuid.UUID
	Title             string
	TextContent       string
	HtmlContent       string
	PublishedAt       time.Time
}

// DeliveryTask is one pending (issue, recipient) pair in the delivery queue.
type DeliveryTask struct {
	NewsletterIssueID uuid.UUID
	SubscriberEmail   string
}

// Idempotency is a row of the idempotency table. The response columns are
// NULL only while the creating transaction is still open.
type Idempotency struct {
	UserID             uuid.UUID
	IdempotencyKey     string
	ResponseStatusCode pgtype.Int2
	ResponseHeaders    []byte
	ResponseBody       []byte
	CreatedAt          time.Time
}
