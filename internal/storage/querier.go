package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/moveaxlab/go-optional"
)

// Querier lists every statement Queries implements, so handlers can be
// tested against an in-memory fake.
type Querier interface {
	// Issues and delivery queue
	InsertNewsletterIssue(ctx context.Context, arg InsertNewsletterIssueParams) error
	GetNewsletterIssue(ctx context.Context, id uuid.UUID) (NewsletterIssue, error)
	CountNewsletterIssues(ctx context.Context) (int64, error)
	EnqueueDeliveryTasks(ctx context.Context, issueID uuid.UUID, recipients []string) (int64, error)
	DequeueDeliveryTask(ctx context.Context) (optional.Optional[DeliveryTask], error)
	DeleteDeliveryTask(ctx context.Context, issueID uuid.UUID, subscriberEmail string) error
	CountDeliveryTasks(ctx context.Context) (int64, error)
	CountDeliveryTasksForIssue(ctx context.Context, issueID uuid.UUID) (int64, error)

	// Idempotency
	InsertIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (int64, error)
	GetSavedResponse(ctx context.Context, userID uuid.UUID, key string) (Idempotency, error)
	SaveResponse(ctx context.Context, arg SaveResponseParams) (int64, error)

	// Subscriptions
	InsertSubscriber(ctx context.Context, arg InsertSubscriberParams) error
	GetSubscriberByEmail(ctx context.Context, email string) (Subscription, error)
	StoreSubscriptionToken(ctx context.Context, token string, subscriberID uuid.UUID) error
	GetSubscriberIDFromToken(ctx context.Context, token string) (uuid.UUID, error)
	ConfirmSubscriber(ctx context.Context, id uuid.UUID) error
	ListConfirmedSubscriberEmails(ctx context.Context) ([]string, error)

	// Users
	CreateUser(ctx context.Context, arg CreateUserParams) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByAPIKey(ctx context.Context, apiKey string) (User, error)
	UpdateUserPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

var _ Querier = (*Queries)(nil)
