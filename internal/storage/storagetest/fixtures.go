package storagetest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"syreclabs.com/go/faker"

	"github.com/sungwon/newsletter/internal/storage"
)

// CreateUser inserts a user with a random name and API key.
func CreateUser(ctx context.Context, q *storage.Queries) (storage.User, error) {
	id := uuid.New()
	return q.CreateUser(ctx, storage.CreateUserParams{
		UserID:       id,
		Username:     "user-" + id.String(),
		PasswordHash: "not-a-real-hash",
		ApiKey:       "key-" + id.String(),
	})
}

// CreateConfirmedSubscriber inserts a subscriber and marks it confirmed.
// The address is stored as given, without validation.
func CreateConfirmedSubscriber(ctx context.Context, q *storage.Queries, email string) error {
	id := uuid.New()
	if err := q.InsertSubscriber(ctx, storage.InsertSubscriberParams{
		ID:           id,
		Email:        email,
		Name:         faker.Name().Name(),
		SubscribedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("insert subscriber %s: %w", email, err)
	}
	return q.ConfirmSubscriber(ctx, id)
}

// CreatePendingSubscriber inserts a subscriber that never confirmed.
func CreatePendingSubscriber(ctx context.Context, q *storage.Queries, email string) error {
	return q.InsertSubscriber(ctx, storage.InsertSubscriberParams{
		ID:           uuid.New(),
		Email:        email,
		Name:         faker.Name().Name(),
		SubscribedAt: time.Now().UTC(),
	})
}

// FakeEmails returns n distinct addresses on example.com.
func FakeEmails(n int) []string {
	emails := make([]string, n)
	for i := range emails {
		emails[i] = fmt.Sprintf("%s.%d@example.com", faker.NumerifyAndLetterify("reader-??##"), i)
	}
	return emails
}
