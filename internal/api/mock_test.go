package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/sungwon/newsletter/internal/auth"
	"github.com/sungwon/newsletter/internal/config"
	"github.com/sungwon/newsletter/internal/domain"
	"github.com/sungwon/newsletter/internal/idempotency"
	"github.com/sungwon/newsletter/internal/newsletter"
	"github.com/sungwon/newsletter/internal/storage"
	"github.com/sungwon/newsletter/internal/subscription"
)

const (
	testAPIKey   = "nlk_test"
	testPassword = "correct horse battery"
)

// mockQuerier implements storage.Querier for testing. Only the user
// statements are used by handlers; anything else panics.
type mockQuerier struct {
	storage.Querier

	mu    sync.Mutex
	users map[string]storage.User
}

func newMockQuerier(users ...storage.User) *mockQuerier {
	m := &mockQuerier{users: make(map[string]storage.User)}
	for _, u := range users {
		m.users[u.Username] = u
	}
	return m
}

func (m *mockQuerier) GetUserByUsername(_ context.Context, username string) (storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	return storage.User{}, pgx.ErrNoRows
}

func (m *mockQuerier) GetUserByAPIKey(_ context.Context, apiKey string) (storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ApiKey == apiKey {
			return u, nil
		}
	}
	return storage.User{}, pgx.ErrNoRows
}

func (m *mockQuerier) UpdateUserPassword(_ context.Context, userID uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, u := range m.users {
		if u.UserID == userID {
			u.PasswordHash = hash
			m.users[name] = u
			return nil
		}
	}
	return errors.New("user not found")
}

var (
	adminOnce sync.Once
	adminUser storage.User
)

// testAdmin returns a user with testPassword. bcrypt is slow, so the hash
// is computed once per test binary.
func testAdmin(t *testing.T) storage.User {
	t.Helper()
	adminOnce.Do(func() {
		hash, err := auth.HashPassword(testPassword)
		if err != nil {
			panic(err)
		}
		adminUser = storage.User{
			UserID:       uuid.New(),
			Username:     "admin",
			PasswordHash: hash,
			ApiKey:       testAPIKey,
			CreatedAt:    time.Now(),
		}
	})
	return adminUser
}

type publishCall struct {
	actor uuid.UUID
	key   string
	issue newsletter.Issue
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
	resp  idempotency.SavedResponse
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, actor uuid.UUID, key string, issue newsletter.Issue) (idempotency.SavedResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, publishCall{actor: actor, key: key, issue: issue})
	return f.resp, f.err
}

type fakeSubscriptions struct {
	subscribed []domain.NewSubscriber
	confirmed  []string
	err        error
}

func (f *fakeSubscriptions) Subscribe(_ context.Context, sub domain.NewSubscriber) error {
	if f.err != nil {
		return f.err
	}
	f.subscribed = append(f.subscribed, sub)
	return nil
}

func (f *fakeSubscriptions) Confirm(_ context.Context, token string) error {
	if f.err != nil {
		return f.err
	}
	if token != "known" {
		return subscription.ErrUnknownToken
	}
	f.confirmed = append(f.confirmed, token)
	return nil
}

type testDeps struct {
	queries *mockQuerier
	pub     *fakePublisher
	subs    *fakeSubscriptions
	jwt     *auth.JWTService
	ping    error
}

func newTestDeps(t *testing.T) *testDeps {
	return &testDeps{
		queries: newMockQuerier(testAdmin(t)),
		pub:     &fakePublisher{},
		subs:    &fakeSubscriptions{},
		jwt: auth.NewJWTService(config.AuthConfig{
			SigningKey:        "test-secret-key-at-least-32-chars!",
			AccessTokenExpiry: time.Minute,
		}),
	}
}

func (d *testDeps) router() RouterConfig {
	return RouterConfig{
		Queries:       d.queries,
		Readiness:     map[string]Pinger{"database": PingFunc(func(context.Context) error { return d.ping })},
		Publisher:     d.pub,
		Subscriptions: d.subs,
		JWTService:    d.jwt,
		RateLimiter:   auth.NewRateLimiter(nil, config.AuthConfig{}),
		Log:           zerolog.Nop(),
	}
}
