//go:build integration

package idempotency_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/sungwon/newsletter/internal/idempotency"
	"github.com/sungwon/newsletter/internal/storage"
	"github.com/sungwon/newsletter/internal/storage/storagetest"
)

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

type StoreSuite struct {
	suite.Suite

	pg    *storagetest.Postgres
	store *idempotency.Store
	actor uuid.UUID
}

func (s *StoreSuite) SetupSuite() {
	pg, err := storagetest.StartPostgres(context.Background())
	s.Require().NoError(err)
	s.pg = pg
	s.store = idempotency.NewStore(pg.DB.Pool)
}

func (s *StoreSuite) TearDownSuite() {
	s.NoError(s.pg.Terminate(context.Background()))
}

func (s *StoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.Truncate(ctx))
	user, err := storagetest.CreateUser(ctx, storage.New(s.pg.DB.Pool))
	s.Require().NoError(err)
	s.actor = user.UserID
}

func accepted(body string) idempotency.SavedResponse {
	return idempotency.SavedResponse{
		StatusCode: http.StatusAccepted,
		Headers:    []idempotency.HeaderPair{{Name: "Content-Type", Value: "application/json"}},
		Body:       []byte(body),
	}
}

func (s *StoreSuite) TestLookupMissing() {
	got, err := s.store.Lookup(context.Background(), s.actor, "missing")
	s.NoError(err)
	s.True(got.IsEmpty())
}

func (s *StoreSuite) TestSaveThenLookup() {
	ctx := context.Background()
	key := idempotency.Key("save-then-lookup")

	tx, err := s.pg.DB.Begin(ctx)
	s.Require().NoError(err)
	action, err := s.store.TryProcessing(ctx, tx, s.actor, key)
	s.Require().NoError(err)
	s.Equal(idempotency.StartProcessing, action.Kind)

	// Not visible to other sessions before commit.
	before, err := s.store.Lookup(ctx, s.actor, key)
	s.Require().NoError(err)
	s.True(before.IsEmpty())

	_, err = s.store.Save(ctx, tx, s.actor, key, accepted(`{"n":1}`))
	s.Require().NoError(err)
	s.Require().NoError(tx.Commit(ctx))

	after, err := s.store.Lookup(ctx, s.actor, key)
	s.Require().NoError(err)
	s.Require().True(after.IsPresent())
	s.Equal(accepted(`{"n":1}`), *after.Get())
}

func (s *StoreSuite) TestKeysAreScopedPerActor() {
	ctx := context.Background()
	other, err := storagetest.CreateUser(ctx, storage.New(s.pg.DB.Pool))
	s.Require().NoError(err)

	for _, actor := range []uuid.UUID{s.actor, other.UserID} {
		tx, err := s.pg.DB.Begin(ctx)
		s.Require().NoError(err)
		action, err := s.store.TryProcessing(ctx, tx, actor, "shared-key")
		s.Require().NoError(err)
		s.Equal(idempotency.StartProcessing, action.Kind)
		_, err = s.store.Save(ctx, tx, actor, "shared-key", accepted(actor.String()))
		s.Require().NoError(err)
		s.Require().NoError(tx.Commit(ctx))
	}

	got, err := s.store.Lookup(ctx, other.UserID, "shared-key")
	s.Require().NoError(err)
	s.Equal(other.UserID.String(), string(got.Get().Body))
}

func (s *StoreSuite) TestConcurrentDuplicateWaitsForWinner() {
	ctx := context.Background()
	key := idempotency.Key("concurrent")

	winner, err := s.pg.DB.Begin(ctx)
	s.Require().NoError(err)
	action, err := s.store.TryProcessing(ctx, winner, s.actor, key)
	s.Require().NoError(err)
	s.Require().Equal(idempotency.StartProcessing, action.Kind)

	type result struct {
		action idempotency.NextAction
		err    error
	}
	done := make(chan result, 1)
	go func() {
		tx, err := s.pg.DB.Begin(ctx)
		if err != nil {
			done <- result{err: err}
			return
		}
		defer tx.Rollback(ctx)
		a, err := s.store.TryProcessing(ctx, tx, s.actor, key)
		done <- result{action: a, err: err}
	}()

	select {
	case <-done:
		s.FailNow("duplicate should block while the winner is open")
	case <-time.After(300 * time.Millisecond):
	}

	_, err = s.store.Save(ctx, winner, s.actor, key, accepted(`{"winner":true}`))
	s.Require().NoError(err)
	s.Require().NoError(winner.Commit(ctx))

	select {
	case r := <-done:
		s.Require().NoError(r.err)
		s.Equal(idempotency.ReturnSavedResponse, r.action.Kind)
		s.Equal(accepted(`{"winner":true}`), r.action.Response)
	case <-time.After(10 * time.Second):
		s.FailNow("duplicate never unblocked")
	}
}

func (s *StoreSuite) TestRolledBackWinnerLetsDuplicateProceed() {
	ctx := context.Background()
	key := idempotency.Key("rolled-back")

	first, err := s.pg.DB.Begin(ctx)
	s.Require().NoError(err)
	_, err = s.store.TryProcessing(ctx, first, s.actor, key)
	s.Require().NoError(err)

	done := make(chan idempotency.ActionKind, 1)
	go func() {
		tx, err := s.pg.DB.Begin(ctx)
		if err != nil {
			close(done)
			return
		}
		defer tx.Rollback(ctx)
		a, err := s.store.TryProcessing(ctx, tx, s.actor, key)
		if err != nil {
			close(done)
			return
		}
		done <- a.Kind
	}()

	time.Sleep(200 * time.Millisecond)
	s.Require().NoError(first.Rollback(ctx))

	select {
	case kind, ok := <-done:
		s.Require().True(ok, "second TryProcessing failed")
		s.Equal(idempotency.StartProcessing, kind)
	case <-time.After(10 * time.Second):
		s.FailNow("duplicate never unblocked")
	}
}

func (s *StoreSuite) TestSaveWithoutClaimFails() {
	ctx := context.Background()
	tx, err := s.pg.DB.Begin(ctx)
	s.Require().NoError(err)
	defer tx.Rollback(ctx)

	_, err = s.store.Save(ctx, tx, s.actor, "never-claimed", accepted("{}"))
	s.Error(err)
}
