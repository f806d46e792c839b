package idempotency

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/moveaxlab/go-optional"

	"github.com/sungwon/newsletter/internal/storage"
)

// ActionKind tells the caller of TryProcessing what to do next.
type ActionKind int

const (
	// StartProcessing means the caller now owns the key for the lifetime of
	// its transaction and must perform the work and Save the response.
	StartProcessing ActionKind = iota
	// ReturnSavedResponse means a concurrent request with the same key
	// committed first; the caller must answer with its response.
	ReturnSavedResponse
)

// NextAction is the result of TryProcessing. Response is set only for
// ReturnSavedResponse.
type NextAction struct {
	Kind     ActionKind
	Response SavedResponse
}

// ErrResponseMissing means a committed row had no saved response. Rows are
// only ever committed with a response, so this indicates corruption.
var ErrResponseMissing = errors.New("idempotency record has no saved response")

// Store reads and writes idempotency records. Lookup runs on the pool it
// was built with; TryProcessing and Save run on the caller's transaction.
type Store struct {
	db storage.DBTX
}

// NewStore returns a Store reading committed records through db.
func NewStore(db storage.DBTX) *Store {
	return &Store{db: db}
}

// Lookup returns the saved response for (actor, key) if a request with that
// key has already committed.
func (s *Store) Lookup(ctx context.Context, actor uuid.UUID, key Key) (optional.Optional[SavedResponse], error) {
	return lookup(ctx, storage.New(s.db), actor, key)
}

// TryProcessing claims (actor, key) inside tx. If another transaction holds
// the same key, the insert blocks until that transaction finishes: a commit
// yields ReturnSavedResponse with the winner's response, a rollback lets
// this caller claim the key.
func (s *Store) TryProcessing(ctx context.Context, tx storage.DBTX, actor uuid.UUID, key Key) (NextAction, error) {
	q := storage.New(tx)

	inserted, err := q.InsertIdempotencyKey(ctx, actor, key.String())
	if err != nil {
		return NextAction{}, fmt.Errorf("insert idempotency key: %w", err)
	}
	if inserted > 0 {
		return NextAction{Kind: StartProcessing}, nil
	}

	saved, err := lookup(ctx, q, actor, key)
	if err != nil {
		return NextAction{}, err
	}
	if saved.IsEmpty() {
		return NextAction{}, fmt.Errorf("key %q for %s: %w", key, actor, ErrResponseMissing)
	}
	action := NextAction{Kind: ReturnSavedResponse}
	saved.IfPresent(func(r *SavedResponse) { action.Response = *r })
	return action, nil
}

// Save stores resp under (actor, key) inside tx. The key must have been
// claimed by TryProcessing in the same transaction.
func (s *Store) Save(ctx context.Context, tx storage.DBTX, actor uuid.UUID, key Key, resp SavedResponse) (SavedResponse, error) {
	headers, err := encodeHeaders(resp.Headers)
	if err != nil {
		return SavedResponse{}, fmt.Errorf("encode headers: %w", err)
	}

	updated, err := storage.New(tx).SaveResponse(ctx, storage.SaveResponseParams{
		UserID:             actor,
		IdempotencyKey:     key.String(),
		ResponseStatusCode: int16(resp.StatusCode),
		ResponseHeaders:    headers,
		ResponseBody:       resp.Body,
	})
	if err != nil {
		return SavedResponse{}, fmt.Errorf("save idempotent response: %w", err)
	}
	if updated == 0 {
		return SavedResponse{}, fmt.Errorf("save idempotent response: key %q was not claimed", key)
	}
	return resp, nil
}

func lookup(ctx context.Context, q *storage.Queries, actor uuid.UUID, key Key) (optional.Optional[SavedResponse], error) {
	row, err := q.GetSavedResponse(ctx, actor, key.String())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return optional.Empty[SavedResponse](), nil
		}
		return optional.Empty[SavedResponse](), fmt.Errorf("get saved response: %w", err)
	}
	if !row.ResponseStatusCode.Valid {
		return optional.Empty[SavedResponse](), nil
	}

	headers, err := decodeHeaders(row.ResponseHeaders)
	if err != nil {
		return optional.Empty[SavedResponse](), err
	}
	resp := SavedResponse{
		StatusCode: int(row.ResponseStatusCode.Int16),
		Headers:    headers,
		Body:       row.ResponseBody,
	}
	return optional.Of(&resp), nil
}
