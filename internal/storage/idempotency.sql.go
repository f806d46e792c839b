package storage

import (
	"context"

	"github.com/google/uuid"
)

const insertIdempotencyKey = `
INSERT INTO idempotency (user_id, idempotency_key, created_at)
VALUES ($1, $2, now())
ON CONFLICT DO NOTHING
`

// InsertIdempotencyKey claims (userID, key) for the calling transaction.
// When another open transaction already inserted the same pair, Postgres
// blocks this statement until that transaction ends; it then reports zero
// rows if the other side committed.
func (q *Queries) InsertIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (int64, error) {
	tag, err := q.db.Exec(ctx, insertIdempotencyKey, userID, key)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const getSavedResponse = `
SELECT user_id, idempotency_key, response_status_code, response_headers, response_body, created_at
FROM idempotency
WHERE user_id = $1 AND idempotency_key = $2
`

func (q *Queries) GetSavedResponse(ctx context.Context, userID uuid.UUID, key string) (Idempotency, error) {
	row := q.db.QueryRow(ctx, getSavedResponse, userID, key)
	var i Idempotency
	err := row.Scan(
		&i.UserID,
		&i.IdempotencyKey,
		&i.ResponseStatusCode,
		&i.ResponseHeaders,
		&i.ResponseBody,
		&i.CreatedAt,
	)
	return i, err
}

const saveResponse = `
UPDATE idempotency
SET response_status_code = $3,
    response_headers = $4,
    response_body = $5
WHERE user_id = $1 AND idempotency_key = $2
`

type SaveResponseParams struct {
	UserID             uuid.UUID
	IdempotencyKey     string
	ResponseStatusCode int16
	ResponseHeaders    []byte
	ResponseBody       []byte
}

// SaveResponse fills in the response of a row claimed with
// InsertIdempotencyKey and returns the number of rows updated.
func (q *Queries) SaveResponse(ctx context.Context, arg SaveResponseParams) (int64, error) {
	tag, err := q.db.Exec(ctx, saveResponse,
		arg.UserID,
		arg.IdempotencyKey,
		arg.ResponseStatusCode,
		arg.ResponseHeaders,
		arg.ResponseBody,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
