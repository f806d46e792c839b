package storage

import (
	"context"

	"github.com/google/uuid"
)

const createUser = `
INSERT INTO users (user_id, username, password_hash, api_key)
VALUES ($1, $2, $3, $4)
RETURNING user_id, username, password_hash, api_key, created_at
`

type CreateUserParams struct {
	UserID       uuid.UUID
	Username     string
	PasswordHash string
	ApiKey       string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser, arg.UserID, arg.Username, arg.PasswordHash, arg.ApiKey)
	var u User
	err := row.Scan(&u.UserID, &u.Username, &u.PasswordHash, &u.ApiKey, &u.CreatedAt)
	return u, err
}

const getUserByUsername = `
SELECT user_id, username, password_hash, api_key, created_at
FROM users
WHERE username = $1
`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByUsername, username)
	var u User
	err := row.Scan(&u.UserID, &u.Username, &u.PasswordHash, &u.ApiKey, &u.CreatedAt)
	return u, err
}

const getUserByAPIKey = `
SELECT user_id, username, password_hash, api_key, created_at
FROM users
WHERE api_key = $1
`

func (q *Queries) GetUserByAPIKey(ctx context.Context, apiKey string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByAPIKey, apiKey)
	var u User
	err := row.Scan(&u.UserID, &u.Username, &u.PasswordHash, &u.ApiKey, &u.CreatedAt)
	return u, err
}

const updateUserPassword = `
UPDATE users SET password_hash = $2 WHERE user_id = $1
`

func (q *Queries) UpdateUserPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	_, err := q.db.Exec(ctx, updateUserPassword, userID, passwordHash)
	return err
}
