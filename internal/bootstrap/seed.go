// Package bootstrap provides startup-time initialization routines
// such as seeding the admin account allowed to publish.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/sungwon/newsletter/internal/auth"
	"github.com/sungwon/newsletter/internal/storage"
)

// AdminStore is the subset of storage.Querier needed to seed the admin.
type AdminStore interface {
	GetUserByUsername(ctx context.Context, username string) (storage.User, error)
	CreateUser(ctx context.Context, arg storage.CreateUserParams) (storage.User, error)
	UpdateUserPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// SeedAdmin ensures an admin user named username exists. It is idempotent:
// an existing user keeps its API key, and its password is reset to
// password when one is given.
func SeedAdmin(ctx context.Context, users AdminStore, log zerolog.Logger, username, password string) (storage.User, error) {
	if username == "" {
		return storage.User{}, errors.New("admin username is required")
	}

	existing, err := users.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return storage.User{}, fmt.Errorf("get admin: %w", err)
	}

	if err == nil {
		log.Info().Str("username", username).Msg("admin already exists, skipping seed")
		if password != "" {
			if err := updateAdminPassword(ctx, users, existing.UserID, password); err != nil {
				return storage.User{}, err
			}
			log.Info().Str("username", username).Msg("admin password updated from configuration")
		}
		return existing, nil
	}

	if password == "" {
		return storage.User{}, errors.New("admin password is required to create the admin user")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return storage.User{}, err
	}
	apiKey, err := auth.GenerateAPIKey()
	if err != nil {
		return storage.User{}, err
	}

	user, err := users.CreateUser(ctx, storage.CreateUserParams{
		UserID:       uuid.New(),
		Username:     username,
		PasswordHash: hash,
		ApiKey:       apiKey,
	})
	if err != nil {
		return storage.User{}, fmt.Errorf("create admin: %w", err)
	}

	log.Info().
		Str("user_id", user.UserID.String()).
		Str("username", username).
		Msg("admin seeded successfully")
	return user, nil
}

// updateAdminPassword hashes and stores a new password for the admin.
func updateAdminPassword(ctx context.Context, users AdminStore, userID uuid.UUID, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := users.UpdateUserPassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update admin password: %w", err)
	}
	return nil
}
