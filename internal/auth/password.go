package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/sungwon/newsletter/internal/storage"
)

const (
	bcryptCost = 12
	// bcrypt only reads 72 bytes; x/crypto rejects anything longer.
	bcryptMaxInput = 72

	MinPasswordLength = 12
	MaxPasswordLength = 128
)

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password, so callers cannot tell which one failed.
	ErrInvalidCredentials = errors.New("invalid username or password")

	ErrPasswordMismatch = errors.New("new passwords do not match")
	ErrPasswordTooShort = errors.New("the new password is too short")
	ErrPasswordTooLong  = errors.New("the new password is too long")
)

// fallbackHash is compared against when the username does not exist, so an
// unknown user costs the same bcrypt work as a wrong password.
const fallbackHash = "$2a$12$Yq0xY1BvSDBPMB2l/1Rrf.R9o0ePjCyiDNxhQxNRyzhrnVdgGWQFK"

// CheckNewPassword applies the admin password policy: both entries equal
// and 12 to 128 bytes long.
func CheckNewPassword(password, confirmation string) error {
	switch {
	case password != confirmation:
		return ErrPasswordMismatch
	case len(password) < MinPasswordLength:
		return ErrPasswordTooShort
	case len(password) > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}

// bcryptInput maps passwords longer than bcrypt accepts to a fixed-size
// digest. Shorter passwords are used as is, so existing hashes still verify.
func bcryptInput(password string) []byte {
	if len(password) <= bcryptMaxInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.RawStdEncoding.EncodeToString(sum[:]))
}

// HashPassword returns a cost-12 bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword returns nil when password matches hash.
func VerifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password))
}

// UserByUsername is the subset of storage.Querier needed to check a login.
type UserByUsername interface {
	GetUserByUsername(ctx context.Context, username string) (storage.User, error)
}

// ValidateCredentials returns the user when password matches the stored
// hash for username.
func ValidateCredentials(ctx context.Context, users UserByUsername, username, password string) (storage.User, error) {
	user, err := users.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_ = VerifyPassword(fallbackHash, password)
		return storage.User{}, ErrInvalidCredentials
	case err != nil:
		return storage.User{}, fmt.Errorf("get user: %w", err)
	}

	if VerifyPassword(user.PasswordHash, password) != nil {
		return storage.User{}, ErrInvalidCredentials
	}
	return user, nil
}
