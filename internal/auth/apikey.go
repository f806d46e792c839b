package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	apiKeyBytes  = 32
	apiKeyPrefix = "nlk_"
)

// GenerateAPIKey returns a random API key for publishing without a login.
// Keys never contain '.', which BearerAuth uses to tell them from JWTs.
func GenerateAPIKey() (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate API key: %w", err)
	}
	return apiKeyPrefix + hex.EncodeToString(b), nil
}
