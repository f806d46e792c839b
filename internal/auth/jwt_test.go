package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sungwon/newsletter/internal/config"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		SigningKey:        "test-secret-key-at-least-32-chars!",
		AccessTokenExpiry: 15 * time.Minute,
		Issuer:            "newsletter-test",
		Audience:          "newsletter-api",
	}
}

func TestGenerateAccessToken(t *testing.T) {
	svc := NewJWTService(testAuthConfig())

	token, err := svc.GenerateAccessToken(uuid.New(), "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("GenerateAccessToken() = %q, want three dot-separated segments", token)
	}
}

func TestValidateAccessToken_Valid(t *testing.T) {
	svc := NewJWTService(testAuthConfig())
	userID := uuid.New()

	token, err := svc.GenerateAccessToken(userID, "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if claims.Subject != userID.String() {
		t.Errorf("Subject = %q, want %q", claims.Subject, userID.String())
	}
	if claims.Username != "admin" {
		t.Errorf("Username = %q, want %q", claims.Username, "admin")
	}
	if claims.Issuer != "newsletter-test" {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, "newsletter-test")
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	cfg := testAuthConfig()
	svc := NewJWTService(cfg)
	svc.ttl = -time.Hour

	token, err := svc.GenerateAccessToken(uuid.New(), "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	if _, err := svc.ValidateAccessToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("ValidateAccessToken() error = %v, want %v", err, ErrTokenExpired)
	}
}

func TestValidateAccessToken_InvalidSignature(t *testing.T) {
	token, err := NewJWTService(testAuthConfig()).GenerateAccessToken(uuid.New(), "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	other := testAuthConfig()
	other.SigningKey = "completely-different-signing-key!!"
	if _, err := NewJWTService(other).ValidateAccessToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ValidateAccessToken() error = %v, want %v", err, ErrTokenInvalid)
	}
}

func TestValidateAccessToken_WrongAudience(t *testing.T) {
	token, err := NewJWTService(testAuthConfig()).GenerateAccessToken(uuid.New(), "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	other := testAuthConfig()
	other.Audience = "someone-else"
	if _, err := NewJWTService(other).ValidateAccessToken(token); err == nil {
		t.Error("ValidateAccessToken() accepted a token for another audience")
	}
}

func TestValidateAccessToken_Malformed(t *testing.T) {
	svc := NewJWTService(testAuthConfig())
	if _, err := svc.ValidateAccessToken("not.a.jwt"); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("ValidateAccessToken() error = %v, want %v", err, ErrTokenMalformed)
	}
}

func TestValidateAccessToken_NoneAlgorithm(t *testing.T) {
	claims := AccessTokenClaims{
		Username: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "newsletter-test",
			Audience:  jwt.ClaimStrings{"newsletter-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	if _, err := NewJWTService(testAuthConfig()).ValidateAccessToken(token); err == nil {
		t.Error("ValidateAccessToken() accepted an unsigned token")
	}
}

func TestValidateAccessToken_MissingScope(t *testing.T) {
	cfg := testAuthConfig()
	now := time.Now()
	claims := AccessTokenClaims{
		Username: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.SigningKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := NewJWTService(cfg).ValidateAccessToken(token); !errors.Is(err, ErrTokenScope) {
		t.Errorf("ValidateAccessToken() error = %v, want %v", err, ErrTokenScope)
	}
}

func TestGenerateAccessToken_UniqueTokenIDs(t *testing.T) {
	svc := NewJWTService(testAuthConfig())
	userID := uuid.New()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		token, err := svc.GenerateAccessToken(userID, "admin")
		if err != nil {
			t.Fatalf("GenerateAccessToken() error = %v", err)
		}
		claims, err := svc.ValidateAccessToken(token)
		if err != nil {
			t.Fatalf("ValidateAccessToken() error = %v", err)
		}
		if claims.Scope != ScopePublish {
			t.Errorf("Scope = %q, want %q", claims.Scope, ScopePublish)
		}
		if seen[claims.ID] {
			t.Fatalf("duplicate token id %q", claims.ID)
		}
		seen[claims.ID] = true
	}
}

func TestNewJWTService_DefaultExpiry(t *testing.T) {
	svc := NewJWTService(config.AuthConfig{SigningKey: "k"})
	if svc.ExpiresIn() != defaultAccessTokenExpiry {
		t.Errorf("ExpiresIn() = %v, want %v", svc.ExpiresIn(), defaultAccessTokenExpiry)
	}
}
