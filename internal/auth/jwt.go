package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sungwon/newsletter/internal/config"
)

const (
	defaultAccessTokenExpiry = 15 * time.Minute
	clockSkew                = 5 * time.Second

	// ScopePublish is the only scope the API issues. It lets the admin
	// publish issues and change their own password.
	ScopePublish = "newsletter:publish"
)

var (
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrSigningMethod  = errors.New("unexpected signing method")
	ErrTokenScope     = errors.New("token lacks publish scope")
)

// AccessTokenClaims are the claims of an admin access token. Subject holds
// the user id and ID a per-token random identifier.
type AccessTokenClaims struct {
	Username string `json:"username"`
	Scope    string `json:"scope"`
	jwt.RegisteredClaims
}

// JWTService issues and verifies HS256 admin access tokens.
type JWTService struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewJWTService builds a JWTService from the auth section. A zero expiry
// means 15 minutes.
func NewJWTService(cfg config.AuthConfig) *JWTService {
	ttl := cfg.AccessTokenExpiry
	if ttl <= 0 {
		ttl = defaultAccessTokenExpiry
	}
	return &JWTService{
		key:      []byte(cfg.SigningKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
	}
}

// ExpiresIn is the lifetime of newly issued tokens.
func (s *JWTService) ExpiresIn() time.Duration { return s.ttl }

// GenerateAccessToken signs a publish-scoped token for the user.
func (s *JWTService) GenerateAccessToken(userID uuid.UUID, username string) (string, error) {
	now := time.Now()
	claims := AccessTokenClaims{
		Username: username,
		Scope:    ScopePublish,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken verifies signature, issuer, audience and lifetime,
// allowing a few seconds of clock skew, and requires the publish scope.
func (s *JWTService) ValidateAccessToken(raw string) (*AccessTokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	claims := &AccessTokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrSigningMethod
		}
		return s.key, nil
	}, opts...)
	if err != nil {
		return nil, classifyJWTError(err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Scope != ScopePublish {
		return nil, ErrTokenScope
	}
	return claims, nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrTokenInvalid
	case errors.Is(err, ErrSigningMethod):
		return ErrSigningMethod
	}
	return fmt.Errorf("validate token: %w", err)
}
