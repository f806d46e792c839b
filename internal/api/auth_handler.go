package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/sungwon/newsletter/internal/auth"
	"github.com/sungwon/newsletter/internal/logger"
	"github.com/sungwon/newsletter/internal/storage"
)

// loginRequest is the body for POST /login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (l *loginRequest) decodeForm(v url.Values) {
	l.Username = v.Get("username")
	l.Password = v.Get("password")
}

// tokenResponse is the JSON response of a successful login.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	APIKey      string `json:"api_key"`
}

// LoginHandler handles POST /login.
// Authenticates a user by username and password and returns a JWT access
// token together with the user's API key.
func LoginHandler(queries storage.Querier, jwtService *auth.JWTService, rateLimiter *auth.RateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req loginRequest
		if err := decodeRequest(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username == "" || req.Password == "" {
			respondError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		if rateLimiter != nil {
			if err := rateLimiter.CheckLoginRateLimit(r.Context(), req.Username); err != nil {
				if errors.Is(err, auth.ErrLoginLocked) {
					respondError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
					return
				}
				log.Warn().Err(err).Msg("login rate limit check failed")
			}
		}

		user, err := auth.ValidateCredentials(r.Context(), queries, req.Username, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				if rateLimiter != nil {
					if err := rateLimiter.RecordFailedLogin(r.Context(), req.Username); err != nil {
						log.Warn().Err(err).Msg("failed to record failed login")
					}
				}
				log.Info().Str("username", req.Username).Msg("login failed")
				respondError(w, http.StatusUnauthorized, "invalid username or password")
				return
			}
			log.Error().Err(err).Msg("failed to validate credentials")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if rateLimiter != nil {
			_ = rateLimiter.ResetLoginAttempts(r.Context(), req.Username)
		}

		token, err := jwtService.GenerateAccessToken(user.UserID, user.Username)
		if err != nil {
			log.Error().Err(err).Msg("failed to issue access token")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		log.Info().Str("user_id", user.UserID.String()).Msg("login succeeded")
		respondJSON(w, http.StatusOK, tokenResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   int(jwtService.ExpiresIn().Seconds()),
			APIKey:      user.ApiKey,
		})
	}
}

// changePasswordRequest is the body for POST /admin/password.
type changePasswordRequest struct {
	CurrentPassword  string `json:"current_password"`
	NewPassword      string `json:"new_password"`
	NewPasswordCheck string `json:"new_password_check"`
}

func (c *changePasswordRequest) decodeForm(v url.Values) {
	c.CurrentPassword = v.Get("current_password")
	c.NewPassword = v.Get("new_password")
	c.NewPasswordCheck = v.Get("new_password_check")
}

// ChangePasswordHandler handles POST /admin/password for the authenticated
// user.
func ChangePasswordHandler(queries storage.Querier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		userID := auth.UserFromContext(r.Context())
		username := auth.UsernameFromContext(r.Context())

		var req changePasswordRequest
		if err := decodeRequest(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := auth.CheckNewPassword(req.NewPassword, req.NewPasswordCheck); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		if _, err := auth.ValidateCredentials(r.Context(), queries, username, req.CurrentPassword); err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				respondError(w, http.StatusUnauthorized, "the current password is incorrect")
				return
			}
			log.Error().Err(err).Msg("failed to validate credentials")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			log.Error().Err(err).Msg("failed to hash password")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if err := queries.UpdateUserPassword(r.Context(), userID, hash); err != nil {
			log.Error().Err(err).Msg("failed to update password")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		log.Info().Str("user_id", userID.String()).Msg("password changed")
		respondJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
	}
}
