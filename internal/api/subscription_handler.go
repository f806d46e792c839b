package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/sungwon/newsletter/internal/domain"
	"github.com/sungwon/newsletter/internal/logger"
	"github.com/sungwon/newsletter/internal/subscription"
)

// SubscriptionManager is implemented by *subscription.Service.
type SubscriptionManager interface {
	Subscribe(ctx context.Context, sub domain.NewSubscriber) error
	Confirm(ctx context.Context, token string) error
}

// subscribeRequest is the body for POST /subscriptions.
type subscribeRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *subscribeRequest) decodeForm(v url.Values) {
	s.Email = v.Get("email")
	s.Name = v.Get("name")
}

// SubscribeHandler handles POST /subscriptions.
// Validates the subscriber, stores it as pending and sends a confirmation
// email.
func SubscribeHandler(subs SubscriptionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req subscribeRequest
		if err := decodeRequest(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sub, err := domain.ParseNewSubscriber(req.Email, req.Name)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := subs.Subscribe(r.Context(), sub); err != nil {
			log.Error().Err(err).Str("subscriber_email", sub.Email.String()).Msg("failed to subscribe")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		respondJSON(w, http.StatusOK, map[string]string{"status": "pending_confirmation"})
	}
}

// ConfirmSubscriptionHandler handles GET /subscriptions/confirm.
// Returns 401 when the subscription_token is unknown.
func ConfirmSubscriptionHandler(subs SubscriptionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("subscription_token")
		if token == "" {
			respondError(w, http.StatusBadRequest, "subscription_token is required")
			return
		}

		if err := subs.Confirm(r.Context(), token); err != nil {
			if errors.Is(err, subscription.ErrUnknownToken) {
				respondError(w, http.StatusUnauthorized, err.Error())
				return
			}
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Msg("failed to confirm subscriber")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		respondJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
	}
}
