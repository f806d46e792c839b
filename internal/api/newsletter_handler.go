package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/sungwon/newsletter/internal/auth"
	"github.com/sungwon/newsletter/internal/idempotency"
	"github.com/sungwon/newsletter/internal/logger"
	"github.com/sungwon/newsletter/internal/newsletter"
)

// NewsletterPublisher is implemented by *newsletter.Publisher.
type NewsletterPublisher interface {
	Publish(ctx context.Context, actor uuid.UUID, rawKey string, issue newsletter.Issue) (idempotency.SavedResponse, error)
}

// publishRequest is the body for POST /admin/newsletters.
type publishRequest struct {
	Title          string `json:"title"`
	HTMLContent    string `json:"html_content"`
	TextContent    string `json:"text_content"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (p *publishRequest) decodeForm(v url.Values) {
	p.Title = v.Get("title")
	p.HTMLContent = v.Get("html_content")
	p.TextContent = v.Get("text_content")
	p.IdempotencyKey = v.Get("idempotency_key")
}

// PublishNewsletterHandler handles POST /admin/newsletters.
// The idempotency key is read from the body, or from the Idempotency-Key
// header when the body does not carry one. Repeated requests with the same
// key get the first response replayed byte for byte.
func PublishNewsletterHandler(publisher NewsletterPublisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		actor := auth.UserFromContext(r.Context())
		if actor == uuid.Nil {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		var req publishRequest
		if err := decodeRequest(w, r, &req); err != nil {
			if errors.Is(err, errUnsupportedMediaType) {
				respondError(w, http.StatusUnsupportedMediaType, "expected JSON or form body")
				return
			}
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.IdempotencyKey == "" {
			req.IdempotencyKey = r.Header.Get("Idempotency-Key")
		}

		resp, err := publisher.Publish(r.Context(), actor, req.IdempotencyKey, newsletter.Issue{
			Title:       req.Title,
			HTMLContent: req.HTMLContent,
			TextContent: req.TextContent,
		})
		if err != nil {
			switch {
			case errors.Is(err, idempotency.ErrInvalidKey), errors.Is(err, newsletter.ErrInvalidIssue):
				respondError(w, http.StatusBadRequest, err.Error())
			default:
				log.Error().Err(err).Str("user_id", actor.String()).Msg("failed to publish newsletter issue")
				respondError(w, http.StatusInternalServerError, "internal server error")
			}
			return
		}

		if err := resp.WriteTo(w); err != nil {
			log.Warn().Err(err).Msg("failed to write publish response")
		}
	}
}
