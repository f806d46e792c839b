// Package newsletter accepts newsletter issues for delivery. Publishing is
// idempotent per (actor, key): the issue, one delivery task per confirmed
// subscriber and the response returned to the caller are committed together.
package newsletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/sungwon/newsletter/internal/domain"
	"github.com/sungwon/newsletter/internal/idempotency"
	"github.com/sungwon/newsletter/internal/metrics"
	"github.com/sungwon/newsletter/internal/notify"
	"github.com/sungwon/newsletter/internal/storage"
)

// AcceptedMessage is the message returned when an issue has been queued.
const AcceptedMessage = "The newsletter issue has been accepted - emails will go out shortly."

// ErrInvalidIssue is returned when a required issue field is empty.
var ErrInvalidIssue = errors.New("invalid newsletter issue")

// Issue is the content of a newsletter issue as submitted by its author.
type Issue struct {
	Title       string
	HTMLContent string
	TextContent string
}

// Validate checks that every field is non-empty.
func (i Issue) Validate() error {
	switch {
	case i.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidIssue)
	case i.HTMLContent == "":
		return fmt.Errorf("%w: html content is required", ErrInvalidIssue)
	case i.TextContent == "":
		return fmt.Errorf("%w: text content is required", ErrInvalidIssue)
	}
	return nil
}

// AcceptedBody is the JSON body of the accepted response.
type AcceptedBody struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	IssueID uuid.UUID `json:"issue_id"`
}

// TxBeginner opens transactions. *storage.DB implements it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Publisher coordinates issue creation, task enqueueing and idempotent
// response storage.
type Publisher struct {
	db       TxBeginner
	store    *idempotency.Store
	notifier notify.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// NewPublisher creates a Publisher. notifier may be notify.Noop{}.
func NewPublisher(db *storage.DB, notifier notify.Notifier, log zerolog.Logger) *Publisher {
	return &Publisher{
		db:       db,
		store:    idempotency.NewStore(db.Pool),
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Publish creates the issue and its delivery tasks, or replays the response
// of an earlier request with the same key. A returned error means nothing
// was committed and the caller may retry with the same key.
func (p *Publisher) Publish(ctx context.Context, actor uuid.UUID, rawKey string, issue Issue) (idempotency.SavedResponse, error) {
	key, err := idempotency.ParseKey(rawKey)
	if err != nil {
		return idempotency.SavedResponse{}, err
	}
	if err := issue.Validate(); err != nil {
		return idempotency.SavedResponse{}, err
	}

	log := p.log.With().
		Str("user_id", actor.String()).
		Str("idempotency_key", key.String()).
		Logger()

	saved, err := p.store.Lookup(ctx, actor, key)
	if err != nil {
		return idempotency.SavedResponse{}, err
	}
	if saved.IsPresent() {
		var resp idempotency.SavedResponse
		saved.IfPresent(func(r *idempotency.SavedResponse) { resp = *r })
		metrics.IdempotentReplaysTotal.WithLabelValues("lookup").Inc()
		log.Debug().Msg("replaying saved publish response")
		return resp, nil
	}

	start := p.now()
	resp, replayed, enqueued, err := p.publishTx(ctx, actor, key, issue, log)
	if err != nil {
		return idempotency.SavedResponse{}, err
	}
	if replayed {
		metrics.IdempotentReplaysTotal.WithLabelValues("conflict").Inc()
		log.Info().Msg("concurrent publish with the same key committed first, replaying its response")
		return resp, nil
	}

	metrics.PublishDuration.Observe(p.now().Sub(start).Seconds())
	metrics.IssuesPublishedTotal.Inc()
	metrics.DeliveryTasksEnqueuedTotal.Add(float64(enqueued))

	if err := p.notifier.Notify(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to wake delivery workers")
	}
	return resp, nil
}

func (p *Publisher) publishTx(ctx context.Context, actor uuid.UUID, key idempotency.Key, issue Issue, log zerolog.Logger) (resp idempotency.SavedResponse, replayed bool, enqueued int64, err error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return resp, false, 0, fmt.Errorf("begin publish: %w", err)
	}
	defer func() {
		if err != nil || replayed {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	next, err := p.store.TryProcessing(ctx, tx, actor, key)
	if err != nil {
		return resp, false, 0, err
	}
	if next.Kind == idempotency.ReturnSavedResponse {
		return next.Response, true, 0, nil
	}

	q := storage.New(tx)
	issueID := uuid.New()
	if err := q.InsertNewsletterIssue(ctx, storage.InsertNewsletterIssueParams{
		NewsletterIssueID: issueID,
		Title:             issue.Title,
		TextContent:       issue.TextContent,
		HtmlContent:       issue.HTMLContent,
		PublishedAt:       p.now().UTC(),
	}); err != nil {
		return resp, false, 0, fmt.Errorf("insert issue: %w", err)
	}

	recipients, err := p.confirmedRecipients(ctx, q, log)
	if err != nil {
		return resp, false, 0, err
	}
	enqueued, err = q.EnqueueDeliveryTasks(ctx, issueID, recipients)
	if err != nil {
		return resp, false, 0, fmt.Errorf("enqueue delivery tasks: %w", err)
	}

	accepted, err := acceptedResponse(issueID)
	if err != nil {
		return resp, false, 0, err
	}
	resp, err = p.store.Save(ctx, tx, actor, key, accepted)
	if err != nil {
		return resp, false, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return idempotency.SavedResponse{}, false, 0, fmt.Errorf("commit publish: %w", err)
	}

	log.Info().
		Str("newsletter_issue_id", issueID.String()).
		Int64("tasks_enqueued", enqueued).
		Msg("newsletter issue accepted")
	return resp, false, enqueued, nil
}

// confirmedRecipients snapshots the confirmed subscriber list. Addresses
// that no longer parse are logged and left out.
func (p *Publisher) confirmedRecipients(ctx context.Context, q *storage.Queries, log zerolog.Logger) ([]string, error) {
	emails, err := q.ListConfirmedSubscriberEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("list confirmed subscribers: %w", err)
	}

	recipients := make([]string, 0, len(emails))
	for _, raw := range emails {
		email, err := domain.ParseSubscriberEmail(raw)
		if err != nil {
			log.Warn().Err(err).Msg("skipping a confirmed subscriber: stored contact details are invalid")
			metrics.InvalidSubscribersSkippedTotal.Inc()
			continue
		}
		recipients = append(recipients, email.String())
	}
	return recipients, nil
}

// acceptedResponse renders the 202 body the way the API's JSON responder
// does and captures it, so a replay is byte-identical to a live response.
func acceptedResponse(issueID uuid.UUID) (idempotency.SavedResponse, error) {
	rec := idempotency.NewRecorder()
	rec.Header().Set("Content-Type", "application/json")
	rec.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(rec).Encode(AcceptedBody{
		Status:  "accepted",
		Message: AcceptedMessage,
		IssueID: issueID,
	}); err != nil {
		return idempotency.SavedResponse{}, fmt.Errorf("encode accepted response: %w", err)
	}
	return rec.Result(), nil
}
