package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/sungwon/newsletter/internal/domain"
	"github.com/sungwon/newsletter/internal/storage"
)

// fakeQueue mimics SKIP LOCKED semantics in memory.
type fakeQueue struct {
	mu          sync.Mutex
	issues      map[uuid.UUID]storage.NewsletterIssue
	tasks       []storage.DeliveryTask
	locked      map[storage.DeliveryTask]bool
	claimErr    error
	issueErr    error
	completeErr error
	released    int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		issues: make(map[uuid.UUID]storage.NewsletterIssue),
		locked: make(map[storage.DeliveryTask]bool),
	}
}

func (q *fakeQueue) addIssue(title, html, text string, recipients ...string) uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := uuid.New()
	q.issues[id] = storage.NewsletterIssue{NewsletterIssueID: id, Title: title, HtmlContent: html, TextContent: text}
	for _, r := range recipients {
		q.tasks = append(q.tasks, storage.DeliveryTask{NewsletterIssueID: id, SubscriberEmail: r})
	}
	return id
}

func (q *fakeQueue) remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *fakeQueue) Claim(context.Context) (Claim, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimErr != nil {
		return nil, false, q.claimErr
	}
	for _, t := range q.tasks {
		if !q.locked[t] {
			q.locked[t] = true
			return &fakeClaim{q: q, task: t}, true, nil
		}
	}
	return nil, false, nil
}

func (q *fakeQueue) Depth(context.Context) (int64, error) {
	return int64(q.remaining()), nil
}

type fakeClaim struct {
	q    *fakeQueue
	task storage.DeliveryTask
}

func (c *fakeClaim) Task() storage.DeliveryTask { return c.task }

func (c *fakeClaim) Issue(context.Context) (storage.NewsletterIssue, error) {
	c.q.mu.Lock()
	defer c.q.mu.Unlock()
	if c.q.issueErr != nil {
		return storage.NewsletterIssue{}, c.q.issueErr
	}
	issue, ok := c.q.issues[c.task.NewsletterIssueID]
	if !ok {
		return storage.NewsletterIssue{}, errors.New("issue not found")
	}
	return issue, nil
}

// Complete fails on a finished context, as pgx does for Exec and Commit.
func (c *fakeClaim) Complete(ctx context.Context) error {
	c.q.mu.Lock()
	defer c.q.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.q.completeErr != nil {
		return c.q.completeErr
	}
	for i, t := range c.q.tasks {
		if t == c.task {
			c.q.tasks = append(c.q.tasks[:i], c.q.tasks[i+1:]...)
			break
		}
	}
	delete(c.q.locked, c.task)
	return nil
}

func (c *fakeClaim) Release(context.Context) error {
	c.q.mu.Lock()
	defer c.q.mu.Unlock()
	delete(c.q.locked, c.task)
	c.q.released++
	return nil
}

type sentEmail struct {
	to      string
	subject string
	html    string
	text    string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
	hook func(ctx context.Context) error
	// attempts counts every call, including failed ones.
	attempts int
}

func (s *fakeSender) SendEmail(ctx context.Context, recipient domain.SubscriberEmail, subject, html, text string) error {
	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()
	if s.hook != nil {
		if err := s.hook(ctx); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentEmail{to: recipient.String(), subject: subject, html: html, text: text})
	return nil
}

func (s *fakeSender) sentTo() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, e := range s.sent {
		out[i] = e.to
	}
	return out
}
