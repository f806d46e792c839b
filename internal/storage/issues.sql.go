package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const insertNewsletterIssue = `
INSERT INTO newsletter_issues (
    newsletter_issue_id, title, text_content, html_content, published_at
) VALUES ($1, $2, $3, $4, $5)
`

type InsertNewsletterIssueParams struct {
	NewsletterIssueID uuid.UUID
	Title             string
	TextContent       string
	HtmlContent       string
	PublishedAt       time.Time
}

func (q *Queries) InsertNewsletterIssue(ctx context.Context, arg InsertNewsletterIssueParams) error {
	_, err := q.db.Exec(ctx, insertNewsletterIssue,
		arg.NewsletterIssueID,
		arg.Title,
		arg.TextContent,
		arg.HtmlContent,
		arg.PublishedAt,
	)
	return err
}

const getNewsletterIssue = `
SELECT newsletter_issue_id, title, text_content, html_content, published_at
FROM newsletter_issues
WHERE newsletter_issue_id = $1
`

func (q *Queries) GetNewsletterIssue(ctx context.Context, id uuid.UUID) (NewsletterIssue, error) {
	row := q.db.QueryRow(ctx, getNewsletterIssue, id)
	var i NewsletterIssue
	err := row.Scan(
		&i.NewsletterIssueID,
		&i.Title,
		&i.TextContent,
		&i.HtmlContent,
		&i.PublishedAt,
	)
	return i, err
}

const countNewsletterIssues = `SELECT count(*) FROM newsletter_issues`

func (q *Queries) CountNewsletterIssues(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countNewsletterIssues)
	var count int64
	err := row.Scan(&count)
	return count, err
}
