package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sungwon/newsletter/internal/newsletter"
	"github.com/sungwon/newsletter/internal/notify"
	"github.com/sungwon/newsletter/internal/storage"
)

type publishOptions struct {
	actor    string
	key      string
	title    string
	htmlFile string
	textFile string
}

type publishResult struct {
	StatusCode int                     `json:"status_code"`
	Body       newsletter.AcceptedBody `json:"body"`
}

// NewPublishCommand creates the publish command. It goes through the same
// idempotent path as POST /admin/newsletters, so reusing --key replays the
// first outcome.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &publishOptions{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a newsletter issue to all confirmed subscribers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.actor == "" || opts.key == "" {
				return errors.New("--actor and --key are required")
			}
			issue, err := readIssue(opts)
			if err != nil {
				return err
			}

			cfg, log, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := storage.New(db.Pool).GetUserByUsername(ctx, opts.actor)
			if err != nil {
				return fmt.Errorf("look up actor %q: %w", opts.actor, err)
			}

			// Workers pick the tasks up on their next poll.
			publisher := newsletter.NewPublisher(db, notify.Noop{}, log)
			resp, err := publisher.Publish(ctx, user.UserID, opts.key, issue)
			if err != nil {
				return err
			}

			if ct := resp.Header("Content-Type"); ct != "application/json" {
				return fmt.Errorf("saved response has content type %q, want application/json", ct)
			}
			var body newsletter.AcceptedBody
			if err := json.Unmarshal(resp.Body, &body); err != nil {
				return fmt.Errorf("decode saved response: %w", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(publishResult{StatusCode: resp.StatusCode, Body: body},
				fmt.Sprintf("%d %s (issue %s)", resp.StatusCode, body.Message, body.IssueID))
		},
	}

	cmd.Flags().StringVar(&opts.actor, "actor", "", "username the publication is attributed to")
	cmd.Flags().StringVar(&opts.key, "key", "", "idempotency key")
	cmd.Flags().StringVar(&opts.title, "title", "", "issue title")
	cmd.Flags().StringVar(&opts.htmlFile, "html-file", "", "path to the HTML body")
	cmd.Flags().StringVar(&opts.textFile, "text-file", "", "path to the plain-text body")

	return cmd
}

// readIssue loads the issue bodies from disk and validates the result.
func readIssue(opts *publishOptions) (newsletter.Issue, error) {
	html, err := os.ReadFile(opts.htmlFile)
	if err != nil {
		return newsletter.Issue{}, fmt.Errorf("read html body: %w", err)
	}
	text, err := os.ReadFile(opts.textFile)
	if err != nil {
		return newsletter.Issue{}, fmt.Errorf("read text body: %w", err)
	}

	issue := newsletter.Issue{
		Title:       opts.title,
		HTMLContent: string(html),
		TextContent: string(text),
	}
	if err := issue.Validate(); err != nil {
		return newsletter.Issue{}, err
	}
	return issue, nil
}
