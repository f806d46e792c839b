package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sungwon/newsletter/internal/storage"
)

type queueDepthResult struct {
	PendingTasks int64 `json:"pending_tasks"`
	Issues       int64 `json:"issues"`
}

// NewQueueDepthCommand creates the queue-depth command.
func NewQueueDepthCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "queue-depth",
		Short: "Show the number of pending delivery tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			q := storage.New(db.Pool)
			pending, err := q.CountDeliveryTasks(ctx)
			if err != nil {
				return err
			}
			issues, err := q.CountNewsletterIssues(ctx)
			if err != nil {
				return err
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(queueDepthResult{PendingTasks: pending, Issues: issues},
				fmt.Sprintf("%d pending delivery tasks across %d issues", pending, issues))
		},
	}
}
