package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sungwon/newsletter/internal/bootstrap"
	"github.com/sungwon/newsletter/internal/storage"
)

type createAdminOptions struct {
	username string
	password string
}

type adminResult struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	APIKey   string `json:"api_key"`
}

// NewCreateAdminCommand creates the create-admin command. Running it for an
// existing user resets that user's password.
func NewCreateAdminCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &createAdminOptions{}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin user or reset its password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.username == "" || opts.password == "" {
				return errors.New("--username and --password are required")
			}

			cfg, log, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			db, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := bootstrap.SeedAdmin(cmd.Context(), storage.New(db.Pool), log, opts.username, opts.password)
			if err != nil {
				return err
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(adminResult{
				UserID:   user.UserID.String(),
				Username: user.Username,
				APIKey:   user.ApiKey,
			}, fmt.Sprintf("admin %s ready, api key %s", user.Username, user.ApiKey))
		},
	}

	cmd.Flags().StringVar(&opts.username, "username", "", "admin username")
	cmd.Flags().StringVar(&opts.password, "password", "", "admin password")

	return cmd
}
