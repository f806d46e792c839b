package cli

import (
	"github.com/spf13/cobra"

	"github.com/sungwon/newsletter/internal/storage"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if err := storage.Migrate(cfg.Database.URL); err != nil {
				return err
			}
			log.Info().Msg("database migrations applied")

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(map[string]string{"migrations": "applied"}, "migrations applied")
		},
	}
}
