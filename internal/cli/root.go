package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sungwon/newsletter/internal/config"
	"github.com/sungwon/newsletter/internal/logger"
	"github.com/sungwon/newsletter/internal/storage"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for newsletterctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "newsletterctl",
		Short: "Operate the newsletter delivery service",
		Long:  "Administrative tooling for the newsletter service: schema migrations, admin accounts, publishing and queue inspection.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "config", "directory containing config.yaml")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewCreateAdminCommand(opts))
	cmd.AddCommand(NewPublishCommand(opts))
	cmd.AddCommand(NewQueueDepthCommand(opts))

	return cmd
}

// loadConfig reads configuration and builds a logger writing to stderr so
// command output on stdout stays machine-readable.
func loadConfig(opts *RootOptions) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	cfg.Logging.Output = "stderr"
	return cfg, logger.NewFromConfig(cfg.Logging, "newsletterctl"), nil
}

func connect(ctx context.Context, cfg *config.Config) (*storage.DB, error) {
	dbCfg := cfg.Database
	dbCfg.PoolMin, dbCfg.PoolMax = 1, 2
	db, err := storage.NewDB(ctx, dbCfg, "newsletterctl")
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}
