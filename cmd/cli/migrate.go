package cli

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowbaker/automations/internal/initialization"
)

func NewMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()

			pool, store, err := initialization.ConnectStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := store.Migrate(ctx); err != nil {
				return err
			}

			log.Info().Msg("Database schema is up to date")
			return nil
		},
	}
}
