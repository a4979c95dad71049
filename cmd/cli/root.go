package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/flowbaker/automations/internal/config"
)

type rootOptions struct {
	configFile string
	debug      bool
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "automations",
		Short: "Trigger-action automation server",
		Long: `Automations connects triggers from third-party services to actions on
others. It polls providers, accepts push notifications and runs actions
durably.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if opts.debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to the config file")

	rootCmd.AddCommand(NewServeCommand(opts))
	rootCmd.AddCommand(NewMigrateCommand(opts))
	rootCmd.AddCommand(NewCatalogCommand())
	rootCmd.AddCommand(NewTokenCommand(opts))
	rootCmd.AddCommand(NewConfigCommand(opts))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
