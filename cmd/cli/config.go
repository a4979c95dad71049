package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func NewConfigCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			out, err := cfg.Redacted().YAML()
			if err != nil {
				return err
			}

			_, err = os.Stdout.Write(out)
			return err
		},
	}
}
