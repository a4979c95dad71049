package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowbaker/automations/internal/auth"
	"github.com/flowbaker/automations/internal/initialization"
)

func NewTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with the configured JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			tokens, err := auth.NewTokenService(cfg.Webhooks.JWTSecret, initialization.TokenIssuer)
			if err != nil {
				return err
			}

			token, err := tokens.Issue(subject, scopes, ttl)
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Owner id the token acts as")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopeWorkflows}, "Granted scopes: workflows, push")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
