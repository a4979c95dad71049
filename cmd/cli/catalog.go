package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowbaker/automations/internal/config"
	"github.com/flowbaker/automations/internal/initialization"
	"github.com/flowbaker/automations/internal/store/memory"
	"github.com/flowbaker/automations/pkg/domain"
)

func NewCatalogCommand() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the trigger and action catalog as JSON",
		Long:  "Print the trigger and action catalog as JSON. Descriptors do not depend on configuration, so no config file is read.",
		RunE: func(cmd *cobra.Command, args []string) error {
			providers := initialization.RegisterProviders(initialization.RegisterProvidersParams{
				Config:        &config.Config{},
				Registrations: domain.NewInMemoryRegistrationStore(),
				Validator:     domain.NewSchemaValidator(),
				Credentials:   memory.New(),
			})

			catalog := map[string][]domain.DescriptorView{
				"triggers": providers.Triggers.GetAllMetadata(),
				"actions":  providers.Actions.GetAllMetadata(),
			}

			if provider != "" {
				for kind, views := range catalog {
					catalog[kind] = filterByProvider(views, domain.IntegrationType(provider))
				}
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")

			return encoder.Encode(catalog)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Only list capabilities of this provider")

	return cmd
}

func filterByProvider(views []domain.DescriptorView, provider domain.IntegrationType) []domain.DescriptorView {
	filtered := []domain.DescriptorView{}
	for _, view := range views {
		if view.Descriptor.Provider == provider {
			filtered = append(filtered, view)
		}
	}

	return filtered
}
