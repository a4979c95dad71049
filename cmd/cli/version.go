package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowbaker/automations/internal/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Get().String())
		},
	}
}
