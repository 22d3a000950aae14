package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/certzner/cmd/certzner/handlers"
	"github.com/imamik/certzner/internal/config"
)

// Init returns the init command.
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a run configuration interactively",
		Long: `Init asks for the domains, contact email, location, DNS provider and
certificate store, then writes a fully defaulted configuration file.

Example:
  certzner init -o certzner.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultConfigFilename, "Output path for the configuration file")

	return cmd
}
