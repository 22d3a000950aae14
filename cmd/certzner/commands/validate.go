package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/certzner/cmd/certzner/handlers"
)

// Validate returns the validate command.
func Validate() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a run configuration without creating anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Validate(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the run configuration (default certzner.yaml)")

	return cmd
}
