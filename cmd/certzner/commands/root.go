// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing
// and flag binding. Command execution is delegated to handler functions in
// the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the certzner CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "certzner",
		Short:         "Issue TLS certificates from an ephemeral Hetzner Cloud server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(Init())
	cmd.AddCommand(Validate())
	cmd.AddCommand(Run())
	cmd.AddCommand(Teardown())
	cmd.AddCommand(Version())

	return cmd
}
