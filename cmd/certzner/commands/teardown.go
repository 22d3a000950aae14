package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/certzner/cmd/certzner/handlers"
)

// Teardown returns the teardown command.
func Teardown() *cobra.Command {
	var opts handlers.TeardownOptions

	cmd := &cobra.Command{
		Use:   "teardown",
		Short: "Remove every resource left behind by a run",
		Long: `Teardown deletes the issuer server, SSH key, firewall, network and
publishing role of a run. Resources are found through the run's journal and
by the run tag label, so it also works after the journal was lost.
Published certificates are never removed.

Example:
  certzner teardown --run-tag certzner-20260101120000-a1b2c3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Teardown(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.RunTag, "run-tag", "", "Run tag to tear down (required)")
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to the run configuration")
	cmd.Flags().StringVar(&opts.JournalDir, "journal-dir", handlers.DefaultJournalDir, "Directory for run journals")
	cmd.Flags().CountVarP(&opts.Verbose, "verbose", "v", "Increase log verbosity")
	_ = cmd.MarkFlagRequired("run-tag")

	return cmd
}
