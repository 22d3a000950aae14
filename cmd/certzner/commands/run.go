package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/certzner/cmd/certzner/handlers"
)

// Run returns the run command.
//
// The run command provisions an ephemeral issuer, obtains a certificate per
// domain, publishes the certificates and removes the issuer again.
func Run() *cobra.Command {
	var opts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Issue and publish certificates for the configured domains",
		Long: `Run provisions an isolated issuer on Hetzner Cloud and, for each domain:
  - points a temporary DNS A record at the issuer
  - obtains a certificate with the lego ACME client (TLS-ALPN-01)
  - removes the record
  - replaces the domain's entry in the certificate store

Every resource created by the run is removed afterwards, also when the run
fails or is interrupted. The exit code is non-zero unless every domain was
published and cleanup completed.

Example:
  certzner run -c certzner.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to the run configuration (default certzner.yaml)")
	cmd.Flags().StringVar(&opts.RunTag, "run-tag", "", "Run tag to use instead of a generated one")
	cmd.Flags().StringVar(&opts.JournalDir, "journal-dir", handlers.DefaultJournalDir, "Directory for run journals")
	cmd.Flags().StringVar(&opts.MetricsPushURL, "metrics-push-url", "", "Prometheus Pushgateway URL for run metrics")
	cmd.Flags().CountVarP(&opts.Verbose, "verbose", "v", "Increase log verbosity")

	return cmd
}
