// Package main is the entry point for the certzner CLI.
//
// certzner issues TLS certificates from an ephemeral Hetzner Cloud server.
// Each run provisions an isolated issuer, answers the ACME challenge through
// a temporary DNS record, publishes the certificates to a durable trust store
// and removes every resource it created.
//
// Commands: init, validate, run, teardown, version.
//
// For detailed usage information, run:
//
//	certzner --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/certzner/cmd/certzner/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
