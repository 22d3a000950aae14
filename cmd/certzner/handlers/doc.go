// Package handlers implements the business logic of the CLI commands.
//
// Each handler loads configuration, builds provider clients and drives the
// provisioning packages. Construction goes through package-level factory
// variables so tests can substitute fakes.
package handlers
