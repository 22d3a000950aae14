// Package ssh provides an SSH client for executing commands on remote servers.
//
// It is used to drive the ephemeral issuer instance: waiting for cloud-init,
// installing the issuance agent, running it per domain, and reading the
// resulting certificate artifacts back. The client supports key-based
// authentication with configurable retry logic.
package ssh
