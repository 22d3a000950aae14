// Package keygen loads or generates SSH key pairs.
//
// The run's access credential is read from a configured private key file;
// when none is configured an RSA key pair is generated for the run. Public
// keys are rendered in OpenSSH authorized_keys format for upload to Hetzner
// Cloud.
package keygen
