// Package issuance drives the ACME agent (the lego CLI) on the issuer
// instance. Certificates are ordered one domain at a time with the
// TLS-ALPN-01 challenge on port 443; a domain whose artifact already exists
// on the instance is not ordered again.
package issuance
