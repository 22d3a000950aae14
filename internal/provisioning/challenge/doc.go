// Package challenge publishes and retracts the DNS A records that point each
// domain at the issuer instance while its certificate is being issued.
package challenge
