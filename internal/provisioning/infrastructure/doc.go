// Package infrastructure provisions the ephemeral issuer environment: SSH key,
// publishing identity, network, firewall and the single issuer instance, then
// waits for the instance to become reachable and ready.
package infrastructure
