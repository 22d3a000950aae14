// Package provisioning provides shared types, interfaces, and orchestration for
// certificate issuance runs.
//
// # Subpackages
//
//   - infrastructure/: SSH key, identity role, network, firewall, issuer server, readiness
//   - challenge/: challenge A records
//   - issuance/: the lego agent on the issuer and artifact retrieval
//   - publish/: trust-store upserts (hcloud, iam, s3)
//   - destroy/: teardown by registry and run tag
//
// # Core Types
//
// Context carries the run description, state, registry and provider clients.
// Phase defines a provisioning step with Name() and Provision() methods.
// State accumulates results from each phase (key, network, firewall, role,
// instance, remote session, domain outcomes). Pipeline drives the stage
// machine and always ends in teardown once provisioning began.
package provisioning
