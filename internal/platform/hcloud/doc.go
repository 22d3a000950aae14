// Package hcloud wraps the Hetzner Cloud API for the resources an issuance
// run creates: SSH keys, networks and subnets, firewalls, the issuer server
// and uploaded certificates.
//
// # Generic Operations
//
// DeleteOperation and EnsureOperation give every resource type the same
// semantics:
//
//   - Delete succeeds when the resource is already gone and retries while
//     the resource is locked.
//   - Ensure returns an existing resource by name (validating or updating it
//     when asked) and creates it otherwise.
//
// # Retry and Timeout Configuration
//
// Timeouts and retry tuning come from config.LoadTimeouts:
//
//   - CERTZNER_TIMEOUT_SERVER_CREATE: server creation timeout (default: 10m)
//   - CERTZNER_TIMEOUT_DELETE: per-resource delete timeout (default: 5m)
//   - CERTZNER_RETRY_MAX_ATTEMPTS: maximum retry attempts (default: 5)
//   - CERTZNER_RETRY_INITIAL_DELAY: initial retry delay (default: 1s)
//
// # Example Usage
//
//	client := hcloud.NewRealClient(token, hcloud.WithLogger(log))
//	server, err := client.EnsureServer(ctx, hcloud.ServerSpec{
//	    Name:       "certzner-20261016093000-a1b2c3-issuer",
//	    Image:      "debian-13",
//	    ServerType: "cx23",
//	    Location:   "nbg1",
//	    SSHKeyID:   key.ID,
//	    FirewallID: fw.ID,
//	    NetworkID:  network.ID,
//	    Labels:     labels.ForRun(tag),
//	})
package hcloud
