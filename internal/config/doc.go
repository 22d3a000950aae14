// Package config defines the run configuration for certzner.
//
// A [Config] is loaded from YAML ([Load], [LoadFromBytes]), completed with
// defaults ([Config.ApplyDefaults]) and checked with [Config.Validate]
// before any resource is created. Secrets never live in the file: the
// Hetzner token, the Cloudflare token and AWS credentials come from the
// environment. Provider timeouts are tuned through CERTZNER_* environment
// variables ([LoadTimeouts]).
package config
