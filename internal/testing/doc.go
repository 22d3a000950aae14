// Package testing provides test utilities, builders, and fakes for unit tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - ConfigBuilder: Fluent builder for creating run configurations
//   - FakeCloud: In-memory Hetzner Cloud that tracks every resource by label
//   - FakeDNS, FakeStore, FakeRemote, FakeIdentity: in-memory collaborators
//   - IssueCertificate: throwaway PEM certificate chains
//
// Usage:
//
//	cfg := testing.NewConfigBuilder().
//	    WithDomains("a.example.com").
//	    Build()
//
//	cloud := testing.NewFakeCloud()
//	dns := testing.NewFakeDNS()
package testing
