package testing

import (
	"github.com/imamik/certzner/internal/config"
	"github.com/imamik/certzner/internal/util/ptr"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a new ConfigBuilder with sensible defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: config.Config{
			RunTag:   "run-test",
			Domains:  []string{"a.example.com"},
			Issuance: config.IssuanceConfig{Email: "ops@example.com"},
			Instance: config.InstanceConfig{Location: "fsn1"},
			DNS:      config.DNSConfig{Provider: config.DNSProviderCloudflare},
			Store:    config.StoreConfig{Kind: config.StoreHCloud},
		},
	}
}

// WithRunTag sets the run tag.
func (b *ConfigBuilder) WithRunTag(tag string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.RunTag = tag
	return nb
}

// WithDomains replaces the domain list.
func (b *ConfigBuilder) WithDomains(domains ...string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Domains = append([]string(nil), domains...)
	return nb
}

// WithEmail sets the contact email.
func (b *ConfigBuilder) WithEmail(email string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Issuance.Email = email
	return nb
}

// WithIssuance toggles issuance.
func (b *ConfigBuilder) WithIssuance(enabled bool) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Issuance.Enabled = ptr.Bool(enabled)
	return nb
}

// WithStore selects the certificate store.
func (b *ConfigBuilder) WithStore(kind, path, bucket string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Store.Kind = kind
	nb.cfg.Store.Path = path
	nb.cfg.Store.Bucket = bucket
	return nb
}

// WithDNS selects the DNS provider and pre-registered zones.
func (b *ConfigBuilder) WithDNS(provider string, zones ...string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.DNS.Provider = provider
	nb.cfg.DNS.Zones = append([]string(nil), zones...)
	return nb
}

// WithSSHKeyPath sets the private key path.
func (b *ConfigBuilder) WithSSHKeyPath(path string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Instance.SSHKeyPath = path
	return nb
}

// Build returns the constructed config with defaults applied.
func (b *ConfigBuilder) Build() *config.Config {
	cfg := b.clone().cfg
	cfg.ApplyDefaults()
	return &cfg
}

// clone creates a deep copy of the builder for immutability.
func (b *ConfigBuilder) clone() *ConfigBuilder {
	newCfg := b.cfg
	newCfg.Domains = cloneStringSlice(b.cfg.Domains)
	newCfg.DNS.Zones = cloneStringSlice(b.cfg.DNS.Zones)
	if b.cfg.Issuance.Enabled != nil {
		newCfg.Issuance.Enabled = ptr.Bool(*b.cfg.Issuance.Enabled)
	}
	if b.cfg.Identity.Enabled != nil {
		newCfg.Identity.Enabled = ptr.Bool(*b.cfg.Identity.Enabled)
	}
	return &ConfigBuilder{cfg: newCfg}
}

func cloneStringSlice(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
