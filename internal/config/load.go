package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFilename is the default configuration filename.
const DefaultConfigFilename = "certzner.yaml"

// Load reads, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses, defaults and validates configuration bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML into a Config without validation. Delays start from
// DefaultDelays so a key given as 0s keeps its zero.
func Parse(data []byte) (*Config, error) {
	cfg := Config{Delays: DefaultDelays()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

// WriteYAML writes the configuration to path with owner-only permissions.
func WriteYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	header := []byte("# certzner run configuration\n# Secrets are read from HCLOUD_TOKEN, CLOUDFLARE_API_TOKEN and the AWS credential chain.\n")
	if err := os.WriteFile(path, append(header, data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyDefaults fills unset fields. It never overrides explicit values.
func (c *Config) ApplyDefaults() {
	if c.RunTag == "" {
		c.RunTag = NewRunTag(time.Now())
	}
	for i, d := range c.Domains {
		c.Domains[i] = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
	}

	setDefault(&c.Instance.Location, DefaultLocation)
	setDefault(&c.Instance.Image, DefaultImage)
	setDefault(&c.Instance.ServerType, DefaultServerType)
	setDefault(&c.Instance.SSHUser, DefaultSSHUser)

	setDefault(&c.Network.IPRange, DefaultIPRange)
	setDefault(&c.Network.SubnetRange, DefaultSubnetRange)
	if zone, ok := ValidLocations[c.Instance.Location]; ok {
		setDefault(&c.Network.Zone, zone)
	}
	setDefault(&c.Network.Zone, DefaultNetworkZone)

	setDefault(&c.DNS.Provider, DefaultDNSProvider)
	if c.DNS.TTL == 0 {
		c.DNS.TTL = DefaultRecordTTL
	}
	setDuration(&c.DNS.PropagationTimeout, DefaultPropagationTimeout)

	setDefault(&c.Store.Kind, DefaultStoreKind)
	setDefault(&c.Store.Path, DefaultStorePath)
	if c.Store.IsAWS() {
		setDefault(&c.Store.Region, DefaultAWSRegion)
	}

	setDefault(&c.Issuance.Directory, DefaultIssuanceDirectory)
	setDefault(&c.Issuance.KeyType, DefaultKeyType)
	setDefault(&c.Issuance.InstallCommand, DefaultInstallCommand)

	// Settle and fallback delays may be zero on purpose; they are only
	// filled when no delay was set at all.
	if c.Delays == (DelayConfig{}) {
		c.Delays = DefaultDelays()
	}
	setDuration(&c.Delays.Reachability, DefaultReachability)
	setDuration(&c.Delays.Readiness, DefaultReadiness)
	setDuration(&c.Delays.TeardownWait, DefaultTeardownWait)
}

// DefaultDelays returns the default bounded waits.
func DefaultDelays() DelayConfig {
	return DelayConfig{
		InitialSettle:     DefaultInitialSettle,
		Reachability:      DefaultReachability,
		Readiness:         DefaultReadiness,
		ReadinessFallback: DefaultReadinessFallback,
		TeardownWait:      DefaultTeardownWait,
		TeardownSettle:    DefaultTeardownSettle,
	}
}

// NewRunTag returns a unique, label-safe run tag.
func NewRunTag(now time.Time) string {
	b := make([]byte, 3)
	_, _ = rand.Read(b)
	return fmt.Sprintf("certzner-%s-%s", now.UTC().Format("20060102150405"), hex.EncodeToString(b))
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setDuration(field *time.Duration, value time.Duration) {
	if *field == 0 {
		*field = value
	}
}
