package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strings"
)

var (
	runTagPattern   = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,46}[a-z0-9])?$`)
	hostnamePattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.?$`)
)

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Domains) == 0 {
		return errors.New("domains: at least one domain is required")
	}
	seen := make(map[string]bool, len(c.Domains))
	for _, d := range c.Domains {
		d = strings.ToLower(d)
		if strings.Contains(d, "*") {
			return fmt.Errorf("domains: %q: wildcard names cannot be issued over TLS-ALPN-01", d)
		}
		if !hostnamePattern.MatchString(d) {
			return fmt.Errorf("domains: %q is not a valid hostname", d)
		}
		if seen[d] {
			return fmt.Errorf("domains: duplicate domain %q", d)
		}
		seen[d] = true
	}

	if c.Issuance.IsEnabled() && strings.TrimSpace(c.Issuance.Email) == "" {
		return errors.New("issuance.email is required when issuance is enabled")
	}

	if !runTagPattern.MatchString(c.RunTag) {
		return fmt.Errorf("run_tag %q must be lowercase alphanumeric with hyphens, at most 48 characters", c.RunTag)
	}

	if _, ok := ValidLocations[c.Instance.Location]; !ok {
		return fmt.Errorf("instance.location %q: must be one of %v", c.Instance.Location, sortedKeys(ValidLocations))
	}

	if err := c.validateNetwork(); err != nil {
		return fmt.Errorf("network: %w", err)
	}

	switch c.DNS.Provider {
	case DNSProviderRoute53, DNSProviderCloudflare:
	default:
		return fmt.Errorf("dns.provider %q: must be %q or %q", c.DNS.Provider, DNSProviderRoute53, DNSProviderCloudflare)
	}
	if c.DNS.TTL < 60 {
		return fmt.Errorf("dns.ttl %d: must be at least 60 seconds", c.DNS.TTL)
	}

	switch c.Store.Kind {
	case StoreHCloud, StoreIAM:
	case StoreS3:
		if c.Store.Bucket == "" {
			return errors.New("store.bucket is required for the s3 store")
		}
	default:
		return fmt.Errorf("store.kind %q: must be one of %q, %q, %q", c.Store.Kind, StoreHCloud, StoreIAM, StoreS3)
	}
	if c.Store.Kind == StoreIAM && (!strings.HasPrefix(c.Store.Path, "/") || !strings.HasSuffix(c.Store.Path, "/")) {
		return fmt.Errorf("store.path %q: IAM paths must begin and end with '/'", c.Store.Path)
	}

	if c.Delays.Reachability <= 0 {
		return errors.New("delays.reachability must be positive")
	}

	return nil
}

func (c *Config) validateNetwork() error {
	_, ipRange, err := net.ParseCIDR(c.Network.IPRange)
	if err != nil {
		return fmt.Errorf("invalid ip_range %q: %w", c.Network.IPRange, err)
	}
	subnetIP, _, err := net.ParseCIDR(c.Network.SubnetRange)
	if err != nil {
		return fmt.Errorf("invalid subnet_range %q: %w", c.Network.SubnetRange, err)
	}
	if !ipRange.Contains(subnetIP) {
		return fmt.Errorf("subnet_range %s is outside ip_range %s", c.Network.SubnetRange, c.Network.IPRange)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
