package config

import "time"

// DNS provider kinds.
const (
	DNSProviderRoute53    = "route53"
	DNSProviderCloudflare = "cloudflare"
)

// Certificate store kinds.
const (
	StoreHCloud = "hcloud"
	StoreIAM    = "iam"
	StoreS3     = "s3"
)

// Config is the complete configuration of one issuance run.
type Config struct {
	// RunTag namespaces every resource created by the run. Generated when empty.
	RunTag string `yaml:"run_tag,omitempty"`

	// Domains are the fully-qualified names to issue certificates for.
	Domains []string `yaml:"domains"`

	Issuance IssuanceConfig `yaml:"issuance"`
	Instance InstanceConfig `yaml:"instance"`
	Network  NetworkConfig  `yaml:"network,omitempty"`
	DNS      DNSConfig      `yaml:"dns"`
	Store    StoreConfig    `yaml:"store"`
	Identity IdentityConfig `yaml:"identity,omitempty"`
	Delays   DelayConfig    `yaml:"delays,omitempty"`
}

// IssuanceConfig controls the issuance agent.
type IssuanceConfig struct {
	// Enabled toggles issuance. Defaults to true.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Email is the ACME contact identity. Required when issuance is enabled.
	Email string `yaml:"email"`

	// Server overrides the ACME directory URL.
	Server string `yaml:"server,omitempty"`

	// Staging selects the Let's Encrypt staging directory when Server is empty.
	Staging bool `yaml:"staging,omitempty"`

	// Directory is where the agent keeps accounts and certificates on the instance.
	Directory string `yaml:"directory,omitempty"`

	// KeyType is passed to the agent (ec256, rsa2048, ...).
	KeyType string `yaml:"key_type,omitempty"`

	// InstallCommand installs the agent on the instance.
	InstallCommand string `yaml:"install_command,omitempty"`
}

// IsEnabled reports whether issuance is enabled.
func (i IssuanceConfig) IsEnabled() bool {
	return i.Enabled == nil || *i.Enabled
}

// InstanceConfig selects the ephemeral issuer server.
type InstanceConfig struct {
	Location   string `yaml:"location"`
	Image      string `yaml:"image,omitempty"`
	ServerType string `yaml:"server_type,omitempty"`

	// SSHKeyPath is the private key used to reach the instance. A key pair is
	// generated for the run when empty.
	SSHKeyPath string `yaml:"ssh_key_path,omitempty"`
	SSHUser    string `yaml:"ssh_user,omitempty"`
}

// NetworkConfig describes the isolated run network.
type NetworkConfig struct {
	IPRange     string `yaml:"ip_range,omitempty"`
	SubnetRange string `yaml:"subnet_range,omitempty"`
	Zone        string `yaml:"zone,omitempty"`
}

// DNSConfig selects the challenge DNS provider.
type DNSConfig struct {
	Provider string `yaml:"provider"`

	// Zones lists pre-registered zones whose apex may be issued for directly.
	Zones []string `yaml:"zones,omitempty"`

	// TTL of challenge records in seconds.
	TTL int64 `yaml:"ttl,omitempty"`

	// PropagationTimeout bounds the wait for a created record to propagate.
	PropagationTimeout time.Duration `yaml:"propagation_timeout,omitempty"`
}

// StoreConfig selects the durable certificate store.
type StoreConfig struct {
	Kind string `yaml:"kind"`

	// Path scopes published certificates (IAM path, S3 prefix, hcloud label).
	Path string `yaml:"path,omitempty"`

	// Bucket is required for the s3 store.
	Bucket string `yaml:"bucket,omitempty"`

	// Region is the AWS region for iam, s3 and the identity role.
	Region string `yaml:"region,omitempty"`

	// Endpoint overrides the S3 endpoint (S3-compatible object storage).
	Endpoint string `yaml:"endpoint,omitempty"`
}

// IsAWS reports whether the store is backed by AWS APIs.
func (s StoreConfig) IsAWS() bool {
	return s.Kind == StoreIAM || s.Kind == StoreS3
}

// IdentityConfig controls the run's publishing identity.
type IdentityConfig struct {
	// Enabled toggles creation of the publishing role for AWS-backed stores.
	// Defaults to true.
	Enabled *bool `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the identity role should be created.
func (i IdentityConfig) IsEnabled() bool {
	return i.Enabled == nil || *i.Enabled
}

// DelayConfig holds the bounded waits of the run.
type DelayConfig struct {
	// InitialSettle is waited after instance creation before probing SSH.
	// Zero skips the wait.
	InitialSettle time.Duration `yaml:"initial_settle"`

	// Reachability bounds the wait for the SSH port.
	Reachability time.Duration `yaml:"reachability,omitempty"`

	// Readiness bounds the wait for startup automation (cloud-init).
	Readiness time.Duration `yaml:"readiness,omitempty"`

	// ReadinessFallback is slept when no readiness signal is available.
	ReadinessFallback time.Duration `yaml:"readiness_fallback"`

	// TeardownWait bounds the wait for terminated instances to disappear.
	TeardownWait time.Duration `yaml:"teardown_wait,omitempty"`

	// TeardownSettle is slept when instance absence cannot be confirmed.
	TeardownSettle time.Duration `yaml:"teardown_settle"`
}
