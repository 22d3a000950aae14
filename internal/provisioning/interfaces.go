package provisioning

import (
	"context"
)

// Phase defines the interface for a provisioning phase.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the logic of this phase.
	Provision(ctx *Context) error
}

// IdentityManager creates and removes the run's publishing identity.
// Implemented by internal/platform/iam.Client.
type IdentityManager interface {
	CallerAccount(ctx context.Context) (string, error)
	EnsureRole(ctx context.Context, name, trustPolicy string, tags map[string]string) (string, error)
	PutRolePolicy(ctx context.Context, role, policyName, document string) error
	DeleteRolePolicy(ctx context.Context, role, policyName string) error
	DeleteRole(ctx context.Context, name string) error
}

// DNSProvider manages challenge A records.
// Implemented by internal/platform/route53.Client and internal/platform/cloudflare.Client.
type DNSProvider interface {
	// UpsertARecord creates or overwrites an A record. When wait is set it
	// blocks until the provider reports the change as propagated.
	UpsertARecord(ctx context.Context, zone, name, value string, ttl int64, wait bool) error

	// DeleteARecord removes an A record. Absence is success.
	DeleteARecord(ctx context.Context, zone, name string) error
}

// CertificateStore is the durable trust store certificates are published to.
type CertificateStore interface {
	// Kind names the store for logs and reports.
	Kind() string

	// DeleteCertificate removes the entry stored under name. Absence is success.
	DeleteCertificate(ctx context.Context, name string) error

	// CreateCertificate stores a new entry.
	CreateCertificate(ctx context.Context, cert PublishedCertificate) error
}

// RemoteExecutor runs commands on the issuer instance.
// Implemented by internal/platform/ssh.Client.
type RemoteExecutor interface {
	Execute(ctx context.Context, command string) (string, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	FileExists(ctx context.Context, path string) (bool, error)
}

// RemoteDialer opens a RemoteExecutor for a host.
type RemoteDialer interface {
	Dial(host string, privateKey []byte) (RemoteExecutor, error)
}

// DialerFunc adapts a function to RemoteDialer.
type DialerFunc func(host string, privateKey []byte) (RemoteExecutor, error)

// Dial implements RemoteDialer.
func (f DialerFunc) Dial(host string, privateKey []byte) (RemoteExecutor, error) {
	return f(host, privateKey)
}

// ChallengeCoordinator publishes and retracts a domain's challenge record.
type ChallengeCoordinator interface {
	Publish(ctx *Context, domain string) error
	Retract(ctx *Context, domain string)
}

// CertificateIssuer obtains certificate artifacts on the instance.
type CertificateIssuer interface {
	// Prepare installs the issuance agent. Called once before any domain.
	Prepare(ctx *Context) error

	// Existing returns the artifact for domain if one is already on the
	// instance, or nil.
	Existing(ctx *Context, domain string) (*CertificateArtifact, error)

	// Issue runs the agent for domain unless its artifact already exists.
	Issue(ctx *Context, domain string) (*CertificateArtifact, error)
}

// CertificatePublisher upserts an artifact into the trust store.
type CertificatePublisher interface {
	Publish(ctx *Context, artifact *CertificateArtifact) error
}
