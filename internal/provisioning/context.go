package provisioning

import (
	"context"
	"sync"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/certzner/internal/config"
	hcloud_internal "github.com/imamik/certzner/internal/platform/hcloud"
	"github.com/imamik/certzner/internal/util/labels"
	"github.com/imamik/certzner/internal/util/netutil"
	"github.com/imamik/certzner/internal/util/retry"
)

// RunContext is the immutable description of one run.
type RunContext struct {
	RunTag  string
	Domains []string

	Email           string
	IssuanceEnabled bool
	Issuance        config.IssuanceConfig

	Location   string
	Image      string
	ServerType string
	SSHKeyPath string
	SSHUser    string

	Network config.NetworkConfig

	DNSProvider        string
	DNSZones           []string
	RecordTTL          int64
	PropagationTimeout time.Duration

	StoreKind   string
	StorePath   string
	StoreBucket string

	IdentityEnabled bool

	Delays config.DelayConfig
}

// NewRunContext builds a RunContext from a defaulted configuration.
func NewRunContext(cfg *config.Config) RunContext {
	return RunContext{
		RunTag:             cfg.RunTag,
		Domains:            append([]string(nil), cfg.Domains...),
		Email:              cfg.Issuance.Email,
		IssuanceEnabled:    cfg.Issuance.IsEnabled(),
		Issuance:           cfg.Issuance,
		Location:           cfg.Instance.Location,
		Image:              cfg.Instance.Image,
		ServerType:         cfg.Instance.ServerType,
		SSHKeyPath:         cfg.Instance.SSHKeyPath,
		SSHUser:            cfg.Instance.SSHUser,
		Network:            cfg.Network,
		DNSProvider:        cfg.DNS.Provider,
		DNSZones:           append([]string(nil), cfg.DNS.Zones...),
		RecordTTL:          cfg.DNS.TTL,
		PropagationTimeout: cfg.DNS.PropagationTimeout,
		StoreKind:          cfg.Store.Kind,
		StorePath:          cfg.Store.Path,
		StoreBucket:        cfg.Store.Bucket,
		IdentityEnabled:    cfg.Identity.IsEnabled(),
		Delays:             cfg.Delays,
	}
}

// UsesIdentity reports whether the run creates a publishing identity role.
// Only AWS-backed stores have an identity API.
func (r RunContext) UsesIdentity() bool {
	return r.IdentityEnabled && (r.StoreKind == config.StoreIAM || r.StoreKind == config.StoreS3)
}

// Labels returns the labels every resource of the run carries.
func (r RunContext) Labels() map[string]string {
	return labels.NewLabelBuilder(r.RunTag).Build()
}

// Selector returns the labels teardown rediscovers resources by.
func (r RunContext) Selector() map[string]string {
	return labels.ForRun(r.RunTag)
}

// DomainRecord is the challenge A record published for a domain.
type DomainRecord struct {
	Domain string
	Zone   string
	Value  string
	TTL    int64
}

// CertificateArtifact is the certificate material produced on the instance.
type CertificateArtifact struct {
	Domain      string
	Certificate []byte // leaf PEM
	PrivateKey  []byte
	Chain       []byte
	Path        string
	NotAfter    time.Time
	Reused      bool
}

// PublishedCertificate is one trust-store entry.
type PublishedCertificate struct {
	Name        string
	Path        string
	Domain      string
	Certificate []byte
	PrivateKey  []byte
	Chain       []byte
}

// DomainStatus is the final state of one domain.
type DomainStatus string

// Domain outcomes.
const (
	DomainPublished DomainStatus = "published"
	DomainFailed    DomainStatus = "failed"
	DomainSkipped   DomainStatus = "skipped"
	DomainAbsent    DomainStatus = "absent"
)

// DomainOutcome records what happened to one domain.
type DomainOutcome struct {
	Domain    string
	Status    DomainStatus
	Reused    bool
	StoreName string
	NotAfter  time.Time
	Err       error
}

// State holds the shared results of provisioning phases.
// It is progressively populated as each phase completes and is passed
// to subsequent phases that need earlier results.
type State struct {
	mu sync.Mutex

	// Infrastructure results (populated by infrastructure provisioner)
	SSHKeyID   int64
	PrivateKey []byte
	NetworkID  int64
	FirewallID int64
	RoleARN    string
	Instance   *hcloud.Server
	InstanceIP string

	// Remote is the session to the ready instance.
	Remote RemoteExecutor

	outcomes []*DomainOutcome
}

// NewState creates an empty provisioning state.
func NewState() *State {
	return &State{}
}

// RecordOutcome appends a domain outcome.
func (s *State) RecordOutcome(o *DomainOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
}

// Outcomes returns the recorded domain outcomes in processing order.
func (s *State) Outcomes() []*DomainOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*DomainOutcome(nil), s.outcomes...)
}

// Context wraps all dependencies and state needed for a provisioning phase.
type Context struct {
	context.Context
	Run      RunContext
	State    *State
	Registry *Registry
	Infra    hcloud_internal.InfrastructureManager
	Identity IdentityManager
	DNS      DNSProvider
	Store    CertificateStore
	Dialer   RemoteDialer
	Observer Observer
	Timeouts *config.Timeouts
	Metrics  *Metrics

	// StoreForRole returns a store that writes with the run's identity role.
	// Nil when the store does not support role credentials.
	StoreForRole func(ctx context.Context, roleARN string) (CertificateStore, error)

	// Sleep and WaitForPort are replaceable so tests run without real waits.
	Sleep       func(ctx context.Context, d time.Duration) error
	WaitForPort func(ctx context.Context, host string, port int, timeout time.Duration) error
}

// NewContext creates a new provisioning context.
func NewContext(
	ctx context.Context,
	run RunContext,
	infra hcloud_internal.InfrastructureManager,
	registry *Registry,
) *Context {
	if registry == nil {
		registry = NewRegistry(run.RunTag)
	}
	return &Context{
		Context:     ctx,
		Run:         run,
		State:       NewState(),
		Registry:    registry,
		Infra:       infra,
		Observer:    NewConsoleObserver(),
		Timeouts:    config.LoadTimeouts(),
		Sleep:       retry.Sleep,
		WaitForPort: netutil.WaitForPort,
	}
}

// WithContext returns a shallow copy bound to ctx. Teardown uses it to run
// on a fresh context after the run's own context was cancelled.
func (c *Context) WithContext(ctx context.Context) *Context {
	cp := *c
	cp.Context = ctx
	return &cp
}
