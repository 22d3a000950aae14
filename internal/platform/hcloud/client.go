// Package hcloud provides a wrapper around the Hetzner Cloud API.
package hcloud

import (
	"context"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// ServerSpec describes the single issuer server of a run.
type ServerSpec struct {
	Name       string
	Image      string
	ServerType string
	Location   string
	SSHKeyID   int64
	FirewallID int64
	NetworkID  int64
	Labels     map[string]string
	UserData   string

	// Selector identifies servers belonging to the run. Defaults to Labels.
	Selector map[string]string
}

// ServerProvisioner defines the interface for the issuer server lifecycle.
type ServerProvisioner interface {
	// EnsureServer guarantees exactly one server matches spec.Selector.
	// An existing match is reused and extra matches are deleted.
	// A server whose create actions fail is returned with the error.
	EnsureServer(ctx context.Context, spec ServerSpec) (*hcloud.Server, error)
	DeleteServer(ctx context.Context, name string) error
	GetServerByName(ctx context.Context, name string) (*hcloud.Server, error)
	GetServersByLabel(ctx context.Context, labels map[string]string) ([]*hcloud.Server, error)
}

// SSHKeyManager defines the interface for managing SSH keys.
type SSHKeyManager interface {
	EnsureSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error)
	DeleteSSHKey(ctx context.Context, name string) error
}

// NetworkManager defines the interface for managing networks.
type NetworkManager interface {
	EnsureNetwork(ctx context.Context, name, ipRange string, labels map[string]string) (*hcloud.Network, error)
	EnsureSubnet(ctx context.Context, network *hcloud.Network, ipRange, networkZone string) error
	DeleteNetwork(ctx context.Context, name string) error
}

// FirewallManager defines the interface for managing firewalls.
type FirewallManager interface {
	EnsureFirewall(ctx context.Context, name string, rules []hcloud.FirewallRule, labels map[string]string) (*hcloud.Firewall, error)
	DeleteFirewall(ctx context.Context, name string) error
}

// CertificateManager defines the interface for the uploaded-certificate store.
type CertificateManager interface {
	CreateCertificate(ctx context.Context, name, certificate, privateKey string, labels map[string]string) (*hcloud.Certificate, error)
	GetCertificate(ctx context.Context, name string) (*hcloud.Certificate, error)
	DeleteCertificate(ctx context.Context, name string) error
}

// InfrastructureManager combines all infrastructure interfaces.
type InfrastructureManager interface {
	ServerProvisioner
	SSHKeyManager
	NetworkManager
	FirewallManager
	CertificateManager

	// CleanupByLabel deletes servers, firewalls, networks and SSH keys
	// matching the label selector.
	CleanupByLabel(ctx context.Context, labelSelector map[string]string) error
}
