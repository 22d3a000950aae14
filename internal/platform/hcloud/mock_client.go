package hcloud

import (
	"context"
	"net"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// MockClient is a function-field implementation of InfrastructureManager.
// Unset functions return benign defaults.
type MockClient struct {
	// Server
	EnsureServerFunc      func(ctx context.Context, spec ServerSpec) (*hcloud.Server, error)
	DeleteServerFunc      func(ctx context.Context, name string) error
	GetServerByNameFunc   func(ctx context.Context, name string) (*hcloud.Server, error)
	GetServersByLabelFunc func(ctx context.Context, labels map[string]string) ([]*hcloud.Server, error)

	// SSH key
	EnsureSSHKeyFunc func(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error)
	DeleteSSHKeyFunc func(ctx context.Context, name string) error

	// Network
	EnsureNetworkFunc func(ctx context.Context, name, ipRange string, labels map[string]string) (*hcloud.Network, error)
	EnsureSubnetFunc  func(ctx context.Context, network *hcloud.Network, ipRange, networkZone string) error
	DeleteNetworkFunc func(ctx context.Context, name string) error

	// Firewall
	EnsureFirewallFunc func(ctx context.Context, name string, rules []hcloud.FirewallRule, labels map[string]string) (*hcloud.Firewall, error)
	DeleteFirewallFunc func(ctx context.Context, name string) error

	// Certificate
	CreateCertificateFunc func(ctx context.Context, name, certificate, privateKey string, labels map[string]string) (*hcloud.Certificate, error)
	GetCertificateFunc    func(ctx context.Context, name string) (*hcloud.Certificate, error)
	DeleteCertificateFunc func(ctx context.Context, name string) error

	CleanupByLabelFunc func(ctx context.Context, labelSelector map[string]string) error
}

var _ InfrastructureManager = (*MockClient)(nil)

// EnsureServer implements ServerProvisioner.
func (m *MockClient) EnsureServer(ctx context.Context, spec ServerSpec) (*hcloud.Server, error) {
	if m.EnsureServerFunc != nil {
		return m.EnsureServerFunc(ctx, spec)
	}
	return &hcloud.Server{
		ID:     1,
		Name:   spec.Name,
		Labels: spec.Labels,
		PublicNet: hcloud.ServerPublicNet{
			IPv4: hcloud.ServerPublicNetIPv4{IP: net.ParseIP("203.0.113.10")},
		},
	}, nil
}

// DeleteServer implements ServerProvisioner.
func (m *MockClient) DeleteServer(ctx context.Context, name string) error {
	if m.DeleteServerFunc != nil {
		return m.DeleteServerFunc(ctx, name)
	}
	return nil
}

// GetServerByName implements ServerProvisioner.
func (m *MockClient) GetServerByName(ctx context.Context, name string) (*hcloud.Server, error) {
	if m.GetServerByNameFunc != nil {
		return m.GetServerByNameFunc(ctx, name)
	}
	return nil, nil
}

// GetServersByLabel implements ServerProvisioner.
func (m *MockClient) GetServersByLabel(ctx context.Context, labels map[string]string) ([]*hcloud.Server, error) {
	if m.GetServersByLabelFunc != nil {
		return m.GetServersByLabelFunc(ctx, labels)
	}
	return nil, nil
}

// EnsureSSHKey implements SSHKeyManager.
func (m *MockClient) EnsureSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error) {
	if m.EnsureSSHKeyFunc != nil {
		return m.EnsureSSHKeyFunc(ctx, name, publicKey, labels)
	}
	return &hcloud.SSHKey{ID: 2, Name: name, PublicKey: publicKey, Labels: labels}, nil
}

// DeleteSSHKey implements SSHKeyManager.
func (m *MockClient) DeleteSSHKey(ctx context.Context, name string) error {
	if m.DeleteSSHKeyFunc != nil {
		return m.DeleteSSHKeyFunc(ctx, name)
	}
	return nil
}

// EnsureNetwork implements NetworkManager.
func (m *MockClient) EnsureNetwork(ctx context.Context, name, ipRange string, labels map[string]string) (*hcloud.Network, error) {
	if m.EnsureNetworkFunc != nil {
		return m.EnsureNetworkFunc(ctx, name, ipRange, labels)
	}
	_, ipNet, _ := net.ParseCIDR(ipRange)
	return &hcloud.Network{ID: 3, Name: name, IPRange: ipNet, Labels: labels}, nil
}

// EnsureSubnet implements NetworkManager.
func (m *MockClient) EnsureSubnet(ctx context.Context, network *hcloud.Network, ipRange, networkZone string) error {
	if m.EnsureSubnetFunc != nil {
		return m.EnsureSubnetFunc(ctx, network, ipRange, networkZone)
	}
	return nil
}

// DeleteNetwork implements NetworkManager.
func (m *MockClient) DeleteNetwork(ctx context.Context, name string) error {
	if m.DeleteNetworkFunc != nil {
		return m.DeleteNetworkFunc(ctx, name)
	}
	return nil
}

// EnsureFirewall implements FirewallManager.
func (m *MockClient) EnsureFirewall(ctx context.Context, name string, rules []hcloud.FirewallRule, labels map[string]string) (*hcloud.Firewall, error) {
	if m.EnsureFirewallFunc != nil {
		return m.EnsureFirewallFunc(ctx, name, rules, labels)
	}
	return &hcloud.Firewall{ID: 4, Name: name, Rules: rules, Labels: labels}, nil
}

// DeleteFirewall implements FirewallManager.
func (m *MockClient) DeleteFirewall(ctx context.Context, name string) error {
	if m.DeleteFirewallFunc != nil {
		return m.DeleteFirewallFunc(ctx, name)
	}
	return nil
}

// CreateCertificate implements CertificateManager.
func (m *MockClient) CreateCertificate(ctx context.Context, name, certificate, privateKey string, labels map[string]string) (*hcloud.Certificate, error) {
	if m.CreateCertificateFunc != nil {
		return m.CreateCertificateFunc(ctx, name, certificate, privateKey, labels)
	}
	return &hcloud.Certificate{ID: 5, Name: name, Certificate: certificate, Labels: labels}, nil
}

// GetCertificate implements CertificateManager.
func (m *MockClient) GetCertificate(ctx context.Context, name string) (*hcloud.Certificate, error) {
	if m.GetCertificateFunc != nil {
		return m.GetCertificateFunc(ctx, name)
	}
	return nil, nil
}

// DeleteCertificate implements CertificateManager.
func (m *MockClient) DeleteCertificate(ctx context.Context, name string) error {
	if m.DeleteCertificateFunc != nil {
		return m.DeleteCertificateFunc(ctx, name)
	}
	return nil
}

// CleanupByLabel implements InfrastructureManager.
func (m *MockClient) CleanupByLabel(ctx context.Context, labelSelector map[string]string) error {
	if m.CleanupByLabelFunc != nil {
		return m.CleanupByLabelFunc(ctx, labelSelector)
	}
	return nil
}
