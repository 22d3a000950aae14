package testing

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	hcloud_internal "github.com/imamik/certzner/internal/platform/hcloud"
)

// FakeCloud is an in-memory Hetzner Cloud. Every resource keeps its labels
// so tests can assert that nothing tagged with a run survives teardown.
type FakeCloud struct {
	mu     sync.Mutex
	nextID int64

	Servers      map[string]*hcloud.Server
	SSHKeys      map[string]*hcloud.SSHKey
	Networks     map[string]*hcloud.Network
	Firewalls    map[string]*hcloud.Firewall
	Certificates map[string]*hcloud.Certificate

	// Calls records every method invocation in order.
	Calls []string

	// Errors injects a failure for the named method (e.g. "EnsureServer").
	Errors map[string]error

	// AfterCreate injects a failure that an Ensure method returns together
	// with the resource it just created.
	AfterCreate map[string]error

	// ServerIP is the public IPv4 given to created servers.
	ServerIP string
}

var _ hcloud_internal.InfrastructureManager = (*FakeCloud)(nil)

// NewFakeCloud creates an empty cloud.
func NewFakeCloud() *FakeCloud {
	return &FakeCloud{
		Servers:      make(map[string]*hcloud.Server),
		SSHKeys:      make(map[string]*hcloud.SSHKey),
		Networks:     make(map[string]*hcloud.Network),
		Firewalls:    make(map[string]*hcloud.Firewall),
		Certificates: make(map[string]*hcloud.Certificate),
		Errors:       make(map[string]error),
		AfterCreate:  make(map[string]error),
		ServerIP:     "203.0.113.10",
	}
}

// Fail makes the named method return err from now on.
func (f *FakeCloud) Fail(method string, err error) *FakeCloud {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[method] = err
	return f
}

// FailAfterCreate makes the named Ensure method create its resource and then
// return it together with err, as a failed action wait does.
func (f *FakeCloud) FailAfterCreate(method string, err error) *FakeCloud {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AfterCreate[method] = err
	return f
}

// call records a call and returns the injected error, if any. Callers hold f.mu.
func (f *FakeCloud) call(method, arg string) error {
	f.Calls = append(f.Calls, method+":"+arg)
	return f.Errors[method]
}

func (f *FakeCloud) id() int64 {
	f.nextID++
	return f.nextID
}

// Tagged returns "kind/name" for every non-certificate resource whose labels
// include selector, sorted.
func (f *FakeCloud) Tagged(selector map[string]string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for name, s := range f.Servers {
		if matches(s.Labels, selector) {
			out = append(out, "server/"+name)
		}
	}
	for name, k := range f.SSHKeys {
		if matches(k.Labels, selector) {
			out = append(out, "ssh-key/"+name)
		}
	}
	for name, n := range f.Networks {
		if matches(n.Labels, selector) {
			out = append(out, "network/"+name)
		}
	}
	for name, fw := range f.Firewalls {
		if matches(fw.Labels, selector) {
			out = append(out, "firewall/"+name)
		}
	}
	sort.Strings(out)
	return out
}

// CallCount returns how often method was called.
func (f *FakeCloud) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if len(c) > len(method) && c[:len(method)+1] == method+":" {
			n++
		}
	}
	return n
}

func matches(labels, selector map[string]string) bool {
	if len(selector) == 0 {
		return false
	}
	for k, v := range selector {
		if labels[k] != v {
			return false
		}
	}
	return true
}

func copyLabels(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// EnsureServer implements ServerProvisioner.
func (f *FakeCloud) EnsureServer(_ context.Context, spec hcloud_internal.ServerSpec) (*hcloud.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("EnsureServer", spec.Name); err != nil {
		return nil, err
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}

	selector := spec.Selector
	if selector == nil {
		selector = spec.Labels
	}
	var existing []*hcloud.Server
	for _, s := range f.Servers {
		if matches(s.Labels, selector) {
			existing = append(existing, s)
		}
	}
	if len(existing) > 0 {
		sort.Slice(existing, func(i, j int) bool { return existing[i].ID < existing[j].ID })
		keep := existing[0]
		for _, s := range existing {
			if s.Name == spec.Name {
				keep = s
			}
		}
		for _, s := range existing {
			if s != keep {
				delete(f.Servers, s.Name)
			}
		}
		return keep, nil
	}

	s := &hcloud.Server{
		ID:     f.id(),
		Name:   spec.Name,
		Labels: copyLabels(spec.Labels),
		Status: hcloud.ServerStatusRunning,
		PublicNet: hcloud.ServerPublicNet{
			IPv4: hcloud.ServerPublicNetIPv4{IP: net.ParseIP(f.ServerIP)},
		},
	}
	f.Servers[spec.Name] = s
	return s, f.AfterCreate["EnsureServer"]
}

// DeleteServer implements ServerProvisioner.
func (f *FakeCloud) DeleteServer(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteServer", name); err != nil {
		return err
	}
	delete(f.Servers, name)
	return nil
}

// GetServerByName implements ServerProvisioner.
func (f *FakeCloud) GetServerByName(_ context.Context, name string) (*hcloud.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("GetServerByName", name); err != nil {
		return nil, err
	}
	return f.Servers[name], nil
}

// GetServersByLabel implements ServerProvisioner.
func (f *FakeCloud) GetServersByLabel(_ context.Context, labels map[string]string) ([]*hcloud.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("GetServersByLabel", ""); err != nil {
		return nil, err
	}
	var out []*hcloud.Server
	for _, s := range f.Servers {
		if matches(s.Labels, labels) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// EnsureSSHKey implements SSHKeyManager.
func (f *FakeCloud) EnsureSSHKey(_ context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("EnsureSSHKey", name); err != nil {
		return nil, err
	}
	if k, ok := f.SSHKeys[name]; ok {
		return k, nil
	}
	k := &hcloud.SSHKey{ID: f.id(), Name: name, PublicKey: publicKey, Labels: copyLabels(labels)}
	f.SSHKeys[name] = k
	return k, nil
}

// DeleteSSHKey implements SSHKeyManager.
func (f *FakeCloud) DeleteSSHKey(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteSSHKey", name); err != nil {
		return err
	}
	delete(f.SSHKeys, name)
	return nil
}

// EnsureNetwork implements NetworkManager.
func (f *FakeCloud) EnsureNetwork(_ context.Context, name, ipRange string, labels map[string]string) (*hcloud.Network, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("EnsureNetwork", name); err != nil {
		return nil, err
	}
	if n, ok := f.Networks[name]; ok {
		return n, nil
	}
	_, ipNet, err := net.ParseCIDR(ipRange)
	if err != nil {
		return nil, fmt.Errorf("invalid ip range %q: %w", ipRange, err)
	}
	n := &hcloud.Network{ID: f.id(), Name: name, IPRange: ipNet, Labels: copyLabels(labels)}
	f.Networks[name] = n
	return n, f.AfterCreate["EnsureNetwork"]
}

// EnsureSubnet implements NetworkManager.
func (f *FakeCloud) EnsureSubnet(_ context.Context, network *hcloud.Network, ipRange, zone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("EnsureSubnet", network.Name); err != nil {
		return err
	}
	_, ipNet, err := net.ParseCIDR(ipRange)
	if err != nil {
		return fmt.Errorf("invalid subnet range %q: %w", ipRange, err)
	}
	for _, s := range network.Subnets {
		if s.IPRange != nil && s.IPRange.String() == ipNet.String() {
			return nil
		}
	}
	network.Subnets = append(network.Subnets, hcloud.NetworkSubnet{
		Type:        hcloud.NetworkSubnetTypeCloud,
		IPRange:     ipNet,
		NetworkZone: hcloud.NetworkZone(zone),
	})
	return nil
}

// DeleteNetwork implements NetworkManager.
func (f *FakeCloud) DeleteNetwork(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteNetwork", name); err != nil {
		return err
	}
	delete(f.Networks, name)
	return nil
}

// EnsureFirewall implements FirewallManager.
func (f *FakeCloud) EnsureFirewall(_ context.Context, name string, rules []hcloud.FirewallRule, labels map[string]string) (*hcloud.Firewall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("EnsureFirewall", name); err != nil {
		return nil, err
	}
	if fw, ok := f.Firewalls[name]; ok {
		fw.Rules = rules
		return fw, nil
	}
	fw := &hcloud.Firewall{ID: f.id(), Name: name, Rules: rules, Labels: copyLabels(labels)}
	f.Firewalls[name] = fw
	return fw, f.AfterCreate["EnsureFirewall"]
}

// DeleteFirewall implements FirewallManager.
func (f *FakeCloud) DeleteFirewall(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteFirewall", name); err != nil {
		return err
	}
	delete(f.Firewalls, name)
	return nil
}

// CreateCertificate implements CertificateManager. Names are unique.
func (f *FakeCloud) CreateCertificate(_ context.Context, name, certificate, _ string, labels map[string]string) (*hcloud.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateCertificate", name); err != nil {
		return nil, err
	}
	if _, ok := f.Certificates[name]; ok {
		return nil, hcloud.Error{Code: hcloud.ErrorCodeUniquenessError, Message: "name is already used"}
	}
	c := &hcloud.Certificate{ID: f.id(), Name: name, Certificate: certificate, Labels: copyLabels(labels)}
	f.Certificates[name] = c
	return c, nil
}

// GetCertificate implements CertificateManager.
func (f *FakeCloud) GetCertificate(_ context.Context, name string) (*hcloud.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("GetCertificate", name); err != nil {
		return nil, err
	}
	return f.Certificates[name], nil
}

// DeleteCertificate implements CertificateManager.
func (f *FakeCloud) DeleteCertificate(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteCertificate", name); err != nil {
		return err
	}
	delete(f.Certificates, name)
	return nil
}

// CleanupByLabel implements InfrastructureManager. Certificates are durable
// and never swept.
func (f *FakeCloud) CleanupByLabel(_ context.Context, selector map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CleanupByLabel", ""); err != nil {
		return err
	}
	if len(selector) == 0 {
		return fmt.Errorf("refusing to clean up with an empty label selector")
	}
	for name, s := range f.Servers {
		if matches(s.Labels, selector) {
			delete(f.Servers, name)
		}
	}
	for name, fw := range f.Firewalls {
		if matches(fw.Labels, selector) {
			delete(f.Firewalls, name)
		}
	}
	for name, n := range f.Networks {
		if matches(n.Labels, selector) {
			delete(f.Networks, name)
		}
	}
	for name, k := range f.SSHKeys {
		if matches(k.Labels, selector) {
			delete(f.SSHKeys, name)
		}
	}
	return nil
}
