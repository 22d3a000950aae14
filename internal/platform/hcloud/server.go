package hcloud

import (
	"context"
	"fmt"
	"sort"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/certzner/internal/util/labels"
	"github.com/imamik/certzner/internal/util/retry"
)

// EnsureServer guarantees exactly one server matches spec.Selector and
// returns it. A server named spec.Name is preferred when several match;
// the others are deleted.
func (c *RealClient) EnsureServer(ctx context.Context, spec ServerSpec) (*hcloud.Server, error) {
	if spec.Name == "" || spec.Image == "" || spec.ServerType == "" {
		return nil, fmt.Errorf("server name, image and server type are required")
	}
	selector := spec.Selector
	if len(selector) == 0 {
		selector = spec.Labels
	}

	existing, err := c.GetServersByLabel(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		keep, extras := pickServer(existing, spec.Name)
		for _, s := range extras {
			c.log.Info("deleting extra issuer server", "name", s.Name, "id", s.ID)
			if err := c.DeleteServer(ctx, s.Name); err != nil {
				return nil, fmt.Errorf("failed to delete extra server %s: %w", s.Name, err)
			}
		}
		c.log.Info("reusing issuer server", "name", keep.Name, "id", keep.ID)
		return keep, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.ServerCreate)
	defer cancel()

	// A failed action wait still returns the created server so callers can
	// record it for teardown.
	result, err := c.createServerWithRetry(ctx, buildServerCreateOpts(spec))
	return result.Server, err
}

func buildServerCreateOpts(spec ServerSpec) hcloud.ServerCreateOpts {
	opts := hcloud.ServerCreateOpts{
		Name:       spec.Name,
		ServerType: &hcloud.ServerType{Name: spec.ServerType},
		Image:      &hcloud.Image{Name: spec.Image},
		Labels:     spec.Labels,
		UserData:   spec.UserData,
		PublicNet: &hcloud.ServerCreatePublicNet{
			EnableIPv4: true,
			EnableIPv6: true,
		},
	}
	if spec.Location != "" {
		opts.Location = &hcloud.Location{Name: spec.Location}
	}
	if spec.SSHKeyID != 0 {
		opts.SSHKeys = []*hcloud.SSHKey{{ID: spec.SSHKeyID}}
	}
	if spec.NetworkID != 0 {
		opts.Networks = []*hcloud.Network{{ID: spec.NetworkID}}
	}
	if spec.FirewallID != 0 {
		opts.Firewalls = []*hcloud.ServerCreateFirewall{{Firewall: hcloud.Firewall{ID: spec.FirewallID}}}
	}
	return opts
}

// pickServer returns the server to keep and the ones to delete.
func pickServer(servers []*hcloud.Server, name string) (*hcloud.Server, []*hcloud.Server) {
	sorted := make([]*hcloud.Server, len(servers))
	copy(sorted, servers)
	sort.SliceStable(sorted, func(i, j int) bool {
		if (sorted[i].Name == name) != (sorted[j].Name == name) {
			return sorted[i].Name == name
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0], sorted[1:]
}

func (c *RealClient) createServerWithRetry(ctx context.Context, opts hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, error) {
	var result hcloud.ServerCreateResult

	err := retry.WithExponentialBackoff(ctx, func() error {
		res, _, err := c.client.Server.Create(ctx, opts)
		if err != nil {
			if isInvalidParameter(err) {
				return retry.Fatal(err)
			}
			return err
		}
		result = res
		return nil
	}, retry.WithMaxRetries(c.timeouts.RetryMaxAttempts), retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
	if err != nil {
		return result, fmt.Errorf("failed to create server: %w", err)
	}

	actions := append([]*hcloud.Action{}, result.NextActions...)
	if result.Action != nil {
		actions = append(actions, result.Action)
	}
	if err := waitForActions(ctx, c.client, actions...); err != nil {
		return result, fmt.Errorf("failed to wait for server creation: %w", err)
	}
	return result, nil
}

// DeleteServer deletes the server with the given name and waits for the
// delete action.
func (c *RealClient) DeleteServer(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Server]{
		Name:         name,
		ResourceType: "server",
		Get:          c.client.Server.Get,
		Delete: func(ctx context.Context, server *hcloud.Server) (*hcloud.Response, error) {
			res, resp, err := c.client.Server.DeleteWithResult(ctx, server)
			if err != nil {
				return resp, err
			}
			if res != nil && res.Action != nil {
				return resp, waitForActions(ctx, c.client, res.Action)
			}
			return resp, nil
		},
	}).Execute(ctx, c)
}

// GetServerByName returns the server with the given name, or nil.
func (c *RealClient) GetServerByName(ctx context.Context, name string) (*hcloud.Server, error) {
	server, _, err := c.client.Server.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	return server, nil
}

// GetServersByLabel returns all servers matching the given labels.
func (c *RealClient) GetServersByLabel(ctx context.Context, selector map[string]string) ([]*hcloud.Server, error) {
	servers, err := c.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: labels.Selector(selector)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	return servers, nil
}

// ServerIPv4 extracts the public IPv4 address from a server, or empty string if not set.
func ServerIPv4(s *hcloud.Server) string {
	if s != nil && s.PublicNet.IPv4.IP != nil && !s.PublicNet.IPv4.IP.IsUnspecified() {
		return s.PublicNet.IPv4.IP.String()
	}
	return ""
}
