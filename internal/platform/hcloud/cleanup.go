package hcloud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/certzner/internal/util/labels"
	"github.com/imamik/certzner/internal/util/retry"
)

// serverGoneInterval is how often a label sweep re-lists terminating servers.
const serverGoneInterval = 5 * time.Second

// CleanupError accumulates errors from a label sweep.
type CleanupError struct {
	Errors []error
}

func (e *CleanupError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("cleanup encountered %d errors: %v", len(e.Errors), e.Errors)
}

func (e *CleanupError) Unwrap() error {
	return errors.Join(e.Errors...)
}

// Add records err when non-nil.
func (e *CleanupError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors reports whether any error was recorded.
func (e *CleanupError) HasErrors() bool {
	return len(e.Errors) > 0
}

type resource interface {
	*hcloud.Server | *hcloud.Firewall | *hcloud.Network | *hcloud.SSHKey
}

func resourceName[T resource](r T) (string, int64) {
	switch v := any(r).(type) {
	case *hcloud.Server:
		return v.Name, v.ID
	case *hcloud.Firewall:
		return v.Name, v.ID
	case *hcloud.Network:
		return v.Name, v.ID
	case *hcloud.SSHKey:
		return v.Name, v.ID
	}
	return "", 0
}

// deleteResourcesByLabel deletes every listed resource, continuing past failures.
func deleteResourcesByLabel[T resource](
	ctx context.Context,
	c *RealClient,
	resourceType string,
	listFn func(context.Context) ([]T, error),
	deleteFn func(context.Context, T) error,
) error {
	resources, err := listFn(ctx)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", resourceType, err)
	}

	var deleteErrs []error
	for _, r := range resources {
		name, id := resourceName(r)
		c.log.Info("deleting by label", "type", resourceType, "name", name, "id", id)
		if err := deleteFn(ctx, r); err != nil && !IsNotFound(err) {
			deleteErrs = append(deleteErrs, fmt.Errorf("%s %q: %w", resourceType, name, err))
		}
	}
	return errors.Join(deleteErrs...)
}

// CleanupByLabel deletes all servers, firewalls, networks and SSH keys
// matching the selector. Every resource type is attempted even when an
// earlier one fails; the returned error is a *CleanupError.
func (c *RealClient) CleanupByLabel(ctx context.Context, selector map[string]string) error {
	labelString := labels.Selector(selector)
	if labelString == "" {
		return errors.New("refusing to sweep with an empty label selector")
	}
	c.log.Info("starting label sweep", "selector", labelString)

	cleanupErrs := &CleanupError{}

	// Servers first: firewalls and networks stay in use until they are gone.
	if err := c.deleteServersByLabel(ctx, labelString); err != nil {
		cleanupErrs.Add(fmt.Errorf("servers: %w", err))
	}
	if err := c.deleteFirewallsByLabel(ctx, labelString); err != nil {
		cleanupErrs.Add(fmt.Errorf("firewalls: %w", err))
	}
	if err := c.deleteNetworksByLabel(ctx, labelString); err != nil {
		cleanupErrs.Add(fmt.Errorf("networks: %w", err))
	}
	if err := c.deleteSSHKeysByLabel(ctx, labelString); err != nil {
		cleanupErrs.Add(fmt.Errorf("SSH keys: %w", err))
	}

	if cleanupErrs.HasErrors() {
		c.log.Info("label sweep completed with errors", "count", len(cleanupErrs.Errors))
		return cleanupErrs
	}
	c.log.Info("label sweep complete", "selector", labelString)
	return nil
}

func (c *RealClient) listServers(ctx context.Context, labelSelector string) ([]*hcloud.Server, error) {
	return c.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: labelSelector},
	})
}

// deleteServersByLabel deletes matching servers and waits until none are listed.
func (c *RealClient) deleteServersByLabel(ctx context.Context, labelSelector string) error {
	err := deleteResourcesByLabel(ctx, c, "server",
		func(ctx context.Context) ([]*hcloud.Server, error) {
			return c.listServers(ctx, labelSelector)
		},
		func(ctx context.Context, s *hcloud.Server) error {
			_, _, err := c.client.Server.DeleteWithResult(ctx, s)
			return err
		},
	)
	if err != nil {
		return err
	}

	return retry.Poll(ctx, serverGoneInterval, c.timeouts.Delete, func(ctx context.Context) (bool, error) {
		remaining, err := c.listServers(ctx, labelSelector)
		if err != nil {
			return false, fmt.Errorf("failed to check remaining servers: %w", err)
		}
		return len(remaining) == 0, nil
	})
}

// deleteFirewallsByLabel retries firewalls that are still attached to
// terminating servers.
func (c *RealClient) deleteFirewallsByLabel(ctx context.Context, labelSelector string) error {
	return deleteResourcesByLabel(ctx, c, "firewall",
		func(ctx context.Context) ([]*hcloud.Firewall, error) {
			return c.client.Firewall.AllWithOpts(ctx, hcloud.FirewallListOpts{
				ListOpts: hcloud.ListOpts{LabelSelector: labelSelector},
			})
		},
		func(ctx context.Context, fw *hcloud.Firewall) error {
			return retry.WithExponentialBackoff(ctx, func() error {
				_, err := c.client.Firewall.Delete(ctx, fw)
				if err == nil || isTransient(err) {
					return err
				}
				return retry.Fatal(err)
			},
				retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
				retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
		},
	)
}

func (c *RealClient) deleteNetworksByLabel(ctx context.Context, labelSelector string) error {
	return deleteResourcesByLabel(ctx, c, "network",
		func(ctx context.Context) ([]*hcloud.Network, error) {
			return c.client.Network.AllWithOpts(ctx, hcloud.NetworkListOpts{
				ListOpts: hcloud.ListOpts{LabelSelector: labelSelector},
			})
		},
		func(ctx context.Context, n *hcloud.Network) error {
			_, err := c.client.Network.Delete(ctx, n)
			return err
		},
	)
}

func (c *RealClient) deleteSSHKeysByLabel(ctx context.Context, labelSelector string) error {
	return deleteResourcesByLabel(ctx, c, "SSH key",
		func(ctx context.Context) ([]*hcloud.SSHKey, error) {
			return c.client.SSHKey.AllWithOpts(ctx, hcloud.SSHKeyListOpts{
				ListOpts: hcloud.ListOpts{LabelSelector: labelSelector},
			})
		},
		func(ctx context.Context, k *hcloud.SSHKey) error {
			_, err := c.client.SSHKey.Delete(ctx, k)
			return err
		},
	)
}
