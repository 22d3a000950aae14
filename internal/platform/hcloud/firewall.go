package hcloud

import (
	"context"
	"net"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// InboundTCPRules allows inbound TCP on each port from any IPv4 and IPv6 source.
func InboundTCPRules(ports ...int) []hcloud.FirewallRule {
	anyV4 := net.IPNet{IP: net.IPv4zero, Mask: net.CIDRMask(0, 32)}
	anyV6 := net.IPNet{IP: net.IPv6zero, Mask: net.CIDRMask(0, 128)}

	rules := make([]hcloud.FirewallRule, 0, len(ports))
	for _, port := range ports {
		rules = append(rules, hcloud.FirewallRule{
			Description: hcloud.Ptr("certzner tcp " + strconv.Itoa(port)),
			Direction:   hcloud.FirewallRuleDirectionIn,
			Protocol:    hcloud.FirewallRuleProtocolTCP,
			Port:        hcloud.Ptr(strconv.Itoa(port)),
			SourceIPs:   []net.IPNet{anyV4, anyV6},
		})
	}
	return rules
}

// EnsureFirewall ensures that a firewall exists with exactly the given rules.
func (c *RealClient) EnsureFirewall(ctx context.Context, name string, rules []hcloud.FirewallRule, labels map[string]string) (*hcloud.Firewall, error) {
	return (&EnsureOperation[*hcloud.Firewall, hcloud.FirewallCreateOpts, hcloud.FirewallSetRulesOpts]{
		Name:         name,
		ResourceType: "firewall",
		Get:          c.client.Firewall.Get,
		Create:       c.createFirewall,
		Update:       c.client.Firewall.SetRules,
		CreateOptsMapper: func() hcloud.FirewallCreateOpts {
			return hcloud.FirewallCreateOpts{
				Name:   name,
				Rules:  rules,
				Labels: labels,
			}
		},
		UpdateOptsMapper: func(_ *hcloud.Firewall) hcloud.FirewallSetRulesOpts {
			return hcloud.FirewallSetRulesOpts{Rules: rules}
		},
	}).Execute(ctx, c)
}

func (c *RealClient) createFirewall(ctx context.Context, opts hcloud.FirewallCreateOpts) (*CreateResult[*hcloud.Firewall], *hcloud.Response, error) {
	res, resp, err := c.client.Firewall.Create(ctx, opts)
	if err != nil {
		return nil, resp, err
	}
	return &CreateResult[*hcloud.Firewall]{
		Resource: res.Firewall,
		Actions:  res.Actions,
	}, resp, nil
}

// DeleteFirewall deletes the firewall with the given name. A firewall still
// attached to a terminating server is retried until released.
func (c *RealClient) DeleteFirewall(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Firewall]{
		Name:         name,
		ResourceType: "firewall",
		Get:          c.client.Firewall.Get,
		Delete:       c.client.Firewall.Delete,
	}).Execute(ctx, c)
}
