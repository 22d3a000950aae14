package infrastructure

import (
	"fmt"
	"strconv"

	hcloud_internal "github.com/imamik/certzner/internal/platform/hcloud"
	"github.com/imamik/certzner/internal/provisioning"
	"github.com/imamik/certzner/internal/util/naming"
)

// Ports the issuer instance must accept from anywhere: SSH for control and
// HTTPS for the TLS-ALPN challenge responder.
const (
	portSSH   = 22
	portHTTPS = 443
)

// ProvisionFirewall provisions the run firewall.
func (p *Provisioner) ProvisionFirewall(ctx *provisioning.Context) error {
	name := naming.Firewall(ctx.Run.RunTag)
	ctx.Observer.Printf("[%s] Reconciling firewall %s...", phase, name)

	creating(ctx, provisioning.KindSecurityGroup, name)
	fw, err := ctx.Infra.EnsureFirewall(ctx, name, hcloud_internal.InboundTCPRules(portSSH, portHTTPS), resourceLabels(ctx, provisioning.KindSecurityGroup))
	if fw != nil {
		record(ctx, provisioning.KindSecurityGroup, strconv.FormatInt(fw.ID, 10), name)
	}
	if err != nil {
		return failed(ctx, "firewall", provisioning.KindSecurityGroup, name, fmt.Errorf("failed to ensure firewall %s: %w", name, err))
	}
	ctx.State.FirewallID = fw.ID
	return nil
}
