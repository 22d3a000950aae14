package infrastructure

import (
	"fmt"
	"strconv"

	"github.com/imamik/certzner/internal/provisioning"
	"github.com/imamik/certzner/internal/util/naming"
)

// ProvisionNetwork provisions the run network and its single cloud subnet.
func (p *Provisioner) ProvisionNetwork(ctx *provisioning.Context) error {
	name := naming.Network(ctx.Run.RunTag)
	ctx.Observer.Printf("[%s] Reconciling network %s (%s)...", phase, name, ctx.Run.Network.IPRange)

	creating(ctx, provisioning.KindNetwork, name)
	network, err := ctx.Infra.EnsureNetwork(ctx, name, ctx.Run.Network.IPRange, resourceLabels(ctx, provisioning.KindNetwork))
	if network != nil {
		record(ctx, provisioning.KindNetwork, strconv.FormatInt(network.ID, 10), name)
	}
	if err != nil {
		return failed(ctx, "network", provisioning.KindNetwork, name, fmt.Errorf("failed to ensure network %s: %w", name, err))
	}
	ctx.State.NetworkID = network.ID

	creating(ctx, provisioning.KindSubnet, name)
	if err := ctx.Infra.EnsureSubnet(ctx, network, ctx.Run.Network.SubnetRange, ctx.Run.Network.Zone); err != nil {
		return failed(ctx, "subnet", provisioning.KindSubnet, name, fmt.Errorf("failed to ensure subnet %s: %w", ctx.Run.Network.SubnetRange, err))
	}
	record(ctx, provisioning.KindSubnet, ctx.Run.Network.SubnetRange, name)
	return nil
}
