package infrastructure

import (
	"context"
	"fmt"
	"strconv"

	hcloud_internal "github.com/imamik/certzner/internal/platform/hcloud"
	"github.com/imamik/certzner/internal/provisioning"
	"github.com/imamik/certzner/internal/util/labels"
	"github.com/imamik/certzner/internal/util/naming"
)

// readinessCommand blocks until first-boot automation has finished.
const readinessCommand = "cloud-init status --wait"

// ProvisionInstance ensures exactly one issuer instance exists for the run.
func (p *Provisioner) ProvisionInstance(ctx *provisioning.Context) error {
	name := naming.Server(ctx.Run.RunTag)
	ctx.Observer.Printf("[%s] Ensuring instance %s (%s, %s, %s)...", phase, name, ctx.Run.ServerType, ctx.Run.Image, ctx.Run.Location)

	spec := hcloud_internal.ServerSpec{
		Name:       name,
		Image:      ctx.Run.Image,
		ServerType: ctx.Run.ServerType,
		Location:   ctx.Run.Location,
		SSHKeyID:   ctx.State.SSHKeyID,
		FirewallID: ctx.State.FirewallID,
		NetworkID:  ctx.State.NetworkID,
		Labels:     resourceLabels(ctx, provisioning.KindInstance),
		Selector: map[string]string{
			labels.KeyRun:  ctx.Run.RunTag,
			labels.KeyKind: string(provisioning.KindInstance),
		},
	}

	creating(ctx, provisioning.KindInstance, name)
	server, err := ctx.Infra.EnsureServer(ctx, spec)
	if server != nil {
		record(ctx, provisioning.KindInstance, strconv.FormatInt(server.ID, 10), server.Name)
	}
	if err != nil {
		return failed(ctx, "instance", provisioning.KindInstance, name, fmt.Errorf("failed to ensure instance %s: %w", name, err))
	}

	ip := hcloud_internal.ServerIPv4(server)
	if ip == "" {
		return &provisioning.ProvisioningError{Step: "instance", Err: fmt.Errorf("instance %s has no public IPv4", server.Name)}
	}
	ctx.State.Instance = server
	ctx.State.InstanceIP = ip
	ctx.Observer.Printf("[%s] Instance %s is at %s", phase, server.Name, ip)
	return nil
}

// WaitReachable waits for the settle delay and then dials SSH until the
// reachability timeout.
func (p *Provisioner) WaitReachable(ctx *provisioning.Context) error {
	d := ctx.Run.Delays
	if d.InitialSettle > 0 {
		ctx.Observer.Printf("[%s] Waiting %v for the instance to settle...", phase, d.InitialSettle)
		if err := ctx.Sleep(ctx, d.InitialSettle); err != nil {
			return &provisioning.ProvisioningError{Step: "reachability", Err: err}
		}
	}

	ctx.Observer.Printf("[%s] Waiting up to %v for SSH on %s...", phase, d.Reachability, ctx.State.InstanceIP)
	if err := ctx.WaitForPort(ctx, ctx.State.InstanceIP, portSSH, d.Reachability); err != nil {
		return &provisioning.ProvisioningError{Step: "reachability", Err: err}
	}
	return nil
}

// WaitReady opens the remote session and waits for cloud-init. Without a
// readiness signal it falls back to the fixed readiness delay.
func (p *Provisioner) WaitReady(ctx *provisioning.Context) error {
	if ctx.Dialer == nil {
		return &provisioning.ProvisioningError{Step: "readiness", Err: fmt.Errorf("remote dialer is not configured")}
	}
	remote, err := ctx.Dialer.Dial(ctx.State.InstanceIP, ctx.State.PrivateKey)
	if err != nil {
		return &provisioning.ProvisioningError{Step: "readiness", Err: err}
	}
	ctx.State.Remote = remote

	d := ctx.Run.Delays
	rctx, cancel := context.WithTimeout(ctx, d.Readiness)
	defer cancel()

	out, err := remote.Execute(rctx, readinessCommand)
	if err == nil {
		ctx.Observer.Printf("[%s] Instance ready: %s", phase, firstLine(out))
		return nil
	}
	if ctx.Err() != nil {
		return &provisioning.ProvisioningError{Step: "readiness", Err: ctx.Err()}
	}

	ctx.Observer.Printf("[%s] No readiness signal (%v), waiting %v instead", phase, err, d.ReadinessFallback)
	if err := ctx.Sleep(ctx, d.ReadinessFallback); err != nil {
		return &provisioning.ProvisioningError{Step: "readiness", Err: err}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
