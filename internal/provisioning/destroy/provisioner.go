package destroy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/imamik/certzner/internal/provisioning"
	"github.com/imamik/certzner/internal/util/naming"
	"github.com/imamik/certzner/internal/util/retry"
)

const phase = "Teardown"

// pollInterval is how often instance absence is checked.
var pollInterval = 5 * time.Second

// Reconciler handles run teardown.
type Reconciler struct{}

// NewReconciler creates a new teardown reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Name implements the provisioning.Phase interface.
func (r *Reconciler) Name() string {
	return phase
}

// Provision removes every resource of the run. It returns a
// *provisioning.TeardownError listing the steps that failed.
func (r *Reconciler) Provision(ctx *provisioning.Context) error {
	tag := ctx.Run.RunTag
	if tag == "" {
		return errors.New("refusing to tear down without a run tag")
	}
	ctx.Observer.Printf("[%s] Tearing down run %s (%d recorded resources)", phase, tag, ctx.Registry.Len())

	terr := &provisioning.TeardownError{}
	instances := r.deleteInstances(ctx, terr)
	r.deleteSSHKey(ctx, terr)
	r.waitInstancesGone(ctx, instances)
	r.deleteFirewalls(ctx, terr)
	r.deleteNetworks(ctx, terr)
	r.deleteIdentity(ctx, terr)

	if err := ctx.Infra.CleanupByLabel(ctx, ctx.Run.Selector()); err != nil {
		terr.Add("label-sweep", err)
	}

	if terr.HasErrors() {
		ctx.Metrics.TeardownFailures(len(terr.Errors))
		ctx.Observer.Printf("[%s] Teardown of %s incomplete: %v", phase, tag, terr)
		return terr
	}
	if err := ctx.Registry.Discard(); err != nil {
		ctx.Observer.Printf("[%s] Warning: %v", phase, err)
	}
	ctx.Observer.Printf("[%s] Run %s torn down", phase, tag)
	return nil
}

// names returns the recorded names of kind plus the defaults, deduplicated
// and sorted.
func names(ctx *provisioning.Context, kind provisioning.ResourceKind, defaults ...string) []string {
	seen := make(map[string]bool)
	for _, h := range ctx.Registry.ByKind(kind) {
		seen[h.Name] = true
	}
	for _, n := range defaults {
		seen[n] = true
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// remove deletes one resource of kind. A failure is added to terr under
// step and the handle is kept.
func remove(ctx *provisioning.Context, terr *provisioning.TeardownError, step string, kind provisioning.ResourceKind, name string, del func() error) bool {
	provisioning.LogResourceDeleting(ctx.Observer, phase, kind, name)
	if err := del(); err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, kind, name, err)
		terr.Add(step+" "+name, err)
		return false
	}
	forget(ctx, kind, name)
	return true
}

func forget(ctx *provisioning.Context, kind provisioning.ResourceKind, name string) {
	if err := ctx.Registry.Remove(kind, name); err != nil {
		ctx.Observer.Printf("[%s] Warning: %v", phase, err)
	}
	provisioning.LogResourceDeleted(ctx.Observer, phase, kind, name)
}

// deleteInstances deletes the union of recorded and rediscovered instances
// and returns the names it attempted.
func (r *Reconciler) deleteInstances(ctx *provisioning.Context, terr *provisioning.TeardownError) []string {
	var discovered []string
	servers, err := ctx.Infra.GetServersByLabel(ctx, ctx.Run.Selector())
	if err != nil {
		terr.Add("discover-instances", err)
	}
	for _, s := range servers {
		discovered = append(discovered, s.Name)
	}

	all := names(ctx, provisioning.KindInstance, append(discovered, naming.Server(ctx.Run.RunTag))...)
	for _, name := range all {
		remove(ctx, terr, "instance", provisioning.KindInstance, name, func() error {
			return ctx.Infra.DeleteServer(ctx, name)
		})
	}
	return all
}

func (r *Reconciler) deleteSSHKey(ctx *provisioning.Context, terr *provisioning.TeardownError) {
	for _, name := range names(ctx, provisioning.KindKeyPair, naming.SSHKey(ctx.Run.RunTag)) {
		remove(ctx, terr, "ssh-key", provisioning.KindKeyPair, name, func() error {
			return ctx.Infra.DeleteSSHKey(ctx, name)
		})
	}
}

// waitInstancesGone polls until no instance of the run remains. When absence
// cannot be confirmed in time it falls back to the fixed settle delay, since
// networks and firewalls cannot be deleted while still attached.
func (r *Reconciler) waitInstancesGone(ctx *provisioning.Context, instances []string) {
	d := ctx.Run.Delays
	err := retry.Poll(ctx, pollInterval, d.TeardownWait, func(pctx context.Context) (bool, error) {
		remaining, err := ctx.Infra.GetServersByLabel(pctx, ctx.Run.Selector())
		if err != nil || len(remaining) > 0 {
			return false, nil
		}
		for _, name := range instances {
			s, err := ctx.Infra.GetServerByName(pctx, name)
			if err != nil || s != nil {
				return false, nil
			}
		}
		return true, nil
	})
	if err == nil {
		return
	}

	ctx.Observer.Printf("[%s] Could not confirm instances are gone (%v), waiting %v", phase, err, d.TeardownSettle)
	if err := ctx.Sleep(ctx, d.TeardownSettle); err != nil {
		ctx.Observer.Printf("[%s] Warning: settle wait interrupted: %v", phase, err)
	}
}

func (r *Reconciler) deleteFirewalls(ctx *provisioning.Context, terr *provisioning.TeardownError) {
	for _, name := range names(ctx, provisioning.KindSecurityGroup, naming.Firewall(ctx.Run.RunTag)) {
		remove(ctx, terr, "firewall", provisioning.KindSecurityGroup, name, func() error {
			return ctx.Infra.DeleteFirewall(ctx, name)
		})
	}
}

// deleteNetworks deletes networks. Subnets go with their network.
func (r *Reconciler) deleteNetworks(ctx *provisioning.Context, terr *provisioning.TeardownError) {
	for _, name := range names(ctx, provisioning.KindNetwork, naming.Network(ctx.Run.RunTag)) {
		deleted := remove(ctx, terr, "network", provisioning.KindNetwork, name, func() error {
			return ctx.Infra.DeleteNetwork(ctx, name)
		})
		if deleted {
			forget(ctx, provisioning.KindSubnet, name)
		}
	}
}

// deleteIdentity deletes inline policies before their role.
func (r *Reconciler) deleteIdentity(ctx *provisioning.Context, terr *provisioning.TeardownError) {
	policies := ctx.Registry.ByKind(provisioning.KindIdentityPolicy)
	roles := names(ctx, provisioning.KindIdentityRole)
	if ctx.Run.UsesIdentity() {
		role := naming.IdentityRole(ctx.Run.RunTag)
		policies = append(policies, provisioning.ResourceHandle{
			Kind: provisioning.KindIdentityPolicy,
			ID:   role,
			Name: naming.IdentityPolicy(ctx.Run.RunTag),
		})
		roles = names(ctx, provisioning.KindIdentityRole, role)
	}
	if len(policies) == 0 && len(roles) == 0 {
		return
	}
	if ctx.Identity == nil {
		terr.Add("identity", fmt.Errorf("identity manager is not configured; %d role(s) left behind", len(roles)))
		return
	}

	done := make(map[string]bool)
	for _, p := range policies {
		key := p.ID + "/" + p.Name
		if done[key] {
			continue
		}
		done[key] = true
		remove(ctx, terr, "identity-policy", provisioning.KindIdentityPolicy, p.Name, func() error {
			return ctx.Identity.DeleteRolePolicy(ctx, p.ID, p.Name)
		})
	}
	for _, role := range roles {
		remove(ctx, terr, "identity-role", provisioning.KindIdentityRole, role, func() error {
			return ctx.Identity.DeleteRole(ctx, role)
		})
	}
}
