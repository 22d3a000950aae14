package infrastructure

import (
	"fmt"

	"github.com/imamik/certzner/internal/platform/iam"
	"github.com/imamik/certzner/internal/provisioning"
	"github.com/imamik/certzner/internal/util/naming"
)

// ProvisionIdentity creates the publisher role and its inline policy scoped
// to the store path and the run tag. Stores without an identity API skip this step.
func (p *Provisioner) ProvisionIdentity(ctx *provisioning.Context) error {
	if !ctx.Run.UsesIdentity() {
		ctx.Observer.Printf("[%s] Identity role skipped (store %s)", phase, ctx.Run.StoreKind)
		return nil
	}
	if ctx.Identity == nil {
		return &provisioning.ProvisioningError{Step: "identity", Err: fmt.Errorf("identity manager is not configured")}
	}

	account, err := ctx.Identity.CallerAccount(ctx)
	if err != nil {
		return &provisioning.ProvisioningError{Step: "identity", Err: err}
	}
	trust, err := iam.TrustPolicy(account)
	if err != nil {
		return &provisioning.ProvisioningError{Step: "identity", Err: err}
	}
	policy, err := iam.PublishPolicy(ctx.Run.StoreKind, ctx.Run.StorePath, ctx.Run.StoreBucket, account, ctx.Run.RunTag)
	if err != nil {
		return &provisioning.ProvisioningError{Step: "identity", Err: err}
	}

	role := naming.IdentityRole(ctx.Run.RunTag)
	creating(ctx, provisioning.KindIdentityRole, role)
	arn, err := ctx.Identity.EnsureRole(ctx, role, trust, resourceLabels(ctx, provisioning.KindIdentityRole))
	if err != nil {
		return failed(ctx, "identity", provisioning.KindIdentityRole, role, err)
	}
	record(ctx, provisioning.KindIdentityRole, arn, role)

	policyName := naming.IdentityPolicy(ctx.Run.RunTag)
	creating(ctx, provisioning.KindIdentityPolicy, policyName)
	if err := ctx.Identity.PutRolePolicy(ctx, role, policyName, policy); err != nil {
		return failed(ctx, "identity-policy", provisioning.KindIdentityPolicy, policyName, err)
	}
	record(ctx, provisioning.KindIdentityPolicy, role, policyName)

	ctx.State.RoleARN = arn
	return nil
}
