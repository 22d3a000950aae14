package infrastructure

import (
	"github.com/imamik/certzner/internal/provisioning"
	"github.com/imamik/certzner/internal/util/labels"
)

const phase = "Provision"

// Provisioner handles infrastructure provisioning.
type Provisioner struct{}

// NewProvisioner creates a new infrastructure provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface. Every created
// resource is recorded before the next step starts, so a failure at any
// step leaves a registry teardown can work from.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	steps := []func(*provisioning.Context) error{
		p.ProvisionSSHKey,
		p.ProvisionIdentity,
		p.ProvisionNetwork,
		p.ProvisionFirewall,
		p.ProvisionInstance,
		p.WaitReachable,
		p.WaitReady,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return &provisioning.ProvisioningError{Step: "interrupted", Err: err}
		}
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// record appends a handle and logs it. A journal write failure is logged
// but does not stop provisioning; the in-memory handle is kept.
func record(ctx *provisioning.Context, kind provisioning.ResourceKind, id, name string) {
	if err := ctx.Registry.Record(kind, id, name); err != nil {
		ctx.Observer.Printf("[%s] Warning: %v", phase, err)
	}
	ctx.Metrics.ResourceCreated(kind)
	provisioning.LogResourceCreated(ctx.Observer, phase, kind, name, id)
}

// creating logs that a resource of kind is about to be ensured.
func creating(ctx *provisioning.Context, kind provisioning.ResourceKind, name string) {
	provisioning.LogResourceCreating(ctx.Observer, phase, kind, name)
}

// failed logs a failed resource and wraps err for step.
func failed(ctx *provisioning.Context, step string, kind provisioning.ResourceKind, name string, err error) error {
	provisioning.LogResourceFailed(ctx.Observer, phase, kind, name, err)
	return &provisioning.ProvisioningError{Step: step, Err: err}
}

func resourceLabels(ctx *provisioning.Context, kind provisioning.ResourceKind) map[string]string {
	return labels.NewLabelBuilder(ctx.Run.RunTag).WithKind(string(kind)).Build()
}
