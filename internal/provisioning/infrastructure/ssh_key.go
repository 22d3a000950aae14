package infrastructure

import (
	"fmt"
	"strconv"

	"github.com/imamik/certzner/internal/provisioning"
	"github.com/imamik/certzner/internal/util/keygen"
	"github.com/imamik/certzner/internal/util/naming"
)

// generatedKeyBits is the RSA size of keys generated for a run.
var generatedKeyBits = 3072

// ProvisionSSHKey loads or generates the run's key pair and registers its
// public half. Unreadable key material is fatal.
func (p *Provisioner) ProvisionSSHKey(ctx *provisioning.Context) error {
	var (
		kp  *keygen.KeyPair
		err error
	)
	if ctx.Run.SSHKeyPath != "" {
		kp, err = keygen.LoadKeyPair(ctx.Run.SSHKeyPath)
	} else {
		ctx.Observer.Printf("[%s] Generating SSH key pair for the run...", phase)
		kp, err = keygen.GenerateRSAKeyPair(generatedKeyBits)
	}
	if err != nil {
		return &provisioning.ProvisioningError{Step: "ssh-key", Err: err}
	}

	name := naming.SSHKey(ctx.Run.RunTag)
	creating(ctx, provisioning.KindKeyPair, name)
	key, err := ctx.Infra.EnsureSSHKey(ctx, name, string(kp.PublicKey), resourceLabels(ctx, provisioning.KindKeyPair))
	if err != nil {
		return failed(ctx, "ssh-key", provisioning.KindKeyPair, name, fmt.Errorf("failed to register ssh key %s: %w", name, err))
	}

	// The same public key may already be registered under another name; that
	// key is not ours to delete.
	if key.Name == name {
		record(ctx, provisioning.KindKeyPair, strconv.FormatInt(key.ID, 10), name)
	} else {
		ctx.Observer.Printf("[%s] Using existing SSH key %s (same fingerprint %s)", phase, key.Name, kp.Fingerprint)
		provisioning.LogResourceExists(ctx.Observer, phase, provisioning.KindKeyPair, key.Name, strconv.FormatInt(key.ID, 10))
	}

	ctx.State.SSHKeyID = key.ID
	ctx.State.PrivateKey = kp.PrivateKey
	return nil
}
