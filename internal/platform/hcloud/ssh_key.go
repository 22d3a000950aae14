package hcloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"golang.org/x/crypto/ssh"
)

// EnsureSSHKey registers publicKey under name.
//
// Hetzner rejects a public key that is already registered under another
// name; in that case the existing key is returned and its Name differs from
// name. Callers must not treat such a key as owned by the run.
func (c *RealClient) EnsureSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error) {
	existing, _, err := c.client.SSHKey.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get ssh key: %w", err)
	}
	if existing != nil {
		if sameKey(existing.PublicKey, publicKey) {
			return existing, nil
		}
		c.log.Info("replacing ssh key with different material", "name", name)
		if err := c.DeleteSSHKey(ctx, name); err != nil {
			return nil, err
		}
	}

	key, _, err := c.client.SSHKey.Create(ctx, hcloud.SSHKeyCreateOpts{
		Name:      name,
		PublicKey: publicKey,
		Labels:    labels,
	})
	if err == nil {
		return key, nil
	}
	if !hcloud.IsError(err, hcloud.ErrorCodeUniquenessError) {
		return nil, fmt.Errorf("failed to create ssh key: %w", err)
	}

	fingerprint, fpErr := legacyFingerprint(publicKey)
	if fpErr != nil {
		return nil, fmt.Errorf("failed to create ssh key: %w", err)
	}
	shared, _, getErr := c.client.SSHKey.GetByFingerprint(ctx, fingerprint)
	if getErr != nil || shared == nil {
		return nil, fmt.Errorf("failed to create ssh key: %w", err)
	}
	c.log.Info("public key already registered, reusing it", "name", shared.Name, "fingerprint", fingerprint)
	return shared, nil
}

// DeleteSSHKey deletes the SSH key with the given name.
func (c *RealClient) DeleteSSHKey(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.SSHKey]{
		Name:         name,
		ResourceType: "ssh key",
		Get:          c.client.SSHKey.Get,
		Delete:       c.client.SSHKey.Delete,
	}).Execute(ctx, c)
}

// sameKey compares two authorized_keys entries ignoring their comments.
func sameKey(a, b string) bool {
	fa, fb := strings.Fields(a), strings.Fields(b)
	if len(fa) < 2 || len(fb) < 2 {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return fa[0] == fb[0] && fa[1] == fb[1]
}

// legacyFingerprint returns the colon-separated MD5 fingerprint Hetzner uses.
func legacyFingerprint(publicKey string) (string, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(publicKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse public key: %w", err)
	}
	return ssh.FingerprintLegacyMD5(pub), nil
}
