package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// CreateCertificate uploads a certificate. certificate may carry the full
// chain, leaf first. It fails if a certificate with the name already exists.
func (c *RealClient) CreateCertificate(ctx context.Context, name, certificate, privateKey string, labels map[string]string) (*hcloud.Certificate, error) {
	cert, _, err := c.client.Certificate.Create(ctx, hcloud.CertificateCreateOpts{
		Name:        name,
		Type:        hcloud.CertificateTypeUploaded,
		Certificate: certificate,
		PrivateKey:  privateKey,
		Labels:      labels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate %q: %w", name, err)
	}
	return cert, nil
}

// GetCertificate returns the certificate with the given name, or nil.
func (c *RealClient) GetCertificate(ctx context.Context, name string) (*hcloud.Certificate, error) {
	cert, _, err := c.client.Certificate.Get(ctx, name)
	return cert, err
}

// DeleteCertificate deletes the certificate with the given name.
func (c *RealClient) DeleteCertificate(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Certificate]{
		Name:         name,
		ResourceType: "certificate",
		Get:          c.client.Certificate.Get,
		Delete:       c.client.Certificate.Delete,
	}).Execute(ctx, c)
}
