package publish

import (
	"errors"
	"sync"

	"github.com/imamik/certzner/internal/provisioning"
	"github.com/imamik/certzner/internal/util/naming"
)

const phase = "Publish"

// Publisher implements provisioning.CertificatePublisher.
type Publisher struct {
	mu      sync.Mutex
	roleARN string
	assumed provisioning.CertificateStore
}

var _ provisioning.CertificatePublisher = (*Publisher)(nil)

// NewPublisher creates a publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish replaces the store entry for the artifact's domain.
func (p *Publisher) Publish(ctx *provisioning.Context, artifact *provisioning.CertificateArtifact) error {
	store, err := p.store(ctx)
	if err != nil {
		return &provisioning.PublicationError{Domain: artifact.Domain, Op: provisioning.OpCreate, Err: err}
	}

	cert := provisioning.PublishedCertificate{
		Name:        naming.StoreName(artifact.Domain),
		Path:        ctx.Run.StorePath,
		Domain:      artifact.Domain,
		Certificate: artifact.Certificate,
		PrivateKey:  artifact.PrivateKey,
		Chain:       artifact.Chain,
	}

	if err := store.DeleteCertificate(ctx, cert.Name); err != nil {
		perr := &provisioning.PublicationError{Domain: artifact.Domain, Op: provisioning.OpDelete, Err: err}
		ctx.Observer.Printf("[%s] Ignoring: %v", phase, perr)
	}
	if err := store.CreateCertificate(ctx, cert); err != nil {
		return &provisioning.PublicationError{Domain: artifact.Domain, Op: provisioning.OpCreate, Err: err}
	}

	ctx.Observer.Printf("[%s] Published %s to %s as %s%s", phase, artifact.Domain, store.Kind(), cert.Path, cert.Name)
	return nil
}

// store returns the store bound to the run's identity role when one exists,
// and the ambient store otherwise.
func (p *Publisher) store(ctx *provisioning.Context) (provisioning.CertificateStore, error) {
	arn := ctx.State.RoleARN
	if arn != "" && ctx.StoreForRole != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.assumed != nil && p.roleARN == arn {
			return p.assumed, nil
		}
		store, err := ctx.StoreForRole(ctx, arn)
		if err == nil {
			p.roleARN, p.assumed = arn, store
			return store, nil
		}
		ctx.Observer.Printf("[%s] Warning: cannot publish as %s, using ambient credentials: %v", phase, arn, err)
	}
	if ctx.Store == nil {
		return nil, errors.New("no certificate store configured")
	}
	return ctx.Store, nil
}
