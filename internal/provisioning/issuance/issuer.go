package issuance

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-acme/lego/v4/certcrypto"

	"github.com/imamik/certzner/internal/provisioning"
)

const phase = "Issue"

// Issuer implements provisioning.CertificateIssuer over the run's remote
// session.
type Issuer struct{}

var _ provisioning.CertificateIssuer = (*Issuer)(nil)

// NewIssuer creates an issuer.
func NewIssuer() *Issuer {
	return &Issuer{}
}

// Prepare installs the agent on the instance.
func (i *Issuer) Prepare(ctx *provisioning.Context) error {
	remote, err := session(ctx)
	if err != nil {
		return err
	}
	ctx.Observer.Printf("[%s] Installing issuance agent...", phase)

	cctx, cancel := commandContext(ctx)
	defer cancel()
	if _, err := remote.Execute(cctx, ctx.Run.Issuance.InstallCommand); err != nil {
		return fmt.Errorf("failed to install issuance agent: %w", err)
	}
	return nil
}

// Existing returns the domain's artifact when the agent has already written
// one, or nil.
func (i *Issuer) Existing(ctx *provisioning.Context, domain string) (*provisioning.CertificateArtifact, error) {
	remote, err := session(ctx)
	if err != nil {
		return nil, err
	}
	paths := ArtifactPaths(ctx.Run.Issuance.Directory, domain)
	ok, err := remote.FileExists(ctx, paths.Certificate)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	ctx.Observer.Printf("[%s] Certificate for %s already present at %s", phase, domain, paths.Certificate)

	artifact, err := Read(ctx, remote, domain, paths)
	if err != nil {
		return nil, err
	}
	artifact.Reused = true
	return artifact, nil
}

// Issue runs the agent for domain and reads back what it wrote.
func (i *Issuer) Issue(ctx *provisioning.Context, domain string) (*provisioning.CertificateArtifact, error) {
	remote, err := session(ctx)
	if err != nil {
		return nil, &provisioning.IssuanceError{Domain: domain, Err: err}
	}
	ctx.Observer.Printf("[%s] Ordering certificate for %s...", phase, domain)

	cctx, cancel := commandContext(ctx)
	defer cancel()
	if _, err := remote.Execute(cctx, Command(ctx.Run.Issuance, ctx.Run.Email, domain)); err != nil {
		return nil, &provisioning.IssuanceError{Domain: domain, Err: err}
	}

	paths := ArtifactPaths(ctx.Run.Issuance.Directory, domain)
	ok, err := remote.FileExists(ctx, paths.Certificate)
	if err != nil {
		return nil, &provisioning.IssuanceError{Domain: domain, Err: err}
	}
	if !ok {
		return nil, &provisioning.IssuanceError{Domain: domain, Err: fmt.Errorf("%w: %s", provisioning.ErrArtifactMissing, paths.Certificate)}
	}

	artifact, err := Read(ctx, remote, domain, paths)
	if err != nil {
		return nil, &provisioning.IssuanceError{Domain: domain, Err: err}
	}
	return artifact, nil
}

// Read loads an artifact and splits the leaf from its chain. The chain comes
// from the bundle when it carries intermediates and from the issuer file
// otherwise.
func Read(ctx context.Context, remote provisioning.RemoteExecutor, domain string, paths Paths) (*provisioning.CertificateArtifact, error) {
	bundle, err := remote.ReadFile(ctx, paths.Certificate)
	if err != nil {
		return nil, err
	}
	key, err := remote.ReadFile(ctx, paths.Key)
	if err != nil {
		return nil, err
	}
	if _, err := certcrypto.ParsePEMPrivateKey(key); err != nil {
		return nil, fmt.Errorf("invalid private key in %s: %w", paths.Key, err)
	}

	certs, err := certcrypto.ParsePEMBundle(bundle)
	if err != nil {
		return nil, fmt.Errorf("invalid certificate in %s: %w", paths.Certificate, err)
	}

	var chain []byte
	for _, c := range certs[1:] {
		chain = append(chain, certcrypto.PEMEncode(certcrypto.DERCertificateBytes(c.Raw))...)
	}
	if len(chain) == 0 {
		ok, err := remote.FileExists(ctx, paths.Issuer)
		if err != nil {
			return nil, err
		}
		if ok {
			if chain, err = remote.ReadFile(ctx, paths.Issuer); err != nil {
				return nil, err
			}
		}
	}

	return &provisioning.CertificateArtifact{
		Domain:      domain,
		Certificate: certcrypto.PEMEncode(certcrypto.DERCertificateBytes(certs[0].Raw)),
		PrivateKey:  key,
		Chain:       chain,
		Path:        paths.Certificate,
		NotAfter:    certs[0].NotAfter,
	}, nil
}

func session(ctx *provisioning.Context) (provisioning.RemoteExecutor, error) {
	if ctx.State.Remote == nil {
		return nil, errors.New("no remote session to the issuer instance")
	}
	return ctx.State.Remote, nil
}

func commandContext(ctx *provisioning.Context) (context.Context, context.CancelFunc) {
	if ctx.Timeouts == nil || ctx.Timeouts.RemoteCommand <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, ctx.Timeouts.RemoteCommand)
}
