package publish

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/certzner/internal/config"
	"github.com/imamik/certzner/internal/provisioning"
	"github.com/imamik/certzner/internal/util/labels"
)

// CertificateLabels are the labels a published certificate carries. They
// never include the run tag, so teardown's label sweep leaves them alone.
func CertificateLabels(domain, storePath string) map[string]string {
	l := labels.NewLabelBuilder("").WithDomain(domain).WithStorePath(storePath).Build()
	delete(l, labels.KeyRun)
	return l
}

// HCloudCertificates is the subset of the Hetzner client HCloudStore uses.
type HCloudCertificates interface {
	CreateCertificate(ctx context.Context, name, certificate, privateKey string, labels map[string]string) (*hcloud.Certificate, error)
	GetCertificate(ctx context.Context, name string) (*hcloud.Certificate, error)
	DeleteCertificate(ctx context.Context, name string) error
}

// HCloudStore publishes to Hetzner Cloud uploaded certificates.
type HCloudStore struct {
	api HCloudCertificates
}

// NewHCloudStore creates a Hetzner Cloud store.
func NewHCloudStore(api HCloudCertificates) *HCloudStore {
	return &HCloudStore{api: api}
}

// Kind implements provisioning.CertificateStore.
func (s *HCloudStore) Kind() string { return config.StoreHCloud }

// DeleteCertificate removes the entry named name. A missing entry is not
// an error.
func (s *HCloudStore) DeleteCertificate(ctx context.Context, name string) error {
	cert, err := s.api.GetCertificate(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to look up certificate %q: %w", name, err)
	}
	if cert == nil {
		return nil
	}
	return s.api.DeleteCertificate(ctx, name)
}

// CreateCertificate uploads the leaf followed by its chain.
func (s *HCloudStore) CreateCertificate(ctx context.Context, cert provisioning.PublishedCertificate) error {
	body := string(cert.Certificate) + string(cert.Chain)
	_, err := s.api.CreateCertificate(ctx, cert.Name, body, string(cert.PrivateKey), CertificateLabels(cert.Domain, cert.Path))
	return err
}

// IAMCertificates is the subset of the IAM client IAMStore uses.
type IAMCertificates interface {
	UploadServerCertificate(ctx context.Context, name, path, cert, key, chain string, tags map[string]string) (string, error)
	DeleteServerCertificate(ctx context.Context, name string) error
}

// IAMStore publishes to AWS IAM server certificates.
type IAMStore struct {
	api IAMCertificates
}

// NewIAMStore creates an IAM store.
func NewIAMStore(api IAMCertificates) *IAMStore {
	return &IAMStore{api: api}
}

// Kind implements provisioning.CertificateStore.
func (s *IAMStore) Kind() string { return config.StoreIAM }

// DeleteCertificate implements provisioning.CertificateStore.
func (s *IAMStore) DeleteCertificate(ctx context.Context, name string) error {
	return s.api.DeleteServerCertificate(ctx, name)
}

// CreateCertificate implements provisioning.CertificateStore.
func (s *IAMStore) CreateCertificate(ctx context.Context, cert provisioning.PublishedCertificate) error {
	_, err := s.api.UploadServerCertificate(ctx, cert.Name, cert.Path,
		string(cert.Certificate), string(cert.PrivateKey), string(cert.Chain),
		CertificateLabels(cert.Domain, cert.Path))
	return err
}

// S3Objects is the subset of the S3 client S3Store uses.
type S3Objects interface {
	ObjectExists(ctx context.Context, bucket, key string) (bool, error)
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	DeleteObject(ctx context.Context, bucket, key string) error
}

// Object names written per certificate.
const (
	objectCertificate = "cert.pem"
	objectPrivateKey  = "privkey.pem"
	objectChain       = "chain.pem"
)

// S3Store publishes PEM objects to a bucket.
type S3Store struct {
	api    S3Objects
	bucket string
	path   string
}

// NewS3Store creates an S3 store. path is the base path the store was
// configured with; entries land under <path>/<name>/.
func NewS3Store(api S3Objects, bucket, basePath string) *S3Store {
	return &S3Store{api: api, bucket: bucket, path: basePath}
}

// Kind implements provisioning.CertificateStore.
func (s *S3Store) Kind() string { return config.StoreS3 }

// ObjectKey returns the key of one object of a published certificate.
func ObjectKey(basePath, name, object string) string {
	return strings.TrimPrefix(path.Join(basePath, name, object), "/")
}

// DeleteCertificate removes the objects of the entry that exist. Every
// object is attempted; the first failure is returned.
func (s *S3Store) DeleteCertificate(ctx context.Context, name string) error {
	var first error
	for _, obj := range []string{objectCertificate, objectPrivateKey, objectChain} {
		key := ObjectKey(s.path, name, obj)
		exists, err := s.api.ObjectExists(ctx, s.bucket, key)
		if err == nil && exists {
			err = s.api.DeleteObject(ctx, s.bucket, key)
		}
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CreateCertificate writes the entry's objects. The chain object is skipped
// when there is no chain.
func (s *S3Store) CreateCertificate(ctx context.Context, cert provisioning.PublishedCertificate) error {
	base := cert.Path
	if base == "" {
		base = s.path
	}
	objects := []struct {
		name string
		data []byte
	}{
		{objectCertificate, cert.Certificate},
		{objectPrivateKey, cert.PrivateKey},
		{objectChain, cert.Chain},
	}
	for _, o := range objects {
		if len(o.data) == 0 && o.name == objectChain {
			continue
		}
		if err := s.api.PutObject(ctx, s.bucket, ObjectKey(base, cert.Name, o.name), o.data); err != nil {
			return fmt.Errorf("failed to write %s for %s: %w", o.name, cert.Domain, err)
		}
	}
	return nil
}
