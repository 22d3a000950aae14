package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-logr/logr"

	"github.com/imamik/certzner/internal/config"
	"github.com/imamik/certzner/internal/platform/cloudflare"
	"github.com/imamik/certzner/internal/platform/hcloud"
	"github.com/imamik/certzner/internal/platform/iam"
	"github.com/imamik/certzner/internal/platform/route53"
	"github.com/imamik/certzner/internal/platform/s3"
	"github.com/imamik/certzner/internal/platform/ssh"
	"github.com/imamik/certzner/internal/provisioning"
	"github.com/imamik/certzner/internal/provisioning/publish"
)

// Environment variables holding provider secrets.
const (
	envHCloudToken     = "HCLOUD_TOKEN"
	envCloudflareToken = "CLOUDFLARE_API_TOKEN"
	envS3AccessKey     = "CERTZNER_S3_ACCESS_KEY"
	envS3SecretKey     = "CERTZNER_S3_SECRET_KEY"
)

// Factory function variables for provider clients - can be replaced in tests.
var (
	// newInfraClient creates the Hetzner Cloud client.
	newInfraClient = func(token string, log logr.Logger) hcloud.InfrastructureManager {
		return hcloud.NewRealClient(token, hcloud.WithLogger(log))
	}

	// loadAWSConfig resolves the default AWS credential chain.
	loadAWSConfig = func(ctx context.Context, region string) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	}

	// newCloudflare creates the Cloudflare DNS client.
	newCloudflare = func(token string, log logr.Logger) provisioning.DNSProvider {
		return cloudflare.NewClient(token, cloudflare.WithLogger(log))
	}

	// newRoute53 creates the Route53 DNS client.
	newRoute53 = func(cfg aws.Config, propagation config.DNSConfig, log logr.Logger) provisioning.DNSProvider {
		return route53.NewFromConfig(cfg, route53.WithPropagationTimeout(propagation.PropagationTimeout), route53.WithLogger(log))
	}

	// newIAMClient creates the IAM client used for the identity role and
	// the IAM certificate store.
	newIAMClient = func(cfg aws.Config, log logr.Logger) *iam.Client {
		return iam.NewFromConfig(cfg, iam.WithLogger(log))
	}

	// newS3Client creates the S3 client for the object store.
	newS3Client = func(cfg aws.Config, endpoint string) (bucketStore, error) {
		access, secret := os.Getenv(envS3AccessKey), os.Getenv(envS3SecretKey)
		if access != "" && secret != "" {
			// S3-compatible storage outside AWS uses static keys.
			return s3.NewClient(endpoint, cfg.Region, access, secret)
		}
		return s3.NewFromConfig(cfg, endpoint), nil
	}

	// newDialer returns the SSH dialer for the issuer instance.
	newDialer = func(user string) provisioning.RemoteDialer {
		return provisioning.DialerFunc(func(host string, privateKey []byte) (provisioning.RemoteExecutor, error) {
			client, err := ssh.NewClient(&ssh.Config{Host: host, User: user, PrivateKey: privateKey})
			if err != nil {
				return nil, err
			}
			return client, nil
		})
	}
)

// bucketStore is the S3 client surface the handlers need.
type bucketStore interface {
	publish.S3Objects
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

// Publishing with the run's role.
const (
	roleSessionName   = "certzner-publish"
	roleAssumeTimeout = 2 * time.Minute
)

// clients are the provider adapters one run talks to.
type clients struct {
	infra        hcloud.InfrastructureManager
	dns          provisioning.DNSProvider
	store        provisioning.CertificateStore
	identity     provisioning.IdentityManager
	storeForRole func(ctx context.Context, roleARN string) (provisioning.CertificateStore, error)
	dialer       provisioning.RemoteDialer

	// bucket is set for the s3 store.
	bucket bucketStore
}

// buildClients creates every adapter cfg needs. AWS credentials are only
// resolved when the DNS provider or the store is backed by AWS.
func buildClients(ctx context.Context, cfg *config.Config, log logr.Logger) (*clients, error) {
	token := os.Getenv(envHCloudToken)
	if token == "" {
		return nil, fmt.Errorf("%s environment variable is required", envHCloudToken)
	}

	c := &clients{
		infra:  newInfraClient(token, log),
		dialer: newDialer(cfg.Instance.SSHUser),
	}

	var awsCfg aws.Config
	if cfg.DNS.Provider == config.DNSProviderRoute53 || cfg.Store.IsAWS() {
		var err error
		awsCfg, err = loadAWSConfig(ctx, awsRegion(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
	}

	switch cfg.DNS.Provider {
	case config.DNSProviderCloudflare:
		cfToken := os.Getenv(envCloudflareToken)
		if cfToken == "" {
			return nil, fmt.Errorf("%s environment variable is required for the cloudflare provider", envCloudflareToken)
		}
		c.dns = newCloudflare(cfToken, log)
	case config.DNSProviderRoute53:
		c.dns = newRoute53(awsCfg, cfg.DNS, log)
	default:
		return nil, fmt.Errorf("unsupported dns provider %q", cfg.DNS.Provider)
	}

	switch cfg.Store.Kind {
	case config.StoreHCloud:
		c.store = publish.NewHCloudStore(c.infra)
	case config.StoreIAM:
		client := newIAMClient(awsCfg, log)
		c.store = publish.NewIAMStore(client)
		c.identity = client
		c.storeForRole = func(ctx context.Context, roleARN string) (provisioning.CertificateStore, error) {
			assumed, err := client.AssumeRole(ctx, awsCfg, roleARN, roleSessionName, roleAssumeTimeout)
			if err != nil {
				return nil, err
			}
			return publish.NewIAMStore(newIAMClient(assumed, log)), nil
		}
	case config.StoreS3:
		objects, err := newS3Client(awsCfg, cfg.Store.Endpoint)
		if err != nil {
			return nil, err
		}
		c.bucket = objects
		c.store = publish.NewS3Store(objects, cfg.Store.Bucket, cfg.Store.Path)
		client := newIAMClient(awsCfg, log)
		c.identity = client
		c.storeForRole = func(ctx context.Context, roleARN string) (provisioning.CertificateStore, error) {
			assumed, err := client.AssumeRole(ctx, awsCfg, roleARN, roleSessionName, roleAssumeTimeout)
			if err != nil {
				return nil, err
			}
			roleObjects, err := newS3Client(assumed, cfg.Store.Endpoint)
			if err != nil {
				return nil, err
			}
			return publish.NewS3Store(roleObjects, cfg.Store.Bucket, cfg.Store.Path), nil
		}
	default:
		return nil, fmt.Errorf("unsupported store kind %q", cfg.Store.Kind)
	}

	return c, nil
}

// preflight checks provider state a run depends on before anything is created.
func (c *clients) preflight(ctx context.Context, cfg *config.Config) error {
	if c.bucket == nil {
		return nil
	}
	exists, err := c.bucket.BucketExists(ctx, cfg.Store.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist or is not accessible", cfg.Store.Bucket)
	}
	return nil
}

// awsRegion returns the configured AWS region or the default.
func awsRegion(cfg *config.Config) string {
	if cfg.Store.Region == "" {
		return config.DefaultAWSRegion
	}
	return cfg.Store.Region
}
