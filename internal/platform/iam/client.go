package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/go-logr/logr"

	"github.com/imamik/certzner/internal/util/labels"
)

// API is the subset of the IAM client used here.
type API interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
	DeleteRolePolicy(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error)
	UploadServerCertificate(ctx context.Context, params *iam.UploadServerCertificateInput, optFns ...func(*iam.Options)) (*iam.UploadServerCertificateOutput, error)
	DeleteServerCertificate(ctx context.Context, params *iam.DeleteServerCertificateInput, optFns ...func(*iam.Options)) (*iam.DeleteServerCertificateOutput, error)
}

// STSAPI is the subset of the STS client used here.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Client wraps IAM and STS for role and server-certificate management.
type Client struct {
	iam API
	sts STSAPI
	log logr.Logger

	// newSTS builds an STS client from credentials; replaced in tests.
	newSTS func(aws.Config) STSAPI
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a Client from explicit API implementations.
func NewClient(iamAPI API, stsAPI STSAPI, opts ...Option) *Client {
	c := &Client{
		iam: iamAPI,
		sts: stsAPI,
		log: logr.Discard(),
		newSTS: func(cfg aws.Config) STSAPI {
			return sts.NewFromConfig(cfg)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig creates a Client using an AWS config (default credential chain).
func NewFromConfig(cfg aws.Config, opts ...Option) *Client {
	return NewClient(iam.NewFromConfig(cfg), sts.NewFromConfig(cfg), opts...)
}

// CallerAccount returns the AWS account ID of the current credentials.
func (c *Client) CallerAccount(ctx context.Context) (string, error) {
	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}

// EnsureRole returns the ARN of the named role, creating it with the given
// trust policy if it does not exist.
func (c *Client) EnsureRole(ctx context.Context, name, trustPolicy string, tags map[string]string) (string, error) {
	got, err := c.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err == nil {
		c.log.V(1).Info("reusing identity role", "role", name)
		return aws.ToString(got.Role.Arn), nil
	}
	if !IsNoSuchEntity(err) {
		return "", fmt.Errorf("failed to get role %s: %w", name, err)
	}

	created, err := c.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
		Description:              aws.String("certzner certificate publisher"),
		Tags:                     toTags(tags),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create role %s: %w", name, err)
	}
	c.log.V(1).Info("created identity role", "role", name)
	return aws.ToString(created.Role.Arn), nil
}

// PutRolePolicy attaches or replaces an inline policy on a role.
func (c *Client) PutRolePolicy(ctx context.Context, role, policyName, document string) error {
	_, err := c.iam.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(role),
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(document),
	})
	if err != nil {
		return fmt.Errorf("failed to put policy %s on role %s: %w", policyName, role, err)
	}
	return nil
}

// DeleteRolePolicy removes an inline policy. A missing role or policy is success.
func (c *Client) DeleteRolePolicy(ctx context.Context, role, policyName string) error {
	_, err := c.iam.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
		RoleName:   aws.String(role),
		PolicyName: aws.String(policyName),
	})
	if err != nil && !IsNoSuchEntity(err) {
		return fmt.Errorf("failed to delete policy %s from role %s: %w", policyName, role, err)
	}
	return nil
}

// DeleteRole removes a role. A missing role is success.
func (c *Client) DeleteRole(ctx context.Context, name string) error {
	_, err := c.iam.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(name)})
	if err != nil && !IsNoSuchEntity(err) {
		return fmt.Errorf("failed to delete role %s: %w", name, err)
	}
	return nil
}

// UploadServerCertificate stores a certificate under path and returns its ARN.
func (c *Client) UploadServerCertificate(ctx context.Context, name, path, cert, key, chain string, tags map[string]string) (string, error) {
	in := &iam.UploadServerCertificateInput{
		ServerCertificateName: aws.String(name),
		Path:                  aws.String(NormalizePath(path)),
		CertificateBody:       aws.String(cert),
		PrivateKey:            aws.String(key),
		Tags:                  toTags(tags),
	}
	if chain != "" {
		in.CertificateChain = aws.String(chain)
	}

	out, err := c.iam.UploadServerCertificate(ctx, in)
	if err != nil {
		return "", fmt.Errorf("failed to upload server certificate %s: %w", name, err)
	}
	return aws.ToString(out.ServerCertificateMetadata.Arn), nil
}

// DeleteServerCertificate removes a server certificate. A missing one is success.
func (c *Client) DeleteServerCertificate(ctx context.Context, name string) error {
	_, err := c.iam.DeleteServerCertificate(ctx, &iam.DeleteServerCertificateInput{
		ServerCertificateName: aws.String(name),
	})
	if err != nil && !IsNoSuchEntity(err) {
		return fmt.Errorf("failed to delete server certificate %s: %w", name, err)
	}
	return nil
}

// NormalizePath renders a store base path as an IAM path (leading and
// trailing slash, "/" when empty).
func NormalizePath(path string) string {
	p := strings.Trim(path, "/")
	if p == "" {
		return "/"
	}
	return "/" + p + "/"
}

// IsNoSuchEntity reports whether err is an IAM NoSuchEntity error.
func IsNoSuchEntity(err error) bool {
	var nse *iamtypes.NoSuchEntityException
	if errors.As(err, &nse) {
		return true
	}
	return apiErrorCode(err) == "NoSuchEntity"
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func toTags(m map[string]string) []iamtypes.Tag {
	pairs := labels.Tags(m)
	if len(pairs) == 0 {
		return nil
	}
	tags := make([]iamtypes.Tag, 0, len(pairs))
	for _, kv := range pairs {
		tags = append(tags, iamtypes.Tag{Key: aws.String(kv[0]), Value: aws.String(kv[1])})
	}
	return tags
}
