package iam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIAM is an in-memory IAM backend.
type fakeIAM struct {
	mu       sync.Mutex
	roles    map[string]string            // name -> trust policy
	policies map[string]map[string]string // role -> policy -> doc
	certs    map[string]*iam.UploadServerCertificateInput
	roleTags map[string][]iamtypes.Tag

	uploadErr error
}

func newFakeIAM() *fakeIAM {
	return &fakeIAM{
		roles:    make(map[string]string),
		policies: make(map[string]map[string]string),
		certs:    make(map[string]*iam.UploadServerCertificateInput),
		roleTags: make(map[string][]iamtypes.Tag),
	}
}

func noSuchEntity(what string) error {
	return &iamtypes.NoSuchEntityException{Message: aws.String(what + " not found")}
}

func roleARN(name string) string { return "arn:aws:iam::123456789012:role/" + name }

func (f *fakeIAM) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.RoleName)
	if _, ok := f.roles[name]; !ok {
		return nil, noSuchEntity(name)
	}
	return &iam.GetRoleOutput{Role: &iamtypes.Role{RoleName: in.RoleName, Arn: aws.String(roleARN(name))}}, nil
}

func (f *fakeIAM) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.RoleName)
	f.roles[name] = aws.ToString(in.AssumeRolePolicyDocument)
	f.roleTags[name] = in.Tags
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{RoleName: in.RoleName, Arn: aws.String(roleARN(name))}}, nil
}

func (f *fakeIAM) DeleteRole(_ context.Context, in *iam.DeleteRoleInput, _ ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.RoleName)
	if _, ok := f.roles[name]; !ok {
		return nil, noSuchEntity(name)
	}
	if len(f.policies[name]) > 0 {
		return nil, &smithy.GenericAPIError{Code: "DeleteConflict", Message: "must delete policies first"}
	}
	delete(f.roles, name)
	return &iam.DeleteRoleOutput{}, nil
}

func (f *fakeIAM) PutRolePolicy(_ context.Context, in *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role := aws.ToString(in.RoleName)
	if _, ok := f.roles[role]; !ok {
		return nil, noSuchEntity(role)
	}
	if f.policies[role] == nil {
		f.policies[role] = make(map[string]string)
	}
	f.policies[role][aws.ToString(in.PolicyName)] = aws.ToString(in.PolicyDocument)
	return &iam.PutRolePolicyOutput{}, nil
}

func (f *fakeIAM) DeleteRolePolicy(_ context.Context, in *iam.DeleteRolePolicyInput, _ ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role := aws.ToString(in.RoleName)
	name := aws.ToString(in.PolicyName)
	if _, ok := f.policies[role][name]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchEntity", Message: "policy not found"}
	}
	delete(f.policies[role], name)
	return &iam.DeleteRolePolicyOutput{}, nil
}

func (f *fakeIAM) UploadServerCertificate(_ context.Context, in *iam.UploadServerCertificateInput, _ ...func(*iam.Options)) (*iam.UploadServerCertificateOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	name := aws.ToString(in.ServerCertificateName)
	if _, ok := f.certs[name]; ok {
		return nil, &iamtypes.EntityAlreadyExistsException{Message: aws.String(name)}
	}
	f.certs[name] = in
	arn := fmt.Sprintf("arn:aws:iam::123456789012:server-certificate%s%s", aws.ToString(in.Path), name)
	return &iam.UploadServerCertificateOutput{
		ServerCertificateMetadata: &iamtypes.ServerCertificateMetadata{Arn: aws.String(arn)},
	}, nil
}

func (f *fakeIAM) DeleteServerCertificate(_ context.Context, in *iam.DeleteServerCertificateInput, _ ...func(*iam.Options)) (*iam.DeleteServerCertificateOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.ServerCertificateName)
	if _, ok := f.certs[name]; !ok {
		return nil, noSuchEntity(name)
	}
	delete(f.certs, name)
	return &iam.DeleteServerCertificateOutput{}, nil
}

// fakeSTS fails the first failures calls, then reports the account.
type fakeSTS struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *fakeSTS) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "not authorized to perform sts:AssumeRole"}
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String("123456789012")}, nil
}

func TestCallerAccount(t *testing.T) {
	t.Parallel()

	c := NewClient(newFakeIAM(), &fakeSTS{})
	account, err := c.CallerAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "123456789012", account)

	c = NewClient(newFakeIAM(), &fakeSTS{failures: 1})
	_, err = c.CallerAccount(context.Background())
	assert.ErrorContains(t, err, "failed to get caller identity")
}

func TestRoleLifecycle(t *testing.T) {
	t.Parallel()

	backend := newFakeIAM()
	c := NewClient(backend, &fakeSTS{})
	ctx := context.Background()

	arn, err := c.EnsureRole(ctx, "run-1-publisher", `{"trust":true}`, map[string]string{"certzner.io/run": "run-1"})
	require.NoError(t, err)
	assert.Equal(t, roleARN("run-1-publisher"), arn)
	require.Len(t, backend.roleTags["run-1-publisher"], 1)
	assert.Equal(t, "certzner.io/run", aws.ToString(backend.roleTags["run-1-publisher"][0].Key))

	// Second ensure reuses the role.
	again, err := c.EnsureRole(ctx, "run-1-publisher", `{"trust":false}`, nil)
	require.NoError(t, err)
	assert.Equal(t, arn, again)
	assert.Equal(t, `{"trust":true}`, backend.roles["run-1-publisher"])

	require.NoError(t, c.PutRolePolicy(ctx, "run-1-publisher", "run-1-publish", `{"doc":1}`))
	assert.Equal(t, `{"doc":1}`, backend.policies["run-1-publisher"]["run-1-publish"])

	// Role deletion is refused while the policy is attached.
	err = c.DeleteRole(ctx, "run-1-publisher")
	assert.ErrorContains(t, err, "failed to delete role run-1-publisher")

	require.NoError(t, c.DeleteRolePolicy(ctx, "run-1-publisher", "run-1-publish"))
	require.NoError(t, c.DeleteRole(ctx, "run-1-publisher"))
	assert.Empty(t, backend.roles)

	// Idempotent.
	require.NoError(t, c.DeleteRolePolicy(ctx, "run-1-publisher", "run-1-publish"))
	require.NoError(t, c.DeleteRole(ctx, "run-1-publisher"))
}

func TestServerCertificates(t *testing.T) {
	t.Parallel()

	backend := newFakeIAM()
	c := NewClient(backend, &fakeSTS{})
	ctx := context.Background()

	arn, err := c.UploadServerCertificate(ctx, "a-example-com", "edge", "CERT", "KEY", "CHAIN", nil)
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::123456789012:server-certificate/edge/a-example-com", arn)
	assert.Equal(t, "CHAIN", aws.ToString(backend.certs["a-example-com"].CertificateChain))

	_, err = c.UploadServerCertificate(ctx, "a-example-com", "edge", "CERT", "KEY", "", nil)
	assert.ErrorContains(t, err, "failed to upload server certificate a-example-com")

	require.NoError(t, c.DeleteServerCertificate(ctx, "a-example-com"))
	require.NoError(t, c.DeleteServerCertificate(ctx, "a-example-com"))

	_, err = c.UploadServerCertificate(ctx, "b-example-com", "", "CERT", "KEY", "", nil)
	require.NoError(t, err)
	assert.Nil(t, backend.certs["b-example-com"].CertificateChain)
	assert.Equal(t, "/", aws.ToString(backend.certs["b-example-com"].Path))
}

func TestDeleteServerCertificate_OtherError(t *testing.T) {
	t.Parallel()

	backend := &erroringIAM{fakeIAM: newFakeIAM(), err: &smithy.GenericAPIError{Code: "Throttling"}}
	c := NewClient(backend, &fakeSTS{})
	err := c.DeleteServerCertificate(context.Background(), "x")
	assert.ErrorContains(t, err, "failed to delete server certificate x")
}

type erroringIAM struct {
	*fakeIAM
	err error
}

func (e *erroringIAM) DeleteServerCertificate(context.Context, *iam.DeleteServerCertificateInput, ...func(*iam.Options)) (*iam.DeleteServerCertificateOutput, error) {
	return nil, e.err
}

func TestAssumeRole(t *testing.T) {
	orig := assumePollInterval
	assumePollInterval = time.Millisecond
	t.Cleanup(func() { assumePollInterval = orig })

	t.Run("waits for propagation", func(t *testing.T) {
		assumed := &fakeSTS{failures: 2}
		c := NewClient(newFakeIAM(), &fakeSTS{})
		c.newSTS = func(aws.Config) STSAPI { return assumed }

		cfg, err := c.AssumeRole(context.Background(), aws.Config{Region: "eu-central-1"}, roleARN("r"), "certzner-run-1", time.Second)
		require.NoError(t, err)
		assert.Equal(t, "eu-central-1", cfg.Region)
		assert.NotNil(t, cfg.Credentials)
		assert.Equal(t, 3, assumed.calls)
	})

	t.Run("gives up with last error", func(t *testing.T) {
		assumed := &fakeSTS{failures: 1 << 20}
		c := NewClient(newFakeIAM(), &fakeSTS{})
		c.newSTS = func(aws.Config) STSAPI { return assumed }

		_, err := c.AssumeRole(context.Background(), aws.Config{}, roleARN("r"), "s", 20*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to assume role")
		assert.Contains(t, err.Error(), "AccessDenied")
	})
}

func TestIsNoSuchEntity(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNoSuchEntity(fmt.Errorf("wrapped: %w", noSuchEntity("x"))))
	assert.True(t, IsNoSuchEntity(&smithy.GenericAPIError{Code: "NoSuchEntity"}))
	assert.False(t, IsNoSuchEntity(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, IsNoSuchEntity(errors.New("plain")))
	assert.False(t, IsNoSuchEntity(nil))
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":           "/",
		"/":          "/",
		"edge":       "/edge/",
		"/edge/":     "/edge/",
		"certs/prod": "/certs/prod/",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePath(in), in)
	}
}

func TestTrustPolicy(t *testing.T) {
	t.Parallel()

	doc, err := TrustPolicy("123456789012")
	require.NoError(t, err)

	var parsed policyDocument
	require.NoError(t, json.Unmarshal([]byte(doc), &parsed))
	require.Len(t, parsed.Statement, 1)
	assert.Equal(t, []string{"sts:AssumeRole"}, parsed.Statement[0].Action)
	assert.Equal(t, "arn:aws:iam::123456789012:root", parsed.Statement[0].Principal["AWS"])
}

func TestPublishPolicy(t *testing.T) {
	t.Parallel()

	t.Run("iam scoped to path", func(t *testing.T) {
		t.Parallel()
		doc, err := PublishPolicy(StoreIAM, "edge", "", "123456789012", "run-1")
		require.NoError(t, err)
		assert.Contains(t, doc, `arn:aws:iam::123456789012:server-certificate/edge/*`)
		assert.Contains(t, doc, "iam:UploadServerCertificate")
		assert.NotContains(t, doc, "s3:")
	})

	t.Run("s3 scoped to prefix", func(t *testing.T) {
		t.Parallel()
		doc, err := PublishPolicy(StoreS3, "/edge/", "certs", "123456789012", "run-1")
		require.NoError(t, err)
		assert.Contains(t, doc, `arn:aws:s3:::certs/edge/*`)
		assert.Contains(t, doc, `"s3:prefix":"edge/*"`)
	})

	t.Run("s3 without bucket", func(t *testing.T) {
		t.Parallel()
		_, err := PublishPolicy(StoreS3, "edge", "", "1", "run-1")
		assert.Error(t, err)
	})

	t.Run("every statement scoped to the run", func(t *testing.T) {
		t.Parallel()
		for _, store := range []string{StoreIAM, StoreS3} {
			doc, err := PublishPolicy(store, "/edge/", "certs", "123456789012", "run-1")
			require.NoError(t, err)

			var parsed policyDocument
			require.NoError(t, json.Unmarshal([]byte(doc), &parsed))
			require.NotEmpty(t, parsed.Statement)
			for _, st := range parsed.Statement {
				require.Contains(t, st.Condition, "StringEquals", store)
				assert.Equal(t,
					map[string]any{"aws:PrincipalTag/certzner.io/run": "run-1"},
					st.Condition["StringEquals"], store)
			}
		}
	})

	t.Run("without run tag", func(t *testing.T) {
		t.Parallel()
		_, err := PublishPolicy(StoreIAM, "edge", "", "1", "")
		assert.ErrorContains(t, err, "requires a run tag")
	})

	t.Run("unknown store", func(t *testing.T) {
		t.Parallel()
		_, err := PublishPolicy("hcloud", "edge", "", "1", "run-1")
		assert.ErrorContains(t, err, `no publish policy for store "hcloud"`)
	})
}
