package iam

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/imamik/certzner/internal/util/retry"
)

// assumePollInterval is how often AssumeRole retries while a fresh role
// propagates through IAM.
var assumePollInterval = 3 * time.Second

// AssumeRole returns a copy of base whose credentials come from assuming
// roleARN. New roles take a few seconds to become assumable, so the
// credentials are exercised with GetCallerIdentity until they work or
// timeout elapses.
func (c *Client) AssumeRole(ctx context.Context, base aws.Config, roleARN, sessionName string, timeout time.Duration) (aws.Config, error) {
	provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(base), roleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = sessionName
	})

	cfg := base.Copy()
	cfg.Credentials = aws.NewCredentialsCache(provider)
	client := c.newSTS(cfg)

	var lastErr error
	err := retry.Poll(ctx, assumePollInterval, timeout, func(ctx context.Context) (bool, error) {
		_, lastErr = client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if lastErr != nil {
			c.log.V(1).Info("publisher role not assumable yet", "role", roleARN, "error", lastErr.Error())
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		if lastErr != nil {
			return aws.Config{}, fmt.Errorf("failed to assume role %s: %w", roleARN, lastErr)
		}
		return aws.Config{}, fmt.Errorf("failed to assume role %s: %w", roleARN, err)
	}
	return cfg, nil
}
