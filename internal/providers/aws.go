package providers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// AWSCredentials are optional static credentials. Empty keys use the default chain
// (environment, shared config, Lambda execution role).
type AWSCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
}

// LoadAWSConfig builds an aws.Config whose standard retryer makes at most maxRetries
// retries per call. Billing queries are charged per request, so keep this low.
func LoadAWSConfig(ctx context.Context, creds AWSCredentials, maxRetries int) (aws.Config, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(nonEmpty(creds.Region, "us-east-1")),
		awsconfig.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = maxRetries + 1
			})
		}),
	}
	if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// WithRegion returns a copy of cfg pinned to region
func WithRegion(cfg aws.Config, region string) aws.Config {
	regional := cfg.Copy()
	if region != "" {
		regional.Region = region
	}
	return regional
}

func nonEmpty(v string, def string) string {
	if v == "" {
		return def
	}
	return v
}
