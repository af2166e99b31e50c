// Package mainconfig holds startup wiring shared by the API server and the
// webhook lambda.
package mainconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	appconfig "github.com/lexpoint/leadforms/internal/config"
)

// Services redirected to AWS_ENDPOINT_OVERRIDE (LocalStack in development).
var overriddenServices = map[string]bool{
	sqs.ServiceID:      true,
	dynamodb.ServiceID: true,
	s3.ServiceID:       true,
	sesv2.ServiceID:    true,
}

// LoadAWSConfig builds the SDK config from the region, optional static keys
// and the optional endpoint override.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if provider, ok := staticCredentials(cfg); ok {
		opts = append(opts, config.WithCredentialsProvider(provider))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("mainconfig: load aws config: %w", err)
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.EndpointResolverWithOptions = endpointResolver(endpoint, cfg.AWSRegion)
	}
	return awsCfg, nil
}

func staticCredentials(cfg *appconfig.Config) (aws.CredentialsProvider, bool) {
	key, secret := strings.TrimSpace(cfg.AWSAccessKeyID), strings.TrimSpace(cfg.AWSSecretAccessKey)
	if key == "" || secret == "" {
		return nil, false
	}
	return credentials.NewStaticCredentialsProvider(key, secret, ""), true
}

func endpointResolver(endpoint, region string) aws.EndpointResolverWithOptions {
	return aws.EndpointResolverWithOptionsFunc(func(service, _ string, _ ...interface{}) (aws.Endpoint, error) {
		if !overriddenServices[service] {
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		}
		return aws.Endpoint{
			URL:           endpoint,
			PartitionID:   "aws",
			SigningRegion: region,
			// LocalStack serves buckets path-style on a single host.
			HostnameImmutable: service == s3.ServiceID,
		}, nil
	})
}

// NeedsAWS reports whether any configured component talks to AWS.
func NeedsAWS(cfg *appconfig.Config) bool {
	switch {
	case cfg.AnalyticsSink == "sqs", cfg.AnalyticsSink == "dynamodb":
		return true
	case strings.TrimSpace(cfg.WebhookArchiveBucket) != "":
		return true
	case cfg.EmailProvider == "ses":
		return true
	case cfg.EmailProvider == "auto":
		return cfg.SESFromEmail != "" && cfg.SendGridAPIKey == ""
	}
	return false
}
