package mainconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	appconfig "github.com/lexpoint/leadforms/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsAWS(t *testing.T) {
	tests := []struct {
		name string
		cfg  appconfig.Config
		want bool
	}{
		{"log sink only", appconfig.Config{AnalyticsSink: "log", EmailProvider: "auto"}, false},
		{"sqs sink", appconfig.Config{AnalyticsSink: "sqs"}, true},
		{"dynamodb sink", appconfig.Config{AnalyticsSink: "dynamodb"}, true},
		{"archive bucket", appconfig.Config{WebhookArchiveBucket: "raw-leads"}, true},
		{"blank archive bucket", appconfig.Config{WebhookArchiveBucket: "  "}, false},
		{"explicit ses", appconfig.Config{EmailProvider: "ses"}, true},
		{"auto falls to ses", appconfig.Config{EmailProvider: "auto", SESFromEmail: "contato@firm.example"}, true},
		{"auto prefers sendgrid", appconfig.Config{EmailProvider: "auto", SESFromEmail: "contato@firm.example", SendGridAPIKey: "key"}, false},
		{"sendgrid", appconfig.Config{EmailProvider: "sendgrid", SESFromEmail: "contato@firm.example"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsAWS(&tt.cfg))
		})
	}
}

func TestStaticCredentials(t *testing.T) {
	_, ok := staticCredentials(&appconfig.Config{AWSAccessKeyID: "id"})
	assert.False(t, ok)

	provider, ok := staticCredentials(&appconfig.Config{AWSAccessKeyID: " id ", AWSSecretAccessKey: "secret"})
	require.True(t, ok)
	creds, err := provider.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}

func TestEndpointResolver(t *testing.T) {
	resolver := endpointResolver("http://localstack:4566", "sa-east-1")

	ep, err := resolver.ResolveEndpoint(s3.ServiceID, "sa-east-1")
	require.NoError(t, err)
	assert.Equal(t, "http://localstack:4566", ep.URL)
	assert.Equal(t, "sa-east-1", ep.SigningRegion)
	assert.True(t, ep.HostnameImmutable)

	ep, err = resolver.ResolveEndpoint(sqs.ServiceID, "sa-east-1")
	require.NoError(t, err)
	assert.False(t, ep.HostnameImmutable)

	_, err = resolver.ResolveEndpoint("Lambda", "sa-east-1")
	var notFound *aws.EndpointNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestLoadAWSConfig(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:           "sa-east-1",
		AWSAccessKeyID:      "id",
		AWSSecretAccessKey:  "secret",
		AWSEndpointOverride: "http://localstack:4566",
	}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "sa-east-1", awsCfg.Region)
	assert.NotNil(t, awsCfg.EndpointResolverWithOptions)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id", creds.AccessKeyID)
}
