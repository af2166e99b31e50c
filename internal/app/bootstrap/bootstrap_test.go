package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/lexpoint/leadforms/internal/config"
	"github.com/lexpoint/leadforms/internal/events"
	"github.com/lexpoint/leadforms/internal/intake"
	"github.com/lexpoint/leadforms/internal/notify"
	"github.com/lexpoint/leadforms/pkg/logging"
)

func testAWSConfig() aws.Config {
	return aws.Config{Region: "us-east-1"}
}

func TestBuildRedisClientDisabledWithoutAddr(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), nil, logging.Discard(), true))
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: " "}, logging.Discard(), true))
}

func TestBuildRedisClientVerifiesPing(t *testing.T) {
	mr := miniredis.RunT(t)

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), true)
	require.NotNil(t, client)
	defer client.Close()

	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: "127.0.0.1:1"}, logging.Discard(), true))
}

func TestBuildPostgresPoolSkipsWithoutURL(t *testing.T) {
	pool, err := BuildPostgresPool(context.Background(), &appconfig.Config{})
	require.NoError(t, err)
	assert.Nil(t, pool)
}

func TestBuildPostgresPoolRejectsBadURL(t *testing.T) {
	_, err := BuildPostgresPool(context.Background(), &appconfig.Config{DatabaseURL: "postgres://%zz"})
	assert.Error(t, err)
}

func TestBuildGeoLocator(t *testing.T) {
	assert.IsType(t, intake.UnknownLocator{}, BuildGeoLocator(&appconfig.Config{}, nil, logging.Discard()))

	cfg := &appconfig.Config{GeolocationURL: "https://geo.example/json/{ip}"}
	assert.IsType(t, &intake.HTTPGeoLocator{}, BuildGeoLocator(cfg, nil, logging.Discard()))
}

func TestBuildEmailSenderSelection(t *testing.T) {
	cases := []struct {
		name string
		cfg  appconfig.Config
		want any
	}{
		{
			name: "auto without credentials falls back to stub",
			cfg:  appconfig.Config{EmailProvider: "auto"},
			want: &notify.StubEmailSender{},
		},
		{
			name: "auto prefers sendgrid",
			cfg:  appconfig.Config{EmailProvider: "auto", SendGridAPIKey: "SG.key", SESFromEmail: "leads@firm.example"},
			want: &notify.SendGridSender{},
		},
		{
			name: "auto uses ses without sendgrid key",
			cfg:  appconfig.Config{EmailProvider: "auto", SESFromEmail: "leads@firm.example"},
			want: &notify.SESSender{},
		},
		{
			name: "explicit ses",
			cfg:  appconfig.Config{EmailProvider: "ses", SendGridAPIKey: "SG.key", SESFromEmail: "leads@firm.example"},
			want: &notify.SESSender{},
		},
		{
			name: "sendgrid without key falls back to stub",
			cfg:  appconfig.Config{EmailProvider: "sendgrid"},
			want: &notify.StubEmailSender{},
		},
		{
			name: "explicit stub",
			cfg:  appconfig.Config{EmailProvider: "stub", SendGridAPIKey: "SG.key"},
			want: &notify.StubEmailSender{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sender := BuildEmailSender(&tc.cfg, testAWSConfig(), logging.Discard())
			assert.IsType(t, tc.want, sender)
		})
	}
}

func TestBuildNotifyService(t *testing.T) {
	svc := BuildNotifyService(&appconfig.Config{FirmName: "Silva Advogados"}, notify.NewStubEmailSender(logging.Discard()), logging.Discard())
	assert.NotNil(t, svc)
}

func TestBuildAnalyticsSink(t *testing.T) {
	logger := logging.Discard()

	sink, err := BuildAnalyticsSink(&appconfig.Config{AnalyticsSink: "log"}, testAWSConfig(), logger)
	require.NoError(t, err)
	assert.IsType(t, &events.LogSink{}, sink)

	sink, err = BuildAnalyticsSink(&appconfig.Config{AnalyticsSink: "sqs", AnalyticsQueueURL: "https://sqs.us-east-1.amazonaws.com/1/conversions"}, testAWSConfig(), logger)
	require.NoError(t, err)
	assert.IsType(t, &events.SQSSink{}, sink)

	sink, err = BuildAnalyticsSink(&appconfig.Config{AnalyticsSink: "dynamodb", AnalyticsTable: "conversion_events"}, testAWSConfig(), logger)
	require.NoError(t, err)
	assert.IsType(t, &events.DynamoSink{}, sink)

	_, err = BuildAnalyticsSink(&appconfig.Config{AnalyticsSink: "sqs"}, testAWSConfig(), logger)
	assert.Error(t, err)

	_, err = BuildAnalyticsSink(&appconfig.Config{AnalyticsSink: "kafka"}, testAWSConfig(), logger)
	assert.True(t, errors.Is(err, events.ErrUnknownSink))
}

func TestBuildArchiveStore(t *testing.T) {
	assert.Nil(t, BuildArchiveStore(&appconfig.Config{}, testAWSConfig(), logging.Discard()))

	store := BuildArchiveStore(&appconfig.Config{WebhookArchiveBucket: "lead-webhooks"}, testAWSConfig(), logging.Discard())
	require.NotNil(t, store)
	assert.True(t, store.Enabled())
}
