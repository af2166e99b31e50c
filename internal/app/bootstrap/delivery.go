package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/lexpoint/leadforms/internal/archive"
	appconfig "github.com/lexpoint/leadforms/internal/config"
	"github.com/lexpoint/leadforms/internal/events"
	"github.com/lexpoint/leadforms/internal/notify"
	"github.com/lexpoint/leadforms/pkg/logging"
)

// BuildEmailSender picks the email provider. With EMAIL_PROVIDER=auto SendGrid
// wins over SES, and the stub is used when neither is configured.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}
	fromName := cfg.SendGridFromName
	if fromName == "" {
		fromName = cfg.FirmName
	}

	sendgrid := func() notify.EmailSender {
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  fromName,
		}, logger); s != nil {
			return s
		}
		return nil
	}
	ses := func() notify.EmailSender {
		if strings.TrimSpace(cfg.SESFromEmail) == "" {
			return nil
		}
		if s := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail:        cfg.SESFromEmail,
			FromName:         fromName,
			ConfigurationSet: cfg.SESConfigSet,
		}, logger); s != nil {
			return s
		}
		return nil
	}

	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		sender = sendgrid()
	case "ses":
		sender = ses()
	case "stub":
		return notify.NewStubEmailSender(logger)
	default:
		if sender = sendgrid(); sender == nil {
			sender = ses()
		}
	}
	if sender == nil {
		logger.Warn("no email provider configured; emails will only be logged", "provider", cfg.EmailProvider)
		return notify.NewStubEmailSender(logger)
	}
	return sender
}

// BuildNotifyService wires the acknowledgement and operator alert emails.
func BuildNotifyService(cfg *appconfig.Config, sender notify.EmailSender, logger *logging.Logger) *notify.Service {
	svcCfg := notify.ServiceConfig{}
	if cfg != nil {
		svcCfg.FirmName = cfg.FirmName
		svcCfg.OperatorEmails = cfg.LeadNotifyEmails
	}
	return notify.NewService(sender, svcCfg, logger)
}

// BuildAnalyticsSink returns the outbox delivery handler named by ANALYTICS_SINK.
func BuildAnalyticsSink(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (events.DeliveryHandler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	switch cfg.AnalyticsSink {
	case "", events.SinkLog:
		return events.NewLogSink(logger), nil
	case events.SinkSQS:
		if strings.TrimSpace(cfg.AnalyticsQueueURL) == "" {
			return nil, fmt.Errorf("bootstrap: ANALYTICS_QUEUE_URL is required for the sqs sink")
		}
		return events.NewSQSSink(sqs.NewFromConfig(awsCfg), cfg.AnalyticsQueueURL), nil
	case events.SinkDynamoDB:
		if strings.TrimSpace(cfg.AnalyticsTable) == "" {
			return nil, fmt.Errorf("bootstrap: ANALYTICS_TABLE is required for the dynamodb sink")
		}
		return events.NewDynamoSink(dynamodb.NewFromConfig(awsCfg), cfg.AnalyticsTable), nil
	default:
		return nil, fmt.Errorf("bootstrap: %q: %w", cfg.AnalyticsSink, events.ErrUnknownSink)
	}
}

// BuildArchiveStore returns the S3 webhook archive, or nil when no bucket is set.
func BuildArchiveStore(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) *archive.Store {
	if cfg == nil || strings.TrimSpace(cfg.WebhookArchiveBucket) == "" {
		return nil
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	})
	return archive.NewStore(client, cfg.WebhookArchiveBucket, logger)
}
