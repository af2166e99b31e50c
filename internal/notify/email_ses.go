package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/lexpoint/leadforms/pkg/logging"
)

// SESAPI is the subset of the SESv2 client used by SESSender.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig holds configuration for AWS SES. ConfigurationSet is optional.
type SESConfig struct {
	FromEmail        string
	FromName         string
	ConfigurationSet string
}

// SESSender sends emails through AWS SES v2.
type SESSender struct {
	client  SESAPI
	from    Address
	confSet string
	logger  *logging.Logger
}

// NewSESSender returns nil without a client or a from address.
func NewSESSender(client SESAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil || cfg.FromEmail == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultFromName
	}
	return &SESSender{
		client:  client,
		from:    Address{Email: cfg.FromEmail, Name: cfg.FromName},
		confSet: cfg.ConfigurationSet,
		logger:  logger,
	}
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	output, err := s.client.SendEmail(ctx, buildSESInput(s.from, s.confSet, msg))
	if err != nil {
		s.logger.Error("SES send failed", "error", err, "to", msg.To.Email, "category", msg.Category)
		return fmt.Errorf("notify: SES send: %w", err)
	}
	s.logger.Info("email sent via SES", "to", msg.To.Email, "category", msg.Category, "message_id", aws.ToString(output.MessageId))
	return nil
}

func buildSESInput(from Address, confSet string, msg EmailMessage) *sesv2.SendEmailInput {
	body := &types.Body{}
	if msg.Body != "" {
		body.Text = utf8Content(msg.Body)
	}
	if msg.HTML != "" {
		body.Html = utf8Content(msg.HTML)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from.String()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To.String()}},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: utf8Content(msg.Subject), Body: body},
		},
	}
	if msg.ReplyTo.Email != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo.String()}
	}
	if confSet != "" {
		input.ConfigurationSetName = aws.String(confSet)
	}
	if msg.Category != "" {
		// SES tag values allow only alphanumerics, '_' and '-'.
		input.EmailTags = []types.MessageTag{{
			Name:  aws.String("category"),
			Value: aws.String(strings.ReplaceAll(msg.Category, " ", "_")),
		}}
	}
	return input
}

func utf8Content(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

var _ EmailSender = (*SESSender)(nil)
