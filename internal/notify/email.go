package notify

import (
	"context"
	"fmt"
	netmail "net/mail"

	"github.com/lexpoint/leadforms/pkg/logging"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailSender delivers one message. SendGrid, SES and the stub are interchangeable.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// Message categories, used for provider-side tagging and log filtering.
const (
	CategoryAcknowledgement = "lead-acknowledgement"
	CategoryLeadAlert       = "lead-alert"
)

// DefaultFromName is used when no sender name is configured.
const DefaultFromName = "Escritório de Advocacia"

// Address is a mailbox with an optional display name.
type Address struct {
	Email string
	Name  string
}

// String renders the RFC 5322 form, encoding non-ASCII display names.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return (&netmail.Address{Name: a.Name, Address: a.Email}).String()
}

// EmailMessage is one outgoing email. ReplyTo lets an operator answer the
// visitor straight from a lead alert.
type EmailMessage struct {
	To       Address
	ReplyTo  Address
	Subject  string
	Body     string // plain text
	HTML     string // optional
	Category string
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridSender sends emails through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	from   Address
	logger *logging.Logger
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultFromName
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   Address{Email: cfg.FromEmail, Name: cfg.FromName},
		logger: logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	response, err := s.client.SendWithContext(ctx, buildSendGridMessage(s.from, msg))
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To.Email, "category", msg.Category)
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected message", "status", response.StatusCode, "body", response.Body, "to", msg.To.Email)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid", "to", msg.To.Email, "category", msg.Category, "status", response.StatusCode)
	return nil
}

func buildSendGridMessage(from Address, msg EmailMessage) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(from.Name, from.Email))
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.To.Name, msg.To.Email))
	m.AddPersonalizations(p)

	if msg.ReplyTo.Email != "" {
		m.SetReplyTo(mail.NewEmail(msg.ReplyTo.Name, msg.ReplyTo.Email))
	}
	if msg.Category != "" {
		m.AddCategories(msg.Category)
	}

	text := msg.Body
	if text == "" {
		text = msg.Subject
	}
	m.AddContent(mail.NewContent("text/plain", text))
	if msg.HTML != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTML))
	}
	return m
}

// StubEmailSender logs instead of sending; used when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("email not sent: no provider configured",
		"to", msg.To.Email, "subject", msg.Subject, "category", msg.Category)
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
