package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/lexpoint/leadforms/internal/leads"
	"github.com/lexpoint/leadforms/pkg/logging"
)

// ErrNotAcknowledgeable is returned when a lead lacks the name or email an
// acknowledgement needs.
var ErrNotAcknowledgeable = errors.New("notify: lead needs name and email")

// ServiceConfig holds the firm details used in outgoing emails.
type ServiceConfig struct {
	FirmName        string
	OperatorEmails  []string
	ReplyWindowText string
}

// Service sends lead acknowledgements to visitors and new-lead alerts to the firm.
type Service struct {
	email  EmailSender
	cfg    ServiceConfig
	logger *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, cfg ServiceConfig, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	if cfg.FirmName == "" {
		cfg.FirmName = DefaultFromName
	}
	if cfg.ReplyWindowText == "" {
		cfg.ReplyWindowText = "em até 1 dia útil"
	}
	return &Service{email: email, cfg: cfg, logger: logger}
}

// AcknowledgeLead confirms receipt to the person who submitted the lead.
func (s *Service) AcknowledgeLead(ctx context.Context, lead *leads.Lead) error {
	if lead == nil || strings.TrimSpace(lead.Name) == "" || strings.TrimSpace(lead.Email) == "" {
		return ErrNotAcknowledgeable
	}
	firstName := strings.Fields(lead.Name)[0]

	subject := fmt.Sprintf("Recebemos seu contato - %s", s.cfg.FirmName)
	body := fmt.Sprintf(`Olá, %s!

Recebemos sua mensagem e um de nossos advogados retornará %s.

Protocolo: %s

Atenciosamente,
%s`, firstName, s.cfg.ReplyWindowText, lead.ID, s.cfg.FirmName)

	htmlBody := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<p>Olá, <strong>%s</strong>!</p>
<p>Recebemos sua mensagem e um de nossos advogados retornará %s.</p>
<p style="color: #6b7280;">Protocolo: %s</p>
<p>Atenciosamente,<br>%s</p>
</div>`,
		html.EscapeString(firstName), html.EscapeString(s.cfg.ReplyWindowText),
		html.EscapeString(lead.ID), html.EscapeString(s.cfg.FirmName))

	if err := s.email.Send(ctx, EmailMessage{
		To:       Address{Email: lead.Email, Name: lead.Name},
		Subject:  subject,
		Body:     body,
		HTML:     htmlBody,
		Category: CategoryAcknowledgement,
	}); err != nil {
		return fmt.Errorf("notify: acknowledge lead: %w", err)
	}
	s.logger.Info("notify: lead acknowledged", "lead_id", lead.ID, "event_type", lead.EventType)
	return nil
}

// NotifyNewLead alerts every configured operator inbox. One failing recipient
// does not stop the others.
func (s *Service) NotifyNewLead(ctx context.Context, lead *leads.Lead) error {
	if lead == nil || len(s.cfg.OperatorEmails) == 0 {
		return nil
	}
	name := lead.Name
	if name == "" {
		name = "Contato sem nome"
	}
	subject := fmt.Sprintf("Novo lead: %s", name)

	var b strings.Builder
	fmt.Fprintf(&b, "Novo lead recebido (%s).\n\n", lead.EventType)
	writeLine(&b, "Nome", lead.Name)
	writeLine(&b, "Telefone", lead.Phone)
	writeLine(&b, "E-mail", lead.Email)
	writeLine(&b, "Assunto", lead.Service)
	writeLine(&b, "Formulário", lead.FormName)
	writeLine(&b, "Localização", lead.Location)
	writeLine(&b, "Mensagem", lead.Message)
	fmt.Fprintf(&b, "\nID: %s", lead.ID)

	alert := EmailMessage{
		Subject:  subject,
		Body:     b.String(),
		Category: CategoryLeadAlert,
	}
	if lead.Email != "" {
		alert.ReplyTo = Address{Email: lead.Email, Name: lead.Name}
	}

	var errs []error
	for _, recipient := range s.cfg.OperatorEmails {
		alert.To = Address{Email: recipient}
		if err := s.email.Send(ctx, alert); err != nil {
			s.logger.Error("notify: failed to send lead alert", "error", err, "to", recipient)
			errs = append(errs, err)
			continue
		}
		s.logger.Info("notify: lead alert sent", "to", recipient, "lead_id", lead.ID)
	}
	return errors.Join(errs...)
}

func writeLine(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}
