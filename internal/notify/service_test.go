package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/lexpoint/leadforms/internal/leads"
	"github.com/lexpoint/leadforms/pkg/logging"
)

type mockEmailSender struct {
	mu      sync.Mutex
	sent    []EmailMessage
	failFor map[string]bool
}

func (m *mockEmailSender) Send(_ context.Context, msg EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[msg.To.Email] {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestAcknowledgeLead(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, ServiceConfig{FirmName: "Silva & Souza Advogados"}, logging.Discard())

	lead := &leads.Lead{ID: "lead-1", EventType: leads.EventTypeWebhookReceived, Name: "Ana <b>Lima</b>", Email: "ana@example.com"}
	if err := svc.AcknowledgeLead(context.Background(), lead); err != nil {
		t.Fatalf("acknowledge failed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != (Address{Email: "ana@example.com", Name: lead.Name}) {
		t.Errorf("unexpected recipient %+v", msg.To)
	}
	if msg.Category != CategoryAcknowledgement || msg.ReplyTo.Email != "" {
		t.Errorf("unexpected category %q or reply-to %+v", msg.Category, msg.ReplyTo)
	}
	if !strings.Contains(msg.Subject, "Silva & Souza Advogados") {
		t.Errorf("subject should name the firm: %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "Olá, Ana!") || !strings.Contains(msg.Body, "lead-1") {
		t.Errorf("unexpected body %q", msg.Body)
	}
	if strings.Contains(msg.HTML, "<b>") || !strings.Contains(msg.HTML, "Silva &amp; Souza") {
		t.Errorf("html must escape user and firm text: %q", msg.HTML)
	}
}

func TestAcknowledgeLeadNeedsNameAndEmail(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, ServiceConfig{}, logging.Discard())

	for _, lead := range []*leads.Lead{
		nil,
		{Name: "Ana"},
		{Email: "ana@example.com"},
	} {
		if err := svc.AcknowledgeLead(context.Background(), lead); !errors.Is(err, ErrNotAcknowledgeable) {
			t.Errorf("expected ErrNotAcknowledgeable, got %v", err)
		}
	}
	if len(sender.sent) != 0 {
		t.Fatalf("nothing should be sent, got %d", len(sender.sent))
	}
}

func TestNotifyNewLeadContinuesPastFailures(t *testing.T) {
	sender := &mockEmailSender{failFor: map[string]bool{"down@firm.example": true}}
	svc := NewService(sender, ServiceConfig{OperatorEmails: []string{"down@firm.example", "socios@firm.example"}}, logging.Discard())

	lead := &leads.Lead{ID: "lead-2", EventType: leads.EventTypeFormSubmission, Phone: "11 98765-4321", Location: "São Paulo, Brazil"}
	err := svc.NotifyNewLead(context.Background(), lead)
	if err == nil {
		t.Fatal("expected joined error for failing recipient")
	}
	if len(sender.sent) != 1 || sender.sent[0].To.Email != "socios@firm.example" {
		t.Fatalf("expected alert to the healthy inbox, got %+v", sender.sent)
	}
	if sender.sent[0].ReplyTo.Email != "" || sender.sent[0].Category != CategoryLeadAlert {
		t.Errorf("lead without email must not set reply-to: %+v", sender.sent[0])
	}
	body := sender.sent[0].Body
	if !strings.Contains(body, "Telefone: 11 98765-4321") || strings.Contains(body, "E-mail:") {
		t.Errorf("unexpected alert body %q", body)
	}
	if !strings.Contains(sender.sent[0].Subject, "Contato sem nome") {
		t.Errorf("unexpected subject %q", sender.sent[0].Subject)
	}
}

func TestNotifyNewLeadWithoutOperators(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, ServiceConfig{}, logging.Discard())
	if err := svc.NotifyNewLead(context.Background(), &leads.Lead{Name: "Ana"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("no operators configured, nothing to send")
	}
}

func TestNotifyNewLeadRepliesToVisitor(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, ServiceConfig{OperatorEmails: []string{"a@firm.example", "b@firm.example"}}, logging.Discard())

	lead := &leads.Lead{ID: "lead-3", Name: "João Pereira", Email: "joao@example.com"}
	if err := svc.NotifyNewLead(context.Background(), lead); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(sender.sent))
	}
	for i, want := range []string{"a@firm.example", "b@firm.example"} {
		msg := sender.sent[i]
		if msg.To.Email != want {
			t.Errorf("alert %d sent to %q, want %q", i, msg.To.Email, want)
		}
		if msg.ReplyTo != (Address{Email: "joao@example.com", Name: "João Pereira"}) {
			t.Errorf("alert %d reply-to %+v", i, msg.ReplyTo)
		}
	}
}
