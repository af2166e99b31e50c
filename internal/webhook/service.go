package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/lexpoint/leadforms/internal/archive"
	"github.com/lexpoint/leadforms/internal/leads"
	"github.com/lexpoint/leadforms/internal/observability/metrics"
	"github.com/lexpoint/leadforms/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("leadforms.internal.webhook")

// Webhook inbound statuses recorded on the metrics counter.
const (
	statusAccepted     = "accepted"
	statusInvalid      = "invalid"
	statusInsufficient = "insufficient"
	statusError        = "error"
)

const defaultNotifyTimeout = 10 * time.Second

// Notifier sends the acknowledgement and operator emails for a new lead.
type Notifier interface {
	AcknowledgeLead(ctx context.Context, lead *leads.Lead) error
	NotifyNewLead(ctx context.Context, lead *leads.Lead) error
}

// Archiver keeps an audit copy of raw inbound payloads.
type Archiver interface {
	ArchiveWebhook(ctx context.Context, raw []byte, record archive.WebhookRecord) error
}

// TaskRunner runs best-effort work off the request path.
type TaskRunner interface {
	Go(name string, timeout time.Duration, fn func(ctx context.Context) error)
}

// Outcome is the result of one accepted webhook.
type Outcome struct {
	Lead      *leads.Lead
	Data      map[string]any
	Duplicate bool
}

// Service normalizes and stores inbound leads.
type Service struct {
	repo          leads.Repository
	mappings      MappingStore
	runner        TaskRunner
	notifier      Notifier
	archiver      Archiver
	metrics       *metrics.LeadMetrics
	logger        *logging.Logger
	notifyTimeout time.Duration
	now           func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier enables acknowledgement emails.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithArchiver enables raw payload archival.
func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

func WithMetrics(m *metrics.LeadMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNotifyTimeout bounds each email dispatch.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// NewService wires the normalizer. repo, mappings and runner are required.
func NewService(repo leads.Repository, mappings MappingStore, runner TaskRunner, logger *logging.Logger, opts ...Option) *Service {
	if repo == nil || mappings == nil || runner == nil {
		panic("webhook: repository, mapping store and runner required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		repo:          repo,
		mappings:      mappings,
		runner:        runner,
		logger:        logger,
		notifyTimeout: defaultNotifyTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Receive runs one inbound payload through parse, mapping, validation and
// persistence. Email and archival never affect the returned result.
func (s *Service) Receive(ctx context.Context, raw []byte) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "webhook.receive", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	start := s.now()
	defer func() { s.metrics.ObserveLatency("webhook_receive", s.now().Sub(start).Seconds()) }()

	requestID := uuid.NewString()
	span.SetAttributes(attribute.String("leadforms.webhook.request_id", requestID))

	body, err := parseBody(raw)
	if err != nil {
		s.logger.Warn("webhook body rejected", "error", err, "request_id", requestID)
		s.metrics.ObserveWebhook(statusInvalid)
		s.archive(raw, archive.WebhookRecord{RequestID: requestID, Status: archive.StatusRejected, Reason: "parse_error"})
		span.RecordError(err)
		return nil, err
	}

	mappings, err := s.mappings.Mappings(ctx)
	if err != nil {
		s.logger.Error("failed to load webhook field mapping", "error", err, "request_id", requestID)
		s.metrics.ObserveWebhook(statusError)
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("leadforms.webhook.mapped", len(mappings) > 0))

	data := Normalize(body, mappings)
	lead := leads.FromData(leads.EventTypeWebhookReceived, data)
	if lead.Name == "" && lead.Phone == "" {
		s.logger.Warn("webhook lead has no name or phone", "request_id", requestID, "keys", len(body))
		s.metrics.ObserveWebhook(statusInsufficient)
		s.archive(raw, archive.WebhookRecord{RequestID: requestID, Status: archive.StatusRejected, Reason: "insufficient"})
		span.RecordError(ErrInsufficientLead)
		return nil, ErrInsufficientLead
	}

	duplicate := s.checkDuplicate(ctx, lead.Email, requestID)

	saved, err := s.repo.Create(ctx, lead)
	if err != nil {
		s.logger.Error("failed to persist webhook lead", "error", err, "request_id", requestID)
		s.metrics.ObserveWebhook(statusError)
		span.RecordError(err)
		return nil, fmt.Errorf("webhook: persist lead: %w", err)
	}
	span.SetAttributes(attribute.String("leadforms.lead_id", saved.ID))
	s.metrics.ObserveWebhook(statusAccepted)
	s.logger.Info("webhook lead stored", "lead_id", saved.ID, "request_id", requestID, "duplicate", duplicate)

	s.dispatchEmails(saved)
	s.archive(raw, archive.WebhookRecord{RequestID: requestID, LeadID: saved.ID, Status: archive.StatusAccepted})

	return &Outcome{Lead: saved, Data: canonicalData(data, saved), Duplicate: duplicate}, nil
}

func parseBody(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &ParseError{Raw: string(raw), Err: ErrEmptyBody}
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &ParseError{Raw: string(raw), Err: err}
	}
	if body == nil {
		return nil, &ParseError{Raw: string(raw), Err: errors.New("body is not a JSON object")}
	}
	return body, nil
}

// checkDuplicate only reports; duplicates are still stored.
func (s *Service) checkDuplicate(ctx context.Context, email, requestID string) bool {
	if email == "" {
		return false
	}
	existing, err := s.repo.FindByEmail(ctx, leads.EventTypeWebhookReceived, email)
	switch {
	case errors.Is(err, leads.ErrLeadNotFound):
		return false
	case err != nil:
		s.logger.Warn("duplicate lookup failed", "error", err, "request_id", requestID)
		return false
	}
	s.metrics.ObserveDuplicate()
	s.logger.Info("duplicate webhook lead", "existing_lead_id", existing.ID, "request_id", requestID)
	return true
}

func (s *Service) dispatchEmails(lead *leads.Lead) {
	if s.notifier == nil {
		return
	}
	snapshot := *lead
	if snapshot.Name != "" && snapshot.Email != "" {
		s.runner.Go("webhook_ack_email", s.notifyTimeout, func(ctx context.Context) error {
			return s.notifier.AcknowledgeLead(ctx, &snapshot)
		})
	}
	s.runner.Go("webhook_operator_email", s.notifyTimeout, func(ctx context.Context) error {
		return s.notifier.NotifyNewLead(ctx, &snapshot)
	})
}

func (s *Service) archive(raw []byte, record archive.WebhookRecord) {
	if s.archiver == nil {
		return
	}
	payload := append([]byte(nil), raw...)
	record.ReceivedAt = s.now().UTC()
	s.runner.Go("webhook_archive", 0, func(ctx context.Context) error {
		return s.archiver.ArchiveWebhook(ctx, payload, record)
	})
}

// canonicalData is the mapped payload plus the provenance of the stored lead.
func canonicalData(data map[string]any, lead *leads.Lead) map[string]any {
	out := maps.Clone(data)
	if out == nil {
		out = map[string]any{}
	}
	out["sessionId"] = lead.SessionID
	out["visitorId"] = lead.VisitorID
	out["eventType"] = lead.EventType
	out["timestamp"] = lead.CreatedAt.UTC().Format(time.RFC3339)
	return out
}
