// Package intake is the receiving side of the public form submission endpoint.
// It owns the anti-bot rejection policy that the submission pipeline only
// reports signals for.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lexpoint/leadforms/internal/forms"
	"github.com/lexpoint/leadforms/internal/leads"
	"github.com/lexpoint/leadforms/internal/observability/metrics"
	"github.com/lexpoint/leadforms/internal/submission"
	"github.com/lexpoint/leadforms/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("leadforms.internal.intake")

// Submission outcomes recorded on the metrics counter.
const (
	statusAccepted = "accepted"
	statusHoneypot = "honeypot"
	statusTooFast  = "too_fast"
	statusInvalid  = "invalid"
	statusError    = "error"
)

const (
	DefaultMinFillTime  = 3 * time.Second
	DefaultRelayTimeout = 5 * time.Second
)

// FormResolver resolves the configuration a submission was rendered from.
type FormResolver interface {
	Resolve(ctx context.Context, formID, pageID string) *forms.FormConfiguration
}

// TaskRunner runs best-effort work off the request path.
type TaskRunner interface {
	Go(name string, timeout time.Duration, fn func(ctx context.Context) error)
}

// Notifier alerts the firm about a new lead.
type Notifier interface {
	NotifyNewLead(ctx context.Context, lead *leads.Lead) error
}

// Config tunes the intake policy.
type Config struct {
	MinFillTime  time.Duration
	RelayTimeout time.Duration
}

// Deps are the collaborators of Service. Geo, Relay, Notifier and Metrics are optional.
type Deps struct {
	Forms    FormResolver
	Leads    leads.Repository
	Runner   TaskRunner
	Geo      GeoLocator
	Relay    Relay
	Notifier Notifier
	Metrics  *metrics.LeadMetrics
}

// Result is the outcome of an accepted request. Discarded submissions look
// successful to the sender but are not stored.
type Result struct {
	LeadID    string
	Discarded bool
}

// Service validates and stores form submissions.
type Service struct {
	cfg    Config
	deps   Deps
	logger *logging.Logger
	now    func() time.Time
}

// NewService wires the intake. Forms, Leads and Runner are required.
func NewService(cfg Config, deps Deps, logger *logging.Logger) *Service {
	if deps.Forms == nil || deps.Leads == nil || deps.Runner == nil {
		panic("intake: forms resolver, lead repository and runner required")
	}
	if cfg.MinFillTime <= 0 {
		cfg.MinFillTime = DefaultMinFillTime
	}
	if cfg.RelayTimeout <= 0 {
		cfg.RelayTimeout = DefaultRelayTimeout
	}
	if deps.Geo == nil {
		deps.Geo = UnknownLocator{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{cfg: cfg, deps: deps, logger: logger, now: time.Now}
}

// Submit applies the anti-bot policy, validates against the resolved form and
// stores the lead. The relay and operator alert run in the background.
func (s *Service) Submit(ctx context.Context, payload submission.Payload, clientIP string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "intake.submit", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	start := s.now()
	defer func() { s.deps.Metrics.ObserveLatency("form_submit", s.now().Sub(start).Seconds()) }()
	span.SetAttributes(
		attribute.String("leadforms.form_id", payload.Form.ID),
		attribute.Int64("leadforms.elapsed_ms", payload.AntiBot.ElapsedMs),
	)

	if payload.AntiBot.Honeypot != "" {
		s.logger.Info("honeypot submission discarded", "form_id", payload.Form.ID)
		s.deps.Metrics.ObserveSubmission(statusHoneypot)
		return &Result{Discarded: true}, nil
	}
	if time.Duration(payload.AntiBot.ElapsedMs)*time.Millisecond < s.cfg.MinFillTime {
		s.logger.Info("submission rejected as too fast", "form_id", payload.Form.ID, "elapsed_ms", payload.AntiBot.ElapsedMs)
		s.deps.Metrics.ObserveSubmission(statusTooFast)
		span.RecordError(ErrTooFast)
		return nil, ErrTooFast
	}

	cfg := s.deps.Forms.Resolve(ctx, payload.Form.ID, payload.Page.PageID)
	values, err := validate(cfg, payload)
	if err != nil {
		s.deps.Metrics.ObserveSubmission(statusInvalid)
		span.RecordError(err)
		return nil, err
	}

	lead := leads.FromData(leads.EventTypeFormSubmission, leadData(values, payload))
	lead.FormID = cfg.ID
	lead.FormName = cfg.Name
	lead.PageURL = payload.Page.URL
	lead.SessionID = payload.Page.SessionID
	lead.VisitorID = payload.Page.VisitorID
	lead.Location = s.deps.Geo.Locate(ctx, clientIP)

	saved, err := s.deps.Leads.Create(ctx, lead)
	if err != nil {
		if errors.Is(err, leads.ErrMissingContact) {
			s.deps.Metrics.ObserveSubmission(statusInvalid)
			return nil, err
		}
		s.logger.Error("failed to persist submission", "error", err, "form_id", cfg.ID)
		s.deps.Metrics.ObserveSubmission(statusError)
		span.RecordError(err)
		return nil, fmt.Errorf("intake: persist lead: %w", err)
	}
	span.SetAttributes(attribute.String("leadforms.lead_id", saved.ID))
	s.deps.Metrics.ObserveSubmission(statusAccepted)
	s.logger.Info("form submission stored", "lead_id", saved.ID, "form_id", cfg.ID, "location", saved.Location)

	s.dispatch(cfg, saved)
	return &Result{LeadID: saved.ID}, nil
}

// validate binds the submitted values to the resolved form. Keys the form does
// not render are dropped.
func validate(cfg *forms.FormConfiguration, payload submission.Payload) (forms.ValueBag, error) {
	form := forms.NewForm(cfg)
	for name, v := range payload.AllValues() {
		err := form.UpdateField(name, v)
		if errors.Is(err, forms.ErrUnknownField) {
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}
	return form.Values(), nil
}

func leadData(values forms.ValueBag, payload submission.Payload) map[string]any {
	data := values.Raw()
	campaign := submission.CampaignFromURL(payload.Page.URL)
	for k, v := range map[string]string{
		"campaignSource": campaign.Source,
		"campaignMedium": campaign.Medium,
		"campaignName":   campaign.Name,
	} {
		if v != "" {
			data[k] = v
		}
	}
	return data
}

// dispatch relays to the webhook configured on the stored form. The URL the
// client echoed back is never used as a relay target.
func (s *Service) dispatch(cfg *forms.FormConfiguration, lead *leads.Lead) {
	snapshot := *lead
	if cfg.WebhookURL != "" && s.deps.Relay != nil {
		url := cfg.WebhookURL
		s.deps.Runner.Go("form_webhook_relay", s.cfg.RelayTimeout, func(ctx context.Context) error {
			return s.deps.Relay.Deliver(ctx, url, &snapshot)
		})
	}
	if s.deps.Notifier != nil {
		s.deps.Runner.Go("form_operator_email", 0, func(ctx context.Context) error {
			return s.deps.Notifier.NotifyNewLead(ctx, &snapshot)
		})
	}
}
