// Package submission drives a contact form from validation to delivery and the
// best-effort side effects that follow a successful submission.
package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lexpoint/leadforms/internal/events"
	"github.com/lexpoint/leadforms/internal/forms"
	"github.com/lexpoint/leadforms/pkg/logging"
)

// State is the pipeline lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateRejected   State = "rejected"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

const (
	DefaultRedirectDelay     = 2 * time.Second
	DefaultPixelTimeout      = 5 * time.Second
	DefaultSideEffectTimeout = 10 * time.Second
	DefaultConversionValue   = 1.0
	PixelEventLead           = "Lead"
)

// SubmitResponse is what the submission endpoint answers.
type SubmitResponse struct {
	Success bool   `json:"success"`
	LeadID  string `json:"leadId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Submitter delivers the payload. It is the only critical call of the pipeline.
type Submitter interface {
	Submit(ctx context.Context, payload Payload) (*SubmitResponse, error)
}

// Analytics records conversion events.
type Analytics interface {
	TrackConversion(ctx context.Context, event events.ConversionEvent) error
}

// Broadcaster notifies listening marketing integrations.
type Broadcaster interface {
	Publish(ctx context.Context, event SubmissionEvent) error
}

// Pixel fires a third-party tracking pixel. HTTPPixel covers image-beacon
// pixels; embedders with a script-based tag supply their own.
type Pixel interface {
	Fire(ctx context.Context, event string, data map[string]any) error
}

// Navigator moves the visitor to another page after delay.
type Navigator interface {
	NavigateAfter(url string, delay time.Duration)
}

// TaskRunner runs non-critical work whose failure must not reach the caller.
type TaskRunner interface {
	Go(name string, timeout time.Duration, fn func(ctx context.Context) error)
}

// SubmissionEvent is broadcast after a successful submission.
type SubmissionEvent struct {
	FormID   string         `json:"formId"`
	FormName string         `json:"formName"`
	LeadID   string         `json:"leadId,omitempty"`
	PageURL  string         `json:"pageUrl,omitempty"`
	Values   map[string]any `json:"values"`
	At       time.Time      `json:"at"`
}

// Deps are the collaborators of a Pipeline. Only Submitter and Runner are required.
type Deps struct {
	Submitter   Submitter
	Analytics   Analytics
	Broadcaster Broadcaster
	Pixel       Pixel
	Navigator   Navigator
	Runner      TaskRunner
	Logger      *logging.Logger
	Clock       func() time.Time
}

// Result describes the outcome of one Submit call.
type Result struct {
	State   State
	Message string
	LeadID  string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRedirectDelay overrides the pause before redirecting after success.
func WithRedirectDelay(d time.Duration) Option {
	return func(p *Pipeline) { p.redirectDelay = d }
}

// WithPixelTimeout bounds how long the pixel may take to load and fire.
func WithPixelTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.pixelTimeout = d }
}

// WithSideEffectTimeout bounds analytics and broadcast tasks.
func WithSideEffectTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.sideEffectTimeout = d }
}

// WithConversionValue sets the value reported with each conversion.
func WithConversionValue(v float64) Option {
	return func(p *Pipeline) { p.conversionValue = v }
}

// Pipeline is the submission state machine for one mounted form.
type Pipeline struct {
	deps Deps
	form *forms.Form

	redirectDelay     time.Duration
	pixelTimeout      time.Duration
	sideEffectTimeout time.Duration
	conversionValue   float64

	mu        sync.Mutex
	state     State
	mountedAt time.Time
	honeypot  string
}

// New binds a pipeline to the resolved form configuration.
func New(cfg *forms.FormConfiguration, deps Deps, opts ...Option) *Pipeline {
	if deps.Submitter == nil {
		panic("submission: submitter required")
	}
	if deps.Runner == nil {
		panic("submission: runner required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	p := &Pipeline{
		deps:              deps,
		form:              forms.NewForm(cfg),
		redirectDelay:     DefaultRedirectDelay,
		pixelTimeout:      DefaultPixelTimeout,
		sideEffectTimeout: DefaultSideEffectTimeout,
		conversionValue:   DefaultConversionValue,
		state:             StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.Mount()
	return p
}

// Mount records the moment the form became visible.
func (p *Pipeline) Mount() {
	p.mu.Lock()
	p.mountedAt = p.deps.Clock()
	p.mu.Unlock()
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Form exposes the bound form for rendering.
func (p *Pipeline) Form() *forms.Form { return p.form }

// Values returns a copy of the current value bag.
func (p *Pipeline) Values() forms.ValueBag {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.form.Values()
}

// UpdateField changes one value. Edits are refused while a submission is in flight.
func (p *Pipeline) UpdateField(name string, value forms.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateSubmitting || p.state == StateValidating {
		return ErrSubmitInFlight
	}
	if err := p.form.UpdateField(name, value); err != nil {
		return err
	}
	p.state = StateIdle
	return nil
}

// SetHoneypot captures the hidden field only bots fill in.
func (p *Pipeline) SetHoneypot(v string) {
	p.mu.Lock()
	p.honeypot = v
	p.mu.Unlock()
}

// Submit validates, sends and, on success, dispatches the side effects. A second
// call while the first is in flight returns ErrSubmitInFlight and does nothing.
func (p *Pipeline) Submit(ctx context.Context, page PageContext) (Result, error) {
	p.mu.Lock()
	if p.state == StateSubmitting || p.state == StateValidating {
		p.mu.Unlock()
		return Result{State: StateSubmitting}, ErrSubmitInFlight
	}
	p.state = StateValidating
	texts := p.form.Config().Texts()

	if err := p.form.Validate(); err != nil {
		p.state = StateIdle
		p.mu.Unlock()
		msg := texts.ErrorMessage
		var fe *forms.FieldError
		if errors.As(err, &fe) {
			msg = fe.UserMessage()
		}
		return Result{State: StateRejected, Message: msg}, err
	}

	p.state = StateSubmitting
	payload := p.buildPayload(page)
	p.mu.Unlock()

	resp, err := p.deps.Submitter.Submit(ctx, payload)
	if err == nil && (resp == nil || !resp.Success) {
		detail := ""
		if resp != nil {
			detail = resp.Error
		}
		err = fmt.Errorf("%w: %s", ErrSubmitRejected, detail)
	}
	if err != nil {
		p.mu.Lock()
		p.state = StateIdle
		p.mu.Unlock()
		p.deps.Logger.Error("form submission failed", "form_id", payload.Form.ID, "error", err)
		return Result{State: StateFailed, Message: texts.ErrorMessage}, err
	}

	p.dispatchSideEffects(payload, resp.LeadID)

	p.mu.Lock()
	p.form.Reset()
	p.honeypot = ""
	// succeeded is reported through the Result; the emptied form is ready again.
	p.state = StateIdle
	p.mu.Unlock()

	return Result{State: StateSucceeded, Message: texts.SuccessMessage, LeadID: resp.LeadID}, nil
}

func (p *Pipeline) buildPayload(page PageContext) Payload {
	cfg := p.form.Config()
	fixed, custom := p.form.Values().Split()
	if page.SessionID == "" {
		page.SessionID = uuid.NewString()
	}
	if page.VisitorID == "" {
		page.VisitorID = uuid.NewString()
	}
	return Payload{
		Values:       fixed,
		CustomFields: custom,
		Form: FormRef{
			ID:          cfg.ID,
			Name:        cfg.Name,
			RedirectURL: cfg.RedirectURL,
			WebhookURL:  cfg.WebhookURL,
		},
		AntiBot: AntiBot{
			Honeypot:  p.honeypot,
			ElapsedMs: p.deps.Clock().Sub(p.mountedAt).Milliseconds(),
		},
		Page: page,
	}
}

// dispatchSideEffects schedules analytics, broadcast, pixel and redirect in that
// order. Each runs independently; none can change the submission result.
func (p *Pipeline) dispatchSideEffects(payload Payload, leadID string) {
	now := p.deps.Clock().UTC()
	leadData := payload.AllValues().Raw()
	campaign := CampaignFromURL(payload.Page.URL)

	if p.deps.Analytics != nil {
		evt := events.ConversionEvent{
			SessionID:       payload.Page.SessionID,
			VisitorID:       payload.Page.VisitorID,
			EventType:       events.EventTypeFormSubmission,
			FormID:          payload.Form.ID,
			FormName:        payload.Form.Name,
			PageURL:         payload.Page.URL,
			Timestamp:       now,
			LeadData:        leadData,
			ConversionValue: p.conversionValue,
			CampaignSource:  campaign.Source,
			CampaignMedium:  campaign.Medium,
			CampaignName:    campaign.Name,
		}
		p.deps.Runner.Go("analytics", p.sideEffectTimeout, func(ctx context.Context) error {
			return p.deps.Analytics.TrackConversion(ctx, evt)
		})
	}

	if p.deps.Broadcaster != nil {
		evt := SubmissionEvent{
			FormID:   payload.Form.ID,
			FormName: payload.Form.Name,
			LeadID:   leadID,
			PageURL:  payload.Page.URL,
			Values:   leadData,
			At:       now,
		}
		p.deps.Runner.Go("broadcast", p.sideEffectTimeout, func(ctx context.Context) error {
			return p.deps.Broadcaster.Publish(ctx, evt)
		})
	}

	if p.deps.Pixel != nil {
		data := map[string]any{"content_name": payload.Form.Name, "form_id": payload.Form.ID}
		p.deps.Runner.Go("pixel", p.pixelTimeout, func(ctx context.Context) error {
			return p.deps.Pixel.Fire(ctx, PixelEventLead, data)
		})
	}

	if p.deps.Navigator != nil && payload.Form.RedirectURL != "" {
		target, delay := payload.Form.RedirectURL, p.redirectDelay
		p.deps.Runner.Go("redirect", p.sideEffectTimeout, func(context.Context) error {
			p.deps.Navigator.NavigateAfter(target, delay)
			return nil
		})
	}
}
