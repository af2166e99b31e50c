package events

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// EventTypeFormSubmission marks a conversion produced by a successful form submission.
const EventTypeFormSubmission = "form_submission"

// OutboxTypeConversion is the outbox type of a queued ConversionEvent.
const OutboxTypeConversion = "conversion.form_submission.v1"

// ConversionEvent is the analytics record emitted after a successful submission.
type ConversionEvent struct {
	SessionID       string         `json:"sessionId"`
	VisitorID       string         `json:"visitorId"`
	EventType       string         `json:"eventType"`
	FormID          string         `json:"formId"`
	FormName        string         `json:"formName"`
	PageURL         string         `json:"pageUrl"`
	Timestamp       time.Time      `json:"timestamp"`
	LeadData        map[string]any `json:"leadData"`
	ConversionValue float64        `json:"conversionValue"`
	CampaignSource  string         `json:"campaignSource,omitempty"`
	CampaignMedium  string         `json:"campaignMedium,omitempty"`
	CampaignName    string         `json:"campaignName,omitempty"`
}

// Validate checks the fields the analytics sinks key on.
func (e *ConversionEvent) Validate() error {
	if strings.TrimSpace(e.SessionID) == "" {
		return fmt.Errorf("%w: sessionId", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.FormID) == "" {
		return fmt.Errorf("%w: formId", ErrInvalidEvent)
	}
	if e.EventType == "" {
		e.EventType = EventTypeFormSubmission
	}
	if e.EventType != EventTypeFormSubmission {
		return fmt.Errorf("%w: eventType %q", ErrInvalidEvent, e.EventType)
	}
	return nil
}

// DedupeKey identifies a conversion across client retries: the same session,
// form and timestamp is the same conversion. Without a client timestamp the
// session and form alone identify it.
func (e *ConversionEvent) DedupeKey() string {
	key := e.SessionID + "|" + e.FormID
	if !e.Timestamp.IsZero() {
		key += "|" + e.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
