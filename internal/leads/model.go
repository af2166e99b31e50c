package leads

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Event types recorded in lead_events.
const (
	EventTypeWebhookReceived = "webhook_received"
	EventTypeFormSubmission  = "form_submission"
)

// UnknownLocation is stored when geolocation is unavailable.
const UnknownLocation = "Unknown"

// Lead is the canonical lead record, whichever channel it came from.
type Lead struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId"`
	VisitorID string         `json:"visitorId"`
	EventType string         `json:"eventType"`
	FormID    string         `json:"formId,omitempty"`
	FormName  string         `json:"formName,omitempty"`
	PageURL   string         `json:"pageUrl,omitempty"`
	Name      string         `json:"name,omitempty"`
	Email     string         `json:"email,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	Message   string         `json:"message,omitempty"`
	Service   string         `json:"service,omitempty"`
	Company   string         `json:"company,omitempty"`
	Location  string         `json:"location,omitempty"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Validate enforces the minimum a lead needs to be actionable.
func (l *Lead) Validate() error {
	if strings.TrimSpace(l.Name) == "" && strings.TrimSpace(l.Phone) == "" {
		return ErrMissingContact
	}
	switch l.EventType {
	case EventTypeWebhookReceived, EventTypeFormSubmission:
	default:
		return ErrInvalidEventType
	}
	return nil
}

// FromData builds a lead from a normalized record, lifting the well-known keys
// into columns. Every key stays in Data.
func FromData(eventType string, data map[string]any) *Lead {
	return &Lead{
		EventType: eventType,
		Name:      stringField(data, "name"),
		Email:     stringField(data, "email"),
		Phone:     stringField(data, "phone"),
		Message:   stringField(data, "message"),
		Service:   stringField(data, "service"),
		Company:   stringField(data, "company"),
		Data:      data,
	}
}

func stringField(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// ListFilter narrows an admin listing.
type ListFilter struct {
	EventType string
	Limit     int
	Offset    int
}

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
