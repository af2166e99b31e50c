package leads

import "errors"

var (
	// ErrMissingContact is returned when a lead has neither a name nor a phone
	ErrMissingContact = errors.New("leads: name or phone is required")

	// ErrInvalidEventType is returned for an unknown event type
	ErrInvalidEventType = errors.New("leads: unknown event type")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("leads: lead not found")
)
