package events

import "errors"

var (
	// ErrInvalidEvent is returned for a conversion event missing a required field.
	ErrInvalidEvent = errors.New("events: invalid conversion event")
	// ErrUnknownSink is returned when ANALYTICS_SINK names no known sink.
	ErrUnknownSink = errors.New("events: unknown analytics sink")
)
