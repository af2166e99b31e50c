package submission

import "errors"

var (
	// ErrSubmitInFlight is returned when a submission is already being sent.
	ErrSubmitInFlight = errors.New("submission: already submitting")

	// ErrSubmitRejected is returned when the endpoint answers without success.
	ErrSubmitRejected = errors.New("submission: endpoint reported failure")
)
