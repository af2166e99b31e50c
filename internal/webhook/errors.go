package webhook

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBody is wrapped in a ParseError when the request has no payload.
	ErrEmptyBody = errors.New("webhook: empty body")
	// ErrInsufficientLead means neither name nor phone survived normalization.
	ErrInsufficientLead = errors.New("webhook: lead needs a name or phone")
)

// ParseError reports a body that is not a JSON object. Raw is echoed back to the
// caller so operators can debug their automation.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("webhook: parse body: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
