package intake

import "errors"

var (
	// ErrTooFast is returned when the form was filled faster than a person could.
	ErrTooFast = errors.New("intake: submitted too fast")
	// ErrRelayStatus is returned when a form webhook answers with a non-2xx status.
	ErrRelayStatus = errors.New("intake: relay rejected")
)
