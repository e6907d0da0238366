package execution

import "errors"

var (
	// ErrMalformedReport marks a broker notification missing required fields.
	// Retrying delivery of the same payload cannot succeed.
	ErrMalformedReport = errors.New("malformed broker report")

	// ErrInvariantViolation marks an attempt to build an order event whose
	// execution identifier does not match its status.
	ErrInvariantViolation = errors.New("execution id must accompany fill statuses only")
)
