package types

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned by the indicator engine when the supplied
// bar window is too short. The affected instrument is skipped for the cycle.
var ErrInsufficientData = errors.New("insufficient data")

// ErrUnparseable marks an advisory oracle response that did not match the
// expected schema. It is always treated as no-signal, never guessed around.
var ErrUnparseable = errors.New("unparseable response")

// UnavailableError wraps a collaborator failure (quote source, broker
// gateway, or oracle unreachable / timed out). The cycle skips the affected
// work and retries after backoff.
type UnavailableError struct {
	Collaborator string
	Err          error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Unavailable wraps err as a collaborator-unavailable failure.
func Unavailable(collaborator string, err error) error {
	return &UnavailableError{Collaborator: collaborator, Err: err}
}

// IsUnavailable reports whether err is (or wraps) an UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// RejectedError is a broker-side refusal of an order or modification. It
// carries the provider's reason code and is never retried blindly within the
// same cycle.
type RejectedError struct {
	ReasonCode string
	Detail     string
}

func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("rejected: %s", e.ReasonCode)
	}
	return fmt.Sprintf("rejected: %s (%s)", e.ReasonCode, e.Detail)
}

// IsRejected reports whether err is (or wraps) a RejectedError, returning the
// reason code when it is.
func IsRejected(err error) (string, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.ReasonCode, true
	}
	return "", false
}
