package protocol

import (
	"errors"
	"fmt"
)

// ErrIllegalSequence is returned when an event would break the per-turn
// ordering contract.
var ErrIllegalSequence = errors.New("illegal event sequence")

// ProtocolError reports a frame that could not be decoded. It is never
// fatal to the session.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Reason, e.Err)
	}
	return "protocol: " + e.Reason
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsProtocolError reports whether err is (or wraps) a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

func malformed(reason string, err error) error {
	return &ProtocolError{Reason: reason, Err: err}
}
