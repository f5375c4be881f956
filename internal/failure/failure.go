package failure

import (
	"errors"
	"fmt"
)

// Kinds surfaced to callers. Match with errors.Is.
var (
	ErrInputRead          = errors.New("input read error")
	ErrPolicyRejected     = errors.New("policy rejected")
	ErrTransient          = errors.New("transient failure")
	ErrTimedOut           = errors.New("timed out")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrSubmissionDeclined = errors.New("submission declined")
)

// Error carries the failing operation and a human-readable reason next to its kind.
type Error struct {
	Kind   error
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind }

func New(kind error, op, reason string) *Error {
	return &Error{Kind: kind, Op: op, Reason: reason}
}

func Wrap(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Wrapf(kind error, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Reason: fmt.Sprintf(format, args...)}
}

// ReasonOf returns the Reason of the first *Error in the chain.
func ReasonOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ""
}
