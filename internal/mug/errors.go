package mug

import (
	"errors"
	"fmt"
)

// ErrorKind classifies terminal protocol-client failures. Transient failures
// (a single failed connect attempt, one unreadable field) are absorbed
// internally and never surface as one of these.
type ErrorKind string

const (
	KindAdapterUnavailable    ErrorKind = "adapter_unavailable"
	KindScanFailure           ErrorKind = "scan_failure"
	KindConnectionTimeout     ErrorKind = "connection_timeout"
	KindConnectionFailed      ErrorKind = "connection_failed"
	KindServiceNotFound       ErrorKind = "service_not_found"
	KindCharacteristicMissing ErrorKind = "characteristic_missing"
	KindWriteRejected         ErrorKind = "write_rejected"
	KindWriteNotApplied       ErrorKind = "write_not_applied"
	KindUnexpectedDisconnect  ErrorKind = "unexpected_disconnect"
)

// Error is a classified protocol error. Guidance, when present, is an
// actionable hint suitable for direct display to the user.
type Error struct {
	Kind     ErrorKind
	Msg      string
	Guidance string
	Cause    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is comparison against the kind sentinels below.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrAdapterUnavailable    = &Error{Kind: KindAdapterUnavailable}
	ErrScanFailure           = &Error{Kind: KindScanFailure}
	ErrConnectionTimeout     = &Error{Kind: KindConnectionTimeout}
	ErrConnectionFailed      = &Error{Kind: KindConnectionFailed}
	ErrServiceNotFound       = &Error{Kind: KindServiceNotFound}
	ErrCharacteristicMissing = &Error{Kind: KindCharacteristicMissing}
	ErrWriteRejected         = &Error{Kind: KindWriteRejected}
	ErrWriteNotApplied       = &Error{Kind: KindWriteNotApplied}
	ErrUnexpectedDisconnect  = &Error{Kind: KindUnexpectedDisconnect}
)

// readOnlyGuidance is surfaced when write authorization could not be
// established: the device only accepts a secret key after it has been
// enrolled once through the vendor's companion app.
const readOnlyGuidance = "device requires re-enrollment via the vendor app before it accepts writes"

func newError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// KindOf extracts the ErrorKind from err, or "" if err is not a mug error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// GuidanceOf extracts the guidance string from err, if any.
func GuidanceOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Guidance
	}
	return ""
}
