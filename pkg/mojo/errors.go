package mojo

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	// KindInvalidArgument indicates an empty or malformed argument, e.g. port name.
	KindInvalidArgument
	// KindPortUnavailable indicates the port doesn't exist or can't be accessed.
	KindPortUnavailable
	// KindPortBusy indicates the port is owned by another process.
	KindPortBusy
	// KindNotASerialPort indicates the port identifier is not a serial device.
	KindNotASerialPort
	// KindTimeout indicates no data arrived within the step's budget.
	KindTimeout
	// KindProtocolViolation indicates an unexpected acknowledgement byte.
	KindProtocolViolation
	// KindSizeMismatch indicates the flash reported a different image size.
	KindSizeMismatch
	// KindVerificationFailed indicates the flash content differs from the payload.
	KindVerificationFailed
	// KindIOFailure indicates an error from the underlying transport.
	KindIOFailure
	// KindCancelled indicates the operation was cancelled.
	KindCancelled
	// KindInProgress indicates another operation is in flight on the same port.
	KindInProgress
	// KindInvalidState indicates a session operation issued in the wrong state,
	// or an operation started on a closed Loader.
	KindInvalidState
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindInvalidArgument:    "invalid argument",
	KindPortUnavailable:    "port unavailable",
	KindPortBusy:           "port busy",
	KindNotASerialPort:     "not a serial port",
	KindTimeout:            "timeout",
	KindProtocolViolation:  "protocol violation",
	KindSizeMismatch:       "size mismatch",
	KindVerificationFailed: "verification failed",
	KindIOFailure:          "I/O failure",
	KindCancelled:          "cancelled",
	KindInProgress:         "in progress",
	KindInvalidState:       "invalid state",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the error type returned by all operations in this package.
type Error struct {
	Kind Kind
	// Op is the protocol step or operation, e.g. "handshake".
	Op string
	// Msg is the human readable message.
	Msg string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the outermost *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind checks whether err carries the specified kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func newError(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

func ioFailure(op string, cause error) *Error {
	return newError(KindIOFailure, op, op+" failed", cause)
}

func cancelled(op string, cause error) *Error {
	return newError(KindCancelled, op, "operation cancelled", cause)
}
