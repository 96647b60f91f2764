// Package e2sarerr defines the error kinds shared across the E2SAR dataplane,
// mirroring the original E2SARErrorc enumeration.
package e2sarerr

import "fmt"

// Kind classifies an Error the way the original C++ E2SARErrorc enum does.
type Kind int

const (
	NoError Kind = iota
	CaughtException
	ParseError
	ParameterError
	ParameterNotAvailable
	OutOfRange
	Undefined
	NotFound
	RPCError
	SocketError
	MemoryError
	LogicError
	SystemError
)

func (k Kind) String() string {
	switch k {
	case NoError:
		return "NoError"
	case CaughtException:
		return "CaughtException"
	case ParseError:
		return "ParseError"
	case ParameterError:
		return "ParameterError"
	case ParameterNotAvailable:
		return "ParameterNotAvailable"
	case OutOfRange:
		return "OutOfRange"
	case Undefined:
		return "Undefined"
	case NotFound:
		return "NotFound"
	case RPCError:
		return "RPCError"
	case SocketError:
		return "SocketError"
	case MemoryError:
		return "MemoryError"
	case LogicError:
		return "LogicError"
	case SystemError:
		return "SystemError"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by every fallible E2SAR operation.
type Error struct {
	Kind Kind
	Msg  string
	err  error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("e2sar: %s: %s: %v", e.Kind, e.Msg, e.err)
	}
	return fmt.Sprintf("e2sar: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.err }

// Is lets callers do e2sarerr.Is(err, e2sarerr.NotFound) instead of a type switch.
func Is(err error, k Kind) bool {
	var e *Error
	if err == nil {
		return false
	}
	if ae, ok := err.(*Error); ok {
		e = ae
	} else {
		return false
	}
	return e.Kind == k
}

// New builds an *Error with no wrapped cause.
func New(k Kind, msg string) *Error {
	return &Error{Kind: k, Msg: msg}
}

// Newf builds an *Error with a formatted message.
func Newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and message to an underlying cause.
func Wrap(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Msg: msg, err: cause}
}

// Wrapf attaches kind and a formatted message to an underlying cause.
func Wrapf(k Kind, format string, cause error, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...), err: cause}
}
