package japi

import "fmt"

// Kind identifies a class of error produced by the library, mirroring the
// distinct negative error codes of the reference implementation so callers
// can branch on cause rather than parsing message text.
type Kind int

const (
	// KindNullContext is returned when Register is invoked on a nil Context.
	KindNullContext Kind = iota
	// KindInvalidArgument is returned for a nil/empty name or nil handler.
	KindInvalidArgument
	// KindDuplicate is returned when a name is already registered.
	KindDuplicate
	// KindReservedName is returned when a post-init registration uses the
	// reserved built-in name prefix.
	KindReservedName
	// KindNotFound classifies a failed lookup (handler, push service,
	// subscription). The lookups in this package report a miss with a
	// boolean or a fallback, so no operation currently returns it.
	KindNotFound
	// KindParseError classifies malformed JSON on the wire. The Dispatcher
	// drops such lines without returning an error, so no operation
	// currently returns it.
	KindParseError
	// KindIoError wraps a read or write failure on a client socket.
	KindIoError
	// KindLineTooLarge is returned when a line exceeds the configured
	// maximum before a terminator is found.
	KindLineTooLarge
	// KindEOFWithPartial is returned when the peer closes the connection
	// after sending a partial, unterminated line.
	KindEOFWithPartial
	// KindTaskNotRunning is returned by Stop on a push service that was
	// never started or already stopped.
	KindTaskNotRunning
	// KindTaskSpawnFailed classifies a push service producer task that
	// cannot be launched. Start launches a goroutine, which cannot fail, so
	// no operation currently returns it.
	KindTaskSpawnFailed
)

func (k Kind) String() string {
	switch k {
	case KindNullContext:
		return "null_context"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindDuplicate:
		return "duplicate"
	case KindReservedName:
		return "reserved_name"
	case KindNotFound:
		return "not_found"
	case KindParseError:
		return "parse_error"
	case KindIoError:
		return "io_error"
	case KindLineTooLarge:
		return "line_too_large"
	case KindEOFWithPartial:
		return "eof_with_partial"
	case KindTaskNotRunning:
		return "task_not_running"
	case KindTaskSpawnFailed:
		return "task_spawn_failed"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every fallible operation in this
// package. Use errors.Is against a Kind-bearing sentinel, or inspect Kind
// directly after an errors.As.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("japi: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("japi: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, Kind) work when used as errors.Is(err, &Error{Kind: K}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

func wrapErr(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}
