package capture

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures. Only SelectionTooSmall is ever shown
// to the user; every other kind degrades to a fallback path.
type Kind int

const (
	KindCaptureUnavailable Kind = iota + 1 // source refused or errored
	KindTransportFailure                   // remote intake unreachable or non-2xx
	KindPersistenceFailure                 // store read/write error, malformed data
	KindRoutingFailure                     // viewer surface vanished before use
	KindSelectionTooSmall                  // user-facing validation
)

func (k Kind) String() string {
	switch k {
	case KindCaptureUnavailable:
		return "capture_unavailable"
	case KindTransportFailure:
		return "transport_failure"
	case KindPersistenceFailure:
		return "persistence_failure"
	case KindRoutingFailure:
		return "routing_failure"
	case KindSelectionTooSmall:
		return "selection_too_small"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Sentinels for errors.Is matching against an *Error of the same kind.
var (
	ErrCaptureUnavailable = &Error{Kind: KindCaptureUnavailable}
	ErrTransportFailure   = &Error{Kind: KindTransportFailure}
	ErrPersistenceFailure = &Error{Kind: KindPersistenceFailure}
	ErrRoutingFailure     = &Error{Kind: KindRoutingFailure}
	ErrSelectionTooSmall  = &Error{Kind: KindSelectionTooSmall}
)

// Error is a classified pipeline error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Errorf wraps err under kind and op.
func Errorf(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so the package sentinels work
// with errors.Is regardless of Op and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
