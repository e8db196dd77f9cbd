package connectivity

import (
	"fmt"
	"time"
)

// ErrStatus is returned when the remote answered with a non-2xx status.
type ErrStatus struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *ErrStatus) Error() string {
	return fmt.Sprintf("connectivity: %s: status %d: %s", e.Endpoint, e.Code, e.Body)
}

// ErrCallTimeout is returned when a call exceeds the Timeout middleware.
type ErrCallTimeout struct {
	Service string
	After   time.Duration
}

func (e *ErrCallTimeout) Error() string {
	return fmt.Sprintf("connectivity: %s: call timed out after %s", e.Service, e.After)
}

// ErrCircuitOpen is returned without calling the remote while the breaker
// is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("connectivity: circuit open: %s", e.Service)
}

// ErrPanic wraps a recovered panic value.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string {
	return fmt.Sprintf("connectivity: handler panicked: %v", e.Value)
}
