package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors for connection establishment.
var (
	// ErrConnectionRefused is returned when a TCP connection cannot be made.
	ErrConnectionRefused = errors.New("connection refused")

	// ErrSpawnFailed is returned when the editor process cannot be started.
	ErrSpawnFailed = errors.New("spawn failed")

	// ErrStreamUnavailable is returned when the child's stdin or stdout
	// cannot be captured.
	ErrStreamUnavailable = errors.New("stream unavailable")

	// ErrNotStarted is returned when an operation needs a started process.
	ErrNotStarted = errors.New("process not started")
)

// ConnectionError describes a failure to establish the editor connection.
type ConnectionError struct {
	Op     string // "dial", "spawn", "pipe"
	Target string // address or command line
	Err    error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsStartupFailure reports whether err is one of the synchronous connection
// failures that abort startup.
func IsStartupFailure(err error) bool {
	return errors.Is(err, ErrConnectionRefused) ||
		errors.Is(err, ErrSpawnFailed) ||
		errors.Is(err, ErrStreamUnavailable)
}

// wrap builds a ConnectionError that matches both kind and cause with errors.Is.
func wrap(op, target string, kind, cause error) error {
	if cause == nil {
		return &ConnectionError{Op: op, Target: target, Err: kind}
	}
	return &ConnectionError{Op: op, Target: target, Err: fmt.Errorf("%w: %w", kind, cause)}
}
