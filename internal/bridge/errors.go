package bridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for the bridge package.
var (
	// ErrAlreadyRunning is returned when Start is called on a running router.
	ErrAlreadyRunning = errors.New("router is already running")

	// ErrNotRunning is returned when Stop is called on a stopped router.
	ErrNotRunning = errors.New("router is not running")

	// ErrMalformedNotification is returned when a known notification carries
	// arguments of the wrong shape.
	ErrMalformedNotification = errors.New("malformed notification")

	// ErrUnsupported is returned by operations that do nothing on this platform.
	ErrUnsupported = errors.New("not supported on this platform")
)

// HandlerError describes a notification handler that failed or panicked.
// It never stops the read loop or other handlers.
type HandlerError struct {
	Notification string
	Err          error
	Panicked     bool
	PanicValue   any
	Stack        []byte
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("handler %s panicked: %v", e.Notification, e.PanicValue)
	}
	return fmt.Sprintf("handler %s: %v", e.Notification, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}
