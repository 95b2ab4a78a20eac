package rpc

import (
	"errors"
	"fmt"
)

// Sentinel errors for the rpc package.
var (
	// ErrClosed is returned by calls made on, or pending when, the session closes.
	ErrClosed = errors.New("rpc session closed")

	// ErrNoHandler is returned to the peer for requests nobody handles.
	ErrNoHandler = errors.New("no handler for request")
)

// ProtocolError is the result of a read loop that stopped on malformed or
// truncated input, or on a broken stream.
type ProtocolError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("rpc protocol error: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// CallError is an error value returned by the editor in response to a request.
type CallError struct {
	Method string
	Value  any
}

// Error implements the error interface.
//
// Neovim reports errors as [type, message]; other shapes are printed as is.
func (e *CallError) Error() string {
	if arr, ok := e.Value.([]any); ok && len(arr) == 2 {
		if msg, ok := arr[1].(string); ok {
			return fmt.Sprintf("%s: %s", e.Method, msg)
		}
	}
	return fmt.Sprintf("%s: %v", e.Method, e.Value)
}

// IsProtocolError reports whether err is a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
