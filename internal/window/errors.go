package window

import "errors"

// ErrStopped is returned by Run when the loop was stopped before it started.
var ErrStopped = errors.New("window: loop stopped")

// RenderError reports a draw that failed. It ends the loop.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return "render: " + e.Err.Error()
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
