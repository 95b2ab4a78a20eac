package app

import (
	"errors"
	"testing"
)

func TestInitErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(&InitError{Component: "router", Err: cause})

	if got := err.Error(); got != "init router: boom" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("InitError should unwrap to its cause")
	}
}

func TestComponentError(t *testing.T) {
	tests := []struct {
		name string
		err  *ComponentError
		want string
	}{
		{"with action", NewComponentError("router", "stop", ErrShutdownTimeout), "router: stop: shutdown timed out"},
		{"without action", NewComponentError("watcher", "", errors.New("closed")), "watcher: closed"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	if !errors.Is(NewComponentError("pump", "stop", ErrShutdownTimeout), ErrShutdownTimeout) {
		t.Error("ComponentError should unwrap to its cause")
	}
}

func TestErrorList(t *testing.T) {
	var list ErrorList
	if list.AsError() != nil {
		t.Error("empty list should be a nil error")
	}

	list.Add(nil)
	list.Add(NewComponentError("connection", "close", ErrShutdownTimeout))
	if got := list.Error(); got != "connection: close: shutdown timed out" {
		t.Errorf("single Error() = %q", got)
	}

	other := errors.New("watcher failed")
	list.Add(other)
	if list.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", list.Len())
	}
	if got := list.Error(); got != "2 errors: first: connection: close: shutdown timed out" {
		t.Errorf("Error() = %q", got)
	}

	err := list.AsError()
	if !errors.Is(err, ErrShutdownTimeout) || !errors.Is(err, other) {
		t.Error("ErrorList should expose every error to errors.Is")
	}
	var cerr *ComponentError
	if !errors.As(err, &cerr) || cerr.Component != "connection" {
		t.Errorf("errors.As found %v", cerr)
	}

	errs := list.Errors()
	errs[0] = nil
	if list.Errors()[0] == nil {
		t.Error("Errors() should return a copy")
	}
}
