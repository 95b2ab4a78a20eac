package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSetting is returned for keys that were never registered.
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrAlreadyRegistered is returned when a key is registered twice.
	ErrAlreadyRegistered = errors.New("setting already registered")

	// ErrUnsupportedFormat is returned for settings files with an unknown
	// extension.
	ErrUnsupportedFormat = errors.New("unsupported settings file format")

	// ErrInvalidValue is matched by every ValidationError.
	ErrInvalidValue = errors.New("invalid setting value")
)

// ValidationError reports a value that does not fit its setting.
type ValidationError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("setting %s: invalid value %v: %s", e.Key, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidValue) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidValue
}

// ParseError reports a settings file that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
