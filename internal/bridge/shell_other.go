//go:build !windows

package bridge

// RegisterRightClick is only implemented on Windows.
func RegisterRightClick() error { return ErrUnsupported }

// UnregisterRightClick is only implemented on Windows.
func UnregisterRightClick() error { return ErrUnsupported }
