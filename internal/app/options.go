package app

import (
	"fmt"
	"time"

	"github.com/dshills/gridline/internal/logging"
	"github.com/dshills/gridline/internal/renderer/backend"
)

// Default option values.
const (
	DefaultWidth           = 100
	DefaultHeight          = 50
	DefaultEditor          = "nvim"
	DefaultShutdownTimeout = 5 * time.Second
)

// Options configures the application. They are read once by New and never
// change afterwards.
type Options struct {
	// Address of an editor listening on TCP, as host:port. When empty the
	// editor is spawned from EditorCommand.
	Address string

	// EditorCommand is the editor executable. It is started with --embed
	// followed by EditorArgs and Files.
	EditorCommand string
	EditorArgs    []string

	// Files are opened by the editor on startup.
	Files []string

	// Width and Height are the initial grid size in cells, used when the
	// display cannot report its own size.
	Width  int
	Height int

	// ConfigPath is the settings file. WatchConfig reloads it on change.
	ConfigPath  string
	WatchConfig bool

	// NoIdle forces a frame on every tick, overriding the settings file.
	NoIdle bool

	// LogLevel and LogFile configure logging when Log is nil. Without a
	// LogFile nothing is logged, since the display owns the terminal.
	LogLevel string
	LogFile  string
	Log      *logging.Logger

	// Backend is the display surface. Defaults to the terminal.
	Backend backend.Backend

	// ShutdownTimeout bounds each shutdown step.
	ShutdownTimeout time.Duration
}

// DefaultOptions returns options that spawn nvim at the default size.
func DefaultOptions() Options {
	return Options{
		EditorCommand:   DefaultEditor,
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		LogLevel:        "info",
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// withDefaults fills unset sizes and timeouts.
func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.LogLevel == "" {
		o.LogLevel = "info"
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	return o
}

// Validate checks the options for values New cannot work with.
func (o Options) Validate() error {
	if o.Address == "" && o.EditorCommand == "" {
		return ErrNoEditor
	}
	if o.Width < 0 || o.Height < 0 {
		return fmt.Errorf("invalid size %dx%d", o.Width, o.Height)
	}
	switch o.LogLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", o.LogLevel)
	}
	return nil
}

// editorArgs returns the arguments the editor is spawned with.
func (o Options) editorArgs() []string {
	args := make([]string, 0, 1+len(o.EditorArgs)+len(o.Files))
	args = append(args, "--embed")
	args = append(args, o.EditorArgs...)
	return append(args, o.Files...)
}
