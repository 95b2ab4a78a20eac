package app

import (
	"errors"
	"io"
	"io/fs"

	"github.com/dshills/gridline/internal/bridge"
	"github.com/dshills/gridline/internal/editor"
	"github.com/dshills/gridline/internal/logging"
	"github.com/dshills/gridline/internal/renderer"
	"github.com/dshills/gridline/internal/renderer/backend"
	"github.com/dshills/gridline/internal/scheduler"
	"github.com/dshills/gridline/internal/settings"
	"github.com/dshills/gridline/internal/window"
)

// sourceFlags marks settings that came from command line options.
const sourceFlags = "flags"

// bootstrapper builds the components that do not need the editor: logging,
// settings, the scheduler, the channels, the editor state, the router and
// the display. Connecting happens in Run.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      opts,
		initOrder: make([]string, 0, 8),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []struct {
		name string
		init func() error
	}{
		{"logger", b.initLogger},
		{"settings", b.initSettings},
		{"scheduler", b.initScheduler},
		{"channels", b.initChannels},
		{"editor", b.initEditor},
		{"router", b.initRouter},
		{"display", b.initDisplay},
	}
	for _, step := range steps {
		if err := step.init(); err != nil {
			b.cleanup()
			return &InitError{Component: step.name, Err: err}
		}
		b.initOrder = append(b.initOrder, step.name)
	}
	return nil
}

func (b *bootstrapper) initLogger() error {
	if b.opts.Log != nil {
		b.app.log = b.opts.Log
		return nil
	}
	if b.opts.LogFile == "" {
		b.app.log = logging.Discard()
		return nil
	}
	f, err := logging.OpenFile(b.opts.LogFile)
	if err != nil {
		return err
	}
	b.app.logFile = f
	b.app.log = logging.New(logging.Config{
		Level:  logging.ParseLevel(b.opts.LogLevel),
		Output: f,
		Prefix: "gridline",
	})
	return nil
}

func (b *bootstrapper) initSettings() error {
	log := b.app.log.WithComponent("settings")
	store := settings.NewDefaultStore(log)
	b.app.store = store

	if path := b.opts.ConfigPath; path != "" {
		if err := store.LoadFile(path); err != nil {
			switch {
			case errors.Is(err, fs.ErrNotExist):
				log.Info("no settings file at %s", path)
			case errors.Is(err, settings.ErrInvalidValue), errors.Is(err, settings.ErrUnknownSetting):
				log.Warn("settings file %s: %v", path, err)
			default:
				return err
			}
		}
	}

	if b.opts.NoIdle {
		if _, err := store.Set(settings.KeyNoIdle, true, sourceFlags); err != nil {
			return err
		}
	}

	if b.opts.ConfigPath != "" && b.opts.WatchConfig {
		w, err := settings.Watch(store, b.opts.ConfigPath, settings.WithWatcherLogger(log))
		if err != nil {
			return err
		}
		b.app.watcher = w
	}
	return nil
}

func (b *bootstrapper) initScheduler() error {
	b.app.sched = scheduler.New()
	b.app.unsubscribe = b.app.store.Subscribe(func(c settings.Change) {
		b.app.log.Debug("setting %s = %v (%s)", c.Key, c.New, c.Source)
		b.app.sched.QueueNextFrame()
	})
	return nil
}

func (b *bootstrapper) initChannels() error {
	b.app.commands = bridge.NewCommandChannel()
	b.app.windowCmds = bridge.NewWindowCommandChannel()
	return nil
}

func (b *bootstrapper) initEditor() error {
	b.app.editor = editor.New(editor.Options{
		WindowCommands: b.app.windowCmds,
		QueueFrame:     b.app.sched.QueueNextFrame,
		Log:            b.app.log.WithComponent("editor"),
	})
	return nil
}

func (b *bootstrapper) initRouter() error {
	log := b.app.log.WithComponent("router")
	b.app.router = bridge.NewRouter(bridge.Handlers{
		Redraw:               b.app.editor.HandleRedraw,
		SettingChanged:       b.app.store.HandleChangedNotification,
		RegisterRightClick:   bridge.RegisterRightClick,
		UnregisterRightClick: bridge.UnregisterRightClick,
	}, bridge.WithRouterLogger(log))
	return nil
}

func (b *bootstrapper) initDisplay() error {
	disp := b.opts.Backend
	if disp == nil {
		term, err := backend.NewTerminal()
		if err != nil {
			return err
		}
		disp = term
	}
	b.app.backend = disp

	log := b.app.log.WithComponent("window")
	b.app.renderer = renderer.New(disp, renderer.Options{
		OnResize: window.ResizeHandler(b.app.commands, log),
		Log:      b.app.log.WithComponent("renderer"),
	})
	b.app.loop = window.New(window.Options{
		Backend:        disp,
		Renderer:       b.app.renderer,
		Editor:         b.app.editor,
		Scheduler:      b.app.sched,
		Settings:       b.app.store,
		Commands:       b.app.commands,
		WindowCommands: b.app.windowCmds,
		Log:            b.app.log,
	})
	return nil
}

// cleanup releases initialized components in reverse order. Called when
// bootstrap fails partway through.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(b.initOrder[i])
	}
}

func (b *bootstrapper) cleanupComponent(component string) {
	switch component {
	case "logger":
		closeQuietly(b.app.logFile)
		b.app.logFile = nil
	case "settings":
		if b.app.watcher != nil {
			_ = b.app.watcher.Close()
			b.app.watcher = nil
		}
	case "scheduler":
		if b.app.unsubscribe != nil {
			b.app.unsubscribe()
			b.app.unsubscribe = nil
		}
	case "channels":
		b.app.commands.Close()
		b.app.windowCmds.Close()
	}
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
