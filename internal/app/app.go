// Package app wires gridline together and manages its lifecycle.
//
// New builds everything that does not need the editor. Run connects to the
// editor (spawning it or dialing it), attaches as its UI, starts the
// command pump and then runs the render loop on the calling goroutine until
// the window closes, the editor exits or the context ends. Shutdown tears
// the pieces down in reverse order, each step bounded by a timeout.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dshills/gridline/internal/bridge"
	"github.com/dshills/gridline/internal/editor"
	"github.com/dshills/gridline/internal/logging"
	"github.com/dshills/gridline/internal/renderer"
	"github.com/dshills/gridline/internal/renderer/backend"
	"github.com/dshills/gridline/internal/scheduler"
	"github.com/dshills/gridline/internal/settings"
	"github.com/dshills/gridline/internal/window"
)

type lifecycle int

const (
	stateNew lifecycle = iota
	stateRunning
	stateDone
)

// Application is the central coordinator for all gridline components.
type Application struct {
	mu sync.Mutex

	opts    Options
	log     *logging.Logger
	logFile io.Closer

	// Settings
	store       *settings.Store
	watcher     *settings.Watcher
	unsubscribe func()

	// Frame pacing and channels
	sched      *scheduler.Scheduler
	commands   *bridge.CommandChannel
	windowCmds *bridge.WindowCommandChannel

	// Editor side
	editor   *editor.Editor
	router   *bridge.Router
	conn     *bridge.Connection
	pump     *bridge.CommandPump
	pumpDone chan struct{}
	channel  int

	// Display side
	backend  backend.Backend
	renderer *renderer.Renderer
	loop     *window.Loop

	state        lifecycle
	startedAt    time.Time
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	shutdownErr  error
}

// New validates opts and builds the application.
func New(opts Options) (*Application, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	app := &Application{opts: opts}
	if err := newBootstrapper(app, opts).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Run connects to the editor and runs the render loop until it ends. It
// returns nil on a normal exit. Run may only be called once; later calls
// return ErrFinished.
func (app *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.mu.Lock()
	switch app.state {
	case stateRunning:
		app.mu.Unlock()
		return ErrAlreadyRunning
	case stateDone:
		app.mu.Unlock()
		return ErrFinished
	}
	app.state = stateRunning
	app.cancel = cancel
	app.startedAt = time.Now()
	app.mu.Unlock()

	defer func() {
		app.mu.Lock()
		app.state = stateDone
		app.mu.Unlock()
	}()

	if err := app.start(ctx); err != nil {
		app.log.Error("startup failed: %v", err)
		_ = app.shutdown()
		return err
	}

	err := app.loop.Run(ctx)
	if err != nil {
		app.log.Error("render loop: %v", err)
	}
	if editorErr := app.editorErr(); err == nil {
		err = editorErr
	}
	if shutdownErr := app.shutdown(); shutdownErr != nil {
		app.log.Warn("shutdown: %v", shutdownErr)
	}
	return err
}

// start brings up the display, the router, the connection and the pump.
func (app *Application) start(ctx context.Context) error {
	if err := app.backend.Init(); err != nil {
		return &InitError{Component: "display", Err: err}
	}
	if err := app.router.Start(ctx); err != nil {
		return &InitError{Component: "router", Err: err}
	}

	conn, err := app.connect(ctx)
	if err != nil {
		return &InitError{Component: "connection", Err: err}
	}
	app.mu.Lock()
	app.conn = conn
	app.mu.Unlock()

	width, height := app.backend.Size()
	if width <= 0 || height <= 0 {
		width, height = app.opts.Width, app.opts.Height
	}
	channel, err := bridge.Attach(ctx, conn.Session, bridge.AttachOptions{
		Width:    width,
		Height:   height,
		Settings: app.store,
		Log:      app.log.WithComponent("bridge"),
	})
	if err != nil {
		return &InitError{Component: "attach", Err: err}
	}
	app.mu.Lock()
	app.channel = channel
	app.mu.Unlock()
	app.log.Info("attached as UI on channel %d (%dx%d)", channel, width, height)

	pump := bridge.NewCommandPump(app.commands, conn.Session, app.log.WithComponent("pump"))
	app.mu.Lock()
	app.pump = pump
	app.mu.Unlock()
	app.pumpDone = make(chan struct{})
	go func() {
		defer close(app.pumpDone)
		if err := pump.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			app.log.Warn("command pump stopped: %v", err)
		}
	}()

	// The editor quitting ends the session.
	go func() {
		select {
		case <-conn.Task.Done():
			app.log.Info("editor disconnected")
			app.loop.Stop()
		case <-ctx.Done():
		}
	}()

	app.sched.QueueNextFrame()
	return nil
}

func (app *Application) connect(ctx context.Context) (*bridge.Connection, error) {
	log := app.log
	if app.opts.Address != "" {
		log.Info("connecting to %s", app.opts.Address)
		return bridge.ConnectTCP(ctx, app.opts.Address, app.router, log)
	}
	log.Info("starting %s", app.opts.EditorCommand)
	return bridge.ConnectChild(ctx, app.opts.EditorCommand, app.opts.editorArgs(), app.router, log)
}

// editorErr returns the error that ended the read loop, if it ended badly.
func (app *Application) editorErr() error {
	app.mu.Lock()
	conn := app.conn
	app.mu.Unlock()
	if conn == nil || !conn.Task.Finished() {
		return nil
	}
	if err := conn.Task.Err(); err != nil {
		return NewComponentError("connection", "read", err)
	}
	return nil
}

// Shutdown stops the application. A running Run returns after cleanup; if
// Run was never called the components built by New are released.
func (app *Application) Shutdown() {
	app.mu.Lock()
	state := app.state
	if state == stateNew {
		app.state = stateDone
	}
	cancel := app.cancel
	app.mu.Unlock()

	if state != stateRunning {
		_ = app.shutdown()
		return
	}
	app.loop.Stop()
	if cancel != nil {
		cancel()
	}
}

// shutdown performs cleanup in reverse start order. It runs once.
func (app *Application) shutdown() error {
	app.shutdownOnce.Do(func() {
		app.shutdownErr = app.teardown()
	})
	return app.shutdownErr
}

func (app *Application) teardown() error {
	timeout := app.opts.ShutdownTimeout
	var errs ErrorList

	// 1. Stop the render loop.
	app.loop.Stop()

	// 2. Close the connection; this also ends the pump's in-flight call.
	app.mu.Lock()
	conn := app.conn
	app.mu.Unlock()
	if conn != nil {
		if err := conn.Close(timeout); err != nil {
			errs.Add(NewComponentError("connection", "close", err))
		}
	}

	// 3. Drain the pump.
	app.commands.Close()
	app.windowCmds.Close()
	if app.pumpDone != nil {
		select {
		case <-app.pumpDone:
		case <-time.After(timeout):
			errs.Add(NewComponentError("pump", "stop", ErrShutdownTimeout))
		}
	}

	// 4. Stop the router.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := app.router.Stop(ctx); err != nil && !errors.Is(err, bridge.ErrNotRunning) {
		errs.Add(NewComponentError("router", "stop", err))
	}

	// 5. Settings.
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			errs.Add(NewComponentError("watcher", "close", err))
		}
	}
	if app.unsubscribe != nil {
		app.unsubscribe()
	}

	// 6. Display and log file.
	app.backend.Shutdown()
	st := app.Stats()
	app.log.Info("shutdown complete: %d frames drawn, %d commands sent, %d failed, %d notifications routed",
		st.FramesDrawn, st.CommandsSent, st.CommandsFailed, st.Router.Routed)
	closeQuietly(app.logFile)

	return errs.AsError()
}

// IsRunning reports whether Run is active.
func (app *Application) IsRunning() bool {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.state == stateRunning
}

// Editor returns the aggregated editor state.
func (app *Application) Editor() *editor.Editor { return app.editor }

// Settings returns the settings store.
func (app *Application) Settings() *settings.Store { return app.store }

// Scheduler returns the frame scheduler.
func (app *Application) Scheduler() *scheduler.Scheduler { return app.sched }

// Commands returns the channel carrying UI commands to the editor.
func (app *Application) Commands() *bridge.CommandChannel { return app.commands }

// Channel returns the editor's RPC channel id, or 0 before attaching.
func (app *Application) Channel() int {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.channel
}

// String describes the editor the application talks to.
func (app *Application) String() string {
	if app.opts.Address != "" {
		return fmt.Sprintf("gridline(tcp %s)", app.opts.Address)
	}
	return fmt.Sprintf("gridline(%s)", app.opts.EditorCommand)
}
