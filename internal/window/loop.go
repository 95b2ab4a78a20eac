// Package window runs the front-end's render loop.
//
// The loop owns the display backend. It translates backend input into
// editor commands, applies window commands coming back from the editor,
// and draws a frame whenever the scheduler asks for one, paced to the
// configured refresh rate. Between frames it sleeps: when nothing is
// queued or animating no timer is armed at all, and the loop wakes only
// for input, a queued frame or shutdown.
package window

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/gridline/internal/bridge"
	"github.com/dshills/gridline/internal/editor"
	"github.com/dshills/gridline/internal/logging"
	"github.com/dshills/gridline/internal/renderer"
	"github.com/dshills/gridline/internal/renderer/backend"
	"github.com/dshills/gridline/internal/scheduler"
	"github.com/dshills/gridline/internal/settings"
)

// Options wires a Loop to the rest of the front-end.
type Options struct {
	Backend        backend.Backend
	Renderer       *renderer.Renderer
	Editor         *editor.Editor
	Scheduler      *scheduler.Scheduler
	Settings       *settings.Store
	Commands       *bridge.CommandChannel
	WindowCommands *bridge.WindowCommandChannel

	// Running is shared with the rest of the application. The loop sets it
	// to true on creation and to false when it stops.
	Running *atomic.Bool

	Log *logging.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Loop is the render loop. Tick, HandleEvent and Frame must be called from
// a single goroutine; Stop and the accessors are safe from any goroutine.
type Loop struct {
	opts    Options
	log     *logging.Logger
	clock   func() time.Time
	running *atomic.Bool

	mouse     mouseState
	lastFrame time.Time
	focusTick time.Time
	dt        atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once

	errMu sync.Mutex
	err   error
}

// New creates a loop. Backend, Renderer, Editor and Scheduler are required.
func New(opts Options) *Loop {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	running := opts.Running
	if running == nil {
		running = new(atomic.Bool)
	}
	running.Store(true)

	l := &Loop{
		opts:    opts,
		log:     log.WithComponent("window"),
		clock:   clock,
		running: running,
		stopCh:  make(chan struct{}),
	}
	l.mouse.enabled = opts.Editor.MouseEnabled()
	l.dt.Store(int64(scheduler.FrameBudget(float64(l.refreshRate()))))
	return l
}

// Running reports whether the loop is still running.
func (l *Loop) Running() bool { return l.running.Load() }

// Stop ends the loop. It is safe to call more than once.
func (l *Loop) Stop() {
	l.running.Store(false)
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Err returns the error that stopped the loop, if any.
func (l *Loop) Err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

// DeltaTime returns the frame delta of the most recent tick.
func (l *Loop) DeltaTime() time.Duration { return time.Duration(l.dt.Load()) }

func (l *Loop) fail(err error) {
	l.errMu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.errMu.Unlock()
	l.Stop()
}

func (l *Loop) refreshRate() int {
	if l.opts.Settings == nil {
		return scheduler.DefaultRefreshRate
	}
	return l.opts.Settings.Window().RefreshRate
}

// Tick handles at most one event and then runs one frame step. It returns
// the time by which the next frame should start.
func (l *Loop) Tick(now time.Time, ev *backend.Event) time.Time {
	if !l.Running() {
		return now
	}
	if ev != nil {
		l.HandleEvent(now, *ev)
	}
	return l.Frame(now)
}

// HandleEvent translates one backend event. Events handled with the same
// now belong to the same tick.
func (l *Loop) HandleEvent(now time.Time, ev backend.Event) {
	switch ev.Type {
	case backend.EventKey:
		if l.ignoringText(now) {
			return
		}
		if text, ok := KeyString(ev); ok {
			l.send(bridge.Keyboard{Text: text})
		}
	case backend.EventPaste:
		if l.ignoringText(now) || ev.Text == "" {
			return
		}
		l.send(bridge.Keyboard{Text: PasteString(ev.Text)})
	case backend.EventFocus:
		if ev.Focused {
			l.send(bridge.FocusGained{})
			l.focusTick = now
			l.opts.Scheduler.QueueNextFrame()
		} else {
			l.send(bridge.FocusLost{})
		}
	case backend.EventDrop:
		if ev.Text != "" {
			l.send(bridge.FileDrop{Path: ev.Text})
		}
	case backend.EventClose:
		l.log.Info("window closed")
		l.Stop()
	case backend.EventMouse:
		l.send(l.mouse.pointer(ev, l.opts.Editor)...)
	case backend.EventScroll:
		l.send(l.mouse.scroll(ev, l.opts.Editor)...)
	default:
		l.opts.Scheduler.QueueNextFrame()
	}
}

// ignoringText reports whether text input is suppressed because focus was
// gained in this tick. Focus switches often deliver the keystroke that
// caused them.
func (l *Loop) ignoringText(now time.Time) bool {
	return !l.focusTick.IsZero() && now.Equal(l.focusTick)
}

func (l *Loop) send(cmds ...bridge.UICommand) {
	if l.opts.Commands == nil {
		return
	}
	for _, c := range cmds {
		if !l.opts.Commands.Send(c) {
			l.log.Debug("command channel closed, dropping %s", c)
		}
	}
}

// Frame syncs settings, applies pending window commands and draws if the
// scheduler asks for it. It returns the next frame deadline.
func (l *Loop) Frame(now time.Time) time.Time {
	rate := l.refreshRate()
	sched := l.opts.Scheduler

	var measured time.Duration
	if !l.lastFrame.IsZero() {
		measured = now.Sub(l.lastFrame)
	}
	l.dt.Store(int64(sched.DeltaTime(measured, float64(rate))))

	l.syncSettings()
	l.applyWindowCommands()

	if sched.ShouldDraw() {
		animating, err := l.opts.Renderer.Draw(l.opts.Editor)
		if err != nil {
			l.log.Error("draw failed: %v", err)
			l.fail(&RenderError{Err: err})
			return now
		}
		sched.ReportDraw(animating)
		l.lastFrame = now
	}
	return scheduler.NextDeadline(l.clock(), now, float64(rate))
}

func (l *Loop) syncSettings() {
	if l.opts.Settings == nil {
		return
	}
	ws := l.opts.Settings.Window()
	if ws.NoIdle != l.opts.Scheduler.NoIdle() {
		l.opts.Scheduler.SetNoIdle(ws.NoIdle)
	}
	if ws.Fullscreen != l.opts.Backend.Fullscreen() {
		l.opts.Backend.SetFullscreen(ws.Fullscreen)
	}
}

func (l *Loop) applyWindowCommands() {
	if l.opts.WindowCommands == nil {
		return
	}
	for _, cmd := range l.opts.WindowCommands.Drain() {
		switch c := cmd.(type) {
		case bridge.TitleChanged:
			l.opts.Backend.SetTitle(c.Title)
		case bridge.SetMouseEnabled:
			l.mouse.enabled = c.Enabled
			if c.Enabled {
				l.opts.Backend.EnableMouse()
			} else {
				l.opts.Backend.DisableMouse()
			}
		}
	}
}

// Run drives the loop until it is stopped, the backend closes or ctx is
// done. It returns the error that stopped the loop, or nil.
func (l *Loop) Run(ctx context.Context) error {
	if !l.Running() {
		return ErrStopped
	}
	defer l.Stop()

	events := make(chan backend.Event, 64)
	go l.poll(ctx, events)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	sched := l.opts.Scheduler
	deadline := l.clock()
	for l.Running() {
		var due <-chan time.Time
		if sched.State() != scheduler.Idle || sched.NoIdle() {
			timer.Reset(max(0, deadline.Sub(l.clock())))
			due = timer.C
		}

		select {
		case <-ctx.Done():
			return l.Err()
		case <-l.stopCh:
			return l.Err()
		case ev, ok := <-events:
			if !ok {
				l.Stop()
				break
			}
			now := l.clock()
			l.HandleEvent(now, ev)
			l.drainEvents(now, events)
		case <-sched.Wake():
		case <-due:
			deadline = l.Frame(l.clock())
		}
		timer.Stop()
	}
	return l.Err()
}

// drainEvents handles everything already buffered as part of the same tick.
func (l *Loop) drainEvents(now time.Time, events <-chan backend.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				l.Stop()
				return
			}
			l.HandleEvent(now, ev)
		default:
			return
		}
	}
}

func (l *Loop) poll(ctx context.Context, out chan<- backend.Event) {
	defer close(out)
	for {
		ev := l.opts.Backend.PollEvent()
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		}
		if ev.Type == backend.EventClose {
			return
		}
	}
}

// ResizeHandler returns a renderer resize callback that asks the editor to
// resize the base grid to the surface.
func ResizeHandler(commands *bridge.CommandChannel, log *logging.Logger) func(cols, rows int) {
	return func(cols, rows int) {
		cmd := bridge.Resize{GridID: editor.BaseGrid, Width: cols, Height: rows}
		if !commands.Send(cmd) && log != nil {
			log.Debug("command channel closed, dropping %s", cmd)
		}
	}
}
