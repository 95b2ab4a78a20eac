package window

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/gridline/internal/bridge"
	"github.com/dshills/gridline/internal/editor"
	"github.com/dshills/gridline/internal/renderer"
	"github.com/dshills/gridline/internal/renderer/backend"
	"github.com/dshills/gridline/internal/scheduler"
	"github.com/dshills/gridline/internal/settings"
)

type fixture struct {
	backend  *backend.NullBackend
	editor   *editor.Editor
	sched    *scheduler.Scheduler
	store    *settings.Store
	commands *bridge.CommandChannel
	loop     *Loop
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend:  backend.NewNullBackend(20, 5),
		sched:    scheduler.New(),
		store:    settings.NewDefaultStore(nil),
		commands: bridge.NewCommandChannel(),
		now:      time.Unix(1000, 0),
	}
	windowCmds := bridge.NewWindowCommandChannel()
	f.editor = editor.New(editor.Options{WindowCommands: windowCmds, QueueFrame: f.sched.QueueNextFrame})
	r := renderer.New(f.backend, renderer.Options{OnResize: ResizeHandler(f.commands, nil)})
	f.loop = New(Options{
		Backend:        f.backend,
		Renderer:       r,
		Editor:         f.editor,
		Scheduler:      f.sched,
		Settings:       f.store,
		Commands:       f.commands,
		WindowCommands: windowCmds,
		Clock:          func() time.Time { return f.now },
	})
	t.Cleanup(f.backend.Shutdown)
	return f
}

func (f *fixture) redraw(t *testing.T, events ...bridge.RedrawEvent) {
	t.Helper()
	if err := f.editor.HandleRedraw(bridge.RedrawNotification{Events: events}); err != nil {
		t.Fatalf("HandleRedraw() error = %v", err)
	}
}

func (f *fixture) tick(ev *backend.Event) time.Time {
	f.now = f.now.Add(10 * time.Millisecond)
	return f.loop.Tick(f.now, ev)
}

// settle draws until the first-frame resize has played out and discards
// the commands it produced.
func (f *fixture) settle() {
	f.sched.QueueNextFrame()
	f.tick(nil)
	f.tick(nil)
	f.sent()
}

func (f *fixture) sent() []bridge.UICommand {
	return f.commands.Drain()
}

func call(name string, args ...[]any) bridge.RedrawEvent {
	return bridge.RedrawEvent{Name: name, Calls: args}
}

func TestTickSendsKeys(t *testing.T) {
	f := newFixture(t)
	f.tick(&backend.Event{Type: backend.EventKey, Key: backend.KeyRune, Rune: 'w', Mod: backend.ModCtrl})
	f.tick(&backend.Event{Type: backend.EventPaste, Text: "a<b\n"})

	got := f.sent()
	want := []bridge.UICommand{bridge.Keyboard{Text: "<C-w>"}, bridge.Keyboard{Text: "a<lt>b<CR>"}}
	if len(got) != len(want) {
		t.Fatalf("sent %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScrollSplitsAxes(t *testing.T) {
	f := newFixture(t)
	f.redraw(t, call("grid_resize", []any{int64(1), int64(20), int64(5)}))
	f.settle()

	f.tick(&backend.Event{Type: backend.EventScroll, X: 4, Y: 2, ScrollX: -3, ScrollY: 5, Mod: backend.ModCtrl})

	got := f.sent()
	want := []bridge.UICommand{
		bridge.Scroll{Direction: "up", Modifier: "C", GridID: 1, Position: bridge.Position{Col: 4, Row: 2}},
		bridge.Scroll{Direction: "left", Modifier: "C", GridID: 1, Position: bridge.Position{Col: 4, Row: 2}},
	}
	if len(got) != len(want) {
		t.Fatalf("sent %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMouseDragDeduplicates(t *testing.T) {
	f := newFixture(t)
	f.redraw(t,
		call("grid_resize", []any{int64(1), int64(20), int64(5)}, []any{int64(3), int64(6), int64(2)}),
		call("win_float_pos", []any{int64(3), int64(1001), "NW", int64(1), int64(1), int64(10), true, int64(50)}),
	)
	f.settle()

	mouse := func(x, y int, buttons backend.ButtonMask) *backend.Event {
		return &backend.Event{Type: backend.EventMouse, X: x, Y: y, Buttons: buttons}
	}
	f.tick(mouse(11, 1, backend.ButtonLeft))
	f.tick(mouse(11, 1, backend.ButtonLeft))
	f.tick(mouse(12, 1, backend.ButtonLeft))
	f.tick(mouse(13, 2, 0))
	f.tick(mouse(14, 2, 0))

	got := f.sent()
	want := []bridge.UICommand{
		bridge.MouseButton{Button: "left", Action: "press", GridID: 3, Position: bridge.Position{Col: 1, Row: 0}},
		bridge.Drag{Button: "left", GridID: 3, Position: bridge.Position{Col: 2, Row: 0}},
		bridge.MouseButton{Button: "left", Action: "release", GridID: 3, Position: bridge.Position{Col: 3, Row: 1}},
	}
	if len(got) != len(want) {
		t.Fatalf("sent %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDragOnSplitUsesBaseOffset(t *testing.T) {
	f := newFixture(t)
	f.redraw(t,
		call("grid_resize", []any{int64(1), int64(20), int64(5)}, []any{int64(2), int64(10), int64(3)}),
		call("win_pos", []any{int64(2), int64(1000), int64(1), int64(5), int64(10), int64(3)}),
	)
	f.settle()

	f.tick(&backend.Event{Type: backend.EventMouse, X: 6, Y: 2, Buttons: backend.ButtonRight})
	f.tick(&backend.Event{Type: backend.EventMouse, X: 7, Y: 2, Buttons: backend.ButtonRight})

	got := f.sent()
	if len(got) != 2 {
		t.Fatalf("sent %v, want press and drag", got)
	}
	press := bridge.MouseButton{Button: "right", Action: "press", GridID: 2, Position: bridge.Position{Col: 1, Row: 1}}
	if got[0] != press {
		t.Errorf("press = %v, want %v", got[0], press)
	}
	drag := bridge.Drag{Button: "right", GridID: 2, Position: bridge.Position{Col: 7, Row: 2}}
	if got[1] != drag {
		t.Errorf("drag = %v, want %v", got[1], drag)
	}
}

func TestMouseOffSuppressesMouse(t *testing.T) {
	f := newFixture(t)
	f.settle()
	f.redraw(t, call("mouse_off", []any{}))
	f.tick(nil)
	if f.backend.MouseEnabled() {
		t.Error("backend mouse should be disabled")
	}

	f.tick(&backend.Event{Type: backend.EventMouse, X: 1, Y: 1, Buttons: backend.ButtonLeft})
	f.tick(&backend.Event{Type: backend.EventScroll, X: 1, Y: 1, ScrollY: -1})
	if got := f.sent(); len(got) != 0 {
		t.Errorf("sent %v with mouse off", got)
	}

	f.redraw(t, call("mouse_on", []any{}))
	f.tick(nil)
	f.tick(&backend.Event{Type: backend.EventScroll, X: 1, Y: 1, ScrollY: -1})
	got := f.sent()
	if len(got) != 1 || got[0].(bridge.Scroll).Direction != "down" {
		t.Errorf("sent %v, want one scroll down", got)
	}
}

func TestFocusGainedDrawsAndIgnoresText(t *testing.T) {
	f := newFixture(t)
	f.settle()
	shows := f.backend.Shows()
	f.tick(nil)
	if f.backend.Shows() != shows {
		t.Fatal("idle tick drew a frame")
	}

	f.now = f.now.Add(time.Second)
	f.loop.HandleEvent(f.now, backend.Event{Type: backend.EventFocus, Focused: true})
	f.loop.HandleEvent(f.now, backend.Event{Type: backend.EventKey, Key: backend.KeyRune, Rune: 'x'})
	f.loop.Frame(f.now)

	if f.backend.Shows() != shows+1 {
		t.Errorf("shows = %d, want %d after focus gained", f.backend.Shows(), shows+1)
	}
	got := f.sent()
	if len(got) != 1 || got[0] != (bridge.FocusGained{}) {
		t.Errorf("sent %v, want only FocusGained", got)
	}

	f.tick(&backend.Event{Type: backend.EventKey, Key: backend.KeyRune, Rune: 'y'})
	got = f.sent()
	if len(got) != 1 || got[0] != (bridge.Keyboard{Text: "y"}) {
		t.Errorf("sent %v, want key in the next tick", got)
	}

	f.tick(&backend.Event{Type: backend.EventFocus})
	if got := f.sent(); len(got) != 1 || got[0] != (bridge.FocusLost{}) {
		t.Errorf("sent %v, want FocusLost", got)
	}
}

func TestRefreshRateSetsFramePacing(t *testing.T) {
	f := newFixture(t)
	if got := f.loop.DeltaTime(); got != time.Second/60 {
		t.Errorf("initial DeltaTime() = %v", got)
	}

	if _, err := f.store.Set(settings.KeyRefreshRate, 30, settings.SourceEditor); err != nil {
		t.Fatal(err)
	}
	deadline := f.tick(nil)

	if got := f.loop.DeltaTime(); got != time.Second/30 {
		t.Errorf("DeltaTime() = %v, want %v", got, time.Second/30)
	}
	if want := f.now.Add(time.Second / 30); !deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", deadline, want)
	}
}

func TestSettingChangedNotificationPacesIdleFrames(t *testing.T) {
	f := newFixture(t)
	unsubscribe := f.store.Subscribe(func(settings.Change) { f.sched.QueueNextFrame() })
	defer unsubscribe()

	router := bridge.NewRouter(bridge.Handlers{
		Redraw:         f.editor.HandleRedraw,
		SettingChanged: f.store.HandleChangedNotification,
	})
	if err := router.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = router.Stop(context.Background()) }()

	select {
	case <-f.sched.Wake():
	default:
	}
	router.HandleNotification(bridge.MethodSettingChanged, []any{map[string]any{"refresh_rate": int64(30)}})

	select {
	case <-f.sched.Wake():
	case <-time.After(5 * time.Second):
		t.Fatal("setting_changed never queued a frame")
	}
	if got := f.store.Window().RefreshRate; got != 30 {
		t.Fatalf("RefreshRate = %d, want 30", got)
	}

	deadline := f.tick(nil)
	if got := f.loop.DeltaTime(); got != time.Second/30 {
		t.Errorf("idle DeltaTime() = %v, want %v", got, time.Second/30)
	}
	if want := f.now.Add(time.Second / 30); !deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", deadline, want)
	}
	if st := router.Stats(); st.Routed != 1 || st.Failed != 0 {
		t.Errorf("router stats = %+v", st)
	}
}

func TestSettingsSyncToBackendAndScheduler(t *testing.T) {
	f := newFixture(t)
	if _, err := f.store.Set(settings.KeyFullscreen, true, settings.SourceFile); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.Set(settings.KeyNoIdle, int64(1), settings.SourceEditor); err != nil {
		t.Fatal(err)
	}
	f.tick(nil)

	if !f.backend.Fullscreen() {
		t.Error("fullscreen not applied")
	}
	if !f.sched.NoIdle() {
		t.Error("no_idle not applied")
	}
	if f.backend.Shows() != 1 {
		t.Errorf("no_idle tick drew %d frames, want 1", f.backend.Shows())
	}
}

func TestWindowCommandsApplied(t *testing.T) {
	f := newFixture(t)
	f.redraw(t, call("set_title", []any{"notes.txt - NVIM"}))
	f.tick(nil)

	if got := f.backend.Title(); got != "notes.txt - NVIM" {
		t.Errorf("title = %q", got)
	}
}

func TestFirstDrawResizesBaseGrid(t *testing.T) {
	f := newFixture(t)
	f.sched.QueueNextFrame()
	f.tick(nil)

	got := f.sent()
	want := bridge.Resize{GridID: editor.BaseGrid, Width: 20, Height: 5}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("sent %v, want %v", got, want)
	}
	if f.sched.State() != scheduler.Animating {
		t.Errorf("state = %v, want animating after resize", f.sched.State())
	}

	f.tick(nil)
	if f.sched.State() != scheduler.Idle {
		t.Errorf("state = %v, want idle", f.sched.State())
	}
	if d := f.loop.DeltaTime(); d != 10*time.Millisecond {
		t.Errorf("animated DeltaTime() = %v, want measured 10ms", d)
	}
}

func TestRenderErrorStopsLoop(t *testing.T) {
	f := newFixture(t)
	want := errors.New("surface lost")
	f.backend.FailShow(want)
	f.sched.QueueNextFrame()
	f.tick(nil)

	if f.loop.Running() {
		t.Error("loop still running after render error")
	}
	var rerr *RenderError
	if !errors.As(f.loop.Err(), &rerr) || !errors.Is(rerr, want) {
		t.Errorf("Err() = %v, want RenderError wrapping %v", f.loop.Err(), want)
	}
}

func TestCloseEventStops(t *testing.T) {
	f := newFixture(t)
	f.tick(&backend.Event{Type: backend.EventClose})
	if f.loop.Running() {
		t.Error("loop still running after close")
	}
	if err := f.loop.Run(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Run() after Stop = %v, want ErrStopped", err)
	}
}

func TestRunDrawsAndStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.loop.clock = time.Now

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.loop.Run(ctx) }()

	f.backend.PostEvent(backend.Event{Type: backend.EventKey, Key: backend.KeyRune, Rune: 'i'})
	f.sched.QueueNextFrame()

	deadline := time.After(2 * time.Second)
	for f.backend.Shows() == 0 {
		select {
		case <-deadline:
			t.Fatal("no frame drawn")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if f.loop.Running() {
		t.Error("Running() after Run returned")
	}
}

func TestRunEndsWhenBackendCloses(t *testing.T) {
	f := newFixture(t)
	f.loop.clock = time.Now

	done := make(chan error, 1)
	go func() { done <- f.loop.Run(context.Background()) }()
	f.backend.Shutdown()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after backend shutdown")
	}
}
