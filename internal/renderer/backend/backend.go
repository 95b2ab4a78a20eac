// Package backend abstracts the display surface the grids are drawn on.
package backend

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Show after Shutdown.
var ErrClosed = errors.New("backend closed")

// Color is a 24-bit RGB value. ColorDefault selects the surface default.
type Color int32

// ColorDefault is the surface's default color.
const ColorDefault Color = -1

// RGB builds a color from components.
func RGB(r, g, b uint8) Color {
	return Color(int32(r)<<16 | int32(g)<<8 | int32(b))
}

// Components returns the red, green and blue components.
func (c Color) Components() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Attr is a set of text attributes.
type Attr uint16

const (
	AttrBold Attr = 1 << iota
	AttrItalic
	AttrUnderline
	AttrUndercurl
	AttrReverse
	AttrStrikethrough
)

// Has reports whether a contains attr.
func (a Attr) Has(attr Attr) bool {
	return a&attr != 0
}

// Style is the look of one cell.
type Style struct {
	Fg, Bg, Sp Color
	Attrs      Attr
}

// DefaultStyle uses the surface default colors.
var DefaultStyle = Style{Fg: ColorDefault, Bg: ColorDefault, Sp: ColorDefault}

// EventType identifies the kind of an Event.
type EventType int

const (
	EventNone EventType = iota
	EventKey
	EventMouse
	EventScroll
	EventResize
	EventPaste
	EventFocus
	EventDrop
	EventClose
)

// Key identifies a non-text key.
type Key int

const (
	KeyNone Key = iota
	KeyRune     // text key, see Event.Rune
	KeyEscape
	KeyEnter
	KeyTab
	KeyBacktab
	KeyBackspace
	KeyDelete
	KeyInsert
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

// ModMask is the modifier key state.
type ModMask int

const (
	ModNone  ModMask = 0
	ModShift ModMask = 1 << iota
	ModCtrl
	ModAlt
	ModMeta
)

// Has returns true if the mask contains the given modifier.
func (m ModMask) Has(mod ModMask) bool {
	return m&mod != 0
}

// ButtonMask is the set of pressed mouse buttons.
type ButtonMask int

const (
	ButtonLeft ButtonMask = 1 << iota
	ButtonMiddle
	ButtonRight
	ButtonNone ButtonMask = 0
)

// Event is an input or window event.
type Event struct {
	Type EventType

	// Key events.
	Key  Key
	Rune rune
	Mod  ModMask

	// Mouse and scroll events, in cells. Buttons holds the buttons down at
	// the time of the event.
	X, Y    int
	Buttons ButtonMask

	// Scroll deltas. Positive ScrollY is up, negative ScrollX is left.
	ScrollX, ScrollY int

	// Resize events.
	Width, Height int

	// Focus events.
	Focused bool

	// Paste text or dropped file path.
	Text string
}

// Backend is a display surface.
type Backend interface {
	// Init prepares the surface. It must be called first.
	Init() error

	// Shutdown restores the surface. PollEvent then returns EventClose.
	Shutdown()

	Size() (width, height int)

	// SetContent draws text (one grapheme) at x, y.
	SetContent(x, y int, text string, style Style)

	// Clear fills the surface with style.
	Clear(style Style)

	// Show flushes pending drawing to the display.
	Show() error

	ShowCursor(x, y int)
	HideCursor()

	// PollEvent blocks for the next event.
	PollEvent() Event

	EnableMouse()
	DisableMouse()

	SetTitle(title string)

	// SetFullscreen requests fullscreen; Fullscreen reports the actual state.
	SetFullscreen(on bool)
	Fullscreen() bool
}

// NullBackend is an in-memory backend for tests.
type NullBackend struct {
	mu sync.Mutex

	width, height int
	cells         [][]NullCell
	cursorX       int
	cursorY       int
	cursorVisible bool
	title         string
	fullscreen    bool
	mouse         bool
	shows         int
	closed        bool
	showErr       error

	events chan Event
}

// NullCell is a cell recorded by NullBackend.
type NullCell struct {
	Text  string
	Style Style
}

// NewNullBackend creates a null backend with the given dimensions.
func NewNullBackend(width, height int) *NullBackend {
	b := &NullBackend{
		width:  width,
		height: height,
		events: make(chan Event, 100),
	}
	b.allocate()
	return b
}

func (b *NullBackend) allocate() {
	b.cells = make([][]NullCell, b.height)
	for y := range b.cells {
		b.cells[y] = make([]NullCell, b.width)
		for x := range b.cells[y] {
			b.cells[y][x] = NullCell{Text: " ", Style: DefaultStyle}
		}
	}
}

func (b *NullBackend) Init() error { return nil }

func (b *NullBackend) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
}

func (b *NullBackend) Size() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

func (b *NullBackend) SetContent(x, y int, text string, style Style) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if x >= 0 && x < b.width && y >= 0 && y < b.height {
		b.cells[y][x] = NullCell{Text: text, Style: style}
	}
}

func (b *NullBackend) Clear(style Style) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for y := range b.cells {
		for x := range b.cells[y] {
			b.cells[y][x] = NullCell{Text: " ", Style: style}
		}
	}
}

func (b *NullBackend) Show() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.showErr != nil {
		return b.showErr
	}
	b.shows++
	return nil
}

func (b *NullBackend) ShowCursor(x, y int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursorX, b.cursorY, b.cursorVisible = x, y, true
}

func (b *NullBackend) HideCursor() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursorVisible = false
}

// PollEvent returns posted events, then EventClose after Shutdown.
func (b *NullBackend) PollEvent() Event {
	ev, ok := <-b.events
	if !ok {
		return Event{Type: EventClose}
	}
	return ev
}

func (b *NullBackend) EnableMouse() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mouse = true
}

func (b *NullBackend) DisableMouse() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mouse = false
}

func (b *NullBackend) SetTitle(title string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.title = title
}

func (b *NullBackend) SetFullscreen(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fullscreen = on
}

func (b *NullBackend) Fullscreen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fullscreen
}

// PostEvent queues an event for PollEvent. It drops the event if the queue
// is full or the backend is shut down.
func (b *NullBackend) PostEvent(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.events <- ev:
	default:
	}
}

// Cell returns the recorded cell at x, y.
func (b *NullBackend) Cell(x, y int) NullCell {
	b.mu.Lock()
	defer b.mu.Unlock()
	if x >= 0 && x < b.width && y >= 0 && y < b.height {
		return b.cells[y][x]
	}
	return NullCell{}
}

// Line returns the text of row y.
func (b *NullBackend) Line(y int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if y < 0 || y >= b.height {
		return ""
	}
	var s []byte
	for _, c := range b.cells[y] {
		s = append(s, c.Text...)
	}
	return string(s)
}

// CursorPosition returns the current cursor position.
func (b *NullBackend) CursorPosition() (x, y int, visible bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursorX, b.cursorY, b.cursorVisible
}

// Title returns the last title set.
func (b *NullBackend) Title() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.title
}

// MouseEnabled reports whether mouse reporting is on.
func (b *NullBackend) MouseEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mouse
}

// Shows returns the number of successful Show calls.
func (b *NullBackend) Shows() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shows
}

// FailShow makes subsequent Show calls return err.
func (b *NullBackend) FailShow(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.showErr = err
}

// Resize simulates a surface resize.
func (b *NullBackend) Resize(width, height int) {
	b.mu.Lock()
	b.width, b.height = width, height
	b.allocate()
	b.mu.Unlock()
	b.PostEvent(Event{Type: EventResize, Width: width, Height: height})
}
