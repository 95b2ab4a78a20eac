package backend

import (
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// Terminal implements Backend on a tcell screen.
//
// Terminals cannot change their own size, so fullscreen is recorded but has
// no visible effect.
type Terminal struct {
	screen     tcell.Screen
	mu         sync.Mutex
	closed     bool
	fullscreen bool

	// paste accumulates key runes between bracketed paste markers. It is
	// only touched by the PollEvent goroutine.
	paste *strings.Builder
}

// NewTerminal creates a terminal backend on the controlling terminal.
func NewTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewTerminalWithScreen(screen), nil
}

// NewTerminalWithScreen wraps an existing screen, such as a simulation
// screen in tests.
func NewTerminalWithScreen(screen tcell.Screen) *Terminal {
	return &Terminal{screen: screen}
}

func (t *Terminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.screen.Init(); err != nil {
		return err
	}
	t.screen.EnableMouse(tcell.MouseButtonEvents | tcell.MouseDragEvents)
	t.screen.EnablePaste()
	t.screen.EnableFocus()
	return nil
}

func (t *Terminal) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	t.screen.Fini()
}

func (t *Terminal) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.screen.Size()
}

func (t *Terminal) SetContent(x, y int, text string, style Style) {
	t.mu.Lock()
	defer t.mu.Unlock()

	runes := []rune(text)
	if len(runes) == 0 {
		runes = []rune{' '}
	}
	t.screen.SetContent(x, y, runes[0], runes[1:], convertStyle(style))
}

func (t *Terminal) Clear(style Style) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Fill(' ', convertStyle(style))
}

func (t *Terminal) Show() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	t.screen.Show()
	return nil
}

func (t *Terminal) ShowCursor(x, y int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.ShowCursor(x, y)
}

func (t *Terminal) HideCursor() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.HideCursor()
}

func (t *Terminal) EnableMouse() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.EnableMouse(tcell.MouseButtonEvents | tcell.MouseDragEvents)
}

func (t *Terminal) DisableMouse() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.DisableMouse()
}

func (t *Terminal) SetTitle(title string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.SetTitle(title)
}

func (t *Terminal) SetFullscreen(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.fullscreen = on
}

func (t *Terminal) Fullscreen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.fullscreen
}

// PollEvent blocks for the next terminal event. Runes typed between
// bracketed paste markers are returned as a single EventPaste.
func (t *Terminal) PollEvent() Event {
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return Event{Type: EventClose}
		}

		if p, ok := ev.(*tcell.EventPaste); ok {
			if p.Start() {
				t.paste = &strings.Builder{}
				continue
			}
			text := ""
			if t.paste != nil {
				text = t.paste.String()
			}
			t.paste = nil
			return Event{Type: EventPaste, Text: text}
		}

		if t.paste != nil {
			if k, ok := ev.(*tcell.EventKey); ok {
				switch k.Key() {
				case tcell.KeyRune:
					t.paste.WriteRune(k.Rune())
				case tcell.KeyEnter:
					t.paste.WriteByte('\n')
				case tcell.KeyTab:
					t.paste.WriteByte('\t')
				}
				continue
			}
		}

		if out := convertEvent(ev); out.Type != EventNone {
			return out
		}
	}
}

func convertColor(c Color) tcell.Color {
	if c < 0 {
		return tcell.ColorDefault
	}
	return tcell.NewHexColor(int32(c))
}

func convertStyle(s Style) tcell.Style {
	style := tcell.StyleDefault.
		Foreground(convertColor(s.Fg)).
		Background(convertColor(s.Bg))

	if s.Attrs.Has(AttrBold) {
		style = style.Bold(true)
	}
	if s.Attrs.Has(AttrItalic) {
		style = style.Italic(true)
	}
	if s.Attrs.Has(AttrReverse) {
		style = style.Reverse(true)
	}
	if s.Attrs.Has(AttrStrikethrough) {
		style = style.StrikeThrough(true)
	}
	switch {
	case s.Attrs.Has(AttrUndercurl):
		style = style.Underline(tcell.UnderlineStyleCurly, convertColor(s.Sp))
	case s.Attrs.Has(AttrUnderline):
		style = style.Underline(true)
	}
	return style
}

func convertEvent(ev tcell.Event) Event {
	switch e := ev.(type) {
	case *tcell.EventKey:
		key, r, mod := convertKey(e)
		if key == KeyNone {
			return Event{}
		}
		return Event{Type: EventKey, Key: key, Rune: r, Mod: mod}

	case *tcell.EventMouse:
		x, y := e.Position()
		b := e.Buttons()
		mod := convertMod(e.Modifiers())

		var sx, sy int
		if b&tcell.WheelUp != 0 {
			sy++
		}
		if b&tcell.WheelDown != 0 {
			sy--
		}
		if b&tcell.WheelLeft != 0 {
			sx--
		}
		if b&tcell.WheelRight != 0 {
			sx++
		}
		if sx != 0 || sy != 0 {
			return Event{Type: EventScroll, X: x, Y: y, ScrollX: sx, ScrollY: sy, Mod: mod}
		}
		return Event{Type: EventMouse, X: x, Y: y, Buttons: convertButtons(b), Mod: mod}

	case *tcell.EventResize:
		w, h := e.Size()
		return Event{Type: EventResize, Width: w, Height: h}

	case *tcell.EventFocus:
		return Event{Type: EventFocus, Focused: e.Focused}

	default:
		return Event{}
	}
}

// convertKey maps a tcell key event. tcell reports Ctrl+letter as a
// dedicated key; it is folded back into a rune with ModCtrl.
func convertKey(e *tcell.EventKey) (Key, rune, ModMask) {
	mod := convertMod(e.Modifiers())
	k := e.Key()

	switch {
	case k == tcell.KeyRune:
		return KeyRune, e.Rune(), mod
	case k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ:
		return KeyRune, 'a' + rune(k-tcell.KeyCtrlA), mod | ModCtrl
	case k == tcell.KeyCtrlSpace:
		return KeyRune, ' ', mod | ModCtrl
	case k >= tcell.KeyF1 && k <= tcell.KeyF12:
		return KeyF1 + Key(k-tcell.KeyF1), 0, mod
	}

	switch k {
	case tcell.KeyEscape:
		return KeyEscape, 0, mod
	case tcell.KeyEnter:
		return KeyEnter, 0, mod
	case tcell.KeyTab:
		return KeyTab, 0, mod
	case tcell.KeyBacktab:
		return KeyBacktab, 0, mod
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return KeyBackspace, 0, mod
	case tcell.KeyDelete:
		return KeyDelete, 0, mod
	case tcell.KeyInsert:
		return KeyInsert, 0, mod
	case tcell.KeyHome:
		return KeyHome, 0, mod
	case tcell.KeyEnd:
		return KeyEnd, 0, mod
	case tcell.KeyPgUp:
		return KeyPageUp, 0, mod
	case tcell.KeyPgDn:
		return KeyPageDown, 0, mod
	case tcell.KeyUp:
		return KeyUp, 0, mod
	case tcell.KeyDown:
		return KeyDown, 0, mod
	case tcell.KeyLeft:
		return KeyLeft, 0, mod
	case tcell.KeyRight:
		return KeyRight, 0, mod
	default:
		return KeyNone, 0, mod
	}
}

func convertMod(m tcell.ModMask) ModMask {
	var result ModMask
	if m&tcell.ModShift != 0 {
		result |= ModShift
	}
	if m&tcell.ModCtrl != 0 {
		result |= ModCtrl
	}
	if m&tcell.ModAlt != 0 {
		result |= ModAlt
	}
	if m&tcell.ModMeta != 0 {
		result |= ModMeta
	}
	return result
}

func convertButtons(b tcell.ButtonMask) ButtonMask {
	var result ButtonMask
	if b&tcell.Button1 != 0 {
		result |= ButtonLeft
	}
	if b&tcell.Button2 != 0 {
		result |= ButtonRight
	}
	if b&tcell.Button3 != 0 {
		result |= ButtonMiddle
	}
	return result
}
