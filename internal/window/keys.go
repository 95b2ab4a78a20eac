package window

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/dshills/gridline/internal/renderer/backend"
)

var keyNames = map[backend.Key]string{
	backend.KeyEscape:    "Esc",
	backend.KeyEnter:     "CR",
	backend.KeyTab:       "Tab",
	backend.KeyBacktab:   "Tab",
	backend.KeyBackspace: "BS",
	backend.KeyDelete:    "Del",
	backend.KeyInsert:    "Insert",
	backend.KeyHome:      "Home",
	backend.KeyEnd:       "End",
	backend.KeyPageUp:    "PageUp",
	backend.KeyPageDown:  "PageDown",
	backend.KeyUp:        "Up",
	backend.KeyDown:      "Down",
	backend.KeyLeft:      "Left",
	backend.KeyRight:     "Right",
}

// runeNames are runes that must be spelled out in key notation.
var runeNames = map[rune]string{
	'<':  "lt",
	'\\': "Bslash",
	'|':  "Bar",
	' ':  "Space",
}

// KeyString converts a key event to the editor's key notation, such as
// "a", "<C-w>", "<A-CR>" or "<lt>". It returns false for events that do
// not produce input.
func KeyString(ev backend.Event) (string, bool) {
	if ev.Type != backend.EventKey {
		return "", false
	}

	var name string
	plain := false
	shift := ev.Mod.Has(backend.ModShift)
	switch {
	case ev.Key == backend.KeyRune:
		if ev.Rune == 0 {
			return "", false
		}
		// Shift is already part of a typed rune.
		shift = false
		if n, ok := runeNames[ev.Rune]; ok {
			name = n
		} else if ev.Mod.Has(backend.ModCtrl) {
			name = string(unicode.ToLower(ev.Rune))
		} else {
			name = string(ev.Rune)
			plain = true
		}
	case ev.Key >= backend.KeyF1 && ev.Key <= backend.KeyF12:
		name = "F" + strconv.Itoa(int(ev.Key-backend.KeyF1)+1)
	default:
		n, ok := keyNames[ev.Key]
		if !ok {
			return "", false
		}
		name = n
		if ev.Key == backend.KeyBacktab {
			shift = true
		}
	}

	prefix := modifierPrefix(ev.Mod, shift)
	if plain && prefix == "" {
		return name, true
	}
	return "<" + prefix + name + ">", true
}

// modifierPrefix returns "C-A-" style modifiers.
func modifierPrefix(mod backend.ModMask, shift bool) string {
	var b strings.Builder
	if mod.Has(backend.ModCtrl) {
		b.WriteString("C-")
	}
	if mod.Has(backend.ModAlt) {
		b.WriteString("A-")
	}
	if mod.Has(backend.ModMeta) {
		b.WriteString("D-")
	}
	if shift {
		b.WriteString("S-")
	}
	return b.String()
}

// MouseModifier returns the modifier argument for mouse input, e.g. "CA".
func MouseModifier(mod backend.ModMask) string {
	return strings.ReplaceAll(modifierPrefix(mod, mod.Has(backend.ModShift)), "-", "")
}

// PasteString escapes pasted text for keyboard input.
func PasteString(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '<':
			b.WriteString("<lt>")
		case '\n':
			b.WriteString("<CR>")
		case '\r':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
