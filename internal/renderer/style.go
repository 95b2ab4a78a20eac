package renderer

import (
	"github.com/dshills/gridline/internal/editor"
	"github.com/dshills/gridline/internal/renderer/backend"
)

// styleResolver turns highlight ids into backend styles for one frame.
type styleResolver struct {
	view     editor.View
	defaults editor.Colors
	cache    map[int]backend.Style
}

func newStyleResolver(v editor.View) *styleResolver {
	return &styleResolver{
		view:     v,
		defaults: v.DefaultColors(),
		cache:    make(map[int]backend.Style),
	}
}

func color(v, fallback int) backend.Color {
	if v >= 0 {
		return backend.Color(v)
	}
	if fallback >= 0 {
		return backend.Color(fallback)
	}
	return backend.ColorDefault
}

// base is the style of highlight 0.
func (s *styleResolver) base() backend.Style {
	return backend.Style{
		Fg: color(-1, s.defaults.Foreground),
		Bg: color(-1, s.defaults.Background),
		Sp: color(-1, s.defaults.Special),
	}
}

func (s *styleResolver) get(id int) backend.Style {
	if st, ok := s.cache[id]; ok {
		return st
	}
	st := s.resolve(s.view.Highlight(id))
	s.cache[id] = st
	return st
}

func (s *styleResolver) resolve(hl editor.Highlight) backend.Style {
	st := backend.Style{
		Fg: color(hl.Foreground, s.defaults.Foreground),
		Bg: color(hl.Background, s.defaults.Background),
		Sp: color(hl.Special, s.defaults.Special),
	}
	if hl.Bold {
		st.Attrs |= backend.AttrBold
	}
	if hl.Italic {
		st.Attrs |= backend.AttrItalic
	}
	if hl.Underline {
		st.Attrs |= backend.AttrUnderline
	}
	if hl.Undercurl {
		st.Attrs |= backend.AttrUndercurl
	}
	if hl.Strikethrough {
		st.Attrs |= backend.AttrStrikethrough
	}
	if hl.Reverse {
		// Swapping needs both colors known; otherwise let the surface do it.
		if st.Fg != backend.ColorDefault && st.Bg != backend.ColorDefault {
			st.Fg, st.Bg = st.Bg, st.Fg
		} else {
			st.Attrs |= backend.AttrReverse
		}
	}
	return st
}
