package renderer

import (
	"errors"
	"testing"

	"github.com/dshills/gridline/internal/bridge"
	"github.com/dshills/gridline/internal/editor"
	"github.com/dshills/gridline/internal/renderer/backend"
)

func redraw(t *testing.T, ed *editor.Editor, events ...bridge.RedrawEvent) {
	t.Helper()
	if err := ed.HandleRedraw(bridge.RedrawNotification{Events: events}); err != nil {
		t.Fatalf("HandleRedraw() error = %v", err)
	}
}

func ev(name string, calls ...[]any) bridge.RedrawEvent {
	return bridge.RedrawEvent{Name: name, Calls: calls}
}

func line(grid, row, col int, cells ...[]any) []any {
	raw := make([]any, len(cells))
	for i, c := range cells {
		raw[i] = c
	}
	return []any{int64(grid), int64(row), int64(col), raw}
}

func TestRendererDrawsRegions(t *testing.T) {
	ed := editor.New(editor.Options{})
	redraw(t, ed,
		ev("grid_resize", []any{int64(1), int64(10), int64(3)}, []any{int64(2), int64(4), int64(1)}),
		ev("grid_line",
			line(1, 0, 0, []any{"a", int64(0), int64(10)}),
			line(1, 1, 0, []any{"b", int64(0), int64(10)}),
			line(2, 0, 0, []any{"F"}, []any{"L"}, []any{"T"}),
		),
		ev("win_float_pos", []any{int64(2), int64(1000), "NW", int64(1), int64(1), int64(3), true, int64(50)}),
		ev("grid_cursor_goto", []any{int64(2), int64(0), int64(1)}),
	)

	b := backend.NewNullBackend(10, 3)
	r := New(b, Options{})
	if _, err := r.Draw(ed); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	tests := []struct {
		row  int
		want string
	}{
		{0, "aaaaaaaaaa"},
		{1, "bbbFLT bbb"},
		{2, "          "},
	}
	for _, tt := range tests {
		if got := b.Line(tt.row); got != tt.want {
			t.Errorf("Line(%d) = %q, want %q", tt.row, got, tt.want)
		}
	}

	x, y, visible := b.CursorPosition()
	if !visible || x != 4 || y != 1 {
		t.Errorf("cursor = (%d, %d, %v), want (4, 1, true)", x, y, visible)
	}
	if r.Frames() != 1 || b.Shows() != 1 {
		t.Errorf("frames=%d shows=%d", r.Frames(), b.Shows())
	}
}

func TestRendererWideGlyphs(t *testing.T) {
	ed := editor.New(editor.Options{})
	redraw(t, ed,
		ev("grid_resize", []any{int64(1), int64(5), int64(1)}),
		ev("grid_line", line(1, 0, 0, []any{"界"}, []any{""}, []any{"a"}, []any{"b"}, []any{"界"})),
	)

	b := backend.NewNullBackend(5, 1)
	if _, err := New(b, Options{}).Draw(ed); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	if got := b.Cell(0, 0).Text; got != "界" {
		t.Errorf("Cell(0, 0) = %q, want the wide glyph", got)
	}
	// The glyph at the last column has no room for its second half.
	if got := b.Cell(4, 0).Text; got != " " {
		t.Errorf("Cell(4, 0) = %q, want a blank", got)
	}
	if got := b.Line(0); got != "界 ab " {
		t.Errorf("Line(0) = %q", got)
	}
}

func TestRendererResizeAnimates(t *testing.T) {
	ed := editor.New(editor.Options{})
	b := backend.NewNullBackend(80, 24)

	var sizes [][2]int
	r := New(b, Options{OnResize: func(cols, rows int) { sizes = append(sizes, [2]int{cols, rows}) }})

	animating, err := r.Draw(ed)
	if err != nil || !animating {
		t.Fatalf("first Draw() = %v, %v; want animating", animating, err)
	}
	animating, _ = r.Draw(ed)
	if animating {
		t.Error("unchanged size should not animate")
	}

	b.Resize(100, 30)
	animating, _ = r.Draw(ed)
	if !animating {
		t.Error("resize should animate")
	}

	want := [][2]int{{80, 24}, {100, 30}}
	if len(sizes) != 2 || sizes[0] != want[0] || sizes[1] != want[1] {
		t.Errorf("OnResize calls = %v, want %v", sizes, want)
	}
}

func TestRendererShowError(t *testing.T) {
	b := backend.NewNullBackend(4, 1)
	want := errors.New("surface lost")
	b.FailShow(want)

	_, err := New(b, Options{}).Draw(editor.New(editor.Options{}))
	if !errors.Is(err, want) {
		t.Errorf("Draw() error = %v, want %v", err, want)
	}
}

func TestRendererHidesCursorOffscreen(t *testing.T) {
	ed := editor.New(editor.Options{})
	redraw(t, ed,
		ev("grid_resize", []any{int64(1), int64(4), int64(1)}),
		ev("grid_cursor_goto", []any{int64(7), int64(0), int64(0)}),
	)
	b := backend.NewNullBackend(4, 1)
	if _, err := New(b, Options{}).Draw(ed); err != nil {
		t.Fatal(err)
	}
	if _, _, visible := b.CursorPosition(); visible {
		t.Error("cursor on an unplaced grid should be hidden")
	}
}

func TestStyleResolver(t *testing.T) {
	ed := editor.New(editor.Options{})
	redraw(t, ed,
		ev("default_colors_set", []any{int64(0xeeeeee), int64(0x111111), int64(0xff0000), int64(0), int64(0)}),
		ev("hl_attr_define",
			[]any{int64(1), map[string]any{"foreground": int64(0x00ff00), "bold": true}, map[string]any{}, []any{}},
			[]any{int64(2), map[string]any{"reverse": true}, map[string]any{}, []any{}},
			[]any{int64(3), map[string]any{"undercurl": true, "special": int64(0x0000ff)}, map[string]any{}, []any{}},
		),
	)

	tests := []struct {
		id   int
		want backend.Style
	}{
		{0, backend.Style{Fg: 0xeeeeee, Bg: 0x111111, Sp: 0xff0000}},
		{1, backend.Style{Fg: 0x00ff00, Bg: 0x111111, Sp: 0xff0000, Attrs: backend.AttrBold}},
		{2, backend.Style{Fg: 0x111111, Bg: 0xeeeeee, Sp: 0xff0000}},
		{3, backend.Style{Fg: 0xeeeeee, Bg: 0x111111, Sp: 0x0000ff, Attrs: backend.AttrUndercurl}},
	}

	ed.View(func(v editor.View) {
		s := newStyleResolver(v)
		for _, tt := range tests {
			if got := s.get(tt.id); got != tt.want {
				t.Errorf("get(%d) = %+v, want %+v", tt.id, got, tt.want)
			}
		}
	})
}

func TestStyleResolverReverseWithoutDefaults(t *testing.T) {
	ed := editor.New(editor.Options{})
	redraw(t, ed, ev("hl_attr_define", []any{int64(4), map[string]any{"reverse": true}, map[string]any{}, []any{}}))

	ed.View(func(v editor.View) {
		got := newStyleResolver(v).get(4)
		if !got.Attrs.Has(backend.AttrReverse) || got.Fg != backend.ColorDefault {
			t.Errorf("get(4) = %+v", got)
		}
	})
}
