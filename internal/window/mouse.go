package window

import (
	"github.com/dshills/gridline/internal/bridge"
	"github.com/dshills/gridline/internal/editor"
	"github.com/dshills/gridline/internal/renderer/backend"
)

// mouseState turns pointer events into editor mouse commands.
type mouseState struct {
	enabled bool
	buttons backend.ButtonMask
	grid    int
	pos     bridge.Position
	placed  bool
}

// RegionLocator finds the topmost grid under a base-grid cell.
type RegionLocator interface {
	RegionAt(col, row int) (editor.Region, bool)
}

func buttonName(b backend.ButtonMask) string {
	switch {
	case b&backend.ButtonLeft != 0:
		return "left"
	case b&backend.ButtonRight != 0:
		return "right"
	case b&backend.ButtonMiddle != 0:
		return "middle"
	}
	return ""
}

// locate resolves a surface cell to a grid and a grid-local position.
func locate(regions RegionLocator, x, y int) (editor.Region, bridge.Position) {
	if regions != nil {
		if r, ok := regions.RegionAt(x, y); ok {
			return r, bridge.Position{Col: x - r.Left, Row: y - r.Top}
		}
	}
	return editor.Region{GridID: editor.BaseGrid}, bridge.Position{Col: x, Row: y}
}

// pointer handles a mouse event. Button transitions become press and
// release commands; motion with a button held becomes a drag, but only when
// the grid or cell actually changed.
func (m *mouseState) pointer(ev backend.Event, regions RegionLocator) []bridge.UICommand {
	region, pos := locate(regions, ev.X, ev.Y)
	prev := m.buttons
	now := ev.Buttons
	m.buttons = now

	moved := !m.placed || region.GridID != m.grid || pos != m.pos
	m.grid, m.pos, m.placed = region.GridID, pos, true

	if !m.enabled {
		return nil
	}
	mod := MouseModifier(ev.Mod)

	switch {
	case prev == 0 && now != 0:
		return []bridge.UICommand{bridge.MouseButton{
			Button: buttonName(now), Action: "press", Modifier: mod,
			GridID: region.GridID, Position: pos,
		}}
	case prev != 0 && now == 0:
		return []bridge.UICommand{bridge.MouseButton{
			Button: buttonName(prev), Action: "release", Modifier: mod,
			GridID: region.GridID, Position: pos,
		}}
	case now != 0 && moved:
		dragPos := pos
		if !region.Floating {
			// The editor reads drag positions on split windows relative to
			// the base grid, so undo the window offset. Remove once grid
			// drags are reported in window coordinates upstream.
			dragPos.Col += region.Left
			dragPos.Row += region.Top
		}
		return []bridge.UICommand{bridge.Drag{
			Button: buttonName(now), Modifier: mod,
			GridID: region.GridID, Position: dragPos,
		}}
	}
	return nil
}

// scroll splits a wheel event into one command per axis.
func (m *mouseState) scroll(ev backend.Event, regions RegionLocator) []bridge.UICommand {
	if !m.enabled {
		return nil
	}
	region, pos := locate(regions, ev.X, ev.Y)
	mod := MouseModifier(ev.Mod)

	var cmds []bridge.UICommand
	add := func(dir string) {
		cmds = append(cmds, bridge.Scroll{Direction: dir, Modifier: mod, GridID: region.GridID, Position: pos})
	}
	switch {
	case ev.ScrollY > 0:
		add("up")
	case ev.ScrollY < 0:
		add("down")
	}
	switch {
	case ev.ScrollX < 0:
		add("left")
	case ev.ScrollX > 0:
		add("right")
	}
	return cmds
}
