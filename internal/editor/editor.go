// Package editor folds the editor's ext_linegrid redraw events into grid,
// window, and highlight state that the renderer reads.
//
// Redraw batches must be applied in the order the editor sent them; the
// bridge router guarantees this by handing them over on a single lane.
package editor

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/gridline/internal/bridge"
	"github.com/dshills/gridline/internal/logging"
	"github.com/dshills/gridline/internal/rpc"
)

// BaseGrid is the id of the outer grid every window is laid out on.
const BaseGrid = 1

// Window is an editor window's placement on the base grid.
type Window struct {
	GridID   int
	Row      int
	Col      int
	Width    int
	Height   int
	Floating bool
	ZIndex   int
	Hidden   bool

	// order breaks ties between windows with the same z-index.
	order int
}

// Cursor is the editor cursor position within a grid.
type Cursor struct {
	Grid int
	Row  int
	Col  int
}

// Colors are the default colors as 24-bit RGB values. -1 means unset.
type Colors struct {
	Foreground int
	Background int
	Special    int
}

// Highlight is a highlight group definition.
type Highlight struct {
	Foreground    int
	Background    int
	Special       int
	Reverse       bool
	Bold          bool
	Italic        bool
	Underline     bool
	Undercurl     bool
	Strikethrough bool
}

// Options configures an Editor.
type Options struct {
	// WindowCommands receives title and mouse changes.
	WindowCommands *bridge.WindowCommandChannel

	// QueueFrame is called after each applied redraw batch.
	QueueFrame func()

	Log *logging.Logger
}

// Editor is the aggregated redraw state. It is safe for concurrent use.
type Editor struct {
	mu sync.RWMutex

	grids      map[int]*Grid
	windows    map[int]*Window
	highlights map[int]Highlight
	colors     Colors
	cursor     Cursor
	title      string
	mouse      bool
	options    map[string]any
	nextOrder  int
	version    uint64

	windowCmds *bridge.WindowCommandChannel
	queueFrame func()
	log        *logging.Logger
}

// New creates an empty editor state.
func New(opts Options) *Editor {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	return &Editor{
		grids:      make(map[int]*Grid),
		windows:    make(map[int]*Window),
		highlights: make(map[int]Highlight),
		colors:     Colors{Foreground: -1, Background: -1, Special: -1},
		cursor:     Cursor{Grid: BaseGrid},
		mouse:      true,
		options:    make(map[string]any),
		windowCmds: opts.WindowCommands,
		queueFrame: opts.QueueFrame,
		log:        log,
	}
}

// HandleRedraw applies every event of a redraw batch in order. A malformed
// event is skipped and reported; the remaining events are still applied.
func (e *Editor) HandleRedraw(n bridge.RedrawNotification) error {
	var errs []error
	var cmds []bridge.WindowCommand

	e.mu.Lock()
	for _, ev := range n.Events {
		for _, call := range ev.Calls {
			cmd, err := e.apply(ev.Name, call)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", ev.Name, err))
				continue
			}
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	}
	e.version++
	e.mu.Unlock()

	if e.windowCmds != nil {
		for _, cmd := range cmds {
			e.windowCmds.Send(cmd)
		}
	}
	if e.queueFrame != nil {
		e.queueFrame()
	}
	return errors.Join(errs...)
}

// apply handles a single event call. It runs with the write lock held.
func (e *Editor) apply(name string, args []any) (bridge.WindowCommand, error) {
	switch name {
	case "grid_resize":
		return nil, e.gridResize(args)
	case "grid_clear":
		return nil, e.gridClear(args)
	case "grid_destroy":
		return nil, e.gridDestroy(args)
	case "grid_cursor_goto":
		return nil, e.cursorGoto(args)
	case "grid_line":
		return nil, e.gridLine(args)
	case "grid_scroll":
		return nil, e.gridScroll(args)
	case "win_pos":
		return nil, e.winPos(args)
	case "win_float_pos":
		return nil, e.winFloatPos(args)
	case "win_hide":
		return nil, e.winHide(args)
	case "win_close":
		return nil, e.winClose(args)
	case "hl_attr_define":
		return nil, e.hlAttrDefine(args)
	case "default_colors_set":
		return nil, e.defaultColorsSet(args)
	case "option_set":
		return nil, e.optionSet(args)
	case "set_title":
		title, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		e.title = title
		return bridge.TitleChanged{Title: title}, nil
	case "mouse_on":
		e.mouse = true
		return bridge.SetMouseEnabled{Enabled: true}, nil
	case "mouse_off":
		e.mouse = false
		return bridge.SetMouseEnabled{Enabled: false}, nil
	case "flush":
		return nil, nil
	default:
		e.log.Debug("unhandled redraw event %s", name)
		return nil, nil
	}
}

func (e *Editor) grid(id int) *Grid {
	g, ok := e.grids[id]
	if !ok {
		g = newGrid(id, 0, 0)
		e.grids[id] = g
	}
	return g
}

func (e *Editor) gridResize(args []any) error {
	v, err := intArgs(args, 3)
	if err != nil {
		return err
	}
	g := e.grid(v[0])
	g.resize(v[1], v[2])
	if w, ok := e.windows[v[0]]; ok {
		w.Width, w.Height = v[1], v[2]
	}
	return nil
}

func (e *Editor) gridClear(args []any) error {
	v, err := intArgs(args, 1)
	if err != nil {
		return err
	}
	if g, ok := e.grids[v[0]]; ok {
		g.clear()
	}
	return nil
}

func (e *Editor) gridDestroy(args []any) error {
	v, err := intArgs(args, 1)
	if err != nil {
		return err
	}
	delete(e.grids, v[0])
	delete(e.windows, v[0])
	return nil
}

func (e *Editor) cursorGoto(args []any) error {
	v, err := intArgs(args, 3)
	if err != nil {
		return err
	}
	e.cursor = Cursor{Grid: v[0], Row: v[1], Col: v[2]}
	return nil
}

// gridLine handles [grid, row, col_start, cells, wrap?] where each cell is
// [text, hl_id?, repeat?]. A missing hl_id repeats the previous one.
func (e *Editor) gridLine(args []any) error {
	v, err := intArgs(args, 3)
	if err != nil {
		return err
	}
	if len(args) < 4 {
		return fmt.Errorf("expected cells argument")
	}
	cells, err := rpc.ToSlice(args[3])
	if err != nil {
		return err
	}

	g := e.grid(v[0])
	row, col := v[1], v[2]
	if row < 0 || col < 0 {
		return fmt.Errorf("grid_line: position %d,%d out of range", row, col)
	}
	hl := 0
	for _, raw := range cells {
		cell, err := rpc.ToSlice(raw)
		if err != nil || len(cell) == 0 {
			return fmt.Errorf("malformed cell %v", raw)
		}
		text, err := rpc.ToString(cell[0])
		if err != nil {
			return err
		}
		if len(cell) > 1 {
			if hl, err = rpc.ToInt(cell[1]); err != nil {
				return err
			}
		}
		repeat := 1
		if len(cell) > 2 {
			if repeat, err = rpc.ToInt(cell[2]); err != nil {
				return err
			}
			if repeat < 0 {
				return fmt.Errorf("malformed cell %v: negative repeat", raw)
			}
		}
		// Cells past the right edge are dropped.
		repeat = min(repeat, max(0, g.Width-col))
		for i := 0; i < repeat; i++ {
			g.set(row, col, Cell{Text: text, HlID: hl})
			col++
		}
	}
	return nil
}

func (e *Editor) gridScroll(args []any) error {
	v, err := intArgs(args, 7)
	if err != nil {
		return err
	}
	if g, ok := e.grids[v[0]]; ok {
		g.scroll(v[1], v[2], v[3], v[4], v[5])
	}
	return nil
}

// winPos handles [grid, win, start_row, start_col, width, height].
func (e *Editor) winPos(args []any) error {
	if len(args) < 6 {
		return fmt.Errorf("expected 6 arguments, got %d", len(args))
	}
	grid, err := rpc.ToInt(args[0])
	if err != nil {
		return err
	}
	v, err := intArgs(args[2:], 4)
	if err != nil {
		return err
	}

	w := e.window(grid)
	w.Row, w.Col, w.Width, w.Height = v[0], v[1], v[2], v[3]
	w.Floating = false
	w.Hidden = false
	return nil
}

// winFloatPos handles [grid, win, anchor, anchor_grid, anchor_row,
// anchor_col, focusable, zindex?]. The position is resolved against the
// anchor grid's placement at the time of the event.
func (e *Editor) winFloatPos(args []any) error {
	if len(args) < 6 {
		return fmt.Errorf("expected at least 6 arguments, got %d", len(args))
	}
	grid, err := rpc.ToInt(args[0])
	if err != nil {
		return err
	}
	anchor, err := rpc.ToString(args[2])
	if err != nil {
		return err
	}
	anchorGrid, err := rpc.ToInt(args[3])
	if err != nil {
		return err
	}
	anchorRow, err := rpc.ToFloat(args[4])
	if err != nil {
		return err
	}
	anchorCol, err := rpc.ToFloat(args[5])
	if err != nil {
		return err
	}
	zindex := 50
	if len(args) > 7 {
		if zindex, err = rpc.ToInt(args[7]); err != nil {
			return err
		}
	}

	w := e.window(grid)
	if g, ok := e.grids[grid]; ok {
		w.Width, w.Height = g.Width, g.Height
	}

	baseRow, baseCol := 0, 0
	if aw, ok := e.windows[anchorGrid]; ok && anchorGrid != grid {
		baseRow, baseCol = aw.Row, aw.Col
	}
	row := baseRow + int(anchorRow)
	col := baseCol + int(anchorCol)
	switch anchor {
	case "NE":
		col -= w.Width
	case "SW":
		row -= w.Height
	case "SE":
		row -= w.Height
		col -= w.Width
	}

	w.Row, w.Col = row, col
	w.Floating = true
	w.ZIndex = zindex
	w.Hidden = false
	return nil
}

func (e *Editor) winHide(args []any) error {
	v, err := intArgs(args, 1)
	if err != nil {
		return err
	}
	if w, ok := e.windows[v[0]]; ok {
		w.Hidden = true
	}
	return nil
}

func (e *Editor) winClose(args []any) error {
	v, err := intArgs(args, 1)
	if err != nil {
		return err
	}
	delete(e.windows, v[0])
	return nil
}

func (e *Editor) window(grid int) *Window {
	w, ok := e.windows[grid]
	if !ok {
		e.nextOrder++
		w = &Window{GridID: grid, order: e.nextOrder}
		e.windows[grid] = w
	}
	return w
}

// hlAttrDefine handles [id, rgb_attr, cterm_attr, info].
func (e *Editor) hlAttrDefine(args []any) error {
	if len(args) < 2 {
		return fmt.Errorf("expected at least 2 arguments, got %d", len(args))
	}
	id, err := rpc.ToInt(args[0])
	if err != nil {
		return err
	}
	attrs, err := rpc.ToMap(args[1])
	if err != nil {
		return err
	}

	hl := Highlight{Foreground: -1, Background: -1, Special: -1}
	for k, v := range attrs {
		switch k {
		case "foreground":
			hl.Foreground, _ = rpc.ToInt(v)
		case "background":
			hl.Background, _ = rpc.ToInt(v)
		case "special":
			hl.Special, _ = rpc.ToInt(v)
		case "reverse":
			hl.Reverse, _ = rpc.ToBool(v)
		case "bold":
			hl.Bold, _ = rpc.ToBool(v)
		case "italic":
			hl.Italic, _ = rpc.ToBool(v)
		case "underline":
			hl.Underline, _ = rpc.ToBool(v)
		case "undercurl":
			hl.Undercurl, _ = rpc.ToBool(v)
		case "strikethrough":
			hl.Strikethrough, _ = rpc.ToBool(v)
		}
	}
	e.highlights[id] = hl
	return nil
}

func (e *Editor) defaultColorsSet(args []any) error {
	v, err := intArgs(args, 3)
	if err != nil {
		return err
	}
	e.colors = Colors{Foreground: v[0], Background: v[1], Special: v[2]}
	return nil
}

func (e *Editor) optionSet(args []any) error {
	name, err := stringArg(args, 0)
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("option %s without value", name)
	}
	e.options[name] = args[1]
	return nil
}

// Region is a grid's placement on the base grid, in cells.
type Region struct {
	GridID   int
	Left     int
	Top      int
	Width    int
	Height   int
	Floating bool
	ZIndex   int
}

// Contains reports whether the base-grid cell (col, row) lies in r.
func (r Region) Contains(col, row int) bool {
	return col >= r.Left && col < r.Left+r.Width && row >= r.Top && row < r.Top+r.Height
}

// View is read-only access to the editor state during a View call.
type View struct {
	e *Editor
}

// View calls fn with the state read-locked. fn must not retain the View.
func (e *Editor) View(fn func(v View)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(View{e: e})
}

// Grid returns the grid with id.
func (v View) Grid(id int) (*Grid, bool) {
	g, ok := v.e.grids[id]
	return g, ok
}

// Cursor returns the cursor position.
func (v View) Cursor() Cursor { return v.e.cursor }

// Highlight returns highlight id, or the default highlight.
func (v View) Highlight(id int) Highlight {
	if hl, ok := v.e.highlights[id]; ok {
		return hl
	}
	return Highlight{Foreground: -1, Background: -1, Special: -1}
}

// DefaultColors returns the default colors.
func (v View) DefaultColors() Colors { return v.e.colors }

// Regions returns the visible grids in draw order.
func (v View) Regions() []Region { return v.e.regions() }

// Title returns the last title set by the editor.
func (e *Editor) Title() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.title
}

// MouseEnabled reports whether the editor wants mouse input.
func (e *Editor) MouseEnabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mouse
}

// Option returns an editor UI option reported through option_set.
func (e *Editor) Option(name string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.options[name]
	return v, ok
}

// Version increments on every applied redraw batch.
func (e *Editor) Version() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// Regions returns the visible grids in draw order: the base grid, then
// windows, then floating windows by z-index.
func (e *Editor) Regions() []Region {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.regions()
}

// RegionAt returns the topmost region containing the base-grid cell.
func (e *Editor) RegionAt(col, row int) (Region, bool) {
	regions := e.Regions()
	for i := len(regions) - 1; i >= 0; i-- {
		if regions[i].Contains(col, row) {
			return regions[i], true
		}
	}
	return Region{}, false
}

func (e *Editor) regions() []Region {
	var out []Region
	if g, ok := e.grids[BaseGrid]; ok {
		out = append(out, Region{GridID: BaseGrid, Width: g.Width, Height: g.Height})
	}

	wins := make([]*Window, 0, len(e.windows))
	for _, w := range e.windows {
		if w.Hidden || w.GridID == BaseGrid {
			continue
		}
		if _, ok := e.grids[w.GridID]; !ok {
			continue
		}
		wins = append(wins, w)
	}
	sort.Slice(wins, func(i, j int) bool {
		a, b := wins[i], wins[j]
		if a.Floating != b.Floating {
			return !a.Floating
		}
		if a.Floating && a.ZIndex != b.ZIndex {
			return a.ZIndex < b.ZIndex
		}
		return a.order < b.order
	})

	for _, w := range wins {
		g := e.grids[w.GridID]
		out = append(out, Region{
			GridID:   w.GridID,
			Left:     w.Col,
			Top:      w.Row,
			Width:    g.Width,
			Height:   g.Height,
			Floating: w.Floating,
			ZIndex:   w.ZIndex,
		})
	}
	return out
}

func intArgs(args []any, n int) ([]int, error) {
	if len(args) < n {
		return nil, fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := rpc.ToInt(args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func stringArg(args []any, i int) (string, error) {
	if len(args) <= i {
		return "", fmt.Errorf("expected argument %d", i)
	}
	return rpc.ToString(args[i])
}
