// Package renderer composites the editor's grids onto a display backend.
//
// Grids are drawn in region order: the base grid first, then windows, then
// floating windows by z-index, so later regions cover earlier ones. The
// renderer also notices when the surface size changes and reports it so the
// base grid can be resized to match.
package renderer

import (
	"fmt"
	"sync"

	"github.com/mattn/go-runewidth"

	"github.com/dshills/gridline/internal/editor"
	"github.com/dshills/gridline/internal/logging"
	"github.com/dshills/gridline/internal/renderer/backend"
)

// Options configures a Renderer.
type Options struct {
	// OnResize is called with the new surface size, in cells, whenever it
	// differs from the size seen by the previous draw.
	OnResize func(cols, rows int)

	Log *logging.Logger
}

// Renderer draws editor state onto a backend.
type Renderer struct {
	mu      sync.Mutex
	backend backend.Backend
	opts    Options
	log     *logging.Logger

	width, height int
	frames        uint64
}

// New creates a renderer drawing onto b.
func New(b backend.Backend, opts Options) *Renderer {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	return &Renderer{backend: b, opts: opts, log: log}
}

// Backend returns the display backend.
func (r *Renderer) Backend() backend.Backend { return r.backend }

// Frames returns the number of completed draws.
func (r *Renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Draw renders one frame. It reports animating when the surface size
// changed, since the editor has yet to redraw at the new size and another
// frame will be needed once it does.
func (r *Renderer) Draw(ed *editor.Editor) (animating bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			animating = false
			err = fmt.Errorf("draw panicked: %v", p)
		}
	}()

	w, h := r.backend.Size()
	resized := w != r.width || h != r.height
	if resized {
		r.log.Debug("surface resized to %dx%d", w, h)
		r.width, r.height = w, h
		if r.opts.OnResize != nil && w > 0 && h > 0 {
			r.opts.OnResize(w, h)
		}
	}

	ed.View(func(v editor.View) {
		styles := newStyleResolver(v)
		r.backend.Clear(styles.base())
		for _, region := range v.Regions() {
			if g, ok := v.Grid(region.GridID); ok {
				r.drawGrid(region, g, styles)
			}
		}
		r.placeCursor(v)
	})

	if err := r.backend.Show(); err != nil {
		return false, err
	}
	r.frames++
	return resized, nil
}

func (r *Renderer) drawGrid(region editor.Region, g *editor.Grid, styles *styleResolver) {
	for row := 0; row < g.Height; row++ {
		y := region.Top + row
		if y < 0 || y >= r.height {
			continue
		}
		cells := g.Row(row)
		for col, cell := range cells {
			// Second half of a wide glyph.
			if cell.Text == "" {
				continue
			}
			x := region.Left + col
			if x < 0 || x >= r.width {
				continue
			}
			text := cell.Text
			if runewidth.StringWidth(text) > len(cells)-col {
				text = " "
			}
			r.backend.SetContent(x, y, text, styles.get(cell.HlID))
		}
	}
}

func (r *Renderer) placeCursor(v editor.View) {
	cur := v.Cursor()
	for _, region := range v.Regions() {
		if region.GridID != cur.Grid {
			continue
		}
		x, y := region.Left+cur.Col, region.Top+cur.Row
		if cur.Col < region.Width && cur.Row < region.Height && x < r.width && y < r.height {
			r.backend.ShowCursor(x, y)
			return
		}
	}
	r.backend.HideCursor()
}
