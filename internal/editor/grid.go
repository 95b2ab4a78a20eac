package editor

// Cell is one screen cell. A wide glyph occupies its cell and the following
// cell holds an empty Text.
type Cell struct {
	Text string
	HlID int
}

var blank = Cell{Text: " "}

// Grid is a rectangular cell buffer owned by the editor.
type Grid struct {
	ID     int
	Width  int
	Height int
	rows   [][]Cell
}

func newGrid(id, width, height int) *Grid {
	g := &Grid{ID: id}
	g.resize(width, height)
	return g
}

// Cell returns the cell at row, col, or a blank cell when out of range.
func (g *Grid) Cell(row, col int) Cell {
	if row < 0 || row >= g.Height || col < 0 || col >= g.Width {
		return blank
	}
	return g.rows[row][col]
}

// Row returns a copy of row.
func (g *Grid) Row(row int) []Cell {
	if row < 0 || row >= g.Height {
		return nil
	}
	return append([]Cell(nil), g.rows[row]...)
}

// resize keeps the overlapping content and blanks the rest.
func (g *Grid) resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}

	rows := make([][]Cell, height)
	for r := range rows {
		row := make([]Cell, width)
		for c := range row {
			if r < g.Height && c < g.Width {
				row[c] = g.rows[r][c]
			} else {
				row[c] = blank
			}
		}
		rows[r] = row
	}
	g.rows = rows
	g.Width = width
	g.Height = height
}

func (g *Grid) clear() {
	for _, row := range g.rows {
		for c := range row {
			row[c] = blank
		}
	}
}

func (g *Grid) set(row, col int, cell Cell) {
	if row < 0 || row >= g.Height || col < 0 || col >= g.Width {
		return
	}
	g.rows[row][col] = cell
}

// scroll moves the region [top, bot) x [left, right) up by rows (down when
// negative). Vacated rows keep their old content; the editor redraws them.
func (g *Grid) scroll(top, bot, left, right, rows int) {
	if top < 0 {
		top = 0
	}
	if bot > g.Height {
		bot = g.Height
	}
	if left < 0 {
		left = 0
	}
	if right > g.Width {
		right = g.Width
	}
	if rows == 0 || top >= bot || left >= right {
		return
	}

	if rows > 0 {
		for r := top; r < bot-rows; r++ {
			copy(g.rows[r][left:right], g.rows[r+rows][left:right])
		}
		return
	}
	for r := bot - 1; r >= top-rows; r-- {
		copy(g.rows[r][left:right], g.rows[r+rows][left:right])
	}
}
