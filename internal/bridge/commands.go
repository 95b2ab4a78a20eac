package bridge

import (
	"context"
	"fmt"
	"strings"
)

// Caller is the part of an RPC session used to drive the editor.
type Caller interface {
	Call(ctx context.Context, method string, args ...any) (any, error)
}

// Position is a cell position in a grid's local coordinates.
type Position struct {
	Col int
	Row int
}

// UICommand is a user-intent command sent from the render loop to the
// editor. The set of implementations is closed.
type UICommand interface {
	// Execute performs the command against the editor API.
	Execute(ctx context.Context, api Caller) error
	fmt.Stringer
	uiCommand()
}

// Keyboard sends keys in the editor's key notation.
type Keyboard struct {
	Text string
}

// MouseButton reports a button press or release.
type MouseButton struct {
	Button   string // "left", "right", "middle"
	Action   string // "press", "release"
	Modifier string
	GridID   int
	Position Position
}

// Drag reports pointer motion with a button held.
type Drag struct {
	Button   string // defaults to "left"
	Modifier string
	GridID   int
	Position Position
}

// Scroll reports one wheel step in a direction: "up", "down", "left", "right".
type Scroll struct {
	Direction string
	Modifier  string
	GridID    int
	Position  Position
}

// FocusGained reports that the window gained focus.
type FocusGained struct{}

// FocusLost reports that the window lost focus.
type FocusLost struct{}

// FileDrop opens a file dropped onto the window.
type FileDrop struct {
	Path string
}

// Resize requests a new size for a grid.
type Resize struct {
	GridID int
	Width  int
	Height int
}

// Execute implements UICommand.
func (c Keyboard) Execute(ctx context.Context, api Caller) error {
	_, err := api.Call(ctx, "nvim_input", c.Text)
	return err
}

// Execute implements UICommand.
func (c MouseButton) Execute(ctx context.Context, api Caller) error {
	button := c.Button
	if button == "" {
		button = "left"
	}
	return inputMouse(ctx, api, button, c.Action, c.Modifier, c.GridID, c.Position)
}

// Execute implements UICommand.
func (c Drag) Execute(ctx context.Context, api Caller) error {
	button := c.Button
	if button == "" {
		button = "left"
	}
	return inputMouse(ctx, api, button, "drag", c.Modifier, c.GridID, c.Position)
}

// Execute implements UICommand.
func (c Scroll) Execute(ctx context.Context, api Caller) error {
	return inputMouse(ctx, api, "wheel", c.Direction, c.Modifier, c.GridID, c.Position)
}

// Execute implements UICommand.
func (FocusGained) Execute(ctx context.Context, api Caller) error {
	_, err := api.Call(ctx, "nvim_command", autocmd("FocusGained"))
	return err
}

// Execute implements UICommand.
func (FocusLost) Execute(ctx context.Context, api Caller) error {
	_, err := api.Call(ctx, "nvim_command", autocmd("FocusLost"))
	return err
}

// Execute implements UICommand.
func (c FileDrop) Execute(ctx context.Context, api Caller) error {
	_, err := api.Call(ctx, "nvim_command", "edit "+escapePath(c.Path))
	return err
}

// Execute implements UICommand.
func (c Resize) Execute(ctx context.Context, api Caller) error {
	_, err := api.Call(ctx, "nvim_ui_try_resize_grid", c.GridID, c.Width, c.Height)
	return err
}

func (c MouseButton) String() string {
	return fmt.Sprintf("MouseButton(%s %s grid=%d %d,%d)", c.Button, c.Action, c.GridID, c.Position.Col, c.Position.Row)
}

func (c Drag) String() string {
	return fmt.Sprintf("Drag(%s grid=%d %d,%d)", c.Button, c.GridID, c.Position.Col, c.Position.Row)
}

func (c Scroll) String() string {
	return fmt.Sprintf("Scroll(%s grid=%d %d,%d)", c.Direction, c.GridID, c.Position.Col, c.Position.Row)
}

func (c Resize) String() string {
	return fmt.Sprintf("Resize(grid=%d %dx%d)", c.GridID, c.Width, c.Height)
}

func (c Keyboard) String() string  { return fmt.Sprintf("Keyboard(%q)", c.Text) }
func (FocusGained) String() string { return "FocusGained" }
func (FocusLost) String() string   { return "FocusLost" }
func (c FileDrop) String() string  { return fmt.Sprintf("FileDrop(%q)", c.Path) }

func (Keyboard) uiCommand()    {}
func (MouseButton) uiCommand() {}
func (Drag) uiCommand()        {}
func (Scroll) uiCommand()      {}
func (FocusGained) uiCommand() {}
func (FocusLost) uiCommand()   {}
func (FileDrop) uiCommand()    {}
func (Resize) uiCommand()      {}

func inputMouse(ctx context.Context, api Caller, button, action, modifier string, grid int, pos Position) error {
	_, err := api.Call(ctx, "nvim_input_mouse", button, action, modifier, grid, pos.Row, pos.Col)
	return err
}

func autocmd(event string) string {
	return fmt.Sprintf("if exists('#%s') | doautocmd <nomodeline> %s | endif", event, event)
}

// escapePath escapes characters that are special on an Ex command line.
func escapePath(path string) string {
	var b strings.Builder
	for _, r := range path {
		switch r {
		case ' ', '\\', '%', '#', '|', '"':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
