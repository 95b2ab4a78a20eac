package bridge

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/dshills/gridline/internal/logging"
	"github.com/dshills/gridline/internal/queue"
	"github.com/dshills/gridline/internal/rpc"
)

// WindowCommand is a request from the editor side to the window. The set of
// implementations is closed.
type WindowCommand interface {
	windowCommand()
}

// TitleChanged sets the window title.
type TitleChanged struct {
	Title string
}

// SetMouseEnabled turns editor mouse handling on or off.
type SetMouseEnabled struct {
	Enabled bool
}

func (TitleChanged) windowCommand()    {}
func (SetMouseEnabled) windowCommand() {}

// CommandChannel carries UI commands from the render loop to the editor.
type CommandChannel = queue.Unbounded[UICommand]

// WindowCommandChannel carries window commands to the render loop.
type WindowCommandChannel = queue.Unbounded[WindowCommand]

// NewCommandChannel creates an empty command channel.
func NewCommandChannel() *CommandChannel {
	return queue.NewUnbounded[UICommand]()
}

// NewWindowCommandChannel creates an empty window command channel.
func NewWindowCommandChannel() *WindowCommandChannel {
	return queue.NewUnbounded[WindowCommand]()
}

// CommandPump executes queued UI commands against the editor one at a time,
// in the order they were sent.
type CommandPump struct {
	commands *CommandChannel
	api      Caller
	log      *logging.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewCommandPump creates a pump draining commands into api.
func NewCommandPump(commands *CommandChannel, api Caller, log *logging.Logger) *CommandPump {
	if log == nil {
		log = logging.Discard()
	}
	return &CommandPump{commands: commands, api: api, log: log}
}

// Run executes commands until the channel is closed, the session closes, or
// ctx is done. A closed channel or session is a normal exit.
func (p *CommandPump) Run(ctx context.Context) error {
	for {
		cmd, err := p.commands.Recv(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}

		if err := cmd.Execute(ctx, p.api); err != nil {
			if errors.Is(err, rpc.ErrClosed) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.failed.Add(1)
			p.log.Warn("command %s failed: %v", cmd, err)
			continue
		}
		p.sent.Add(1)
	}
}

// Sent returns the number of commands executed successfully.
func (p *CommandPump) Sent() uint64 { return p.sent.Load() }

// Failed returns the number of commands the editor rejected.
func (p *CommandPump) Failed() uint64 { return p.failed.Load() }
