// Package bridge connects gridline to the editor process.
//
// A Connection owns the RPC session and its background read task. Inbound
// notifications are decoded once into a closed set of types and routed
// without blocking the read loop. Outbound user intent travels as UICommands
// through an unbounded ordered channel drained by a CommandPump.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/gridline/internal/logging"
	"github.com/dshills/gridline/internal/rpc"
	"github.com/dshills/gridline/internal/transport"
)

// Connection is a live link to the editor.
type Connection struct {
	// ID identifies the connection in logs.
	ID uuid.UUID

	// Session is the RPC session. It is safe for concurrent use.
	Session *rpc.Session

	// Task is the handle of the background read loop. It finishes with nil
	// when the editor closes the stream and with a *rpc.ProtocolError on
	// malformed input.
	Task *rpc.Task

	stream transport.Stream
	log    *logging.Logger
}

// ConnectTCP connects to an editor listening on address and starts the
// read loop. It returns as soon as the loop is running.
func ConnectTCP(ctx context.Context, address string, handler rpc.Handler, log *logging.Logger) (*Connection, error) {
	conn, err := transport.Dial(ctx, address)
	if err != nil {
		return nil, err
	}
	return start(ctx, conn, handler, log), nil
}

// ConnectChild spawns the editor with its stdio piped and starts the read
// loop. It returns as soon as the loop is running.
func ConnectChild(ctx context.Context, name string, args []string, handler rpc.Handler, log *logging.Logger) (*Connection, error) {
	proc, err := transport.Spawn(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	return start(ctx, proc, handler, log), nil
}

func start(ctx context.Context, stream transport.Stream, handler rpc.Handler, log *logging.Logger) *Connection {
	if log == nil {
		log = logging.Discard()
	}
	id := uuid.New()
	log = log.WithComponent("bridge").WithField("conn", id.String()[:8])

	session := rpc.NewSession(stream.Reader(), stream.Writer(), handler,
		rpc.WithLogger(log.WithComponent("rpc")),
		rpc.WithCloser(stream),
	)

	c := &Connection{
		ID:      id,
		Session: session,
		stream:  stream,
		log:     log,
	}
	c.Task = session.Start(ctx)
	log.Info("connected to %s", stream)
	return c
}

// Stream returns the underlying transport stream.
func (c *Connection) Stream() transport.Stream {
	return c.stream
}

// Close closes the session and its stream and waits up to timeout for the
// read loop to finish.
func (c *Connection) Close(timeout time.Duration) error {
	err := c.Session.Close()

	select {
	case <-c.Task.Done():
	case <-time.After(timeout):
		return fmt.Errorf("close connection %s: read loop did not finish within %s", c.ID, timeout)
	}

	if proc, ok := c.stream.(*transport.Process); ok {
		c.log.Info("editor %s ran for %s", proc, proc.Runtime().Round(time.Millisecond))
		if tail := proc.StderrTail(); tail != "" {
			c.log.Debug("editor stderr: %s", tail)
		}
	}
	return err
}
