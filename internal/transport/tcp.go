package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// DefaultDialTimeout bounds connection establishment when ctx has no deadline.
const DefaultDialTimeout = 10 * time.Second

// TCPConn is a connection to an editor listening on a TCP address.
type TCPConn struct {
	conn    net.Conn
	address string

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to an editor listening on address ("host:port").
func Dial(ctx context.Context, address string) (*TCPConn, error) {
	if address == "" {
		return nil, wrap("dial", address, ErrConnectionRefused, errors.New("empty address"))
	}

	d := net.Dialer{Timeout: DefaultDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, wrap("dial", address, ErrConnectionRefused, err)
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	return &TCPConn{conn: conn, address: address}, nil
}

// Reader returns the read half of the connection.
func (c *TCPConn) Reader() io.Reader { return c.conn }

// Writer returns the write half of the connection.
func (c *TCPConn) Writer() io.Writer { return c.conn }

// String returns the remote address.
func (c *TCPConn) String() string { return c.address }

// RemoteAddr returns the remote network address.
func (c *TCPConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Close closes the connection. It is safe to call more than once.
func (c *TCPConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
