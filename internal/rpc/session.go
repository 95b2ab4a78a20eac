// Package rpc implements a msgpack-RPC session over a duplex byte stream.
//
// Messages are msgpack arrays:
//
//	request:      [0, msgid, method, params]
//	response:     [1, msgid, error, result]
//	notification: [2, method, params]
//
// Notifications are handed to the Handler on the read loop goroutine in the
// order they arrive; the handler is expected to return quickly. Requests
// from the peer are served on their own goroutine.
package rpc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dshills/gridline/internal/logging"
)

// Message type tags.
const (
	typeRequest      = 0
	typeResponse     = 1
	typeNotification = 2
)

// Handler receives messages initiated by the peer.
type Handler interface {
	// HandleNotification is called on the read loop for every notification.
	HandleNotification(method string, args []any)

	// HandleRequest serves a request and returns its result.
	HandleRequest(method string, args []any) (any, error)
}

// NotificationFunc adapts a function to a Handler that rejects requests.
type NotificationFunc func(method string, args []any)

// HandleNotification calls f.
func (f NotificationFunc) HandleNotification(method string, args []any) { f(method, args) }

// HandleRequest rejects every request.
func (f NotificationFunc) HandleRequest(method string, _ []any) (any, error) {
	return nil, fmt.Errorf("%w: %s", ErrNoHandler, method)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithCloser sets the closer invoked when the session closes, normally the
// underlying stream.
func WithCloser(c io.Closer) Option {
	return func(s *Session) { s.closer = c }
}

type response struct {
	result any
	err    error
}

// Session is a msgpack-RPC endpoint. It is safe for concurrent use.
type Session struct {
	br      *bufio.Reader
	dec     *msgpack.Decoder
	w       io.Writer
	closer  io.Closer
	handler Handler
	log     *logging.Logger

	wmu  sync.Mutex
	wbuf bytes.Buffer
	enc  *msgpack.Encoder

	mu      sync.Mutex
	nextID  uint32
	pending map[uint32]chan response
	task    *Task

	closing atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// NewSession creates a session reading from r and writing to w. Call Start
// to begin processing inbound messages.
func NewSession(r io.Reader, w io.Writer, handler Handler, opts ...Option) *Session {
	s := &Session{
		br:      bufio.NewReaderSize(r, 64*1024),
		w:       w,
		handler: handler,
		log:     logging.Discard(),
		pending: make(map[uint32]chan response),
		done:    make(chan struct{}),
	}
	s.dec = msgpack.NewDecoder(s.br)
	s.dec.UseLooseInterfaceDecoding(true)
	s.enc = msgpack.NewEncoder(&s.wbuf)
	s.enc.UseCompactInts(true)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the read loop and returns its task handle. Calling Start
// again returns the same task.
//
// Cancelling ctx closes the session.
func (s *Session) Start(ctx context.Context) *Task {
	s.mu.Lock()
	if s.task != nil {
		t := s.task
		s.mu.Unlock()
		return t
	}
	t := newTask()
	s.task = t
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-t.done:
		}
	}()

	go func() {
		err := s.readLoop()
		s.shutdown()
		if err != nil {
			s.log.Warn("read loop stopped: %v", err)
		} else {
			s.log.Debug("read loop finished")
		}
		t.finish(err)
	}()

	return t
}

// Task returns the read loop task, or nil if Start has not been called.
func (s *Session) Task() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

// Done is closed once the session stops accepting calls.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Call sends a request and waits for its response. There is no per-call
// timeout; ctx bounds the wait.
func (s *Session) Call(ctx context.Context, method string, args ...any) (any, error) {
	ch := make(chan response, 1)

	s.mu.Lock()
	if s.isClosed() {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.nextID++
	id := s.nextID
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.write([]any{typeRequest, id, method, params(args)}); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-ch:
		return resp.unpack(method)
	case <-s.done:
		// A response may have raced the shutdown.
		select {
		case resp := <-ch:
			return resp.unpack(method)
		default:
			return nil, ErrClosed
		}
	}
}

func (r response) unpack(method string) (any, error) {
	if ce, ok := r.err.(*CallError); ok {
		ce.Method = method
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

// Notify sends a notification.
func (s *Session) Notify(method string, args ...any) error {
	if s.isClosed() {
		return ErrClosed
	}
	if err := s.write([]any{typeNotification, method, params(args)}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	return nil
}

// Close shuts the session down and closes the underlying stream. The read
// loop finishes with a nil result.
func (s *Session) Close() error {
	if s.closing.Swap(true) {
		return nil
	}

	s.mu.Lock()
	started := s.task != nil
	s.mu.Unlock()
	if !started {
		s.shutdown()
	}

	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *Session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return s.closing.Load()
	}
}

// shutdown fails pending calls and marks the session done.
func (s *Session) shutdown() {
	s.once.Do(func() {
		s.mu.Lock()
		pending := s.pending
		s.pending = make(map[uint32]chan response)
		s.mu.Unlock()

		for _, ch := range pending {
			select {
			case ch <- response{err: ErrClosed}:
			default:
			}
		}
		close(s.done)
	})
}

func (s *Session) write(msg []any) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.wbuf.Reset()
	if err := s.enc.Encode(msg); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if _, err := s.w.Write(s.wbuf.Bytes()); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// readLoop reads messages until the stream ends. A clean end of stream at a
// message boundary, or a locally initiated close, yields nil.
func (s *Session) readLoop() error {
	for {
		if _, err := s.br.Peek(1); err != nil {
			if errors.Is(err, io.EOF) || s.closing.Load() {
				return nil
			}
			return &ProtocolError{Op: "read", Err: err}
		}

		if err := s.readMessage(); err != nil {
			if s.closing.Load() {
				return nil
			}
			return err
		}
	}
}

func (s *Session) readMessage() error {
	n, err := s.dec.DecodeArrayLen()
	if err != nil {
		return protocolError("message header", err)
	}
	if n < 3 || n > 4 {
		return &ProtocolError{Op: "message header", Err: fmt.Errorf("unexpected array length %d", n)}
	}

	kind, err := s.dec.DecodeInt()
	if err != nil {
		return protocolError("message type", err)
	}

	switch {
	case kind == typeRequest && n == 4:
		id, err := s.dec.DecodeUint32()
		if err != nil {
			return protocolError("request id", err)
		}
		method, args, err := s.readCall()
		if err != nil {
			return err
		}
		go s.serve(id, method, args)

	case kind == typeResponse && n == 4:
		id, err := s.dec.DecodeUint32()
		if err != nil {
			return protocolError("response id", err)
		}
		errVal, err := s.dec.DecodeInterfaceLoose()
		if err != nil {
			return protocolError("response error", err)
		}
		result, err := s.dec.DecodeInterfaceLoose()
		if err != nil {
			return protocolError("response result", err)
		}
		s.deliver(id, errVal, result)

	case kind == typeNotification && n == 3:
		method, args, err := s.readCall()
		if err != nil {
			return err
		}
		if s.handler != nil {
			s.handler.HandleNotification(method, args)
		}

	default:
		return &ProtocolError{Op: "message type", Err: fmt.Errorf("type %d with %d elements", kind, n)}
	}
	return nil
}

func (s *Session) readCall() (string, []any, error) {
	method, err := s.dec.DecodeString()
	if err != nil {
		return "", nil, protocolError("method", err)
	}
	raw, err := s.dec.DecodeInterfaceLoose()
	if err != nil {
		return "", nil, protocolError("params", err)
	}
	args, err := ToSlice(raw)
	if err != nil {
		return "", nil, &ProtocolError{Op: "params", Err: err}
	}
	return method, args, nil
}

func (s *Session) deliver(id uint32, errVal, result any) {
	s.mu.Lock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if !ok {
		s.log.Debug("response for unknown request %d", id)
		return
	}

	resp := response{result: result}
	if errVal != nil {
		resp.err = &CallError{Value: errVal}
	}
	ch <- resp
}

func (s *Session) serve(id uint32, method string, args []any) {
	result, err := s.handleRequest(method, args)

	var errVal any
	if err != nil {
		errVal = err.Error()
		result = nil
	}
	if werr := s.write([]any{typeResponse, id, errVal, result}); werr != nil && !s.isClosed() {
		s.log.Warn("reply to %s: %v", method, werr)
	}
}

func (s *Session) handleRequest(method string, args []any) (result any, err error) {
	if s.handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, method)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("request %s panicked: %v", method, r)
		}
	}()
	return s.handler.HandleRequest(method, args)
}

func params(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}

func protocolError(op string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &ProtocolError{Op: op, Err: err}
}
