package rpc

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// peer is the far end of a session under test.
type peer struct {
	t   *testing.T
	w   *io.PipeWriter
	dec *msgpack.Decoder
}

func (p *peer) send(msg ...any) {
	p.t.Helper()
	b, err := msgpack.Marshal(msg)
	require.NoError(p.t, err)
	_, err = p.w.Write(b)
	require.NoError(p.t, err)
}

func (p *peer) sendRaw(b []byte) {
	p.t.Helper()
	_, err := p.w.Write(b)
	require.NoError(p.t, err)
}

func (p *peer) recv() []any {
	p.t.Helper()
	v, err := p.dec.DecodeInterfaceLoose()
	require.NoError(p.t, err)
	msg, ok := v.([]any)
	require.True(p.t, ok, "message is %T", v)
	return msg
}

type recorder struct {
	mu     sync.Mutex
	calls  []string
	args   [][]any
	result func(method string, args []any) (any, error)
}

func (r *recorder) HandleNotification(method string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, method)
	r.args = append(r.args, args)
}

func (r *recorder) HandleRequest(method string, args []any) (any, error) {
	if r.result == nil {
		return nil, ErrNoHandler
	}
	return r.result(method, args)
}

func (r *recorder) snapshot() ([]string, [][]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...), append([][]any(nil), r.args...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newPair(t *testing.T, h Handler) (*Session, *peer) {
	t.Helper()
	sessR, peerW := io.Pipe()
	peerR, sessW := io.Pipe()

	s := NewSession(sessR, sessW, h, WithCloser(closerFunc(func() error {
		_ = sessR.Close()
		return sessW.Close()
	})))
	dec := msgpack.NewDecoder(peerR)
	dec.UseLooseInterfaceDecoding(true)

	t.Cleanup(func() {
		_ = s.Close()
		_ = peerW.Close()
		_ = peerR.Close()
	})
	return s, &peer{t: t, w: peerW, dec: dec}
}

func waitTask(t *testing.T, task *Task) error {
	t.Helper()
	select {
	case <-task.Done():
		return task.Err()
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not finish")
		return nil
	}
}

func TestSession_NotificationsInOrder(t *testing.T) {
	rec := &recorder{}
	s, p := newPair(t, rec)
	task := s.Start(context.Background())

	const n = 200
	go func() {
		for i := 0; i < n; i++ {
			p.send(typeNotification, "redraw", []any{i})
		}
		_ = p.w.Close()
	}()

	require.NoError(t, waitTask(t, task))

	calls, args := rec.snapshot()
	require.Len(t, calls, n)
	for i := range args {
		got, err := ToInt(args[i][0])
		require.NoError(t, err)
		require.Equal(t, i, got)
	}
}

func TestSession_CleanEOF(t *testing.T) {
	s, p := newPair(t, &recorder{})
	task := s.Start(context.Background())
	require.Same(t, task, s.Start(context.Background()), "a second Start returns the running task")

	require.NoError(t, p.w.Close())
	require.NoError(t, waitTask(t, task))
	require.True(t, task.Finished())

	_, err := s.Call(context.Background(), "nvim_eval", "1")
	require.ErrorIs(t, err, ErrClosed)
}

func TestSession_TruncatedMessage(t *testing.T) {
	s, p := newPair(t, &recorder{})
	task := s.Start(context.Background())

	b, err := msgpack.Marshal([]any{typeNotification, "redraw", []any{"grid_resize"}})
	require.NoError(t, err)

	go func() {
		p.sendRaw(b[:len(b)-3])
		_ = p.w.Close()
	}()

	err = waitTask(t, task)
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSession_MalformedMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  any
	}{
		{"not an array", "hello"},
		{"unknown type", []any{7, "x", []any{}}},
		{"short array", []any{2, "x"}},
		{"params not array", []any{2, "redraw", 5}},
		{"method not string", []any{2, 5, []any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p := newPair(t, &recorder{})
			task := s.Start(context.Background())

			b, err := msgpack.Marshal(tt.msg)
			require.NoError(t, err)
			go p.sendRaw(b)

			err = waitTask(t, task)
			require.True(t, IsProtocolError(err), "got %v", err)
		})
	}
}

func TestSession_CallRoundTrip(t *testing.T) {
	s, p := newPair(t, &recorder{})
	s.Start(context.Background())

	go func() {
		req := p.recv()
		if len(req) != 4 {
			return
		}
		p.send(typeResponse, req[1], nil, []any{int64(3), "api"})
	}()

	res, err := s.Call(context.Background(), "nvim_get_api_info")
	require.NoError(t, err)

	arr, err := ToSlice(res)
	require.NoError(t, err)
	ch, err := ToInt(arr[0])
	require.NoError(t, err)
	require.Equal(t, 3, ch)
}

func TestSession_CallWireFormat(t *testing.T) {
	s, p := newPair(t, &recorder{})
	s.Start(context.Background())

	reqCh := make(chan []any, 1)
	go func() {
		req := p.recv()
		reqCh <- req
		p.send(typeResponse, req[1], nil, nil)
	}()

	_, err := s.Call(context.Background(), "nvim_input", "<Esc>")
	require.NoError(t, err)

	req := <-reqCh
	require.Len(t, req, 4)
	kind, _ := ToInt(req[0])
	require.Equal(t, typeRequest, kind)
	require.Equal(t, "nvim_input", req[2])
	require.Equal(t, []any{"<Esc>"}, req[3])
}

func TestSession_CallError(t *testing.T) {
	s, p := newPair(t, &recorder{})
	s.Start(context.Background())

	go func() {
		req := p.recv()
		p.send(typeResponse, req[1], []any{int64(1), "E492: Not an editor command"}, nil)
	}()

	_, err := s.Call(context.Background(), "nvim_command", "bogus")
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "nvim_command: E492: Not an editor command", ce.Error())
}

func TestSession_CloseFailsPendingCall(t *testing.T) {
	s, p := newPair(t, &recorder{})
	task := s.Start(context.Background())

	go func() {
		_ = p.recv()
		time.Sleep(20 * time.Millisecond)
		_ = s.Close()
	}()

	_, err := s.Call(context.Background(), "nvim_eval", "1")
	require.ErrorIs(t, err, ErrClosed)
	require.NoError(t, waitTask(t, task))
}

func TestSession_ContextCancelClosesSession(t *testing.T) {
	s, _ := newPair(t, &recorder{})
	ctx, cancel := context.WithCancel(context.Background())
	task := s.Start(ctx)

	cancel()
	require.NoError(t, waitTask(t, task))
	require.ErrorIs(t, s.Notify("nvim_command", "qa"), ErrClosed)
}

func TestSession_ServesPeerRequests(t *testing.T) {
	rec := &recorder{result: func(method string, args []any) (any, error) {
		if method == "fail" {
			return nil, errors.New("nope")
		}
		return "pong", nil
	}}
	s, p := newPair(t, rec)
	s.Start(context.Background())

	p.send(typeRequest, 7, "ping", []any{})
	resp := p.recv()
	require.Len(t, resp, 4)
	id, _ := ToInt(resp[1])
	require.Equal(t, 7, id)
	require.Nil(t, resp[2])
	require.Equal(t, "pong", resp[3])

	p.send(typeRequest, 8, "fail", []any{})
	resp = p.recv()
	require.Equal(t, "nope", resp[2])
	require.Nil(t, resp[3])
}

func TestSession_ExtHandles(t *testing.T) {
	rec := &recorder{}
	s, p := newPair(t, rec)
	task := s.Start(context.Background())

	go func() {
		p.send(typeNotification, "win_pos", []any{Window(1000), Buffer(3), Tabpage(1)})
		_ = p.w.Close()
	}()
	require.NoError(t, waitTask(t, task))

	_, args := rec.snapshot()
	require.Len(t, args, 1)
	require.Equal(t, []any{Window(1000), Buffer(3), Tabpage(1)}, args[0])
}
