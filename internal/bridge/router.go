package bridge

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/dshills/gridline/internal/logging"
	"github.com/dshills/gridline/internal/queue"
)

// Handlers are the side effects the router invokes. Nil handlers are
// treated as no-ops.
type Handlers struct {
	// Redraw folds a redraw batch into the editor state. Calls are made one
	// at a time, in arrival order.
	Redraw func(RedrawNotification) error

	// SettingChanged applies frontend setting updates.
	SettingChanged func(SettingChangedNotification) error

	// RegisterRightClick and UnregisterRightClick manage shell integration.
	RegisterRightClick   func() error
	UnregisterRightClick func() error
}

// Router dispatches inbound notifications without blocking the RPC read
// loop. Redraw batches go to a single ordered lane; everything else goes to
// a bounded pool of workers fed by an unbounded queue.
type Router struct {
	handlers    Handlers
	workerCount int
	log         *logging.Logger
	onError     func(*HandlerError)

	redraw *queue.Unbounded[RedrawNotification]
	jobs   *queue.Unbounded[Notification]

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	routed   atomic.Uint64
	handled  atomic.Uint64
	failed   atomic.Uint64
	panicked atomic.Uint64
	ignored  atomic.Uint64
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithWorkerCount sets the number of workers for non-redraw notifications.
func WithWorkerCount(count int) RouterOption {
	return func(r *Router) {
		if count > 0 {
			r.workerCount = count
		}
	}
}

// WithRouterLogger sets the router logger.
func WithRouterLogger(l *logging.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithErrorHandler sets a callback for handler failures.
func WithErrorHandler(fn func(*HandlerError)) RouterOption {
	return func(r *Router) {
		r.onError = fn
	}
}

// NewRouter creates a router. Notifications received before Start are
// queued.
func NewRouter(h Handlers, opts ...RouterOption) *Router {
	r := &Router{
		handlers:    h,
		workerCount: 4,
		log:         logging.Discard(),
		redraw:      queue.NewUnbounded[RedrawNotification](),
		jobs:        queue.NewUnbounded[Notification](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the redraw lane and the worker pool.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running.Store(true)

	r.wg.Add(1)
	go r.redrawLane(ctx)

	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}

	return nil
}

// Stop stops accepting notifications, lets queued work finish, and waits
// for the lane and workers or until ctx is done.
func (r *Router) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running.Load() {
		r.mu.Unlock()
		return ErrNotRunning
	}
	r.running.Store(false)
	r.redraw.Close()
	r.jobs.Close()
	cancel := r.cancel
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// IsRunning reports whether the router is running.
func (r *Router) IsRunning() bool {
	return r.running.Load()
}

// HandleNotification implements rpc.Handler. It only decodes and enqueues.
func (r *Router) HandleNotification(method string, args []any) {
	n, err := DecodeNotification(method, args)
	if err != nil {
		r.failed.Add(1)
		r.report(&HandlerError{Notification: method, Err: err})
		return
	}

	switch n := n.(type) {
	case UnrecognizedNotification:
		r.ignored.Add(1)
		r.log.Debug("ignoring notification %q", n.Name)
		return
	case RedrawNotification:
		if r.redraw.Send(n) {
			r.routed.Add(1)
		}
	default:
		if r.jobs.Send(n) {
			r.routed.Add(1)
		}
	}
}

// HandleRequest implements rpc.Handler. The editor does not issue requests
// to the frontend.
func (r *Router) HandleRequest(method string, _ []any) (any, error) {
	r.ignored.Add(1)
	return nil, fmt.Errorf("unknown request %q", method)
}

func (r *Router) redrawLane(ctx context.Context) {
	defer r.wg.Done()
	for {
		n, err := r.redraw.Recv(ctx)
		if err != nil {
			return
		}
		r.execute(n)
	}
}

func (r *Router) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		n, err := r.jobs.Recv(ctx)
		if err != nil {
			return
		}
		r.execute(n)
	}
}

// execute runs the handler for n, isolating failures and panics.
func (r *Router) execute(n Notification) {
	var herr *HandlerError

	func() {
		defer func() {
			if v := recover(); v != nil {
				herr = &HandlerError{
					Notification: n.Method(),
					Err:          fmt.Errorf("panic: %v", v),
					Panicked:     true,
					PanicValue:   v,
					Stack:        debug.Stack(),
				}
			}
		}()
		if err := r.dispatch(n); err != nil {
			herr = &HandlerError{Notification: n.Method(), Err: err}
		}
	}()

	switch {
	case herr == nil:
		r.handled.Add(1)
	case herr.Panicked:
		r.panicked.Add(1)
		r.report(herr)
	default:
		r.failed.Add(1)
		r.report(herr)
	}
}

func (r *Router) dispatch(n Notification) error {
	switch n := n.(type) {
	case RedrawNotification:
		if r.handlers.Redraw != nil {
			return r.handlers.Redraw(n)
		}
	case SettingChangedNotification:
		if r.handlers.SettingChanged != nil {
			return r.handlers.SettingChanged(n)
		}
	case RegisterRightClickNotification:
		if r.handlers.RegisterRightClick != nil {
			return ignoreUnsupported(r.handlers.RegisterRightClick())
		}
	case UnregisterRightClickNotification:
		if r.handlers.UnregisterRightClick != nil {
			return ignoreUnsupported(r.handlers.UnregisterRightClick())
		}
	}
	return nil
}

func (r *Router) report(herr *HandlerError) {
	if herr.Panicked {
		r.log.Error("%v\n%s", herr, herr.Stack)
	} else {
		r.log.Warn("%v", herr)
	}
	if r.onError != nil {
		r.onError(herr)
	}
}

func ignoreUnsupported(err error) error {
	if errors.Is(err, ErrUnsupported) {
		return nil
	}
	return err
}

// RouterStats contains router counters.
type RouterStats struct {
	// Routed is the number of notifications handed to the lane or pool.
	Routed uint64
	// Handled is the number of handler runs that succeeded.
	Handled uint64
	// Failed counts decode failures and handlers that returned errors.
	Failed uint64
	// Panicked is the number of handlers that panicked.
	Panicked uint64
	// Ignored counts unrecognized notifications and requests.
	Ignored uint64
	// Pending is the number of notifications waiting to run.
	Pending int
}

// Stats returns a snapshot of the router counters.
func (r *Router) Stats() RouterStats {
	return RouterStats{
		Routed:   r.routed.Load(),
		Handled:  r.handled.Load(),
		Failed:   r.failed.Load(),
		Panicked: r.panicked.Load(),
		Ignored:  r.ignored.Load(),
		Pending:  r.redraw.Len() + r.jobs.Len(),
	}
}
