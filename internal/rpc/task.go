package rpc

import "sync"

// Task is the handle of a session's background read loop. Its result is nil
// when the stream ended cleanly and a *ProtocolError otherwise.
type Task struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

// Done is closed when the read loop finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Finished reports whether the read loop has finished.
func (t *Task) Finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Err returns the read loop result, or nil while it is still running.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the read loop finishes and returns its result.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

func (t *Task) finish(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}
