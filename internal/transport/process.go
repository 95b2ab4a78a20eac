package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// stderrTailLimit bounds how much of the editor's stderr is kept for
// diagnostics.
const stderrTailLimit = 64 * 1024

// State represents the state of a child process.
type State int

const (
	// StateCreated indicates the process has been created but not started.
	StateCreated State = iota
	// StateRunning indicates the process is running.
	StateRunning
	// StateExited indicates the process exited on its own.
	StateExited
	// StateKilled indicates the process was killed by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Stream is a duplex byte stream to the editor.
type Stream interface {
	Reader() io.Reader
	Writer() io.Writer
	Close() error
	String() string
}

// Process is an editor child process with its stdin and stdout captured.
// It is safe for concurrent use.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr *tailBuffer

	started time.Time
	done    chan struct{}

	state    atomic.Int32
	exitCode atomic.Int32

	mu      sync.RWMutex
	exitErr error
	exited  time.Time

	closeOnce sync.Once
}

// Spawn starts name with args and captures its standard streams.
//
// Both pipes are acquired before the process starts; failing to acquire
// either is reported as ErrStreamUnavailable. The process is killed when ctx
// is cancelled.
func Spawn(ctx context.Context, name string, args ...string) (*Process, error) {
	target := commandLine(name, args)
	if name == "" {
		return nil, wrap("spawn", target, ErrSpawnFailed, errors.New("empty command"))
	}

	cmd := exec.CommandContext(ctx, name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, wrap("pipe", target, ErrStreamUnavailable, fmt.Errorf("can't open stdin: %w", err))
	}
	// stdout is piped by hand: exec.Cmd.Wait closes a StdoutPipe as soon as
	// the child exits, which would race the session's final reads.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, wrap("pipe", target, ErrStreamUnavailable, fmt.Errorf("can't open stdout: %w", err))
	}
	cmd.Stdout = stdoutW

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: newTailBuffer(stderrTailLimit),
		done:   make(chan struct{}),
	}
	cmd.Stderr = p.stderr
	p.state.Store(int32(StateCreated))
	p.exitCode.Store(-1)

	err = cmd.Start()
	_ = stdoutW.Close()
	if err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, wrap("spawn", target, ErrSpawnFailed, err)
	}

	p.started = time.Now()
	p.state.Store(int32(StateRunning))
	go p.waitLoop()

	return p, nil
}

// Reader returns the child's stdout.
func (p *Process) Reader() io.Reader { return p.stdout }

// Writer returns the child's stdin.
func (p *Process) Writer() io.Writer { return p.stdin }

// String returns the command line.
func (p *Process) String() string {
	return commandLine(p.cmd.Path, p.cmd.Args[1:])
}

// State returns the current process state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// PID returns the process ID, or -1 if not started.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// ExitCode returns the exit code, or -1 if the process has not exited.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits and returns its wait error.
func (p *Process) Wait() error {
	<-p.done
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Runtime returns how long the process has been (or was) running.
func (p *Process) Runtime() time.Duration {
	if p.started.IsZero() {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.exited.IsZero() {
		return p.exited.Sub(p.started)
	}
	return time.Since(p.started)
}

// StderrTail returns the most recent stderr output of the process.
func (p *Process) StderrTail() string {
	return strings.TrimSpace(p.stderr.String())
}

// Close closes the child's stdin, which asks a well-behaved editor to exit,
// and kills it if it is still running after grace.
func (p *Process) Close() error {
	return p.CloseWithGrace(2 * time.Second)
}

// CloseWithGrace is Close with an explicit grace period.
func (p *Process) CloseWithGrace(grace time.Duration) error {
	var err error
	p.closeOnce.Do(func() {
		if cerr := p.stdin.Close(); cerr != nil && !errors.Is(cerr, io.ErrClosedPipe) && !errors.Is(cerr, os.ErrClosed) {
			err = fmt.Errorf("close stdin: %w", cerr)
		}

		select {
		case <-p.done:
			return
		case <-time.After(grace):
		}

		if p.cmd.Process != nil {
			if kerr := p.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
				err = errors.Join(err, fmt.Errorf("kill: %w", kerr))
			}
		}
		<-p.done
	})
	if cerr := p.stdout.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
		err = errors.Join(err, fmt.Errorf("close stdout: %w", cerr))
	}
	return err
}

func (p *Process) waitLoop() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.exited = time.Now()
	p.mu.Unlock()

	exitCode := 0
	state := StateExited
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				state = StateKilled
			}
		} else {
			exitCode = -1
		}
	}

	p.exitCode.Store(int32(exitCode))
	p.state.Store(int32(state))
	close(p.done)
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
