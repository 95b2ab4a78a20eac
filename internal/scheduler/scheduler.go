// Package scheduler decides when the render loop should spend a draw.
//
// Producers on any goroutine call QueueNextFrame when something visible
// changed. The render loop calls ShouldDraw once per tick and reports back
// through ReportDraw whether the frame wants to keep animating.
package scheduler

import (
	"sync/atomic"
	"time"
)

// DefaultRefreshRate is used when no positive refresh rate is configured.
const DefaultRefreshRate = 60

// State is the observable scheduler state.
type State uint8

const (
	// Idle means no frame is due.
	Idle State = iota

	// FrameQueued means a frame was requested and not yet drawn.
	FrameQueued

	// Animating means the last draw asked for continuous frames.
	Animating
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FrameQueued:
		return "frame-queued"
	case Animating:
		return "animating"
	default:
		return "unknown"
	}
}

// Scheduler is the redraw state machine. All methods are safe for
// concurrent use.
//
// The queued flag and the animation flag are kept apart so a frame queued
// while an animated draw is in flight survives that draw reporting the end
// of its animation.
type Scheduler struct {
	queued    atomic.Bool
	animating atomic.Bool
	noIdle    atomic.Bool

	wake chan struct{}

	requests atomic.Uint64
	draws    atomic.Uint64
}

// New creates an idle scheduler.
func New() *Scheduler {
	return &Scheduler{wake: make(chan struct{}, 1)}
}

// QueueNextFrame requests a frame. Repeated calls before the next
// ShouldDraw collapse into one frame.
func (s *Scheduler) QueueNextFrame() {
	s.requests.Add(1)
	s.queued.Store(true)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// ShouldDraw reports whether the current tick should draw, consuming a
// queued frame.
func (s *Scheduler) ShouldDraw() bool {
	queued := s.queued.Swap(false)
	draw := queued || s.animating.Load() || s.noIdle.Load()
	if draw {
		s.draws.Add(1)
	}
	return draw
}

// ReportDraw feeds the result of a draw back into the state machine.
func (s *Scheduler) ReportDraw(animating bool) {
	s.animating.Store(animating)
}

// State returns the current state. Animating takes precedence over a
// queued frame.
func (s *Scheduler) State() State {
	switch {
	case s.animating.Load():
		return Animating
	case s.queued.Load():
		return FrameQueued
	default:
		return Idle
	}
}

// SetNoIdle forces ShouldDraw to return true on every tick.
func (s *Scheduler) SetNoIdle(on bool) {
	s.noIdle.Store(on)
	if on {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// NoIdle reports whether no-idle mode is on.
func (s *Scheduler) NoIdle() bool { return s.noIdle.Load() }

// Wake is signalled after QueueNextFrame. Signals coalesce; a receiver
// must still call ShouldDraw.
func (s *Scheduler) Wake() <-chan struct{} { return s.wake }

// Requests returns the number of QueueNextFrame calls.
func (s *Scheduler) Requests() uint64 { return s.requests.Load() }

// Draws returns the number of ticks ShouldDraw approved.
func (s *Scheduler) Draws() uint64 { return s.draws.Load() }

// DeltaTime returns the frame delta. While animating it is the measured
// time since the previous frame; otherwise it is the nominal frame budget
// so that idle periods do not feed large steps into animations.
func (s *Scheduler) DeltaTime(measured time.Duration, refreshRate float64) time.Duration {
	if s.animating.Load() && measured > 0 {
		return measured
	}
	return FrameBudget(refreshRate)
}

// FrameBudget is the duration of one frame at refreshRate.
func FrameBudget(refreshRate float64) time.Duration {
	if refreshRate <= 0 {
		refreshRate = DefaultRefreshRate
	}
	return time.Duration(float64(time.Second) / refreshRate)
}

// NextDeadline returns now + max(0, budget - elapsed), where elapsed is
// the time spent since frameStart.
func NextDeadline(now, frameStart time.Time, refreshRate float64) time.Time {
	wait := FrameBudget(refreshRate) - now.Sub(frameStart)
	if wait < 0 {
		wait = 0
	}
	return now.Add(wait)
}
