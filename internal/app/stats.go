package app

import (
	"time"

	"github.com/dshills/gridline/internal/bridge"
	"github.com/dshills/gridline/internal/scheduler"
)

// Stats is a snapshot of application counters, written to the log at
// shutdown and exposed for tests.
type Stats struct {
	Uptime time.Duration
	State  scheduler.State

	FrameRequests uint64
	FramesDrawn   uint64

	CommandsSent    uint64
	CommandsFailed  uint64
	CommandsPending int

	Router bridge.RouterStats
}

// Stats returns current counters.
func (app *Application) Stats() Stats {
	app.mu.Lock()
	started := app.startedAt
	pump := app.pump
	app.mu.Unlock()

	s := Stats{
		State:           app.sched.State(),
		FrameRequests:   app.sched.Requests(),
		FramesDrawn:     app.renderer.Frames(),
		CommandsPending: app.commands.Len(),
		Router:          app.router.Stats(),
	}
	if !started.IsZero() {
		s.Uptime = time.Since(started)
	}
	if pump != nil {
		s.CommandsSent = pump.Sent()
		s.CommandsFailed = pump.Failed()
	}
	return s
}
