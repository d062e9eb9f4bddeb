package solver

import (
	"context"

	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
)

// Event is one solve notification for channel-based consumers. Exactly one
// field is set per event.
type Event struct {
	Lineup   *dfs.Lineup
	Done     *dfs.DoneEvent
	Fallover bool
}

// Events runs Solve in the background and delivers its callbacks as a
// channel, for headless consumers that range over results instead of wiring
// callbacks. Ordering matches the callback contract exactly. The event
// channel is closed when the run ends, then the error channel carries
// Solve's result. The consumer must keep draining events; an abandoned
// channel stalls the run once the buffer fills, so abandon via ctx.
func (c *Client) Events(ctx context.Context, req *dfs.SolveRequest) (<-chan Event, <-chan error) {
	events := make(chan Event, 64)
	errs := make(chan error, 1)

	cb := Callbacks{
		OnItem: func(lineup dfs.Lineup) {
			events <- Event{Lineup: &lineup}
		},
		OnDone: func(done dfs.DoneEvent) {
			events <- Event{Done: &done}
		},
		OnFallover: func() {
			events <- Event{Fallover: true}
		},
	}

	go func() {
		err := c.Solve(ctx, req, cb)
		close(events)
		errs <- err
	}()

	return events, errs
}
