// Package solver drives optimization runs against the remote lineup solver.
// The primary path is a chunked event stream of partial results; when the
// stream cannot be opened or drops mid-run, the client retries the same
// logical request against the blocking batch endpoint and replays its
// results through the identical callback contract.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
)

// ErrSolverRejected is returned when the batch fallback also fails; it is
// the only solver failure surfaced to users.
var ErrSolverRejected = errors.New("solver rejected request")

// errTransport marks stream-open failures that trigger the batch fallback.
// It never escapes the client.
var errTransport = errors.New("solver stream transport error")

// State is the client's lifecycle phase
type State string

const (
	StateIdle              State = "idle"
	StateRequesting        State = "requesting"
	StateStreaming         State = "streaming"
	StateCompleted         State = "completed"
	StateFailedOverToBatch State = "failed_over_to_batch"
	StateErrored           State = "errored"
)

// Callbacks receives solve results in stream order. OnFallover fires before
// batch results are replayed after a mid-stream drop, so the consumer can
// discard partial streamed results (the fallback replaces, never appends).
type Callbacks struct {
	OnItem     func(dfs.Lineup)
	OnDone     func(dfs.DoneEvent)
	OnFallover func()
}

// batchResponse is the non-streaming endpoint's envelope
type batchResponse struct {
	Lineups []dfs.Lineup `json:"lineups"`
}

// Client executes solve requests. At most one solve is in flight per
// client; starting a new one cancels the prior run.
type Client struct {
	streamURL  string
	batchURL   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Entry

	mu     sync.Mutex
	cancel context.CancelFunc
	state  State
}

// NewClient creates a solver client for the given endpoints
func NewClient(streamURL, batchURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "solver-stream",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker":    name,
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("Solver stream circuit breaker state changed")
		},
	})

	return &Client{
		streamURL: streamURL,
		batchURL:  batchURL,
		// No overall client timeout: the stream stays open for the life of
		// a run and is bounded only by the server-side time limit and user
		// cancellation. An indefinitely stalled stream is a known
		// limitation; only cancellation unsticks it.
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: timeout,
				DisableCompression:    true, // required for incremental stream reads
			},
		},
		breaker: cb,
		logger:  logger.WithField("component", "solver"),
		state:   StateIdle,
	}
}

// State returns the current lifecycle phase
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Cancel aborts any in-flight solve. Cancelled runs stop invoking callbacks
// even if buffered response bytes remain.
func (c *Client) Cancel() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
}

// Solve executes the request, dispatching each lineup to cb.OnItem in the
// exact order the solver emits them and cb.OnDone on completion. It blocks
// until the run finishes, fails, or ctx is cancelled. The returned error is
// nil for completed and cancelled runs; callbacks never fire after
// cancellation.
func (c *Client) Solve(ctx context.Context, req *dfs.SolveRequest, cb Callbacks) error {
	// at most one in-flight solve per client
	c.Cancel()

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.state = StateRequesting
	c.mu.Unlock()
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		c.setState(StateErrored)
		return fmt.Errorf("failed to encode solve request: %w", err)
	}

	streamed, err := c.solveStream(runCtx, body, cb)
	if err == nil {
		c.setState(StateCompleted)
		return nil
	}
	if runCtx.Err() != nil {
		c.setState(StateIdle)
		return nil
	}
	if !errors.Is(err, errTransport) {
		c.setState(StateErrored)
		return err
	}

	// Stream could not be opened or dropped before done: fall back to the
	// blocking batch endpoint. Results replace anything already streamed.
	c.logger.WithError(err).WithField("streamed", streamed).
		Warn("Stream solve failed, falling back to batch endpoint")
	c.setState(StateFailedOverToBatch)

	if streamed > 0 && cb.OnFallover != nil {
		if runCtx.Err() != nil {
			c.setState(StateIdle)
			return nil
		}
		cb.OnFallover()
	}

	if err := c.solveBatch(runCtx, body, cb); err != nil {
		if runCtx.Err() != nil {
			c.setState(StateIdle)
			return nil
		}
		c.setState(StateErrored)
		return err
	}
	c.setState(StateCompleted)
	return nil
}

// solveStream opens the streaming POST and decodes records until the done
// marker. It returns the number of lineups dispatched; transport-class
// failures come back wrapped in errTransport.
func (c *Client) solveStream(ctx context.Context, body []byte, cb Callbacks) (int, error) {
	resp, err := c.openStream(ctx, body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	c.setState(StateStreaming)

	var (
		decoder   RecordDecoder
		streamed  int
		chunk     = make([]byte, 4096)
	)

	for {
		if ctx.Err() != nil {
			return streamed, ctx.Err()
		}

		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			done, dispatched, err := c.dispatch(ctx, decoder.Feed(chunk[:n]), cb)
			streamed += dispatched
			if err != nil {
				return streamed, err
			}
			if done {
				return streamed, nil
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				// stream closed without a done marker; salvage any final
				// record, then treat it as a drop
				done, dispatched, err := c.dispatch(ctx, decoder.Flush(), cb)
				streamed += dispatched
				if err != nil {
					return streamed, err
				}
				if done {
					return streamed, nil
				}
			}
			return streamed, fmt.Errorf("%w: stream ended before done marker: %v", errTransport, readErr)
		}
	}
}

// dispatch parses record payloads and invokes callbacks. Payloads that fail
// to parse are skipped, never fatal. Cancellation is checked before every
// callback.
func (c *Client) dispatch(ctx context.Context, payloads []string, cb Callbacks) (done bool, dispatched int, err error) {
	for _, payload := range payloads {
		if ctx.Err() != nil {
			return false, dispatched, ctx.Err()
		}

		var marker dfs.DoneEvent
		if jsonErr := json.Unmarshal([]byte(payload), &marker); jsonErr != nil {
			c.logger.WithError(jsonErr).Debug("Skipping malformed stream record")
			continue
		}
		if marker.Done {
			if cb.OnDone != nil {
				cb.OnDone(marker)
			}
			return true, dispatched, nil
		}

		var lineup dfs.Lineup
		if jsonErr := json.Unmarshal([]byte(payload), &lineup); jsonErr != nil || len(lineup.Players) == 0 {
			c.logger.Debug("Skipping stream record with no lineup payload")
			continue
		}
		if cb.OnItem != nil {
			cb.OnItem(lineup)
		}
		dispatched++
	}
	return false, dispatched, nil
}

// openStream POSTs the request to the stream endpoint behind the circuit
// breaker. Any failure to obtain a readable 2xx body is a transport error.
func (c *Client) openStream(ctx context.Context, body []byte) (*http.Response, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.streamURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("stream endpoint returned status %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errTransport, err)
	}
	return result.(*http.Response), nil
}

// solveBatch executes the blocking fallback POST and replays its result
// array through the stream callback contract.
func (c *Client) solveBatch(ctx context.Context, body []byte, cb Callbacks) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.batchURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSolverRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSolverRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrSolverRejected, resp.StatusCode, string(msg))
	}

	var batch batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return fmt.Errorf("%w: unreadable batch response: %v", ErrSolverRejected, err)
	}

	for _, lineup := range batch.Lineups {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if cb.OnItem != nil {
			cb.OnItem(lineup)
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if cb.OnDone != nil {
		cb.OnDone(dfs.DoneEvent{Done: true, Produced: len(batch.Lineups)})
	}
	return nil
}
