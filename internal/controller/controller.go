// Package controller runs a command through repeated attempts, counting
// down between failures until it succeeds or the retry budget is spent.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/npratt/runlet/internal/config"
	"github.com/npratt/runlet/internal/events"
	"github.com/npratt/runlet/internal/runner"
	"github.com/npratt/runlet/internal/sink"
)

// State represents the controller's current state.
type State string

// Controller states.
const (
	StateIdle       State = "idle"
	StateAttempting State = "attempting"
	StateRetrying   State = "retrying"
	StateSucceeded  State = "succeeded"
	StateExhausted  State = "exhausted"
	StateFailed     State = "failed"
	StateDryRun     State = "dry_run"
)

// Terminal reports whether no further attempts follow this state.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateExhausted, StateFailed, StateDryRun:
		return true
	}
	return false
}

// AttemptRunner performs single attempts. *runner.Attempt implements it.
type AttemptRunner interface {
	Run(ctx context.Context, req runner.Request, index int) runner.Outcome
	Resolve(req runner.Request) (runner.Command, error)
}

// AttemptRecord describes one finished attempt.
type AttemptRecord struct {
	// Index is 0-based.
	Index int
	// ExitCode is nil when no child was spawned.
	ExitCode *int
	Terminal bool
	Path     string
	Err      error
	Elapsed  time.Duration
}

// Result is the outcome of a whole run.
type Result struct {
	RunID    string
	State    State
	ExitCode int
	Attempts int
	PassThru bool
	// Path is the executable of the last attempt, or the requested name
	// when it could not be resolved.
	Path     string
	Records  []AttemptRecord
	Started  time.Time
	Finished time.Time
}

// Duration returns the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Controller drives attempts through the retry state machine.
type Controller struct {
	attempt AttemptRunner
	sink    sink.Sink
	router  *events.Router
	logger  *slog.Logger

	maxRetries   int
	retrySeconds int
	passThru     bool
	dryRun       bool
	runID        string

	sleep func(time.Duration)
	now   func() time.Time

	state   State
	stateMu sync.RWMutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithSleeper replaces time.Sleep for the countdown.
func WithSleeper(fn func(time.Duration)) Option {
	return func(c *Controller) { c.sleep = fn }
}

// WithClock replaces time.Now for result timestamps.
func WithClock(fn func() time.Time) Option {
	return func(c *Controller) { c.now = fn }
}

// WithDryRun resolves the command and reports it without spawning.
func WithDryRun(enabled bool) Option {
	return func(c *Controller) { c.dryRun = enabled }
}

// WithRunID sets the ID carried by events and the result. A random UUID
// is used otherwise.
func WithRunID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.runID = id
		}
	}
}

// New creates a Controller. Retry budget and pass-through mode come from
// cfg; router and logger may be nil.
func New(cfg *config.Config, attempt AttemptRunner, s sink.Sink, router *events.Router, logger *slog.Logger, opts ...Option) *Controller {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if s == nil {
		s = sink.Discard
	}
	c := &Controller{
		attempt:      attempt,
		sink:         s,
		router:       router,
		logger:       logger.With("component", "controller"),
		maxRetries:   max(cfg.Retry.Count, 0),
		retrySeconds: max(cfg.Retry.Seconds, 0),
		passThru:     cfg.Output.PassThru,
		runID:        uuid.NewString(),
		sleep:        time.Sleep,
		now:          time.Now,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunID returns the ID of this controller's run.
func (c *Controller) RunID() string {
	return c.runID
}

// MaxRetries returns the retry budget after clamping.
func (c *Controller) MaxRetries() int {
	return c.maxRetries
}

// Execute runs req until an attempt exits 0 or the retry budget is spent.
// Exhaustion is not an error; inspect Result.ExitCode. A spawn failure ends
// the run immediately and is returned alongside the partial result.
func (c *Controller) Execute(ctx context.Context, req runner.Request) (*Result, error) {
	res := &Result{
		RunID:    c.runID,
		PassThru: c.passThru,
		Path:     req.Name,
		Started:  c.now(),
	}
	log := c.logger.With("run_id", c.runID, "name", req.Name)

	c.emit(&events.RunStartEvent{
		BaseEvent:    events.NewRunEvent(events.EventRunStart, c.runID),
		Name:         req.Name,
		Args:         req.Args,
		Dir:          req.Dir,
		MaxRetries:   c.maxRetries,
		RetrySeconds: c.retrySeconds,
		PassThru:     c.passThru,
		DryRun:       c.dryRun,
	})
	log.Info("run started", "max_retries", c.maxRetries, "retry_seconds", c.retrySeconds, "dry_run", c.dryRun)

	var runErr error
	if c.dryRun {
		c.plan(req, res)
	} else {
		runErr = c.loop(ctx, req, res, log)
	}

	if c.passThru && runErr == nil && !c.dryRun {
		c.sink.ExitCode(res.ExitCode)
	}

	res.State = c.getState()
	res.Finished = c.now()

	end := &events.RunEndEvent{
		BaseEvent:  events.NewRunEvent(events.EventRunEnd, c.runID),
		State:      string(res.State),
		ExitCode:   res.ExitCode,
		Attempts:   res.Attempts,
		DurationMs: res.Duration().Milliseconds(),
	}
	if runErr != nil {
		end.Error = runErr.Error()
	}
	c.emit(end)

	log.Info("run finished",
		"state", res.State,
		"exit_code", res.ExitCode,
		"attempts", res.Attempts,
		"duration", res.Duration(),
	)
	return res, runErr
}

func (c *Controller) loop(ctx context.Context, req runner.Request, res *Result, log *slog.Logger) error {
	for index := 0; ; index++ {
		c.setState(StateAttempting)
		c.emit(&events.AttemptStartEvent{
			BaseEvent:  events.NewRunEvent(events.EventAttemptStart, c.runID),
			Attempt:    index + 1,
			MaxRetries: c.maxRetries,
		})

		out := c.attempt.Run(ctx, req, index)
		res.Attempts = index + 1
		res.ExitCode = out.ExitCode
		res.Path = out.Command.Path
		c.emitAttemptEnd(index, out)

		rec := AttemptRecord{
			Index:   index,
			Path:    out.Command.Path,
			Err:     out.Err,
			Elapsed: out.Elapsed,
		}
		if out.Spawned {
			code := out.ExitCode
			rec.ExitCode = &code
		}

		switch {
		case errors.Is(out.Err, runner.ErrStart):
			rec.Terminal = true
			res.Records = append(res.Records, rec)
			c.setState(StateFailed)
			log.Error("attempt could not start", "attempt", index+1, "error", out.Err)
			return fmt.Errorf("attempt %d: %w", index+1, out.Err)

		case out.ExitCode == 0 && out.Err == nil:
			rec.Terminal = true
			res.Records = append(res.Records, rec)
			c.setState(StateSucceeded)
			return nil
		}

		c.sink.Failure(sink.FailureNotice{
			Path:     out.Command.Path,
			Attempt:  index + 1,
			ExitCode: out.ExitCode,
			Err:      out.Err,
		})
		log.Warn("attempt failed", "attempt", index+1, "exit_code", out.ExitCode, "error", out.Err)

		if index >= c.maxRetries {
			rec.Terminal = true
			res.Records = append(res.Records, rec)
			c.setState(StateExhausted)
			return nil
		}
		res.Records = append(res.Records, rec)

		c.setState(StateRetrying)
		c.countdown(index + 1)
	}
}

// countdown reports and sleeps one second at a time before retry number
// retry. It is not interruptible.
func (c *Controller) countdown(retry int) {
	for remaining := c.retrySeconds; remaining > 0; remaining-- {
		c.sink.Countdown(sink.CountdownNotice{
			Remaining:  remaining,
			Retry:      retry,
			MaxRetries: c.maxRetries,
		})
		c.sleep(time.Second)
	}
}

// plan resolves req once and reports what would run.
func (c *Controller) plan(req runner.Request, res *Result) {
	cmd, err := c.attempt.Resolve(req)
	if err != nil {
		res.ExitCode = runner.ExitCodeNotFound
		c.sink.Failure(sink.FailureNotice{
			Path:     req.Name,
			Attempt:  1,
			ExitCode: runner.ExitCodeNotFound,
			Err:      fmt.Errorf("%w: %w", runner.ErrResolve, err),
		})
		c.setState(StateExhausted)
		return
	}
	res.Path = cmd.Path
	c.sink.Notice(fmt.Sprintf("would execute %s (attempt 1)", cmd.CommandLine))
	if c.maxRetries > 0 {
		c.sink.Notice(fmt.Sprintf("would retry up to %d times, waiting %d seconds between attempts", c.maxRetries, c.retrySeconds))
	}
	c.setState(StateDryRun)
}

func (c *Controller) emitAttemptEnd(index int, out runner.Outcome) {
	ev := &events.AttemptEndEvent{
		BaseEvent:   events.NewRunEvent(events.EventAttemptEnd, c.runID),
		Attempt:     index + 1,
		Path:        out.Command.Path,
		CommandLine: out.Command.CommandLine,
		ExitCode:    out.ExitCode,
		Spawned:     out.Spawned,
		DurationMs:  out.Elapsed.Milliseconds(),
	}
	if out.Err != nil {
		ev.Error = out.Err.Error()
	}
	c.emit(ev)
}

// State returns the current controller state.
func (c *Controller) State() State {
	return c.getState()
}

// getState returns the current state (thread-safe).
func (c *Controller) getState() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// setState updates the state (thread-safe).
func (c *Controller) setState(s State) {
	c.stateMu.Lock()
	prev := c.state
	c.state = s
	c.stateMu.Unlock()

	if prev != s {
		c.logger.Debug("state changed", "from", prev, "to", s)
	}
}

// emit sends an event to the router if available.
func (c *Controller) emit(event events.Event) {
	if c.router != nil {
		c.router.Emit(event)
	}
}
