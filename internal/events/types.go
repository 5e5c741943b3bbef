// Package events defines the run event taxonomy, the pub/sub router that
// carries events from the retry controller to observers, and the JSONL log
// sink that records them.
package events

import "time"

// EventType identifies the category and nature of an event.
type EventType string

const (
	// Run lifecycle events
	EventRunStart EventType = "run.start"
	EventRunEnd   EventType = "run.end"

	// Attempt events
	EventAttemptStart EventType = "attempt.start"
	EventAttemptEnd   EventType = "attempt.end"

	// Captured child output
	EventOutputLine EventType = "output.line"

	// Countdown between attempts
	EventRetryWait EventType = "retry.wait"

	// Informational notices (dry-run plans, exit code forwarding)
	EventNotice EventType = "notice"

	// Error events
	EventError      EventType = "error"
	EventParseError EventType = "error.parse"
)

// Source constants identify the origin of events.
const (
	SourceController = "controller"
	SourceChild      = "child"
	SourceInternal   = "runlet"
)

// Channel names carried by OutputLineEvent.
const (
	ChannelOutput  = "output"
	ChannelWarning = "warning"
)

// Event is the base interface for all events in the system.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	Source() string
}

// BaseEvent provides the common fields for all events.
type BaseEvent struct {
	EventType EventType `json:"type"`
	Time      time.Time `json:"timestamp"`
	Src       string    `json:"source"`
	RunID     string    `json:"run_id,omitempty"`
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.Time
}

// Source returns the origin of the event.
func (e BaseEvent) Source() string {
	return e.Src
}

// RunStartEvent is emitted once before the first attempt.
type RunStartEvent struct {
	BaseEvent
	Name         string   `json:"name"`
	Args         []string `json:"args,omitempty"`
	Dir          string   `json:"dir,omitempty"`
	MaxRetries   int      `json:"max_retries"`
	RetrySeconds int      `json:"retry_seconds"`
	PassThru     bool     `json:"pass_thru,omitempty"`
	DryRun       bool     `json:"dry_run,omitempty"`
}

// RunEndEvent is emitted once when the run reaches a terminal state.
type RunEndEvent struct {
	BaseEvent
	State      string `json:"state"`
	ExitCode   int    `json:"exit_code"`
	Attempts   int    `json:"attempts"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// AttemptStartEvent is emitted before an attempt resolves and spawns.
type AttemptStartEvent struct {
	BaseEvent
	Attempt    int `json:"attempt"`
	MaxRetries int `json:"max_retries"`
}

// AttemptEndEvent is emitted after an attempt's output has been fully delivered.
type AttemptEndEvent struct {
	BaseEvent
	Attempt     int    `json:"attempt"`
	Path        string `json:"path,omitempty"`
	CommandLine string `json:"command_line,omitempty"`
	ExitCode    int    `json:"exit_code"`
	Spawned     bool   `json:"spawned"`
	DurationMs  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}

// OutputLineEvent carries one captured line and the channel it was routed to.
type OutputLineEvent struct {
	BaseEvent
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// RetryWaitEvent is emitted once per second of the countdown between attempts.
type RetryWaitEvent struct {
	BaseEvent
	Remaining  int `json:"remaining"`
	Retry      int `json:"retry"`
	MaxRetries int `json:"max_retries"`
}

// NoticeEvent carries an informational message.
type NoticeEvent struct {
	BaseEvent
	Text string `json:"text"`
}

// ErrorEvent is emitted when an attempt fails.
type ErrorEvent struct {
	BaseEvent
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Path     string `json:"path,omitempty"`
	Attempt  int    `json:"attempt,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ParseErrorEvent is emitted when a recorded event line cannot be decoded.
type ParseErrorEvent struct {
	BaseEvent
	Line  string `json:"line"`
	Error string `json:"error"`
}

// Severity levels for ErrorEvent.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// NewEvent creates a BaseEvent with the given type and source.
func NewEvent(eventType EventType, source string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Time:      time.Now(),
		Src:       source,
	}
}

// NewRunEvent creates a controller event tagged with the run ID.
func NewRunEvent(eventType EventType, runID string) BaseEvent {
	e := NewEvent(eventType, SourceController)
	e.RunID = runID
	return e
}

// NewChildEvent creates an event for output captured from the child.
func NewChildEvent(eventType EventType, runID string) BaseEvent {
	e := NewEvent(eventType, SourceChild)
	e.RunID = runID
	return e
}

// NewInternalEvent creates an event from runlet itself.
func NewInternalEvent(eventType EventType) BaseEvent {
	return NewEvent(eventType, SourceInternal)
}
