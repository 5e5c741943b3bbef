package sink

import (
	"github.com/npratt/runlet/internal/events"
)

// Events forwards sink calls to the event router as run events.
type Events struct {
	router *events.Router
	runID  string
}

// NewEvents creates a sink that emits to router, tagging events with runID.
func NewEvents(router *events.Router, runID string) *Events {
	return &Events{router: router, runID: runID}
}

func (e *Events) Output(line string) {
	e.line(events.ChannelOutput, line)
}

func (e *Events) Warning(line string) {
	e.line(events.ChannelWarning, line)
}

func (e *Events) line(channel, text string) {
	e.router.Emit(&events.OutputLineEvent{
		BaseEvent: events.NewChildEvent(events.EventOutputLine, e.runID),
		Channel:   channel,
		Text:      text,
	})
}

func (e *Events) Failure(n FailureNotice) {
	e.router.Emit(&events.ErrorEvent{
		BaseEvent: events.NewRunEvent(events.EventError, e.runID),
		Message:   n.Message(),
		Severity:  events.SeverityWarning,
		Path:      n.Path,
		Attempt:   n.Attempt,
		ExitCode:  n.ExitCode,
	})
}

func (e *Events) Countdown(n CountdownNotice) {
	e.router.Emit(&events.RetryWaitEvent{
		BaseEvent:  events.NewRunEvent(events.EventRetryWait, e.runID),
		Remaining:  n.Remaining,
		Retry:      n.Retry,
		MaxRetries: n.MaxRetries,
	})
}

// ExitCode is a no-op; the run.end event already carries the exit code.
func (e *Events) ExitCode(int) {}

func (e *Events) Notice(text string) {
	e.router.Emit(&events.NoticeEvent{
		BaseEvent: events.NewRunEvent(events.EventNotice, e.runID),
		Text:      text,
	})
}
