// Package sink defines the caller-visible channels a run reports through:
// captured output, warnings, attempt failures, retry countdowns, and the
// forwarded exit code in pass-through mode.
package sink

import "fmt"

// FailureNotice describes one failed attempt.
type FailureNotice struct {
	// Path is the resolved executable, or the requested name when
	// resolution failed.
	Path string
	// Attempt is 1-based.
	Attempt  int
	ExitCode int
	Err      error
}

// Message renders the notice as a single line.
func (n FailureNotice) Message() string {
	if n.Err != nil {
		return fmt.Sprintf("%s failed (attempt %d, exit code %d): %v", n.Path, n.Attempt, n.ExitCode, n.Err)
	}
	return fmt.Sprintf("%s exited with code %d (attempt %d)", n.Path, n.ExitCode, n.Attempt)
}

// CountdownNotice is delivered once per second while waiting to retry.
type CountdownNotice struct {
	// Remaining is the number of seconds left, counting down to 1.
	Remaining int
	// Retry is the 1-based number of the retry being waited for.
	Retry      int
	MaxRetries int
}

// Message renders the notice as a single line.
func (n CountdownNotice) Message() string {
	unit := "seconds"
	if n.Remaining == 1 {
		unit = "second"
	}
	return fmt.Sprintf("wait %d %s to retry (%d / %d)...", n.Remaining, unit, n.Retry, n.MaxRetries)
}

// Sink receives everything a run reports. Calls arrive from the controller
// goroutine in delivery order; implementations need not be reentrant but
// must not block for long.
type Sink interface {
	// Output receives a stdout line in normal mode.
	Output(line string)
	// Warning receives stderr lines, and stdout lines in pass-through mode.
	Warning(line string)
	// Failure is called exactly once per failed attempt, after all of that
	// attempt's output.
	Failure(n FailureNotice)
	// Countdown is called once per second of retry delay.
	Countdown(n CountdownNotice)
	// ExitCode receives the final exit code in pass-through mode.
	ExitCode(code int)
	// Notice receives informational messages such as dry-run plans.
	Notice(text string)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Output(string) {}
func (discard) Warning(string) {}
func (discard) Failure(FailureNotice) {}
func (discard) Countdown(CountdownNotice) {}
func (discard) ExitCode(int) {}
func (discard) Notice(string) {}

// Multi fans every call out to each sink in order.
func Multi(sinks ...Sink) Sink {
	flat := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if m, ok := s.(multi); ok {
			flat = append(flat, m...)
			continue
		}
		flat = append(flat, s)
	}
	return flat
}

type multi []Sink

func (m multi) Output(line string) {
	for _, s := range m {
		s.Output(line)
	}
}

func (m multi) Warning(line string) {
	for _, s := range m {
		s.Warning(line)
	}
}

func (m multi) Failure(n FailureNotice) {
	for _, s := range m {
		s.Failure(n)
	}
}

func (m multi) Countdown(n CountdownNotice) {
	for _, s := range m {
		s.Countdown(n)
	}
}

func (m multi) ExitCode(code int) {
	for _, s := range m {
		s.ExitCode(code)
	}
}

func (m multi) Notice(text string) {
	for _, s := range m {
		s.Notice(text)
	}
}
