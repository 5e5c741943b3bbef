package events

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const (
	maxTextLength     = 200
	maxMessageLength  = 100
	truncateIndicator = "..."
)

// Format converts an event to a human-readable string for display.
// Returns empty string for nil or unknown event types.
func Format(event Event) string {
	if event == nil {
		return ""
	}

	switch e := event.(type) {
	case *RunStartEvent:
		return formatRunStart(e)
	case *RunEndEvent:
		return formatRunEnd(e)
	case *AttemptStartEvent:
		return formatAttemptStart(e)
	case *AttemptEndEvent:
		return formatAttemptEnd(e)
	case *OutputLineEvent:
		return formatOutputLine(e)
	case *RetryWaitEvent:
		return formatRetryWait(e)
	case *NoticeEvent:
		return Truncate(e.Text, maxTextLength)
	case *ErrorEvent:
		return formatError(e)
	case *ParseErrorEvent:
		return formatParseError(e)
	default:
		return ""
	}
}

// FormatWithTimestamp formats an event with a timestamp prefix.
// Used by the events command and the TUI log.
func FormatWithTimestamp(event Event) string {
	if event == nil {
		return ""
	}
	ts := event.Timestamp().Format("15:04:05")
	detail := Format(event)
	if detail == "" {
		return fmt.Sprintf("[%s] %s", ts, event.Type())
	}
	return fmt.Sprintf("[%s] %s", ts, detail)
}

func formatRunStart(e *RunStartEvent) string {
	name := SafeString(e.Name)
	mode := ""
	if e.DryRun {
		mode = " (dry run)"
	}
	if e.MaxRetries > 0 {
		return fmt.Sprintf("run started: %s%s, %d retries every %ds", name, mode, e.MaxRetries, e.RetrySeconds)
	}
	return fmt.Sprintf("run started: %s%s", name, mode)
}

func formatRunEnd(e *RunEndEvent) string {
	symbol := "+"
	if e.State != "succeeded" {
		symbol = "x"
	}
	elapsed := FormatDuration(time.Duration(e.DurationMs) * time.Millisecond)
	if e.Error != "" {
		return fmt.Sprintf("[%s] run %s after %d attempts (%s): %s", symbol, e.State, e.Attempts, elapsed, Truncate(e.Error, maxMessageLength))
	}
	return fmt.Sprintf("[%s] run %s: exit %d after %d attempts (%s)", symbol, e.State, e.ExitCode, e.Attempts, elapsed)
}

func formatAttemptStart(e *AttemptStartEvent) string {
	return fmt.Sprintf("attempt %d/%d started", e.Attempt, e.MaxRetries+1)
}

func formatAttemptEnd(e *AttemptEndEvent) string {
	symbol := "+"
	if e.ExitCode != 0 || e.Error != "" {
		symbol = "x"
	}
	target := SafeString(e.CommandLine)
	if target == "" {
		target = SafeString(e.Path)
	}
	elapsed := FormatDuration(time.Duration(e.DurationMs) * time.Millisecond)
	if e.Error != "" && !e.Spawned {
		return fmt.Sprintf("[%s] attempt %d: %s", symbol, e.Attempt, Truncate(SafeString(e.Error), maxMessageLength))
	}
	return fmt.Sprintf("[%s] attempt %d: %s exited %d (%s)", symbol, e.Attempt, Truncate(target, maxMessageLength), e.ExitCode, elapsed)
}

func formatOutputLine(e *OutputLineEvent) string {
	text := Truncate(e.Text, maxTextLength)
	if e.Channel == ChannelWarning {
		return "! " + text
	}
	return text
}

func formatRetryWait(e *RetryWaitEvent) string {
	return fmt.Sprintf("retry %d/%d in %ds", e.Retry, e.MaxRetries, e.Remaining)
}

// formatError leaves the attempt to the message, which already names it.
func formatError(e *ErrorEvent) string {
	severity := SafeString(e.Severity)
	if severity == "" {
		severity = SeverityError
	}
	return fmt.Sprintf("%s: %s", strings.ToUpper(severity), Truncate(SafeString(e.Message), maxMessageLength))
}

func formatParseError(e *ParseErrorEvent) string {
	errMsg := SafeString(e.Error)
	return fmt.Sprintf("PARSE ERROR: %s", Truncate(errMsg, maxMessageLength))
}

// FormatDuration renders a duration compactly: 850ms, 4.2s, 3m07s.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		m := int(d / time.Minute)
		s := int((d % time.Minute) / time.Second)
		return fmt.Sprintf("%dm%02ds", m, s)
	}
}

// Truncate shortens text to maxLen, adding indicator if truncated.
func Truncate(s string, maxLen int) string {
	s = SafeString(s)
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= len(truncateIndicator) {
		return truncateIndicator
	}
	return s[:maxLen-len(truncateIndicator)] + truncateIndicator
}

// ansiRegex matches ANSI escape sequences.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripANSI removes ANSI escape sequences from a string.
func StripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// SafeString sanitizes a string for display by removing control characters
// and limiting newlines.
func SafeString(s string) string {
	// Remove ANSI escape sequences
	s = StripANSI(s)

	// Replace newlines with spaces
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")

	// Remove other control characters (except space)
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == ' ' || !unicode.IsControl(r) {
			sb.WriteRune(r)
		}
	}

	// Collapse multiple spaces
	result := sb.String()
	for strings.Contains(result, "  ") {
		result = strings.ReplaceAll(result, "  ", " ")
	}

	return strings.TrimSpace(result)
}
