package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/runlet/internal/events"
)

const (
	minWidth  = 50
	minHeight = 12
)

// View implements tea.Model. This renders the full TUI display.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.width < minWidth || m.height < minHeight {
		return m.renderTooSmall()
	}

	sections := []string{
		m.renderHeader(),
		m.renderDivider(),
		m.renderEvents(),
		m.renderDivider(),
		m.renderFooter(),
	}
	content := strings.Join(sections, "\n")

	// Height() can cause clipping issues; let content determine size
	rendered := styles.Container.
		Width(safeWidth(m.width - 2)).
		Render(content)

	return lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, rendered)
}

// renderTooSmall renders a minimal message for terminals that are too small.
func (m model) renderTooSmall() string {
	return fmt.Sprintf("Terminal too small (%dx%d). Need %dx%d minimum.",
		m.width, m.height, minWidth, minHeight)
}

// renderHeader renders status, command, attempt and countdown lines.
func (m model) renderHeader() string {
	w := safeWidth(m.width - 4) // Account for container borders

	// Line 1: status and elapsed time
	status := m.renderStatus()
	elapsed := styles.Duration.Render(events.FormatDuration(time.Duration(m.stats.ElapsedMs) * time.Millisecond))
	statusLine := spread(status, elapsed, w)

	// Line 2: command
	var cmdText string
	if m.run != nil {
		cmdText = "run: " + m.run.Name
		if m.run.DryRun {
			cmdText += " (dry run)"
		}
		if m.run.PassThru {
			cmdText += " (pass-through)"
		}
	} else {
		cmdText = "no run yet"
	}
	counts := styles.Muted.Render(fmt.Sprintf("lines: %d  warnings: %d", m.stats.OutputRows, m.stats.Warnings))
	cmdLine := spread(styles.Command.Render(events.Truncate(cmdText, max(10, w-lipgloss.Width(counts)-1))), counts, w)

	// Line 3: attempt progress and countdown or exit code
	attemptText := fmt.Sprintf("attempt %d/%d  failures: %d", m.attempt, m.totalAttempts(), m.stats.Failures)
	if m.run != nil && m.run.MaxRetries > 0 {
		attemptText += fmt.Sprintf("  delay: %ds", m.run.RetrySeconds)
	}
	var right string
	switch {
	case m.remaining > 0:
		right = styles.Countdown.Render(fmt.Sprintf("retry in %ds", m.remaining))
	case m.done && m.lastError != "":
		right = styles.Error.Render(events.Truncate(m.lastError, w/2))
	case m.exitCode != nil:
		right = styles.Muted.Render(fmt.Sprintf("exit code %d", *m.exitCode))
	}
	progressLine := spread(styles.Attempt.Render(attemptText), right, w)

	return strings.Join([]string{statusLine, cmdLine, progressLine}, "\n")
}

// renderStatus renders the status indicator with appropriate styling.
func (m model) renderStatus() string {
	label := strings.ToUpper(m.status)
	var style lipgloss.Style

	switch m.status {
	case statusWaiting:
		style = styles.StatusWaiting
	case statusAttempting:
		style = styles.StatusRunning
	case statusRetrying:
		style = styles.StatusRetrying
	case "succeeded", "dry_run":
		style = styles.StatusSucceeded
	case "exhausted", "failed":
		style = styles.StatusFailed
	default:
		style = styles.StatusWaiting
	}

	if m.active() && m.status != statusWaiting {
		return m.spinner.View() + " " + style.Render(label)
	}
	return style.Render(label)
}

// renderDivider renders a horizontal divider line.
func (m model) renderDivider() string {
	w := safeWidth(m.width - 4) // Account for container borders
	return styles.Divider.Render(strings.Repeat("─", w))
}

// renderEvents renders the scrollable log pane.
func (m model) renderEvents() string {
	visible := m.visibleLines()
	w := safeWidth(m.width - 4) // Account for container borders

	if len(m.eventLines) == 0 {
		placeholder := "Waiting for output..."
		padding := strings.Repeat("\n", visible/2)
		return padding + lipgloss.PlaceHorizontal(w, lipgloss.Center, placeholder)
	}

	scrollPos := safeScroll(m.scrollPos, len(m.eventLines), visible)
	endPos := min(scrollPos+visible, len(m.eventLines))

	lines := make([]string, 0, visible)
	for _, el := range m.eventLines[scrollPos:endPos] {
		lines = append(lines, m.renderEventLine(el, w))
	}

	for len(lines) < visible {
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

// renderEventLine renders a single line with timestamp and styling.
func (m model) renderEventLine(el eventLine, maxWidth int) string {
	prefix := el.Time.Format("15:04:05") + " "

	textWidth := max(10, maxWidth-len(prefix))
	text := events.Truncate(el.Text, textWidth)

	return styles.Muted.Render(prefix) + el.Style.Render(text)
}

// renderFooter renders keyboard shortcuts help text.
func (m model) renderFooter() string {
	help := "q: close view  ↑/↓: scroll  pgup/pgdn: page  g/G: top/bottom"
	if m.done {
		help = "q: quit  ↑/↓: scroll  pgup/pgdn: page  g/G: top/bottom"
	}
	return styles.Footer.Render(help)
}

// spread places left and right at the edges of a line of width w.
func spread(left, right string, w int) string {
	if right == "" {
		return left
	}
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		left,
		strings.Repeat(" ", max(1, w-lipgloss.Width(left)-lipgloss.Width(right))),
		right,
	)
}

// safeWidth returns a width that is at least 1 to prevent negative values.
func safeWidth(w int) int {
	if w < 1 {
		return 1
	}
	return w
}

// safeScroll clamps scroll position to valid bounds.
func safeScroll(pos, totalLines, visibleLines int) int {
	if pos < 0 {
		return 0
	}
	maxScroll := totalLines - visibleLines
	if maxScroll < 0 {
		return 0
	}
	if pos > maxScroll {
		return maxScroll
	}
	return pos
}

// StyleForEvent returns the appropriate style for an event type.
func StyleForEvent(event events.Event) lipgloss.Style {
	switch e := event.(type) {
	case *events.OutputLineEvent:
		if e.Channel == events.ChannelWarning {
			return styles.Warning
		}
		return styles.Output
	case *events.RunStartEvent, *events.RunEndEvent,
		*events.AttemptStartEvent, *events.AttemptEndEvent:
		return styles.Lifecycle
	case *events.RetryWaitEvent:
		return styles.Countdown
	case *events.NoticeEvent:
		return styles.Notice
	case *events.ErrorEvent, *events.ParseErrorEvent:
		return styles.Error
	default:
		return styles.Output
	}
}
