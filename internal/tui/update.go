package tui

import (
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/runlet/internal/events"
)

const (
	// maxEventLines is the maximum number of log lines to keep in the buffer.
	maxEventLines = 5000
	// trimEventLines is the number of lines to remove when buffer exceeds max.
	trimEventLines = 500
	// tickInterval is the interval for refreshing the elapsed time.
	tickInterval = time.Second
)

// channelClosedMsg signals that the event channel was closed.
type channelClosedMsg struct{}

// tickMsg signals a periodic refresh.
type tickMsg time.Time

// waitForEvent creates a command that waits for the next event from the channel.
// Returns channelClosedMsg if the channel is closed.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return channelClosedMsg{}
		}
		return eventMsg(event)
	}
}

// doTick creates a command that waits for the tick interval and sends a tickMsg.
func doTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model. It handles all message types and updates the model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.scrollToBottom()
		return m, nil

	case eventMsg:
		m.handleEvent(events.Event(msg))
		return m, waitForEvent(m.eventChan)

	case channelClosedMsg:
		// A finished run stays on screen until the user quits.
		if m.done {
			return m, nil
		}
		slog.Debug("event channel closed, exiting TUI")
		m.done = true
		return m, tea.Quit

	case tickMsg:
		m.handleTick(time.Time(msg))
		if m.done {
			return m, nil
		}
		return m, doTick()

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

// handleKey processes keyboard input and returns the updated model and command.
func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit

	case "up", "k":
		m.autoScroll = false
		if m.scrollPos > 0 {
			m.scrollPos--
		}
		return m, nil

	case "down", "j":
		maxScroll := len(m.eventLines) - m.visibleLines()
		if m.scrollPos < maxScroll {
			m.scrollPos++
		}
		if m.scrollPos >= maxScroll {
			m.autoScroll = true
		}
		return m, nil

	case "pgup":
		m.autoScroll = false
		m.scrollPos = max(0, m.scrollPos-m.visibleLines())
		return m, nil

	case "pgdown":
		maxScroll := max(0, len(m.eventLines)-m.visibleLines())
		m.scrollPos = min(maxScroll, m.scrollPos+m.visibleLines())
		m.autoScroll = m.scrollPos >= maxScroll
		return m, nil

	case "home", "g":
		m.autoScroll = false
		m.scrollPos = 0
		return m, nil

	case "end", "G":
		m.autoScroll = true
		m.scrollToBottom()
		return m, nil

	default:
		return m, nil
	}
}

// handleEvent processes an event and updates model state.
func (m *model) handleEvent(event events.Event) {
	switch e := event.(type) {
	case *events.RunStartEvent:
		m.run = &runInfo{
			Name:         e.Name,
			MaxRetries:   e.MaxRetries,
			RetrySeconds: e.RetrySeconds,
			PassThru:     e.PassThru,
			DryRun:       e.DryRun,
			StartTime:    event.Timestamp(),
		}
		m.done = false

	case *events.AttemptStartEvent:
		m.status = statusAttempting
		m.attempt = e.Attempt
		m.remaining = 0

	case *events.AttemptEndEvent:
		if e.ExitCode != 0 || e.Error != "" {
			m.stats.Failures++
			m.lastError = e.Error
		}

	case *events.RetryWaitEvent:
		m.status = statusRetrying
		m.remaining = e.Remaining

	case *events.OutputLineEvent:
		if e.Channel == events.ChannelWarning {
			m.stats.Warnings++
		} else {
			m.stats.OutputRows++
		}

	case *events.RunEndEvent:
		m.status = e.State
		code := e.ExitCode
		m.exitCode = &code
		m.remaining = 0
		m.stats.ElapsedMs = e.DurationMs
		if e.Error != "" {
			m.lastError = e.Error
		}
		m.done = true
	}

	text := events.Format(event)
	if text == "" {
		return
	}
	m.eventLines = append(m.eventLines, eventLine{
		Time:  event.Timestamp(),
		Text:  text,
		Style: StyleForEvent(event),
	})

	// Trim buffer if over max lines
	if len(m.eventLines) > maxEventLines {
		m.eventLines = m.eventLines[trimEventLines:]
		m.scrollPos = max(0, m.scrollPos-trimEventLines)
	}

	if m.autoScroll {
		m.scrollToBottom()
	}
}

// handleTick refreshes the elapsed time while the run is active.
func (m *model) handleTick(now time.Time) {
	if m.done || m.run == nil || m.run.StartTime.IsZero() {
		return
	}
	m.stats.ElapsedMs = now.Sub(m.run.StartTime).Milliseconds()
}

func (m *model) scrollToBottom() {
	m.scrollPos = max(0, len(m.eventLines)-m.visibleLines())
}
