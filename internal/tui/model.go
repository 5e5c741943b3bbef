package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/runlet/internal/events"
)

// Display states. Controller states arrive as strings on run.end.
const (
	statusWaiting    = "waiting"
	statusAttempting = "attempting"
	statusRetrying   = "retrying"
)

// runInfo holds what run.start announced.
type runInfo struct {
	Name         string
	MaxRetries   int
	RetrySeconds int
	PassThru     bool
	DryRun       bool
	StartTime    time.Time
}

// modelStats holds display counters.
type modelStats struct {
	Failures   int
	OutputRows int
	Warnings   int
	ElapsedMs  int64
}

// eventLine is one formatted row of the log pane.
type eventLine struct {
	Time  time.Time
	Text  string
	Style lipgloss.Style
}

// model is the bubbletea model for the TUI.
type model struct {
	eventChan <-chan events.Event

	// Run state
	status    string
	run       *runInfo
	attempt   int
	remaining int
	exitCode  *int
	lastError string
	done      bool
	stats     modelStats

	// Log pane
	eventLines []eventLine

	// UI state
	width      int
	height     int
	scrollPos  int
	autoScroll bool
	spinner    spinner.Model

	onQuit func()
}

// eventMsg wraps an event for the bubbletea message system.
type eventMsg events.Event

// newModel creates a new model reading from eventChan.
func newModel(eventChan <-chan events.Event, onQuit func()) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return model{
		eventChan:  eventChan,
		status:     statusWaiting,
		autoScroll: true,
		spinner:    sp,
		onQuit:     onQuit,
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.eventChan),
		doTick(),
		m.spinner.Tick,
	)
}

// Update, handleKey, handleEvent, handleTick are implemented in update.go
// View is implemented in view.go

// visibleLines returns the number of log lines that fit in the pane.
func (m model) visibleLines() int {
	// Height minus: border (2), header (3), dividers (2), footer (1) = 8
	return max(1, m.height-8)
}

// active reports whether the run is still in progress.
func (m model) active() bool {
	return !m.done
}

// totalAttempts is the most attempts the run can make.
func (m model) totalAttempts() int {
	if m.run == nil {
		return 0
	}
	return m.run.MaxRetries + 1
}
