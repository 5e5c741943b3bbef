// Package tui provides a live terminal view of a runlet run using bubbletea.
package tui

import (
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/runlet/internal/events"
)

// TUI is the terminal view of a single run.
type TUI struct {
	eventChan <-chan events.Event
	onQuit    func()
	out       io.Writer
}

// Option configures the TUI.
type Option func(*TUI)

// New creates a new TUI reading from the given event channel.
func New(eventChan <-chan events.Event, opts ...Option) *TUI {
	t := &TUI{
		eventChan: eventChan,
		out:       os.Stdout,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// WithOnQuit sets the callback invoked when the user presses 'q' or ctrl+c.
// Quitting closes the view only; the run itself continues.
func WithOnQuit(fn func()) Option {
	return func(t *TUI) {
		t.onQuit = fn
	}
}

// WithOutput sets where the line-by-line fallback prints.
func WithOutput(w io.Writer) Option {
	return func(t *TUI) {
		if w != nil {
			t.out = w
		}
	}
}

// Run shows the run until the user quits. A finished run stays on screen;
// an unfinished one closes with the event channel.
// Without a usable terminal it falls back to printing one line per event.
// Events still arriving after the view closes are consumed and discarded
// so the router never waits on a departed viewer.
func (t *TUI) Run() error {
	defer func() { go discard(t.eventChan) }()

	if !isTerminal() || terminalTooSmall() {
		return t.runSimple()
	}

	m := newModel(t.eventChan, t.onQuit)

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func discard(ch <-chan events.Event) {
	for range ch {
	}
}
