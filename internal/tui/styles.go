package tui

import "github.com/charmbracelet/lipgloss"

// styles contains all lipgloss styles used by the TUI.
var styles = struct {
	// Layout styles
	Container lipgloss.Style
	Divider   lipgloss.Style

	// Header styles
	Status    lipgloss.Style
	Command   lipgloss.Style
	Attempt   lipgloss.Style
	Countdown lipgloss.Style
	Duration  lipgloss.Style
	Muted     lipgloss.Style
	Spinner   lipgloss.Style

	// Footer style
	Footer lipgloss.Style

	// Log line styles
	Output    lipgloss.Style
	Warning   lipgloss.Style
	Lifecycle lipgloss.Style
	Notice    lipgloss.Style
	Error     lipgloss.Style

	// Status colors
	StatusWaiting   lipgloss.Style
	StatusRunning   lipgloss.Style
	StatusRetrying  lipgloss.Style
	StatusSucceeded lipgloss.Style
	StatusFailed    lipgloss.Style
}{
	Container: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")),

	Divider: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	Status: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")),

	Command: lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")),

	Attempt: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Countdown: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	Duration: lipgloss.NewStyle().
		Foreground(lipgloss.Color("220")),

	Muted: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Spinner: lipgloss.NewStyle().
		Foreground(lipgloss.Color("82")),

	Footer: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Output: lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")),

	Warning: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	Lifecycle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("177")),

	Notice: lipgloss.NewStyle().
		Foreground(lipgloss.Color("114")),

	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),

	StatusWaiting: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	StatusRunning: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("82")),

	StatusRetrying: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	StatusSucceeded: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("114")),

	StatusFailed: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),
}
