package sink

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Console writes output lines and the pass-through exit code to out, and
// everything else to errOut with a styled prefix. Styling follows each
// writer's color profile, so redirected output stays plain.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer

	warn   lipgloss.Style
	fail   lipgloss.Style
	wait   lipgloss.Style
	notice lipgloss.Style
}

// NewConsole creates a console sink.
func NewConsole(out, errOut io.Writer) *Console {
	r := lipgloss.NewRenderer(errOut)
	return &Console{
		out:    out,
		errOut: errOut,
		warn:   r.NewStyle().Foreground(lipgloss.Color("214")),
		fail:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		wait:   r.NewStyle().Foreground(lipgloss.Color("245")),
		notice: r.NewStyle().Foreground(lipgloss.Color("39")),
	}
}

func (c *Console) Output(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

func (c *Console) Warning(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.errOut, c.warn.Render("WARNING:"), line)
}

func (c *Console) Failure(n FailureNotice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.errOut, c.fail.Render("FAILED:"), n.Message())
}

func (c *Console) Countdown(n CountdownNotice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.errOut, c.wait.Render("WARNING:"), n.Message())
}

func (c *Console) ExitCode(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, strconv.Itoa(code))
}

func (c *Console) Notice(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.errOut, c.notice.Render("NOTICE:"), text)
}
