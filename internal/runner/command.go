package runner

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// Command is a fully resolved invocation: one executable path, the working
// directory and the argument list. It is immutable for one attempt.
type Command struct {
	Path string
	Dir  string
	Args []string
	// CommandLine is the display form of Path and Args, quoted where needed.
	CommandLine string
}

// NewCommand builds a Command, copying args.
func NewCommand(path, dir string, args []string) Command {
	var copied []string
	if len(args) > 0 {
		copied = append(copied, args...)
	}
	return Command{
		Path:        path,
		Dir:         dir,
		Args:        copied,
		CommandLine: shellquote.Join(append([]string{path}, copied...)...),
	}
}

// ArgumentString returns the arguments joined with single spaces, unquoted.
func (c Command) ArgumentString() string {
	return strings.Join(c.Args, " ")
}
