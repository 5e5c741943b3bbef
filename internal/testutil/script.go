package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kballard/go-shellquote"
)

// ChildScript generates a POSIX shell script that stands in for a real
// child process in integration tests.
type ChildScript struct {
	// Stdout and Stderr are written line by line, stdout first.
	Stdout []string
	Stderr []string

	// ExitCode is the status the script exits with.
	ExitCode int

	// Delay is an optional sleep before exiting (e.g. "0.1").
	Delay string

	// FailTimes makes the first FailTimes runs exit with FailCode instead
	// of ExitCode. Runs are counted in a file next to the script.
	FailTimes int
	FailCode  int

	// EchoArgs prints each argument on its own stdout line as "arg:<value>".
	EchoArgs bool

	// EchoDir prints the working directory as "pwd:<dir>".
	EchoDir bool
}

// Write creates the script at path with the executable bit set.
func (s *ChildScript) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s.build(path+".count")), 0755)
}

// WriteT is Write for tests; it fails the test on error and returns path.
func (s *ChildScript) WriteT(t *testing.T, path string) string {
	t.Helper()
	if err := s.Write(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func (s *ChildScript) build(counter string) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")

	if s.EchoDir {
		b.WriteString("echo \"pwd:$(pwd)\"\n")
	}
	if s.EchoArgs {
		b.WriteString("for a in \"$@\"; do echo \"arg:$a\"; done\n")
	}
	for _, line := range s.Stdout {
		fmt.Fprintf(&b, "printf '%%s\\n' %s\n", shellQuote(line))
	}
	for _, line := range s.Stderr {
		fmt.Fprintf(&b, "printf '%%s\\n' %s >&2\n", shellQuote(line))
	}
	if s.Delay != "" {
		fmt.Fprintf(&b, "sleep %s\n", s.Delay)
	}
	if s.FailTimes > 0 {
		fmt.Fprintf(&b, "n=$(cat %s 2>/dev/null || echo 0)\n", shellQuote(counter))
		b.WriteString("n=$((n + 1))\n")
		fmt.Fprintf(&b, "echo $n > %s\n", shellQuote(counter))
		fmt.Fprintf(&b, "if [ $n -le %d ]; then exit %d; fi\n", s.FailTimes, s.FailCode)
	}
	fmt.Fprintf(&b, "exit %d\n", s.ExitCode)
	return b.String()
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return shellquote.Join(s)
}
