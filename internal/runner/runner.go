// Package runner spawns child processes and runs single capture attempts:
// resolve, spawn, drain both output streams, wait, report the exit code.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// ProcessRunner abstracts streaming subprocess execution.
// A ProcessRunner runs at most one process; use a fresh one per attempt.
type ProcessRunner interface {
	// Start spawns the command and returns readers for stdout and stderr.
	// The caller owns the readers and must close them after draining.
	Start(ctx context.Context, cmd Command) (stdout, stderr io.ReadCloser, err error)

	// Wait blocks until the process exits and returns the exit error.
	// It never closes the readers returned by Start.
	Wait() error
}

// Spawner produces a fresh ProcessRunner for each attempt.
type Spawner func() ProcessRunner

// ExecProcessRunner implements ProcessRunner using os/exec.
// Output goes through os.Pipe pairs rather than Cmd.StdoutPipe so that Wait
// can run concurrently with the readers.
type ExecProcessRunner struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool
}

// NewExecProcessRunner creates a new ExecProcessRunner.
func NewExecProcessRunner() *ExecProcessRunner {
	return &ExecProcessRunner{}
}

// ExecSpawner returns a Spawner backed by ExecProcessRunner.
func ExecSpawner() Spawner {
	return func() ProcessRunner {
		return NewExecProcessRunner()
	}
}

// Start spawns the command with stdin on the null device, stdout and stderr
// on fresh pipes, no shell, and the command's working directory.
func (r *ExecProcessRunner) Start(ctx context.Context, command Command) (io.ReadCloser, io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil, nil, fmt.Errorf("process already started")
	}

	cmd := exec.CommandContext(ctx, command.Path, command.Args...)
	cmd.Dir = command.Dir
	cmd.Stdin = nil
	configureSysProcAttr(cmd)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}

	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return nil, nil, fmt.Errorf("stderr pipe: %w", err)
	}

	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, nil, fmt.Errorf("start process: %w", err)
	}

	// The child holds its own copies; ours must close or readers never see EOF
	closeAll(stdoutW, stderrW)

	r.cmd = cmd
	r.started = true
	return stdoutR, stderrR, nil
}

// Wait blocks until the process exits and returns the exit error.
func (r *ExecProcessRunner) Wait() error {
	r.mu.Lock()
	cmd := r.cmd
	r.mu.Unlock()

	if cmd == nil {
		return fmt.Errorf("process not started")
	}

	return cmd.Wait()
}

// ExitCode extracts the exit status from a Wait error.
// A nil error is exit code 0. Errors that carry no exit status are returned
// unchanged with code -1.
func ExitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		return coded.ExitCode(), nil
	}
	return -1, err
}

func closeAll(closers ...io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
