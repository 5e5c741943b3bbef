// Package testutil provides test infrastructure for unit and integration testing.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/npratt/runlet/internal/runner"
)

// Errors returned by MockProcessRunner.
var (
	ErrProcessAlreadyStarted = errors.New("process already started")
	ErrProcessNotStarted     = errors.New("process not started")
)

// ExitError is returned from Wait for a non-zero exit code. Like
// *exec.ExitError it exposes ExitCode, so runner.ExitCode understands it.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the simulated exit status.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// StartCallback is called on each Start invocation with the 1-based start
// count and the command. It returns the output, stderr, exit code and start
// error to use for that start.
type StartCallback func(attempt int, cmd runner.Command) (stdout, stderr string, exitCode int, startErr error)

// MockProcessRunner implements runner.ProcessRunner for testing.
// One mock serves every attempt of a run through Spawner and records the
// commands it was asked to start.
type MockProcessRunner struct {
	mu sync.Mutex

	stdout   string
	stderr   string
	exitCode int
	startErr error
	waitErr  error
	onStart  StartCallback

	started    bool
	current    int
	startCount int
	commands   []runner.Command
}

// NewMockProcessRunner creates a new mock for testing.
func NewMockProcessRunner() *MockProcessRunner {
	return &MockProcessRunner{}
}

// SetOutput configures the stdout content to return.
func (m *MockProcessRunner) SetOutput(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stdout = content
}

// SetStderr configures the stderr content to return.
func (m *MockProcessRunner) SetStderr(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stderr = content
}

// SetExitCode configures the exit code Wait reports.
func (m *MockProcessRunner) SetExitCode(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exitCode = code
}

// SetStartError configures an error to return from Start.
func (m *MockProcessRunner) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// SetWaitError configures an error Wait returns instead of an exit status.
func (m *MockProcessRunner) SetWaitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waitErr = err
}

// OnStart scripts each attempt. It takes precedence over the Set* values.
func (m *MockProcessRunner) OnStart(fn StartCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStart = fn
}

// Spawner returns a runner.Spawner that hands out this mock, ready for a
// new attempt each time.
func (m *MockProcessRunner) Spawner() runner.Spawner {
	return func() runner.ProcessRunner {
		m.mu.Lock()
		m.started = false
		m.mu.Unlock()
		return m
	}
}

// Start implements runner.ProcessRunner.Start.
func (m *MockProcessRunner) Start(_ context.Context, cmd runner.Command) (io.ReadCloser, io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil, nil, ErrProcessAlreadyStarted
	}

	m.startCount++
	m.commands = append(m.commands, cmd)

	stdout, stderr, exitCode, startErr := m.stdout, m.stderr, m.exitCode, m.startErr
	if m.onStart != nil {
		stdout, stderr, exitCode, startErr = m.onStart(m.startCount, cmd)
	}
	if startErr != nil {
		return nil, nil, startErr
	}

	m.started = true
	m.current = exitCode
	return io.NopCloser(strings.NewReader(stdout)), io.NopCloser(strings.NewReader(stderr)), nil
}

// Wait implements runner.ProcessRunner.Wait.
func (m *MockProcessRunner) Wait() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case !m.started:
		return ErrProcessNotStarted
	case m.waitErr != nil:
		return m.waitErr
	case m.current != 0:
		return &ExitError{Code: m.current}
	}
	return nil
}

// StartCount returns the number of times Start was called.
func (m *MockProcessRunner) StartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCount
}

// Commands returns a copy of all recorded commands.
func (m *MockProcessRunner) Commands() []runner.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]runner.Command, len(m.commands))
	copy(result, m.commands)
	return result
}
