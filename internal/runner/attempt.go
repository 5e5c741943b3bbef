package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/encoding"

	"github.com/npratt/runlet/internal/drain"
	"github.com/npratt/runlet/internal/pathresolve"
	"github.com/npratt/runlet/internal/sink"
)

// DefaultPollInterval bounds how long the attempt loop sleeps between drain
// passes when no queue signals.
const DefaultPollInterval = 50 * time.Millisecond

// ExitCodeNotFound is reported for an attempt whose executable could not be
// resolved. It matches the shell convention for "command not found".
const ExitCodeNotFound = 127

var (
	// ErrResolve marks an attempt that failed before spawning because the
	// executable was not found. It is retryable.
	ErrResolve = errors.New("resolve executable")

	// ErrStart marks a spawn failure. It is fatal to the whole run.
	ErrStart = errors.New("start process")
)

// Request names what to run. It is resolved afresh on every attempt.
type Request struct {
	Name string
	Args []string
	// Dir is the working directory for resolution and for the child.
	// Empty means the current directory.
	Dir string
	// SearchPath lists directories to search after Dir. Nil means the
	// PATH environment variable.
	SearchPath []string
}

// Outcome is the result of one attempt.
type Outcome struct {
	Command  Command
	ExitCode int
	// Spawned reports whether a child process was started.
	Spawned bool
	Err     error
	Elapsed time.Duration
}

// Attempt runs one resolve, spawn, capture and wait cycle.
type Attempt struct {
	spawn        Spawner
	resolver     *pathresolve.Resolver
	encoding     encoding.Encoding
	pollInterval time.Duration
	passThru     bool
	sink         sink.Sink
	logger       *slog.Logger
	getwd        func() (string, error)
	getenv       func(string) string
}

// AttemptOption configures an Attempt.
type AttemptOption func(*Attempt)

// WithSpawner sets the process factory. Defaults to ExecSpawner.
func WithSpawner(s Spawner) AttemptOption {
	return func(a *Attempt) { a.spawn = s }
}

// WithResolver sets the path resolver. Defaults to pathresolve.New().
func WithResolver(r *pathresolve.Resolver) AttemptOption {
	return func(a *Attempt) { a.resolver = r }
}

// WithEncoding sets the decoding applied to both streams. Nil means UTF-8.
func WithEncoding(enc encoding.Encoding) AttemptOption {
	return func(a *Attempt) { a.encoding = enc }
}

// WithPollInterval sets the loop's fallback wake interval.
func WithPollInterval(d time.Duration) AttemptOption {
	return func(a *Attempt) {
		if d > 0 {
			a.pollInterval = d
		}
	}
}

// WithPassThru routes stdout to the warning channel instead of output.
func WithPassThru(enabled bool) AttemptOption {
	return func(a *Attempt) { a.passThru = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) AttemptOption {
	return func(a *Attempt) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAttempt creates an Attempt that reports through s.
func NewAttempt(s sink.Sink, opts ...AttemptOption) *Attempt {
	a := &Attempt{
		spawn:        ExecSpawner(),
		resolver:     pathresolve.New(),
		pollInterval: DefaultPollInterval,
		sink:         s,
		logger:       slog.Default(),
		getwd:        os.Getwd,
		getenv:       os.Getenv,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.sink == nil {
		a.sink = sink.Discard
	}
	return a
}

// PassThru reports whether stdout is routed to the warning channel.
func (a *Attempt) PassThru() bool {
	return a.passThru
}

// Resolve turns a request into a Command without spawning anything.
func (a *Attempt) Resolve(req Request) (Command, error) {
	dir, searchPath, err := a.locate(req)
	if err != nil {
		return Command{}, err
	}

	path, err := a.resolver.Resolve(req.Name, dir, searchPath)
	if err != nil {
		return Command{}, err
	}
	return NewCommand(path, dir, req.Args), nil
}

// Candidates lists the locations Resolve probes for req, in order.
func (a *Attempt) Candidates(req Request) ([]pathresolve.Candidate, error) {
	dir, searchPath, err := a.locate(req)
	if err != nil {
		return nil, err
	}
	return a.resolver.Candidates(req.Name, dir, searchPath), nil
}

// locate returns the absolute working directory and search path for req.
func (a *Attempt) locate(req Request) (string, []string, error) {
	dir := req.Dir
	if dir == "" {
		wd, err := a.getwd()
		if err != nil {
			return "", nil, fmt.Errorf("working directory: %w", err)
		}
		dir = wd
	}
	if !filepath.IsAbs(dir) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", nil, fmt.Errorf("working directory: %w", err)
		}
		dir = abs
	}

	searchPath := req.SearchPath
	if searchPath == nil {
		searchPath = pathresolve.SplitSearchPath(a.getenv("PATH"))
	}
	return dir, searchPath, nil
}

// Run performs one attempt. index is 0-based. Every line the child writes
// before exiting reaches the sink before Run returns.
func (a *Attempt) Run(ctx context.Context, req Request, index int) Outcome {
	started := time.Now()
	log := a.logger.With("attempt", index+1, "name", req.Name)

	cmd, err := a.Resolve(req)
	if err != nil {
		log.Debug("resolution failed", "error", err)
		return Outcome{
			Command:  NewCommand(req.Name, req.Dir, req.Args),
			ExitCode: ExitCodeNotFound,
			Err:      fmt.Errorf("%w: %w", ErrResolve, err),
			Elapsed:  time.Since(started),
		}
	}

	proc := a.spawn()
	stdout, stderr, err := proc.Start(ctx, cmd)
	if err != nil {
		log.Error("spawn failed", "path", cmd.Path, "error", err)
		return Outcome{
			Command:  cmd,
			ExitCode: -1,
			Err:      fmt.Errorf("%w: %w", ErrStart, err),
			Elapsed:  time.Since(started),
		}
	}
	defer closeAll(stdout, stderr)

	log.Debug("process started", "path", cmd.Path, "dir", cmd.Dir, "args", cmd.Args)

	outQ, errQ := drain.NewQueue(), drain.NewQueue()
	outWorker := drain.Start(stdout, drain.StreamStdout, a.encoding, outQ)
	errWorker := drain.Start(stderr, drain.StreamStderr, a.encoding, errQ)

	exited := make(chan struct{})
	var waitErr error
	go func() {
		waitErr = proc.Wait()
		close(exited)
	}()

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

loop:
	for {
		a.deliver(outQ, errQ)
		select {
		case <-exited:
			break loop
		case <-outQ.Ready():
		case <-errQ.Ready():
		case <-ticker.C:
		}
	}

	// The child is gone but its last writes may still sit in the pipes.
	outDone, errDone := outWorker.Done(), errWorker.Done()
	for outDone != nil || errDone != nil {
		select {
		case <-outDone:
			outDone = nil
		case <-errDone:
			errDone = nil
		case <-outQ.Ready():
		case <-errQ.Ready():
		}
		a.deliver(outQ, errQ)
	}
	a.deliver(outQ, errQ)

	for _, w := range []*drain.Worker{outWorker, errWorker} {
		if err := w.Err(); err != nil {
			log.Warn("stream read failed", "stream", w.Stream(), "error", err)
		}
	}

	code, err := ExitCode(waitErr)
	outcome := Outcome{
		Command:  cmd,
		ExitCode: code,
		Spawned:  true,
		Elapsed:  time.Since(started),
	}
	if err != nil {
		outcome.Err = fmt.Errorf("wait: %w", err)
	}

	log.Debug("process exited", "exit_code", code, "elapsed", outcome.Elapsed)
	return outcome
}

// deliver empties both queues, stdout first.
func (a *Attempt) deliver(outQ, errQ *drain.Queue) {
	outQ.DrainTo(a.route)
	errQ.DrainTo(a.route)
}

func (a *Attempt) route(line drain.Line) {
	if line.Stream == drain.StreamStderr || a.passThru {
		a.sink.Warning(line.Text)
		return
	}
	a.sink.Output(line.Text)
}
