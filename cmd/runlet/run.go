package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/npratt/runlet/internal/config"
	"github.com/npratt/runlet/internal/controller"
	"github.com/npratt/runlet/internal/drain"
	"github.com/npratt/runlet/internal/events"
	"github.com/npratt/runlet/internal/pathresolve"
	"github.com/npratt/runlet/internal/report"
	"github.com/npratt/runlet/internal/runner"
	"github.com/npratt/runlet/internal/sink"
	"github.com/npratt/runlet/internal/tui"
)

// tuiBufferSize is the live view's subscription buffer.
const tuiBufferSize = 5000

// exitError carries the exit status runlet should end with.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// ExitCode returns the status to exit with.
func (e *exitError) ExitCode() int {
	return e.code
}

// exitCodeFor maps a command error to a process exit status. Codes outside
// 0-255, such as the -1 of a child ended by a signal, become 1.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		if code := coder.ExitCode(); code >= 0 && code <= 255 {
			return code
		}
	}
	return 1
}

// runOptions holds per-invocation settings that are not part of Config.
type runOptions struct {
	DryRun bool
	TUI    bool
	RunID  string
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// applyRunFlags copies explicitly set run flags over cfg.
func applyRunFlags(v *viper.Viper, flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed(FlagEncoding) {
		cfg.Output.Encoding = v.GetString(FlagEncoding)
	}
	if flags.Changed(FlagPassThru) {
		cfg.Output.PassThru = v.GetBool(FlagPassThru)
	}
	if flags.Changed(FlagRetryCount) {
		cfg.Retry.Count = v.GetInt(FlagRetryCount)
	}
	if flags.Changed(FlagRetrySeconds) {
		cfg.Retry.Seconds = v.GetInt(FlagRetrySeconds)
	}
	if flags.Changed(FlagPollInterval) {
		cfg.Runner.PollInterval = v.GetDuration(FlagPollInterval)
	}
	if flags.Changed(FlagSearchPath) {
		cfg.Runner.SearchPath = config.SplitDirList(v.GetString(FlagSearchPath))
	}
	if flags.Changed(FlagTUI) {
		cfg.TUI.Enabled = v.GetBool(FlagTUI)
	}
	if flags.Changed(FlagReport) {
		cfg.Report.Path = v.GetString(FlagReport)
	}
	if flags.Changed(FlagReportFormat) {
		cfg.Report.Format = v.GetString(FlagReportFormat)
	}
	if flags.Changed(FlagEventsFile) {
		cfg.Paths.Events = v.GetString(FlagEventsFile)
	}
	cfg.Normalize()
}

// autoLiveView turns the live view on for a config with tui.auto set when
// isTerminal reports an interactive terminal.
func autoLiveView(cfg *config.Config, isTerminal func() bool) {
	if cfg.TUI.Auto && !cfg.TUI.Enabled && isTerminal() {
		cfg.TUI.Enabled = true
	}
}

// buildRequest turns the positional arguments into a run request.
func buildRequest(args []string, dir string, searchPath []string) runner.Request {
	req := runner.Request{
		Name: args[0],
		Args: args[1:],
		Dir:  dir,
	}
	if len(searchPath) > 0 {
		req.SearchPath = searchPath
	}
	return req
}

// newResolver builds the path resolver described by cfg.
func newResolver(cfg *config.Config) *pathresolve.Resolver {
	r := pathresolve.New()
	if cfg.Runner.ExecutableSuffix != "" {
		r.Suffix = cfg.Runner.ExecutableSuffix
	}
	return r
}

// newAttempt builds the single-attempt runner described by cfg.
func newAttempt(cfg *config.Config, s sink.Sink, logger *slog.Logger) (*runner.Attempt, error) {
	enc, err := drain.LookupEncoding(cfg.Output.Encoding)
	if err != nil {
		return nil, err
	}
	return runner.NewAttempt(s,
		runner.WithResolver(newResolver(cfg)),
		runner.WithEncoding(enc),
		runner.WithPollInterval(cfg.Runner.PollInterval),
		runner.WithPassThru(cfg.Output.PassThru),
		runner.WithLogger(logger),
	), nil
}

// executeRun wires the router, sinks, attempt runner and controller for one
// run, shows it on the console or in the live view, and writes the report.
func executeRun(ctx context.Context, cfg *config.Config, req runner.Request, opts runOptions) (*controller.Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	router := events.NewRouter(events.DefaultBufferSize)
	defer router.Close()

	// Events file
	var logSink *events.LogSink
	if cfg.Paths.Events != "" {
		logSink = events.NewLogSink(cfg.Paths.Events)
		if err := logSink.Start(ctx, router.Subscribe()); err != nil {
			return nil, fmt.Errorf("start events sink: %w", err)
		}
	}

	var view *tui.TUI
	if opts.TUI {
		view = tui.New(router.SubscribeBuffered(tuiBufferSize),
			tui.WithOutput(opts.Stderr),
			tui.WithOnQuit(func() {
				logger.Info("live view closed, run continues", "run_id", runID)
			}),
		)
	}

	out := sink.Sink(sink.NewEvents(router, runID))
	if view == nil {
		out = sink.Multi(sink.NewConsole(opts.Stdout, opts.Stderr), out)
	}

	attempt, err := newAttempt(cfg, out, logger)
	if err != nil {
		router.Close()
		stopLogSink(logSink, logger)
		return nil, err
	}

	ctrl := controller.New(cfg, attempt, out, router, logger,
		controller.WithRunID(runID),
		controller.WithDryRun(opts.DryRun),
	)

	var (
		res    *controller.Result
		runErr error
	)
	if view != nil {
		done := make(chan struct{})
		go func() {
			defer close(done)
			res, runErr = ctrl.Execute(ctx, req)
			router.Close()
		}()
		if err := view.Run(); err != nil {
			logger.Warn("live view failed", "error", err)
		}
		<-done
	} else {
		res, runErr = ctrl.Execute(ctx, req)
		router.Close()
	}
	stopLogSink(logSink, logger)

	if cfg.Report.Path != "" {
		if err := report.Write(cfg.Report.Path, cfg.Report.Format, report.New(res, runErr)); err != nil {
			logger.Error("write report failed", "path", cfg.Report.Path, "error", err)
			if runErr == nil {
				runErr = fmt.Errorf("write report: %w", err)
			}
		}
	}

	if view != nil && runErr == nil && res != nil {
		fmt.Fprintf(opts.Stderr, "run %s: %s after %d attempt(s), exit code %d\n",
			res.RunID, res.State, res.Attempts, res.ExitCode)
		// The view owns the terminal while it runs, so the pass-through
		// exit code is forwarded once it has closed.
		if cfg.Output.PassThru && !opts.DryRun {
			sink.NewConsole(opts.Stdout, opts.Stderr).ExitCode(res.ExitCode)
		}
	}
	return res, runErr
}

func stopLogSink(s *events.LogSink, logger *slog.Logger) {
	if s == nil {
		return
	}
	if err := s.Stop(); err != nil {
		logger.Warn("close events file failed", "error", err)
	}
}
