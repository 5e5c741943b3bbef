package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/npratt/runlet/internal/config"
	"github.com/npratt/runlet/internal/events"
	"github.com/npratt/runlet/internal/runner"
	"github.com/npratt/runlet/internal/tui"
)

var version = "dev"

// printEvents writes recorded events from path to w. An empty runID prints
// the last count events of the file; "last" selects the most recent run.
// A non-zero since drops events recorded at or before it.
func printEvents(w io.Writer, path string, count int, runID string, since time.Time) error {
	reader := events.NewLogReader(path)

	var (
		list []events.Event
		err  error
	)
	if runID == "last" {
		runID, err = reader.LastRunID()
		if err != nil && !errors.Is(err, events.ErrFileNotFound) && !errors.Is(err, events.ErrEmptyFile) {
			return err
		}
	}
	if err == nil {
		switch {
		case runID != "":
			list, err = reader.ReadByRunID(runID)
			if !since.IsZero() {
				list = newerThan(list, since)
			}
		case !since.IsZero():
			list, err = reader.ReadAfterTimestamp(since)
		default:
			list, err = reader.ReadRecent(count)
		}
		if count > 0 && len(list) > count {
			list = list[len(list)-count:]
		}
	}

	switch {
	case errors.Is(err, events.ErrFileNotFound):
		_, err = fmt.Fprintln(w, "No events yet (events file does not exist)")
		return err
	case errors.Is(err, events.ErrEmptyFile):
		_, err = fmt.Fprintln(w, "No events yet")
		return err
	case err != nil:
		return err
	}

	for _, ev := range list {
		if _, err := fmt.Fprintln(w, events.FormatWithTimestamp(ev)); err != nil {
			return err
		}
	}
	return nil
}

func newerThan(list []events.Event, since time.Time) []events.Event {
	var out []events.Event
	for _, ev := range list {
		if ev.Timestamp().After(since) {
			out = append(out, ev)
		}
	}
	return out
}

// followEvents prints events appended to path until ctx is canceled.
func followEvents(ctx context.Context, w io.Writer, path string, logger *slog.Logger) error {
	follower := events.NewFollower(path, logger)
	if err := follower.SkipExisting(); err != nil {
		return err
	}

	fmt.Fprintln(w, "Following events (Ctrl+C to stop)...")
	err := follower.Follow(ctx, func(ev events.Event) {
		if text := events.FormatWithTimestamp(ev); text != "" {
			fmt.Fprintln(w, text)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// printResolution writes the resolved path for req, or every probed
// location when candidates is set.
func printResolution(w io.Writer, attempt *runner.Attempt, req runner.Request, candidates bool) error {
	if candidates {
		list, err := attempt.Candidates(req)
		if err != nil {
			return err
		}
		for _, c := range list {
			fmt.Fprintln(w, c.Path)
		}
		return nil
	}

	cmd, err := attempt.Resolve(req)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, cmd.Path)
	return nil
}

func main() {
	logLevel := &slog.LevelVar{}
	logLevel.Set(slog.LevelWarn)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	viper.SetEnvPrefix("RUNLET")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// setup loads config, applies the command's overrides and switches logging
	// to a file when overrides asks for it or --log-file is set. The returned
	// closer must be called when the command finishes.
	setup := func(cmd *cobra.Command, overrides func(*config.Config) bool) (*config.Config, func(), error) {
		// Commands share flag names, so bind only the running command's flags.
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = viper.BindPFlag(f.Name, f)
		})
		if viper.GetBool(FlagVerbose) {
			logLevel.Set(slog.LevelDebug)
		}

		cfg, err := config.LoadConfig(viper.GetViper())
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		toFile := false
		if overrides != nil {
			toFile = overrides(cfg)
		}
		if cmd.Flags().Changed(FlagLogFile) {
			cfg.Paths.Log = viper.GetString(FlagLogFile)
			toFile = true
		}

		closer := func() {}
		if toFile && cfg.Paths.Log != "" {
			result := SetupFileLogger(cfg.Paths.Log, logLevel, cfg.LogRotation)
			logger = result.Logger
			closer = func() { _ = result.Close() }
		}
		slog.SetDefault(logger)
		return cfg, closer, nil
	}

	rootCmd := &cobra.Command{
		Use:   "runlet",
		Short: "Run a command, retrying it until it succeeds",
		Long: `runlet runs an executable, captures its stdout and stderr line by line,
and re-runs it after a countdown while it exits non-zero, up to a retry budget.

runlet exits with the final exit code of the child.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .runlet/config.yaml)")
	rootCmd.PersistentFlags().String(FlagLogFile, "", "Log file path (logs go to stderr otherwise)")

	// Bind all flags to viper
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("runlet %s\n", version)
		},
	}

	// Run command
	runCmd := &cobra.Command{
		Use:   "run [flags] <file> [args...]",
		Short: "Run a command with retries",
		Long: `Run resolves <file> against the working directory and the search path,
runs it with the given arguments, and retries while it exits non-zero.

Stdout lines are printed to stdout and stderr lines as warnings on stderr.
With --pass-thru, stdout is treated as warnings too and the final exit code
is printed on stdout. Flags after <file> are passed to the child.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The live view owns the terminal, so it always logs to a file.
			cfg, closeLog, err := setup(cmd, func(cfg *config.Config) bool {
				applyRunFlags(viper.GetViper(), cmd.Flags(), cfg)
				if !cmd.Flags().Changed(FlagTUI) {
					autoLiveView(cfg, tui.IsTerminal)
				}
				return cfg.TUI.Enabled
			})
			if err != nil {
				return err
			}
			defer closeLog()

			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			req := buildRequest(args, viper.GetString(FlagDir), cfg.Runner.SearchPath)
			res, err := executeRun(ctx, cfg, req, runOptions{
				DryRun: viper.GetBool(FlagDryRun),
				TUI:    cfg.TUI.Enabled,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
				Logger: logger,
			})
			if err != nil {
				return err
			}
			if res.ExitCode != 0 {
				return &exitError{code: res.ExitCode}
			}
			return nil
		},
	}

	runCmd.Flags().SetInterspersed(false)
	runCmd.Flags().String(FlagEncoding, "utf-8", "Encoding of the child's output (utf-8, shift_jis, utf-16le, ...)")
	runCmd.Flags().Bool(FlagPassThru, false, "Treat stdout as warnings and print the final exit code")
	runCmd.Flags().Int(FlagRetryCount, 0, "Retries after the first failed attempt")
	runCmd.Flags().Int(FlagRetrySeconds, 0, "Seconds to wait between attempts")
	runCmd.Flags().String(FlagDir, "", "Working directory for resolution and the child (default: current)")
	runCmd.Flags().Bool(FlagDryRun, false, "Resolve and report the command without running it")
	runCmd.Flags().Bool(FlagTUI, false, "Show the run in a live terminal view")
	runCmd.Flags().String(FlagReport, "", "Write a run report to this path")
	runCmd.Flags().String(FlagReportFormat, config.ReportYAML, "Run report format (yaml/json)")
	runCmd.Flags().String(FlagEventsFile, "", "Record run events to this JSONL file (default: .runlet/events.jsonl)")
	runCmd.Flags().Duration(FlagPollInterval, runner.DefaultPollInterval, "Output polling interval while the child runs")
	runCmd.Flags().String(FlagSearchPath, "", "Directories to search instead of PATH (comma or PATH-style list)")

	// Resolve command
	resolveCmd := &cobra.Command{
		Use:   "resolve <name>",
		Short: "Print the executable a name resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			defer closeLog()

			if cmd.Flags().Changed(FlagSearchPath) {
				cfg.Runner.SearchPath = config.SplitDirList(viper.GetString(FlagSearchPath))
			}
			attempt := runner.NewAttempt(nil,
				runner.WithResolver(newResolver(cfg)),
				runner.WithLogger(logger),
			)
			req := buildRequest(args, viper.GetString(FlagDir), cfg.Runner.SearchPath)
			return printResolution(cmd.OutOrStdout(), attempt, req, viper.GetBool(FlagCandidates))
		},
	}

	resolveCmd.Flags().Bool(FlagCandidates, false, "List every location probed, in order")
	resolveCmd.Flags().String(FlagDir, "", "Directory searched first (default: current)")
	resolveCmd.Flags().String(FlagSearchPath, "", "Directories to search instead of PATH (comma or PATH-style list)")

	// Events command
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "View recorded run events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			defer closeLog()

			path := cfg.Paths.Events
			if cmd.Flags().Changed(FlagEventsFile) {
				path = viper.GetString(FlagEventsFile)
			}

			out := cmd.OutOrStdout()
			var since time.Time
			if d := viper.GetDuration(FlagSince); d > 0 {
				since = time.Now().Add(-d)
			}
			if err := printEvents(out, path, viper.GetInt(FlagCount), viper.GetString(FlagRun), since); err != nil {
				return err
			}
			if !viper.GetBool(FlagFollow) {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return followEvents(ctx, out, path, logger)
		},
	}

	eventsCmd.Flags().Bool(FlagFollow, false, "Follow event stream (like tail -f)")
	eventsCmd.Flags().Int(FlagCount, 20, "Number of recent events to show")
	eventsCmd.Flags().String(FlagRun, "", "Only show events of this run ID (\"last\" for the most recent run)")
	eventsCmd.Flags().Duration(FlagSince, 0, "Only show events newer than this (e.g. 10m, 2h)")
	eventsCmd.Flags().String(FlagEventsFile, "", "Events file to read (default: .runlet/events.jsonl)")

	// Register all commands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(eventsCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		var exit *exitError
		if !errors.As(err, &exit) {
			logger.Debug("command failed", "error", err)
			fmt.Fprintf(os.Stderr, "runlet: %v\n", err)
		}
		os.Exit(exitCodeFor(err))
	}
}
