package main

// Flag names for Viper binding
const (
	// Global flags
	FlagVerbose = "verbose"
	FlagConfig  = "config"
	FlagLogFile = "log-file"

	// Run command flags
	FlagEncoding     = "encoding"
	FlagPassThru     = "pass-thru"
	FlagRetryCount   = "retry-count"
	FlagRetrySeconds = "retry-seconds"
	FlagDir          = "dir"
	FlagDryRun       = "dry-run"
	FlagTUI          = "tui"
	FlagReport       = "report"
	FlagReportFormat = "report-format"
	FlagEventsFile   = "events-file"
	FlagPollInterval = "poll-interval"
	FlagSearchPath   = "search-path"

	// Resolve command flags
	FlagCandidates = "candidates"

	// Events command flags
	FlagFollow = "follow"
	FlagCount  = "count"
	FlagRun    = "run"
	FlagSince  = "since"
)
