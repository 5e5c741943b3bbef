// Package config provides configuration types and defaults for runlet.
package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for runlet.
type Config struct {
	Retry       RetryConfig       `yaml:"retry" mapstructure:"retry"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Runner      RunnerConfig      `yaml:"runner" mapstructure:"runner"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
	TUI         TUIConfig         `yaml:"tui" mapstructure:"tui"`
	Report      ReportConfig      `yaml:"report" mapstructure:"report"`
}

// RetryConfig controls how often a failed child is re-run.
type RetryConfig struct {
	Count   int `yaml:"count" mapstructure:"count"`     // Retries after the first attempt (0 = run once)
	Seconds int `yaml:"seconds" mapstructure:"seconds"` // Delay between attempts, counted down one second at a time
}

// OutputConfig controls how captured output is decoded and routed.
type OutputConfig struct {
	Encoding string `yaml:"encoding" mapstructure:"encoding"`   // Decoding for both streams (utf-8, shift_jis, ...)
	PassThru bool   `yaml:"pass_thru" mapstructure:"pass_thru"` // Route stdout to warnings and forward only the exit code
}

// RunnerConfig holds process spawning settings.
type RunnerConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	ExecutableSuffix string        `yaml:"executable_suffix" mapstructure:"executable_suffix"` // Empty means platform default
	SearchPath       []string      `yaml:"search_path" mapstructure:"search_path"`             // Empty means PATH
}

// PathsConfig holds file paths for logs and recorded events.
type PathsConfig struct {
	Log    string `yaml:"log" mapstructure:"log"`
	Events string `yaml:"events" mapstructure:"events"`
}

// LogRotationConfig holds settings for log file rotation.
// Used for the debug log (lumberjack-based automatic rotation).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// TUIConfig holds settings for the live terminal view.
type TUIConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Auto turns the view on when stdin and stdout are both a terminal.
	Auto bool `yaml:"auto" mapstructure:"auto"`
}

// ReportConfig controls the run report written after a run.
type ReportConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`     // Empty disables the report
	Format string `yaml:"format" mapstructure:"format"` // "yaml" or "json"
}

// Report formats.
const (
	ReportYAML = "yaml"
	ReportJSON = "json"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Retry: RetryConfig{
			Count:   0,
			Seconds: 0,
		},
		Output: OutputConfig{
			Encoding: "utf-8",
			PassThru: false,
		},
		Runner: RunnerConfig{
			PollInterval: 50 * time.Millisecond,
			SearchPath:   []string{},
		},
		Paths: PathsConfig{
			Log:    ".runlet/runlet.log",
			Events: ".runlet/events.jsonl",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		TUI: TUIConfig{
			Enabled: false,
		},
		Report: ReportConfig{
			Format: ReportYAML,
		},
	}
}

// Normalize clamps negative retry values to zero and fills empty fields
// with defaults.
func (c *Config) Normalize() {
	if c.Retry.Count < 0 {
		c.Retry.Count = 0
	}
	if c.Retry.Seconds < 0 {
		c.Retry.Seconds = 0
	}
	if c.Runner.PollInterval <= 0 {
		c.Runner.PollInterval = Default().Runner.PollInterval
	}
	if c.Output.Encoding == "" {
		c.Output.Encoding = Default().Output.Encoding
	}
	if c.Report.Format == "" {
		c.Report.Format = ReportYAML
	}
}

// Validate reports configuration values that cannot be used.
func (c *Config) Validate() error {
	switch c.Report.Format {
	case ReportYAML, ReportJSON:
	default:
		return fmt.Errorf("report format %q: must be %q or %q", c.Report.Format, ReportYAML, ReportJSON)
	}
	return nil
}
