// Package report writes the result of a run to a YAML or JSON file.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/npratt/runlet/internal/config"
	"github.com/npratt/runlet/internal/controller"
)

// Report is the serialized form of a controller.Result.
type Report struct {
	RunID      string    `yaml:"run_id" json:"run_id"`
	State      string    `yaml:"state" json:"state"`
	Path       string    `yaml:"path" json:"path"`
	ExitCode   int       `yaml:"exit_code" json:"exit_code"`
	Attempts   int       `yaml:"attempts" json:"attempts"`
	PassThru   bool      `yaml:"pass_thru" json:"pass_thru"`
	Started    time.Time `yaml:"started" json:"started"`
	Finished   time.Time `yaml:"finished" json:"finished"`
	DurationMs int64     `yaml:"duration_ms" json:"duration_ms"`
	Error      string    `yaml:"error,omitempty" json:"error,omitempty"`
	History    []Entry   `yaml:"history" json:"history"`
}

// Entry describes one attempt.
type Entry struct {
	Attempt    int    `yaml:"attempt" json:"attempt"`
	Path       string `yaml:"path" json:"path"`
	ExitCode   *int   `yaml:"exit_code,omitempty" json:"exit_code,omitempty"`
	Terminal   bool   `yaml:"terminal" json:"terminal"`
	DurationMs int64  `yaml:"duration_ms" json:"duration_ms"`
	Error      string `yaml:"error,omitempty" json:"error,omitempty"`
}

// New builds a Report from a result and the run error, if any.
func New(res *controller.Result, runErr error) *Report {
	r := &Report{
		RunID:      res.RunID,
		State:      string(res.State),
		Path:       res.Path,
		ExitCode:   res.ExitCode,
		Attempts:   res.Attempts,
		PassThru:   res.PassThru,
		Started:    res.Started,
		Finished:   res.Finished,
		DurationMs: res.Duration().Milliseconds(),
		History:    make([]Entry, 0, len(res.Records)),
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	for _, rec := range res.Records {
		e := Entry{
			Attempt:    rec.Index + 1,
			Path:       rec.Path,
			ExitCode:   rec.ExitCode,
			Terminal:   rec.Terminal,
			DurationMs: rec.Elapsed.Milliseconds(),
		}
		if rec.Err != nil {
			e.Error = rec.Err.Error()
		}
		r.History = append(r.History, e)
	}
	return r
}

// Encode writes r to w in the given format.
func Encode(w io.Writer, format string, r *Report) error {
	switch format {
	case config.ReportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case config.ReportYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// Write encodes r and replaces path atomically, creating parent
// directories as needed.
func Write(path, format string, r *Report) error {
	var buf bytes.Buffer
	if err := Encode(&buf, format, r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	// Atomic write: temp file + rename
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Load reads a report written in either format.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if json.Valid(data) {
		err = json.Unmarshal(data, &r)
	} else {
		err = yaml.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}
