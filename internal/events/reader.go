package events

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"
)

const (
	// maxLineSize is the maximum size for a single JSON line (1MB).
	maxLineSize = 1 << 20

	// truncationMarker is appended to truncated lines.
	truncationMarker = "...[TRUNCATED]"
)

var (
	// ErrFileNotFound is returned when the events file does not exist.
	ErrFileNotFound = errors.New("events file not found")

	// ErrEmptyFile is returned when the events file is empty.
	ErrEmptyFile = errors.New("events file is empty")
)

// LogReader reads recorded events back from a JSONL events file.
type LogReader struct {
	path string
}

// NewLogReader creates a new LogReader for the given events file path.
func NewLogReader(path string) *LogReader {
	return &LogReader{
		path: path,
	}
}

// ReadAll returns every event in the file in recorded order.
func (r *LogReader) ReadAll() ([]Event, error) {
	return r.readAllEvents()
}

// ReadRecent returns the last n events from the file.
// If the file has fewer than n events, all events are returned.
func (r *LogReader) ReadRecent(n int) ([]Event, error) {
	if n <= 0 {
		return nil, nil
	}

	allEvents, err := r.readAllEvents()
	if err != nil {
		return nil, err
	}

	if len(allEvents) <= n {
		return allEvents, nil
	}

	return allEvents[len(allEvents)-n:], nil
}

// ReadByRunID returns all events recorded for the given run.
func (r *LogReader) ReadByRunID(runID string) ([]Event, error) {
	if runID == "" {
		return nil, nil
	}

	allEvents, err := r.readAllEvents()
	if err != nil {
		return nil, err
	}

	var filtered []Event
	for _, ev := range allEvents {
		if GetRunID(ev) == runID {
			filtered = append(filtered, ev)
		}
	}

	return filtered, nil
}

// LastRunID returns the ID of the most recently started run, or "" if the
// file records none.
func (r *LogReader) LastRunID() (string, error) {
	allEvents, err := r.readAllEvents()
	if err != nil {
		return "", err
	}

	for i := len(allEvents) - 1; i >= 0; i-- {
		if allEvents[i].Type() == EventRunStart {
			return GetRunID(allEvents[i]), nil
		}
	}
	return "", nil
}

// ReadAfterTimestamp returns all events after the given timestamp.
func (r *LogReader) ReadAfterTimestamp(t time.Time) ([]Event, error) {
	allEvents, err := r.readAllEvents()
	if err != nil {
		return nil, err
	}

	var filtered []Event
	for _, ev := range allEvents {
		if ev.Timestamp().After(t) {
			filtered = append(filtered, ev)
		}
	}

	return filtered, nil
}

// readAllEvents reads and parses all events from the file.
func (r *LogReader) readAllEvents() ([]Event, error) {
	file, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if info.Size() == 0 {
		return nil, ErrEmptyFile
	}

	reader := bufio.NewReaderSize(file, maxLineSize)
	var result []Event

	for {
		line, err := readLine(reader)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		if len(line) == 0 {
			continue
		}

		ev, err := ParseEvent(line)
		if err != nil {
			slog.Warn("failed to parse event line",
				"error", err,
				"line_preview", Truncate(string(line), 100))
			continue
		}

		if ev != nil {
			result = append(result, ev)
		}
	}

	return result, nil
}

// readLine reads a single line, truncating lines that exceed maxLineSize.
func readLine(reader *bufio.Reader) ([]byte, error) {
	var line []byte

	for {
		chunk, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				return line, nil
			}
			return line, err
		}

		line = append(line, chunk...)

		if len(line) > maxLineSize {
			// Discard the rest of the line
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err != nil {
					break
				}
			}

			truncated := make([]byte, maxLineSize)
			copy(truncated, line[:maxLineSize-len(truncationMarker)])
			copy(truncated[maxLineSize-len(truncationMarker):], truncationMarker)
			return truncated, nil
		}

		if !isPrefix {
			break
		}
	}

	return line, nil
}
