package events

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval is the time to wait for rapid file changes to settle.
const debounceInterval = 100 * time.Millisecond

// Follower tails an events file, delivering events appended after its
// current offset. It survives the file being replaced or truncated.
type Follower struct {
	path     string
	logger   *slog.Logger
	offset   int64
	info     os.FileInfo
	debounce time.Duration
}

// NewFollower creates a Follower that starts at the beginning of path.
func NewFollower(path string, logger *slog.Logger) *Follower {
	if logger == nil {
		logger = slog.Default()
	}
	return &Follower{
		path:     path,
		logger:   logger.With("component", "follower"),
		debounce: debounceInterval,
	}
}

// SkipExisting moves the offset to the current end of the file so only
// events written from now on are delivered.
func (f *Follower) SkipExisting() error {
	info, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	f.info = info
	f.offset = info.Size()
	return nil
}

// Follow calls fn for every complete event line appended to the file until
// ctx is done. Lines that fail to parse are delivered as ParseErrorEvents.
func (f *Follower) Follow(ctx context.Context, fn func(Event)) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer func() { _ = fsWatcher.Close() }()

	// Watch the parent directory since the file may not exist yet
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}

	f.logger.Debug("following events file", "path", f.path, "offset", f.offset)

	if err := f.readNew(fn); err != nil {
		return err
	}

	target := filepath.Base(f.path)
	debounce := time.NewTimer(f.debounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				f.logger.Debug("events file moved", "op", event.Op.String())
				f.reset()
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				debounce.Reset(f.debounce)
			}

		case <-debounce.C:
			if err := f.readNew(fn); err != nil {
				f.logger.Warn("read events failed", "error", err)
			}

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (f *Follower) reset() {
	f.offset = 0
	f.info = nil
}

// readNew delivers complete lines past the offset. A trailing partial line
// is left for the next read.
func (f *Follower) readNew(fn func(Event)) error {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	// Detect rotation: different file or size decreased
	if f.info != nil && (!os.SameFile(f.info, info) || info.Size() < f.offset) {
		f.logger.Debug("events file rotated", "old_offset", f.offset, "new_size", info.Size())
		f.offset = 0
	}
	f.info = info

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		f.offset += int64(len(line))

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		ev, parseErr := ParseEvent(line)
		if parseErr != nil {
			fn(&ParseErrorEvent{
				BaseEvent: NewInternalEvent(EventParseError),
				Line:      Truncate(string(line), 200),
				Error:     parseErr.Error(),
			})
			continue
		}
		if ev != nil {
			fn(ev)
		}
	}
}
