// Package follow tails a growing file, such as a run transcript, and hands
// each appended chunk to a callback.
package follow

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"agentpipe/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the fallback read interval for filesystems that
// drop change notifications.
const DefaultPollInterval = 250 * time.Millisecond

// Follower tails files. The zero value is ready to use.
type Follower struct {
	PollInterval time.Duration
}

// Follow tails path with default settings.
func Follow(ctx context.Context, path string, fn func(string)) error {
	return Follower{}.Follow(ctx, path, fn)
}

// Follow forwards the file's existing content and then every appended
// chunk to fn, in order. It returns nil once the file is removed or
// renamed, and ctx.Err() when ctx is done. A file that shrinks is read
// again from the start.
func (f Follower) Follow(ctx context.Context, path string, fn func(string)) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	file, err := os.Open(target)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so removal and replacement are reported.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	t := &tail{file: file, fn: fn, buf: make([]byte, 32*1024)}
	if err := t.drain(); err != nil {
		return err
	}

	interval := f.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.FollowDebug("Following %s from offset %d", target, t.offset)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				if err := t.drain(); err != nil {
					return err
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				// The open descriptor still reads whatever was written last.
				if err := t.drain(); err != nil {
					return err
				}
				logging.FollowDebug("%s went away (%s), stopping", target, event.Op)
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.FollowDebug("Watcher error: %v", err)

		case <-ticker.C:
			if err := t.drain(); err != nil {
				return err
			}
		}
	}
}

type tail struct {
	file   *os.File
	fn     func(string)
	buf    []byte
	offset int64
}

// drain reads until EOF, forwarding every chunk.
func (t *tail) drain() error {
	info, err := t.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat followed file: %w", err)
	}
	if info.Size() < t.offset {
		logging.FollowDebug("File truncated (%d < %d), rewinding", info.Size(), t.offset)
		if _, err := t.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("failed to rewind followed file: %w", err)
		}
		t.offset = 0
	}

	for {
		n, err := t.file.Read(t.buf)
		if n > 0 {
			t.offset += int64(n)
			t.fn(string(t.buf[:n]))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read followed file: %w", err)
		}
	}
}
