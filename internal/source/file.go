package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CounterFile is a push-style stream over a counter file: an external
// sensor daemon keeps the file's content equal to its current
// cumulative step count, and every write becomes a reading.
//
// The parent directory is watched rather than the file itself so
// atomic rename-into-place writers (and a file that does not exist yet
// at subscribe time) are handled.
type CounterFile struct {
	path   string
	origin string
}

// NewCounterFile creates a stream over the counter file at path.
func NewCounterFile(path string) *CounterFile {
	return &CounterFile{path: path, origin: "sensor"}
}

// Name identifies the stream for logging.
func (c *CounterFile) Name() string { return c.origin }

// Subscribe starts watching the counter file. The returned channel
// closes when ctx is cancelled or the watcher fails; the caller
// resubscribes with backoff.
func (c *CounterFile) Subscribe(ctx context.Context) (<-chan Reading, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: watcher: %v", ErrUnavailable, err)
	}
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("%w: watch %s: %v", ErrUnavailable, filepath.Dir(c.path), err)
	}

	out := make(chan Reading, 16)
	go func() {
		defer close(out)
		defer watcher.Close()

		// The file may already hold a value; deliver it as the first
		// reading so a fresh subscription has a baseline candidate.
		if value, err := c.read(); err == nil {
			if !c.deliver(ctx, out, value) {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != c.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				value, err := c.read()
				if err != nil {
					slog.Debug("counter file unreadable", "path", c.path, "error", err)
					continue
				}
				if !c.deliver(ctx, out, value) {
					return
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("counter file watcher error", "path", c.path, "error", err)
				return
			}
		}
	}()

	return out, nil
}

// QueryCumulative reads the current counter value, making the counter
// file usable as a pull source as well. The window is ignored: the file
// only ever holds the current cumulative count.
func (c *CounterFile) QueryCumulative(_ context.Context, _, _ time.Time) (int64, error) {
	value, err := c.read()
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (c *CounterFile) deliver(ctx context.Context, out chan<- Reading, value int64) bool {
	select {
	case out <- Reading{Origin: c.origin, Cumulative: value, ObservedAt: time.Now()}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *CounterFile) read() (int64, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s missing", ErrUnavailable, c.path)
		}
		return 0, fmt.Errorf("%w: read %s: %v", ErrUnavailable, c.path, err)
	}
	value, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed counter in %s: %v", ErrUnavailable, c.path, err)
	}
	return value, nil
}
