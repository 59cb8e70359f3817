package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig configures a policy file watcher.
type WatcherConfig struct {
	// Path is the policy file to watch.
	Path string

	// DebounceInterval is the quiet period after the last change before a
	// reload runs (default: 200ms).
	DebounceInterval time.Duration
}

// Watcher reloads a policy file into a Holder whenever it changes on disk.
// The parent directory is watched so that editors replacing the file by rename
// are picked up.
type Watcher struct {
	watcher  *fsnotify.Watcher
	holder   *Holder
	logger   *slog.Logger
	config   WatcherConfig
	debounce *debouncer

	mu       sync.Mutex
	running  bool
	onReload func(*Table, error)
}

// NewWatcher creates a watcher for cfg.Path feeding holder.
func NewWatcher(cfg WatcherConfig, holder *Holder, logger *slog.Logger) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("policy watcher: path is required")
	}
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher:  fw,
		holder:   holder,
		logger:   logger.With("component", "policy.watcher"),
		config:   cfg,
		debounce: newDebouncer(cfg.DebounceInterval),
	}, nil
}

// OnReload registers a callback invoked after every reload attempt with the
// new table, or with the error that kept the previous table active.
func (w *Watcher) OnReload(fn func(*Table, error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = fn
}

// Watch blocks until ctx is cancelled, reloading the policy on change.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("policy watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.debounce.stop()
		w.watcher.Close()
	}()

	target, err := filepath.Abs(w.config.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve policy path: %w", err)
	}
	if err := w.watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", filepath.Dir(target), err)
	}

	w.logger.Info("policy watcher started",
		"path", target,
		"debounce_ms", w.config.DebounceInterval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("policy watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			if name, _ := filepath.Abs(event.Name); name != target {
				continue
			}
			w.logger.Debug("policy file event", "op", event.Op.String())
			w.debounce.trigger(func() { w.reload(target) })

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("policy watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(path string) {
	err := w.holder.Reload(path)
	if err != nil {
		w.logger.Error("policy reload failed, keeping previous table", "error", err)
	} else {
		w.logger.Info("policy reloaded", "categories", len(w.holder.Current().Categories))
	}

	w.mu.Lock()
	fn := w.onReload
	w.mu.Unlock()
	if fn != nil {
		if err != nil {
			fn(nil, err)
		} else {
			fn(w.holder.Current(), nil)
		}
	}
}

// debouncer collapses bursts of events into one callback after a quiet period.
type debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
