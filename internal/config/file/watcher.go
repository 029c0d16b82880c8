package file

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"netorch/internal/config"
	"netorch/internal/logging"
)

// Watcher holds the live configuration loaded from a Store, reloading
// it via an atomically swapped pointer whenever the backing file
// changes on disk. Safe for concurrent use.
type Watcher struct {
	store  *Store
	logger *slog.Logger

	cfg   atomic.Pointer[config.Config]
	ready chan struct{}
	w     *fsnotify.Watcher
	done  chan struct{}
}

// NewWatcher loads the initial configuration from store and starts
// watching its backing file for changes.
func NewWatcher(ctx context.Context, store *Store, logger *slog.Logger) (*Watcher, error) {
	logger = logging.Default(logger).With("component", "config.file.watcher")

	cfg, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("config/file: initial load: %w", err)
	}
	if cfg == nil {
		// First run: nothing on disk yet. Persist the bootstrap config
		// so the file exists for fsnotify.Add below, and so a restart
		// reads back the same config an operator might now edit.
		cfg = config.DefaultConfig()
		if err := store.Save(ctx, cfg); err != nil {
			return nil, fmt.Errorf("config/file: persist bootstrap config: %w", err)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config/file: create watcher: %w", err)
	}
	if err := fw.Add(store.path); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("config/file: watch %q: %w", store.path, err)
	}

	watcher := &Watcher{
		store:  store,
		logger: logger,
		ready:  make(chan struct{}, 1),
		w:      fw,
		done:   make(chan struct{}),
	}
	watcher.cfg.Store(cfg)

	go watcher.run(ctx)
	return watcher, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *config.Config { return w.cfg.Load() }

// Ready satisfies core.Source, firing whenever a reload has happened.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			_ = w.w.Close()
			return
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := w.store.Load(ctx)
			if err != nil {
				w.logger.Warn("reload config failed", "error", err)
				continue
			}
			if cfg == nil {
				continue
			}
			w.cfg.Store(cfg)
			w.logger.Info("config reloaded")
			select {
			case w.ready <- struct{}{}:
			default:
			}
		case _, ok := <-w.w.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watch goroutine and releases the underlying
// fsnotify handle.
func (w *Watcher) Close() error {
	_ = w.w.Close()
	<-w.done
	return nil
}
