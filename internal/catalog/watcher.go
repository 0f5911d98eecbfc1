package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/linnemanlabs/go-core/log"
)

const defaultWatchDebounce = 500 * time.Millisecond

// Watcher reloads a Catalog when its file changes on disk.
type Watcher struct {
	catalog  *Catalog
	path     string
	logger   log.Logger
	debounce time.Duration
	onReload func(error)

	mu       sync.Mutex
	timer    *time.Timer
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
}

// WatcherOption customizes a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period between the last file event and the reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithReloadHook is called after every reload attempt with its result.
func WithReloadHook(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// NewWatcher builds a watcher for a file-backed catalog.
func NewWatcher(c *Catalog, logger log.Logger, opts ...WatcherOption) (*Watcher, error) {
	if c == nil || c.path == "" {
		return nil, errors.New("catalog watcher needs a file-backed catalog")
	}
	if logger == nil {
		logger = log.Nop()
	}
	path := c.path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	w := &Watcher{
		catalog:  c,
		path:     filepath.Clean(path),
		logger:   logger,
		debounce: defaultWatchDebounce,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start watches the catalog's directory until ctx is done or Stop is called.
// Watching the directory rather than the file survives editors that replace it.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watcher != nil {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Unlock()
		_ = fsw.Close()
		return err
	}
	w.watcher = fsw
	w.mu.Unlock()

	go w.loop(fsw)
	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.stopCh:
		}
	}()

	w.logger.Info(ctx, "watching catalog", "path", w.path, "debounce", w.debounce.String())
	return nil
}

// Stop terminates the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
			w.watcher = nil
		}
	})
}

func (w *Watcher) loop(fsw *fsnotify.Watcher) {
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn(context.Background(), "catalog watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return
	}
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	w.schedule()
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		err := w.catalog.Reload(context.Background())
		if w.onReload != nil {
			w.onReload(err)
		}
	})
}
