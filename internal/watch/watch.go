// Package watch re-runs an action whenever a trace log changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceDefault is used when New is given a non-positive debounce.
const debounceDefault = 500 * time.Millisecond

// maxWaitFactor sets the default ceiling as a multiple of the debounce.
const maxWaitFactor = 10

// Watcher calls fn after writes to a single file settle, or once maxWait
// has passed since the first unhandled write, whichever comes first.
type Watcher struct {
	path     string
	debounce time.Duration
	maxWait  time.Duration
	fn       func() error
	logger   *zap.Logger
}

// New creates a Watcher for path. fn runs on the watcher goroutine, so two
// runs never overlap.
func New(path string, debounce time.Duration, fn func() error, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = debounceDefault
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		maxWait:  maxWaitFactor * debounce,
		fn:       fn,
		logger:   logger,
	}
}

// WithMaxWait bounds how long a steady stream of writes can postpone fn.
// Non-positive values keep the default of ten debounce periods.
func (w *Watcher) WithMaxWait(d time.Duration) *Watcher {
	if d > 0 {
		w.maxWait = d
	}
	return w
}

// Run watches the file's directory (the file may not exist yet, and
// watching the directory survives replacement). Blocks until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch: add %q: %w", filepath.Dir(w.path), err)
	}

	// Single debounce timer, initialized as stopped; first event starts it.
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	// first is the time of the earliest write not yet handled by fn.
	var first time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			first = time.Time{}
			if err := w.fn(); err != nil {
				w.logger.Error("re-aggregation failed", zap.Error(err))
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("trace log changed", zap.String("op", event.Op.String()))
			now := time.Now()
			if first.IsZero() {
				first = now
			}
			timer.Reset(min(w.debounce, max(0, w.maxWait-now.Sub(first))))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}
