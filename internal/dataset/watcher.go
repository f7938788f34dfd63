package dataset

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloader is implemented by Store.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Watcher reloads the dataset when its CSV file changes. The parent
// directory is watched so editors that replace the file by rename are
// picked up too.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	reloader Reloader
	logger   *zap.Logger
	debounce time.Duration
}

// NewWatcher starts watching path's directory.
func NewWatcher(path string, reloader Reloader, logger *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     abs,
		watcher:  w,
		reloader: reloader,
		logger:   logger,
		debounce: 500 * time.Millisecond,
	}, nil
}

// Run handles events until ctx is done or the watcher is closed.
// Bursts of writes within the debounce interval cause a single reload.
func (w *Watcher) Run(ctx context.Context) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.logger.Info("dataset file changed, reloading", zap.String("path", w.path))
			if err := w.reloader.Reload(ctx); err != nil {
				w.logger.Warn("reload after file change failed; keeping previous snapshot", zap.Error(err))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
