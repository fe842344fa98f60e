// Package configwatch hot-reloads config.Config from its YAML file:
// watch the file's directory, reload on Write, diff before publishing.
// No checksum/version-history/A-B-testing machinery — this core's
// config is small enough to diff by value, and has no concept of
// multiple concurrently-live versions.
package configwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/edgevec/schedcore/config"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads config.Config from disk on every write to its file and
// publishes validated changes on the channel WatchChanges returns.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu         sync.Mutex
	isWatching bool
	last       config.Config
}

// New constructs a Watcher for the config file at path. It does not
// start watching until WatchChanges is called.
func New(path string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	return &Watcher{path: path, watcher: w}, nil
}

// WatchChanges starts watching the config file's directory (fsnotify
// cannot watch a single file reliably across editors that replace it via
// rename) and returns a channel of validated config changes plus a
// channel of load/validation errors. Both channels close when ctx is
// cancelled or Stop is called.
func (w *Watcher) WatchChanges(ctx context.Context, initial config.Config) (<-chan config.Config, <-chan error) {
	changes := make(chan config.Config, 4)
	errs := make(chan error, 4)

	w.mu.Lock()
	if w.isWatching {
		w.mu.Unlock()
		close(changes)
		close(errs)
		return changes, errs
	}
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Unlock()
		errs <- fmt.Errorf("watch config dir %s: %w", dir, err)
		close(changes)
		close(errs)
		return changes, errs
	}
	w.isWatching = true
	w.last = initial
	w.mu.Unlock()

	go func() {
		defer close(changes)
		defer close(errs)
		for {
			select {
			case e, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if e.Name != w.path {
					continue
				}
				if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := config.Load(w.path)
				if err != nil {
					errs <- err
					continue
				}
				w.mu.Lock()
				changed := cfg != w.last
				if changed {
					w.last = cfg
				}
				w.mu.Unlock()
				if changed {
					changes <- cfg
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				errs <- err
			case <-ctx.Done():
				return
			}
		}
	}()
	return changes, errs
}

// Stop closes the underlying file watcher. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isWatching {
		return nil
	}
	w.isWatching = false
	return w.watcher.Close()
}
