package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"openinterface/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler receives freshly loaded settings after the file changes.
type ChangeHandler func(Settings)

// Watcher reloads settings whenever the store's file is rewritten.
//
// The parent directory is watched rather than the file itself because
// atomic saves replace the file, which drops a watch held on the old inode.
type Watcher struct {
	store    *Store
	onChange ChangeHandler
	debounce time.Duration

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewWatcher prepares a watcher for store. A debounce of zero uses
// DefaultWatchDebounce.
func NewWatcher(store *Store, debounce time.Duration, onChange ChangeHandler) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		store:     store,
		onChange:  onChange,
		debounce:  debounce,
		fsWatcher: fsWatcher,
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching. The settings directory is created if needed.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.store.Path())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return &StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop ends watching. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	target := filepath.Clean(w.store.Path())
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logging.Warn("settings watcher error", "error", err)

		case <-fire:
			fire = nil
			logging.Debug("settings file changed, reloading", "path", target)
			if w.onChange != nil {
				w.onChange(w.store.Load())
			}
		}
	}
}
