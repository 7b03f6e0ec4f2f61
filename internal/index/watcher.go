// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// Watcher keeps a PathIndex current by applying file system events.
//
// Creates and writes are debounced per path and then upserted. Removes and
// renames drop the path (and anything below it) immediately. Directories
// created while watching are added recursively.
type Watcher struct {
	idx      *PathIndex
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time // path -> last change

	errLog rate.Sometimes

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for idx. Call Start to begin watching.
func NewWatcher(idx *PathIndex, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		idx:      idx,
		fsw:      fsw,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		errLog:   rate.Sometimes{First: 3, Interval: 10 * time.Second},
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start registers the root tree and starts the event goroutines.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.idx.root, false); err != nil {
		return err
	}

	w.wg.Add(2)
	go w.processEvents()
	go w.processPending()
	return nil
}

// Close stops watching and waits for the event goroutines to exit.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

// addRecursive watches dir and every non-ignored directory below it. With
// enqueue set, files already present are queued for indexing; they may have
// been written before the watch was in place.
func (w *Watcher) addRecursive(dir string, enqueue bool) error {
	opts := w.idx.config.Options
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		if !d.IsDir() {
			if enqueue && d.Type().IsRegular() && !opts.ignored(d.Name()) {
				w.enqueue(path)
			}
			return nil
		}

		if path != w.idx.root && opts.ignored(d.Name()) {
			return filepath.SkipDir
		}

		if err := w.fsw.Add(path); err != nil {
			w.logError(err, path)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("index: watcher event loop crashed")
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logError(err, "")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.idx.isDatabaseFile(event.Name) {
		return
	}
	log.WithFields(log.Fields{"path": event.Name, "op": event.Op.String()}).Debug("index: fs event")

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.mu.Lock()
		delete(w.pending, event.Name)
		w.mu.Unlock()

		if err := w.idx.Remove(event.Name); err != nil {
			w.logError(err, event.Name)
		}
		return
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addRecursive(event.Name, true); err != nil {
				w.logError(err, event.Name)
			}
		}
		return
	}
	w.enqueue(event.Name)
}

func (w *Watcher) enqueue(path string) {
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// processPending flushes paths that have been quiet for the debounce period.
func (w *Watcher) processPending() {
	defer w.wg.Done()

	interval := min(100*time.Millisecond, max(w.debounce/2, 10*time.Millisecond))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()

			w.mu.Lock()
			var ready []string
			for path, changed := range w.pending {
				if now.Sub(changed) >= w.debounce {
					ready = append(ready, path)
					delete(w.pending, path)
				}
			}
			w.mu.Unlock()

			for _, path := range ready {
				w.updateFile(path)
			}
		}
	}
}

func (w *Watcher) updateFile(path string) {
	info, err := os.Stat(path)
	if err != nil {
		// Gone before the debounce expired.
		if err := w.idx.Remove(path); err != nil {
			w.logError(err, path)
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}
	if err := w.idx.Upsert(path); err != nil {
		w.logError(err, path)
	}
}

// logError reports watcher errors without flooding the log when a whole tree
// fails at once.
func (w *Watcher) logError(err error, path string) {
	w.errLog.Do(func() {
		log.WithError(err).WithField("path", path).Warn("index: watcher error")
	})
}

// =============================================================================
// WATCHER FACTORY
// =============================================================================

// startWatcher attaches a running Watcher to idx.
func (idx *PathIndex) startWatcher() error {
	w, err := NewWatcher(idx, idx.config.WatchDebounce)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		w.Close()
		return err
	}

	idx.mu.Lock()
	idx.watcher = w
	idx.mu.Unlock()
	return nil
}

// Watch starts watching without waiting for a Refresh. It is a no-op when a
// watcher is already running.
func (idx *PathIndex) Watch() error {
	idx.mu.RLock()
	running := idx.watcher != nil
	idx.mu.RUnlock()
	if running {
		return nil
	}
	return idx.startWatcher()
}
