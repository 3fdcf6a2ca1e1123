// Package watch invalidates cached results when a served document changes on
// disk, so callers never read a stale result for content that has moved on.
package watch

import (
	"context"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driven"
	"github.com/xingh/docsray-mcp-sub001/internal/logger"
)

var _ driven.DocumentWatcher = (*Watcher)(nil)

// Watcher observes served document paths via fsnotify and invalidates their
// cache entries on write, rename, or removal.
type Watcher struct {
	fs    *fsnotify.Watcher
	cache driven.ResultCache
	log   logger.Logger

	mu    sync.Mutex
	paths map[string]domain.Identity

	done chan struct{}
	wg   sync.WaitGroup
}

// New starts a watcher feeding invalidations into cache.
func New(cache driven.ResultCache, log logger.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:    fs,
		cache: cache,
		log:   log,
		paths: make(map[string]domain.Identity),
		done:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Watch implements driven.DocumentWatcher.
func (w *Watcher) Watch(path string, identity domain.Identity) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if prev, ok := w.paths[path]; ok {
		w.paths[path] = identity
		if prev != identity {
			w.log.Debug("watched document identity updated", logger.String("path", path))
		}
		return nil
	}
	if err := w.fs.Add(path); err != nil {
		return err
	}
	w.paths[path] = identity
	return nil
}

// Close implements driven.DocumentWatcher.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.invalidate(event.Name, event.Op)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("document watcher error", logger.Err(err))
		}
	}
}

func (w *Watcher) invalidate(path string, op fsnotify.Op) {
	w.mu.Lock()
	identity, ok := w.paths[path]
	if ok && op&(fsnotify.Rename|fsnotify.Remove) != 0 {
		// The kernel drops the watch with the file; forget it so a
		// re-created file gets registered fresh on its next request.
		delete(w.paths, path)
	}
	w.mu.Unlock()
	if !ok {
		return
	}

	if err := w.cache.Invalidate(context.Background(), identity); err != nil {
		w.log.Warn("invalidate on document change failed",
			logger.String("path", path), logger.Err(err))
		return
	}
	w.log.Debug("cache invalidated on document change",
		logger.String("path", path), logger.String("op", op.String()))
}
