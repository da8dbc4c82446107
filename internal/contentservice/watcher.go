package contentservice

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watcher recompiles content as files in the content directory change.
type Watcher struct {
	manager *Manager
	dir     string
	logger  *slog.Logger

	mu     sync.Mutex
	hashes map[string]string
}

func NewWatcher(manager *Manager, dir string, logger *slog.Logger) *Watcher {
	return &Watcher{
		manager: manager,
		dir:     dir,
		logger:  logger,
		hashes:  make(map[string]string),
	}
}

// Run blocks until ctx is done. Bursts of events are collapsed into a single index rebuild.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if _, changed := w.handleEvent(ev); !changed {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("content watcher error", slog.String("error", err.Error()))

		case <-fire:
			fire = nil
			if _, err := w.manager.RebuildAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("failed to rebuild content cache", slog.String("error", err.Error()))
			}
		}
	}
}

// handleEvent returns the affected slug and whether the content actually changed.
// Writes that leave the file bytes unchanged are ignored.
func (w *Watcher) handleEvent(ev fsnotify.Event) (string, bool) {
	slug, ok := SlugFromPath(ev.Name)
	if !ok {
		return "", false
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.forget(slug)
		w.manager.Invalidate(slug)
		return slug, true

	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		raw, err := os.ReadFile(ev.Name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				w.forget(slug)
				w.manager.Invalidate(slug)
				return slug, true
			}
			w.logger.Warn("failed to read changed content", slog.String("slug", slug), slog.String("error", err.Error()))
			return "", false
		}

		if !w.remember(slug, HashSource(raw)) {
			return "", false
		}
		w.manager.Invalidate(slug)
		return slug, true
	}

	return "", false
}

// remember records hash for slug and reports whether it differs from the previous one.
func (w *Watcher) remember(slug, hash string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.hashes[slug] == hash {
		return false
	}
	w.hashes[slug] = hash
	return true
}

func (w *Watcher) forget(slug string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.hashes, slug)
}
