package registry

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"aistate/pkg/log"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a registry whenever its backing file changes.
type Watcher struct {
	path     string
	registry *Registry
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher watches the directory of path so editor rename-and-replace saves are seen.
func NewWatcher(path string, registry *Registry, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return &Watcher{
		path:     path,
		registry: registry,
		debounce: debounce,
		watcher:  fsw,
	}, nil
}

// Start blocks until ctx is done, reloading the registry on relevant file events.
func (w *Watcher) Start(ctx context.Context) {
	log.Info().Str("file", w.path).Msg("Model registry watcher started")
	defer w.close()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("file", w.path).Msg("Model registry watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			log.Debug().Str("event", event.Op.String()).Msg("Model registry file changed")
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Model registry watcher error")
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

// reload keeps the previous snapshot when the new file is invalid.
func (w *Watcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		log.Error().Err(err).Str("file", w.path).Msg("Model registry reload failed, keeping previous models")
		return
	}

	w.registry.Replace(cfg.Models)
	log.Info().Int("models", len(cfg.Models)).Str("file", w.path).Msg("Model registry reloaded")
}

func (w *Watcher) close() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	if err := w.watcher.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close model registry watcher")
	}
}
