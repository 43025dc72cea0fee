package monitor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher turns filesystem events on one scene file into debouncer
// triggers. It watches the containing directory because editors typically
// replace the file on save (write to temp, rename over).
type Watcher struct {
	path      string
	debouncer *Debouncer
	fsw       *fsnotify.Watcher
}

// NewWatcher creates a watcher for the scene file at path, feeding
// debouncer on every relevant event.
func NewWatcher(path string, debouncer *Debouncer) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving scene path: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, debouncer: debouncer, fsw: fsw}, nil
}

// Start runs the event loop until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		log.Info().Str("file", w.path).Msg("Scene file watcher started")
		defer w.fsw.Close()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Scene file watcher stopped")
				return
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != w.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				log.Debug().Str("op", ev.Op.String()).Msg("Scene file changed")
				w.debouncer.Trigger()
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("File watcher error")
			}
		}
	}()
}
