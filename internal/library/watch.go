package library

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher triggers a callback once the library tree has been quiet for the
// debounce period after a change.
type Watcher struct {
	root     string
	debounce time.Duration
	onChange func(ctx context.Context)
	log      zerolog.Logger
}

// NewWatcher creates a watcher for root.
func NewWatcher(root string, debounce time.Duration, onChange func(ctx context.Context), log zerolog.Logger) *Watcher {
	return &Watcher{root: root, debounce: debounce, onChange: onChange, log: log}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	w.log.Info().Str("root", w.root).Dur("debounce", w.debounce).Msg("watching library")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				// New directories need their own watch.
				_ = w.addTree(fw, ev.Name)
			}
			w.log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("library change")
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")

		case <-timer.C:
			if pending {
				pending = false
				w.onChange(ctx)
			}
		}
	}
}

// addTree adds path and every directory below it. Non-directories are ignored.
func (w *Watcher) addTree(fw *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == w.root {
				return fmt.Errorf("watch %s: %w", p, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(p); err != nil {
			w.log.Warn().Err(err).Str("path", p).Msg("cannot watch directory")
		}
		return nil
	})
}
