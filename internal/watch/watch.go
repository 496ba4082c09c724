// Package watch re-indexes a tree whenever its contents change. Each
// trigger is a fresh full run; no incremental state is kept between
// runs.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce collapses event bursts (editors write, sync, rename) into a
// single re-index.
const debounce = 500 * time.Millisecond

// Reindex runs one full indexing pass. The watch loop does not retry a
// failed pass; the next event triggers the next one.
type Reindex func(ctx context.Context) error

// Run starts an fsnotify watcher on root and calls reindex after each
// debounced change burst until ctx is cancelled. New directories
// created at runtime are added to the watch list.
func Run(ctx context.Context, root string, logger *slog.Logger, reindex Reindex) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	log := logger.With(slog.String("component", "watch"))
	log.Info("watching", slog.String("root", root))

	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			log.Info("watch stopped")
			return nil

		case <-fire:
			if err := reindex(ctx); err != nil {
				log.Warn("reindex failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						log.Warn("watch new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
				}
			}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable subtree: watch what we can.
			return nil
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
