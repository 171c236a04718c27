// Package reload keeps a rule store in sync with its document on disk.
package reload

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Loader reloads rules from a path. *rules.Store implements it.
type Loader interface {
	Load(path string) error
}

// debounce collapses the burst of events editors produce for one save.
const debounce = 200 * time.Millisecond

// Watch reloads path into store whenever the file is written, created or
// renamed into place, until ctx is done. A failed reload is logged and the
// store keeps its current rules. The parent directory is watched so that
// atomic rename-style saves are seen.
func Watch(ctx context.Context, store Loader, path string, onReload func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	log := logrus.WithField("rules", abs)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			err := store.Load(abs)
			if err != nil {
				log.WithError(err).Warn("rule reload failed, keeping previous rules")
			} else {
				log.Info("rules reloaded")
			}
			if onReload != nil {
				onReload(err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("file watcher error")
		}
	}
}
