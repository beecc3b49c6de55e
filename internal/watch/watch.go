// Package watch monitors a spool directory for new extraction manifests.
package watch

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ManifestEvent reports a manifest file appearing in the spool directory.
type ManifestEvent struct {
	Path string
	Time time.Time
}

// SpoolWatcher emits an event for every manifest written into the spool.
type SpoolWatcher struct {
	watcher  *fsnotify.Watcher
	Events   chan ManifestEvent
	spoolDir string
	log      *slog.Logger
	done     chan struct{}
}

// NewSpoolWatcher creates a watcher over spoolDir.
func NewSpoolWatcher(spoolDir string, log *slog.Logger) (*SpoolWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	return &SpoolWatcher{
		watcher:  watcher,
		Events:   make(chan ManifestEvent, 100),
		spoolDir: spoolDir,
		log:      log,
		done:     make(chan struct{}),
	}, nil
}

// Start begins monitoring the spool directory.
func (w *SpoolWatcher) Start() error {
	if err := w.watcher.Add(w.spoolDir); err != nil {
		return err
	}
	w.log.Info("watching spool directory", "dir", w.spoolDir)

	go w.processEvents()
	return nil
}

// Stop stops the watcher.
func (w *SpoolWatcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *SpoolWatcher) processEvents() {
	defer close(w.Events)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isManifest(event.Name) {
				continue
			}
			select {
			case w.Events <- ManifestEvent{Path: event.Name, Time: time.Now()}:
			default:
				w.log.Warn("manifest event queue full, dropping", "path", event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("spool watcher error", "error", err)
		}
	}
}

func isManifest(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
