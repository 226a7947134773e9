package jobs

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

// FolderWatcher marks a folder dirty whenever a supported document in it changes.
type FolderWatcher struct {
	watcher *fsnotify.Watcher
	dir     string
	dirty   atomic.Bool
	changes chan struct{}
}

// NewFolderWatcher watches dir. The folder starts dirty so its current contents are
// ingested on the first pass.
func NewFolderWatcher(dir string) (*FolderWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	fw := &FolderWatcher{watcher: w, dir: dir, changes: make(chan struct{}, 1)}
	fw.dirty.Store(true)
	return fw, nil
}

func (w *FolderWatcher) Dir() string { return w.dir }

// Run consumes filesystem events until ctx is cancelled or the watcher is closed.
func (w *FolderWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			log.Printf("watch: %s %s", event.Op, event.Name)
			w.MarkDirty()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watch: error: %v", err)
		}
	}
}

// MarkDirty requests a re-ingest on the next pass and signals Changes.
func (w *FolderWatcher) MarkDirty() {
	w.dirty.Store(true)
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

// Changes receives after the folder is marked dirty. Signals coalesce; at most one
// is pending at a time.
func (w *FolderWatcher) Changes() <-chan struct{} { return w.changes }

// TakeDirty reports whether a re-ingest is due and clears the flag.
func (w *FolderWatcher) TakeDirty() bool { return w.dirty.Swap(false) }

func (w *FolderWatcher) Close() error {
	return w.watcher.Close()
}

func relevant(event fsnotify.Event) bool {
	if _, ok := domain.FormatFromFilename(event.Name); !ok {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
