package scannermodule

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"gorm.io/gorm"

	"github.com/curatorapp/curator/internal/database"
	"github.com/curatorapp/curator/internal/events"
	"github.com/curatorapp/curator/internal/logger"
)

// LibraryWatcher watches registered library roots for filesystem changes
// and publishes them to the event bus so clients can prompt a rescan.
type LibraryWatcher struct {
	db      *gorm.DB
	bus     events.EventBus
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

func NewLibraryWatcher(db *gorm.DB, bus events.EventBus) *LibraryWatcher {
	return &LibraryWatcher{db: db, bus: bus}
}

// Start begins watching every library root currently registered.
func (w *LibraryWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	w.watcher = watcher

	var libraries []database.Collection
	if err := w.db.Where("is_library = ? AND library_path <> ''", true).Find(&libraries).Error; err != nil {
		watcher.Close()
		return err
	}
	for _, lib := range libraries {
		if err := watcher.Add(lib.LibraryPath); err != nil {
			logger.Warn("Cannot watch library path %s: %v", lib.LibraryPath, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.loop(ctx)

	logger.Info("Library watcher started for %d libraries", len(libraries))
	return nil
}

// Watch adds one more path to the running watcher.
func (w *LibraryWatcher) Watch(path string) error {
	if w.watcher == nil {
		return fmt.Errorf("watcher not started")
	}
	return w.watcher.Add(path)
}

func (w *LibraryWatcher) loop(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.bus.PublishAsync(events.Event{
				Type:    events.EventLibraryFileChanged,
				Source:  "scanner",
				Title:   "Library content changed",
				Message: event.Name,
				Data: map[string]interface{}{
					"path": event.Name,
					"op":   event.Op.String(),
				},
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Library watcher error: %v", err)
		case <-ctx.Done():
			return
		}
	}
}

// Stop closes the watcher.
func (w *LibraryWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.watcher != nil {
		w.watcher.Close()
	}
}
