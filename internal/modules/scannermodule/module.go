// Package scannermodule wires the scan pipeline into the application: it
// owns the scheduler, the library watcher, and the HTTP surface for
// triggering and inspecting scans.
package scannermodule

import (
	"context"

	"gorm.io/gorm"

	"github.com/curatorapp/curator/internal/config"
	"github.com/curatorapp/curator/internal/events"
	"github.com/curatorapp/curator/internal/logger"
	"github.com/curatorapp/curator/internal/metadata"
	"github.com/curatorapp/curator/internal/modules/scannermodule/scanner"
)

// Module bundles the scan pipeline components. Construct it once at
// startup; the scheduler it owns is the process-wide scan slot.
type Module struct {
	db        *gorm.DB
	cfg       config.ScannerConfig
	scheduler *scanner.Scheduler
	watcher   *LibraryWatcher
}

func NewModule(db *gorm.DB, cfg config.ScannerConfig, bus events.EventBus, metaMgr *metadata.Manager) *Module {
	return &Module{
		db:        db,
		cfg:       cfg,
		scheduler: scanner.NewScheduler(db, cfg, bus, metaMgr),
		watcher:   NewLibraryWatcher(db, bus),
	}
}

// Scheduler exposes the scan scheduler for other modules.
func (m *Module) Scheduler() *scanner.Scheduler {
	return m.scheduler
}

// Start recovers jobs orphaned by a previous process and, when configured,
// begins watching library roots.
func (m *Module) Start(ctx context.Context) error {
	if _, err := scanner.RecoverOrphanedJobs(m.db); err != nil {
		return err
	}
	if m.cfg.WatchLibraries {
		if err := m.watcher.Start(ctx); err != nil {
			logger.Warn("Library watcher could not start: %v", err)
		}
	}
	return nil
}

// Stop halts background components.
func (m *Module) Stop() {
	m.watcher.Stop()
}
