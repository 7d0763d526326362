package scanner

import (
	"time"

	"gorm.io/gorm"

	"github.com/curatorapp/curator/internal/config"
	"github.com/curatorapp/curator/internal/database"
	"github.com/curatorapp/curator/internal/logger"
)

// CleanupStaleJobs removes crash-induced zombie jobs: RUNNING or PENDING
// jobs older than the stale threshold, and FAILED terminal jobs past the
// retention window. COMPLETED jobs within retention are kept. Returns the
// number of jobs removed.
func CleanupStaleJobs(db *gorm.DB, cfg config.ScannerConfig) (int64, error) {
	now := time.Now()
	staleCutoff := now.Add(-cfg.StaleRunningAfter)
	retentionCutoff := now.Add(-cfg.FailedRetention)

	var removed int64

	result := db.Where("status = ? AND (started_at IS NULL OR started_at < ?) AND created_at < ?",
		database.ScanJobRunning, staleCutoff, staleCutoff).
		Delete(&database.ScanJob{})
	if result.Error != nil {
		return removed, result.Error
	}
	removed += result.RowsAffected

	result = db.Where("status = ? AND created_at < ?",
		database.ScanJobPending, staleCutoff).
		Delete(&database.ScanJob{})
	if result.Error != nil {
		return removed, result.Error
	}
	removed += result.RowsAffected

	result = db.Where("status = ? AND (completed_at < ? OR (completed_at IS NULL AND created_at < ?))",
		database.ScanJobFailed, retentionCutoff, retentionCutoff).
		Delete(&database.ScanJob{})
	if result.Error != nil {
		return removed, result.Error
	}
	removed += result.RowsAffected

	if removed > 0 {
		logger.Info("Cleaned up %d stale scan jobs", removed)
	}
	return removed, nil
}

// RecoverOrphanedJobs marks jobs left RUNNING by a previous process as
// FAILED so they can be resumed or swept. Called once at startup.
func RecoverOrphanedJobs(db *gorm.DB) (int64, error) {
	now := time.Now()
	result := db.Model(&database.ScanJob{}).
		Where("status = ?", database.ScanJobRunning).
		Updates(map[string]interface{}{
			"status":         database.ScanJobFailed,
			"status_message": "interrupted by shutdown",
			"completed_at":   &now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		logger.Warn("Marked %d orphaned scan jobs as failed; they can be resumed", result.RowsAffected)
	}
	return result.RowsAffected, nil
}
