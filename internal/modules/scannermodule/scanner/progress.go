package scanner

import (
	"fmt"

	"github.com/curatorapp/curator/internal/events"
)

// ProgressEmitter publishes scan lifecycle events to the event bus. The
// pipeline never talks to a transport directly; transports subscribe to the
// bus on their own.
type ProgressEmitter struct {
	bus events.EventBus
}

func NewProgressEmitter(bus events.EventBus) *ProgressEmitter {
	return &ProgressEmitter{bus: bus}
}

func (e *ProgressEmitter) ScanStarted(jobID uint32, path string, mediaType string) {
	e.publish(events.EventScanStarted, "Scan started",
		fmt.Sprintf("Scanning %s", path),
		map[string]interface{}{
			"scanJobId": jobID,
			"path":      path,
			"mediaType": mediaType,
		})
}

func (e *ProgressEmitter) ScanResumed(jobID uint32, path string) {
	e.publish(events.EventScanResumed, "Scan resumed",
		fmt.Sprintf("Resuming scan of %s", path),
		map[string]interface{}{
			"scanJobId": jobID,
			"path":      path,
		})
}

func (e *ProgressEmitter) ScanProgress(jobID uint32, phase string, stats ScanStats, snap ProgressSnapshot) {
	data := map[string]interface{}{
		"scanJobId":      jobID,
		"phase":          phase,
		"stats":          stats,
		"filesPerSecond": snap.FilesPerSecond,
		"bytesProcessed": snap.BytesProcessed,
	}
	if snap.Percent > 0 {
		data["percent"] = snap.Percent
	}
	if snap.ETA != nil {
		data["eta"] = snap.ETA
	}
	e.publish(events.EventScanProgress, "Scan progress", phase, data)
}

func (e *ProgressEmitter) ScanCompleted(jobID uint32, stats ScanStats) {
	e.publish(events.EventScanCompleted, "Scan completed",
		fmt.Sprintf("Added %d, updated %d, skipped %d, failed %d",
			stats.Added, stats.Updated, stats.Skipped, stats.Failed),
		map[string]interface{}{
			"scanJobId": jobID,
			"stats":     stats,
		})
}

func (e *ProgressEmitter) ScanError(jobID uint32, message string) {
	data := map[string]interface{}{"message": message}
	if jobID > 0 {
		data["scanJobId"] = jobID
	}
	e.publish(events.EventScanError, "Scan failed", message, data)
}

func (e *ProgressEmitter) MetadataStarted(jobID uint32) {
	e.publish(events.EventMetadataStarted, "Metadata enrichment started", "",
		map[string]interface{}{"scanJobId": jobID})
}

func (e *ProgressEmitter) MetadataCompleted(jobID uint32, success, failed int) {
	e.publish(events.EventMetadataCompleted, "Metadata enrichment completed",
		fmt.Sprintf("Enriched %d, failed %d", success, failed),
		map[string]interface{}{
			"scanJobId": jobID,
			"success":   success,
			"failed":    failed,
		})
}

func (e *ProgressEmitter) publish(eventType events.EventType, title, message string, data map[string]interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.PublishAsync(events.NewScanEvent(eventType, title, message, data))
}
