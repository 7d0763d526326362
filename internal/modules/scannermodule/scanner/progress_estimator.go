package scanner

import (
	"sync"
	"time"
)

// ProgressSnapshot is a point-in-time view of scan throughput, attached
// to progress events.
type ProgressSnapshot struct {
	Percent        float64
	FilesPerSecond float64
	BytesProcessed int64
	ETA            *time.Time
}

// ProgressEstimator tracks processed files against a known total and
// derives completion percentage and an ETA. The total is only known for
// full walks; batched walks report rate without a percentage.
type ProgressEstimator struct {
	mu             sync.Mutex
	startedAt      time.Time
	totalFiles     int
	processedFiles int
	processedBytes int64
}

func NewProgressEstimator() *ProgressEstimator {
	return &ProgressEstimator{startedAt: time.Now()}
}

// SetTotal records the expected file count once enumeration finishes.
func (pe *ProgressEstimator) SetTotal(files int) {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	pe.totalFiles = files
}

// Observe records one processed file.
func (pe *ProgressEstimator) Observe(bytes int64) {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	pe.processedFiles++
	pe.processedBytes += bytes
}

// Snapshot computes progress and rate from what has been observed so far.
func (pe *ProgressEstimator) Snapshot() ProgressSnapshot {
	pe.mu.Lock()
	defer pe.mu.Unlock()

	snap := ProgressSnapshot{BytesProcessed: pe.processedBytes}
	elapsed := time.Since(pe.startedAt).Seconds()
	if elapsed > 0 {
		snap.FilesPerSecond = float64(pe.processedFiles) / elapsed
	}
	if pe.totalFiles > 0 {
		snap.Percent = float64(pe.processedFiles) / float64(pe.totalFiles) * 100
		if snap.Percent > 100 {
			snap.Percent = 100
		}
		remaining := pe.totalFiles - pe.processedFiles
		if remaining > 0 && snap.FilesPerSecond > 0 {
			eta := time.Now().Add(time.Duration(float64(remaining)/snap.FilesPerSecond) * time.Second)
			snap.ETA = &eta
		}
	}
	return snap
}
