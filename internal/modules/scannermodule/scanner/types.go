// Package scanner implements the scan and metadata ingestion pipeline:
// path validation, directory walking, filename parsing, metadata enrichment,
// and idempotent persistence, driven by a single-slot FIFO scheduler.
package scanner

import (
	"github.com/curatorapp/curator/internal/database"
)

// ScannedFile is one candidate file produced by the walker. It lives only
// for the duration of a scan pass.
type ScannedFile struct {
	Path         string
	Name         string
	Size         int64
	Extension    string
	RelativePath string
}

// ParsedMediaInfo is the structured identity extracted from a filename,
// tagged by media type. Title is always non-empty; parsers fall back to a
// sanitized filename.
type ParsedMediaInfo struct {
	MediaType database.MediaType
	Title     string

	// Movie fields
	Year int

	// TV fields
	ShowName string
	Season   int
	Episode  int

	// Music fields
	Artist      string
	Album       string
	TrackNumber int

	// Comic fields
	Issue  int
	Volume int
}

// ScanOptions selects how one scan request is executed.
type ScanOptions struct {
	MediaType      database.MediaType `json:"mediaType"`
	BatchScan      bool               `json:"batchScan,omitempty"`
	CollectionName string             `json:"collectionName,omitempty"`
	UpdateExisting bool               `json:"updateExisting,omitempty"`
}

// ScanStats accumulates per-scan outcome counts.
type ScanStats struct {
	Added            int `json:"added"`
	Updated          int `json:"updated"`
	Skipped          int `json:"skipped"`
	Failed           int `json:"failed"`
	FoldersProcessed int `json:"folders_processed"`
	FoldersFailed    int `json:"folders_failed"`
	MetadataSuccess  int `json:"metadata_success"`
	MetadataFailed   int `json:"metadata_failed"`
}

// ValidationError is a client-caused rejection of a scan root. It carries a
// recommendation surfaced to the caller verbatim.
type ValidationError struct {
	Path           string
	Reason         string
	Recommendation string
}

func (e *ValidationError) Error() string {
	if e.Recommendation != "" {
		return e.Reason + ": " + e.Recommendation
	}
	return e.Reason
}
