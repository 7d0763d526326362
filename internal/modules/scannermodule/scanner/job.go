package scanner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/curatorapp/curator/internal/database"
	"github.com/curatorapp/curator/internal/logger"
	"github.com/curatorapp/curator/internal/metadata"
	"github.com/curatorapp/curator/internal/utils"
)

// progressInterval is how many files are processed between durable counter
// updates and progress events.
const progressInterval = 25

type enrichTarget struct {
	mediaID string
	title   string
	tags    []ExternalIDTag
}

// executeScan runs one scan job end to end: walk, parse, persist, then
// metadata enrichment. Partial failures are counted, never fatal; only
// persistence errors with no safe continuation abort the job.
func (s *Scheduler) executeScan(req *scanRequest) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":         database.ScanJobRunning,
		"started_at":     &now,
		"status_message": "",
	}
	if err := s.db.Model(&database.ScanJob{}).Where("id = ?", req.jobID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}

	if req.resume {
		s.emitter.ScanResumed(req.jobID, req.path)
	} else {
		s.emitter.ScanStarted(req.jobID, req.path, string(req.opts.MediaType))
	}

	stats, err := s.runScanPhase(req)
	if err != nil {
		s.failJob(req.jobID, err)
		return err
	}

	s.runMetadataPhase(req, stats)

	completedAt := time.Now()
	final := map[string]interface{}{
		"status":                 database.ScanJobCompleted,
		"completed_at":           &completedAt,
		"scanned_count":          stats.scannedCount,
		"metadata_success_count": stats.stats.MetadataSuccess,
		"metadata_failed_count":  stats.stats.MetadataFailed,
	}
	if err := s.db.Model(&database.ScanJob{}).Where("id = ?", req.jobID).Updates(final).Error; err != nil {
		s.failJob(req.jobID, err)
		return err
	}

	s.emitter.ScanCompleted(req.jobID, stats.stats)
	logger.Info("Scan job %d completed: %d scanned (%s), %d added, %d updated, %d skipped, %d failed",
		req.jobID, stats.scannedCount, utils.FormatBytes(stats.estimator.Snapshot().BytesProcessed),
		stats.stats.Added, stats.stats.Updated, stats.stats.Skipped, stats.stats.Failed)
	return nil
}

// scanState carries per-execution accumulation between phases.
type scanState struct {
	stats        ScanStats
	scannedCount int
	targets      []enrichTarget
	seen         map[string]bool
	estimator    *ProgressEstimator
}

// runScanPhase walks the tree and persists every parsable file.
func (s *Scheduler) runScanPhase(req *scanRequest) (*scanState, error) {
	processor, err := ProcessorFor(req.opts.MediaType, s.persister)
	if err != nil {
		return nil, err
	}

	collectionName := req.opts.CollectionName
	if collectionName == "" {
		collectionName = filepath.Base(req.path)
	}
	collection, err := s.persister.FindOrCreateCollection(collectionName, req.path, req.opts.MediaType)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve collection: %w", err)
	}

	state := &scanState{seen: make(map[string]bool), estimator: NewProgressEstimator()}

	processFile := func(file ScannedFile) error {
		if req.resume {
			exists, err := s.persister.MediaExistsForPath(file.Path, req.opts.MediaType)
			if err != nil {
				return err
			}
			if exists {
				state.stats.Skipped++
				state.scannedCount++
				state.estimator.Observe(file.Size)
				return nil
			}
		}

		parsed := processor.ParseInfo(file)
		result, err := processor.SaveToDatabase(req.path, file, parsed, collection, req.opts.UpdateExisting)
		state.scannedCount++
		state.estimator.Observe(file.Size)

		switch {
		case errors.Is(err, ErrUnparsable):
			state.stats.Failed++
		case err != nil:
			return fmt.Errorf("failed to persist %s: %w", file.RelativePath, err)
		default:
			switch result.Outcome {
			case OutcomeAdded:
				state.stats.Added++
			case OutcomeUpdated:
				state.stats.Updated++
			default:
				state.stats.Skipped++
			}
			s.recordEnrichTarget(state, result, parsed, file)
		}

		if state.scannedCount%progressInterval == 0 {
			s.flushProgress(req.jobID, state, "scanning")
		}
		return nil
	}

	extensions := ExtensionsFor(req.opts.MediaType)

	if req.opts.BatchScan {
		batchSize := s.cfg.MovieBatchSize
		if req.opts.MediaType == database.MediaTypeTVShow {
			batchSize = s.cfg.TVBatchSize
		}
		var foldersFailed int
		foldersFailed, err = s.walker.WalkBatched(req.path, extensions, batchSize, func(batch []ScannedFile) error {
			for _, file := range batch {
				if err := processFile(file); err != nil {
					return err
				}
			}
			state.stats.FoldersProcessed += countTopFolders(batch)
			s.flushProgress(req.jobID, state, "scanning")
			return nil
		})
		state.stats.FoldersFailed += foldersFailed
	} else {
		var files []ScannedFile
		var foldersFailed int
		files, foldersFailed, err = s.walker.WalkFull(req.path, extensions)
		state.stats.FoldersFailed += foldersFailed
		if err == nil {
			state.estimator.SetTotal(len(files))
			for _, file := range files {
				if err = processFile(file); err != nil {
					break
				}
			}
			state.stats.FoldersProcessed += countTopFolders(files)
		}
	}
	if err != nil {
		return nil, err
	}

	s.flushProgress(req.jobID, state, "scan phase complete")
	return state, nil
}

// recordEnrichTarget queues a media row for the enrichment phase, deduped
// by media ID so a show enriches once regardless of episode count.
func (s *Scheduler) recordEnrichTarget(state *scanState, result SaveResult, parsed ParsedMediaInfo, file ScannedFile) {
	if result.MediaID == "" || state.seen[result.MediaID] {
		return
	}
	state.seen[result.MediaID] = true
	state.targets = append(state.targets, enrichTarget{
		mediaID: result.MediaID,
		title:   parsed.Title,
		tags:    ParseExternalIDs(file.RelativePath),
	})
}

// runMetadataPhase enriches persisted media from the configured provider.
// Enrichment is best effort: a failed fetch degrades to the parsed title.
func (s *Scheduler) runMetadataPhase(req *scanRequest, state *scanState) {
	if s.metaMgr == nil || len(state.targets) == 0 {
		return
	}
	provider := s.metaMgr.ProviderFor(req.opts.MediaType)
	if provider == nil {
		logger.Debug("No metadata provider available for %s, skipping enrichment", req.opts.MediaType)
		return
	}

	now := time.Now()
	s.db.Model(&database.ScanJob{}).Where("id = ?", req.jobID).Updates(map[string]interface{}{
		"metadata_status":     database.MetadataInProgress,
		"metadata_started_at": &now,
	})
	s.emitter.MetadataStarted(req.jobID)

	ctx := context.Background()
	for _, target := range state.targets {
		meta := s.fetchMetadata(ctx, s.providerForTarget(provider, target), target, req.opts.MediaType)
		if meta == nil {
			state.stats.MetadataFailed++
			continue
		}
		if err := s.persister.ApplyMetadataToMedia(target.mediaID, target.title, meta); err != nil {
			logger.Warn("Failed to apply metadata for %q: %v", target.title, err)
			state.stats.MetadataFailed++
			continue
		}
		state.stats.MetadataSuccess++

		if (state.stats.MetadataSuccess+state.stats.MetadataFailed)%progressInterval == 0 {
			s.flushProgress(req.jobID, state, "enriching metadata")
		}
	}

	completedAt := time.Now()
	metadataStatus := database.MetadataCompleted
	if state.stats.MetadataSuccess == 0 && state.stats.MetadataFailed > 0 {
		metadataStatus = database.MetadataFailed
	}
	s.db.Model(&database.ScanJob{}).Where("id = ?", req.jobID).Updates(map[string]interface{}{
		"metadata_status":        metadataStatus,
		"metadata_completed_at":  &completedAt,
		"metadata_success_count": state.stats.MetadataSuccess,
		"metadata_failed_count":  state.stats.MetadataFailed,
	})
	s.emitter.MetadataCompleted(req.jobID, state.stats.MetadataSuccess, state.stats.MetadataFailed)
}

// providerForTarget overrides the job-level provider for targets tagged
// with an AniList ID when that preference is configured. Anime releases
// commonly carry such tags while living inside a general TV library.
func (s *Scheduler) providerForTarget(provider metadata.Provider, target enrichTarget) metadata.Provider {
	if !s.metaMgr.AnimePreferAniList() || provider.Name() == metadata.SourceAniList {
		return provider
	}
	for _, t := range target.tags {
		if t.Source == metadata.SourceAniList {
			if alt := s.metaMgr.ProviderByName(metadata.SourceAniList); alt != nil {
				return alt
			}
			break
		}
	}
	return provider
}

// fetchMetadata resolves one target: an embedded provider tag is used
// directly, otherwise the first search hit wins.
func (s *Scheduler) fetchMetadata(ctx context.Context, provider metadata.Provider, target enrichTarget, mediaType database.MediaType) *metadata.MediaMetadata {
	externalID := ""
	for _, t := range target.tags {
		if t.Source == provider.Name() {
			externalID = t.ID
			break
		}
	}

	if externalID == "" {
		results, err := provider.Search(ctx, target.title, mediaType)
		if err != nil || len(results) == 0 {
			if err != nil {
				logger.Warn("Metadata search failed for %q: %v", target.title, err)
			}
			return nil
		}
		externalID = results[0].ExternalID
	}

	meta, err := provider.GetMetadata(ctx, externalID, mediaType)
	if err != nil {
		logger.Warn("Metadata fetch failed for %q (%s-%s): %v", target.title, provider.Name(), externalID, err)
		return nil
	}
	return meta
}

func (s *Scheduler) flushProgress(jobID uint32, state *scanState, phase string) {
	s.db.Model(&database.ScanJob{}).Where("id = ?", jobID).
		Update("scanned_count", state.scannedCount)
	s.emitter.ScanProgress(jobID, phase, state.stats, state.estimator.Snapshot())
}

func (s *Scheduler) failJob(jobID uint32, cause error) {
	now := time.Now()
	s.db.Model(&database.ScanJob{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"status":         database.ScanJobFailed,
		"status_message": cause.Error(),
		"completed_at":   &now,
	})
	s.emitter.ScanError(jobID, cause.Error())
}

func countTopFolders(files []ScannedFile) int {
	tops := make(map[string]bool)
	for _, f := range files {
		if top := topPathSegment(f.RelativePath); top != "" {
			tops[top] = true
		}
	}
	return len(tops)
}
