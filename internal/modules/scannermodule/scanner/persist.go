package scanner

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/curatorapp/curator/internal/database"
	"github.com/curatorapp/curator/internal/logger"
	"github.com/curatorapp/curator/internal/metadata"
)

// UpsertOutcome classifies what an upsert did with a file.
type UpsertOutcome int

const (
	OutcomeSkipped UpsertOutcome = iota
	OutcomeAdded
	OutcomeUpdated
)

// Persister is the sole writer of Media, subtype, Collection, ExternalID
// and Genre rows. Each file (or show level) is written inside its own
// transaction so a failure never leaks a half-built entity.
type Persister struct {
	db *gorm.DB
}

func NewPersister(db *gorm.DB) *Persister {
	return &Persister{db: db}
}

// FindOrCreateCollection returns the named collection, creating it as a
// library root when it does not exist yet.
func (p *Persister) FindOrCreateCollection(name, libraryPath string, mediaType database.MediaType) (*database.Collection, error) {
	var collection database.Collection
	err := p.db.Where("name = ?", name).First(&collection).Error
	if err == nil {
		return &collection, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	collection = database.Collection{
		Name:        name,
		IsLibrary:   true,
		LibraryPath: libraryPath,
		LibraryType: mediaType,
	}
	if err := p.db.Create(&collection).Error; err != nil {
		// Lost a create race; re-read.
		if readErr := p.db.Where("name = ?", name).First(&collection).Error; readErr == nil {
			return &collection, nil
		}
		return nil, err
	}
	return &collection, nil
}

// LinkToCollection upserts collection membership keyed on
// (media_id, collection_id).
func (p *Persister) LinkToCollection(mediaID string, collectionID uint32) error {
	return p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&database.MediaCollection{
		MediaID:      mediaID,
		CollectionID: collectionID,
	}).Error
}

// AddExternalIDs inserts provider IDs not already present for the media
// row, checked by source set membership. Duplicate-key races are benign.
func (p *Persister) AddExternalIDs(mediaID string, tags []ExternalIDTag) error {
	if len(tags) == 0 {
		return nil
	}

	var existing []database.ExternalID
	if err := p.db.Where("media_id = ?", mediaID).Find(&existing).Error; err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, e := range existing {
		have[e.Source] = true
	}

	for _, tag := range tags {
		if have[tag.Source] {
			continue
		}
		err := p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&database.ExternalID{
			Source:     tag.Source,
			ExternalID: tag.ID,
			MediaID:    mediaID,
		}).Error
		if err != nil {
			return err
		}
		have[tag.Source] = true
	}
	return nil
}

// ApplyGenres normalizes genre names into Genre rows and links them.
func (p *Persister) ApplyGenres(mediaID string, names []string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		var genre database.Genre
		err := p.db.Where("name = ?", name).First(&genre).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			genre = database.Genre{Name: name}
			if err := p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&genre).Error; err != nil {
				return err
			}
			if genre.ID == 0 {
				if err := p.db.Where("name = ?", name).First(&genre).Error; err != nil {
					return err
				}
			}
		} else if err != nil {
			return err
		}

		err = p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&database.MediaGenre{
			MediaID: mediaID,
			GenreID: genre.ID,
		}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// applyMetadata merges fresh metadata into a Media row. Metadata fields win
// only when non-empty; existing values are never discarded for fields the
// provider did not supply.
func applyMetadata(media *database.Media, fallbackTitle string, meta *metadata.MediaMetadata) {
	if media.Title == "" {
		media.Title = fallbackTitle
	}
	if meta == nil {
		return
	}
	if meta.Title != "" {
		media.Title = meta.Title
	}
	if meta.Description != "" {
		media.Description = meta.Description
	}
	if meta.PosterURL != "" {
		media.PosterURL = meta.PosterURL
	}
	if meta.BackdropURL != "" {
		media.BackdropURL = meta.BackdropURL
	}
	if meta.Rating > 0 {
		media.Rating = meta.Rating
	}
	if meta.ReleaseDate != nil {
		media.ReleaseDate = meta.ReleaseDate
	}
}

// UpsertMovie creates or refreshes a movie keyed by its unique file path.
// With updateExisting false an existing row is a skip; the caller still
// links it into the requested collection.
func (p *Persister) UpsertMovie(parsed ParsedMediaInfo, meta *metadata.MediaMetadata, file ScannedFile, updateExisting bool) (string, UpsertOutcome, error) {
	var mediaID string
	outcome := OutcomeSkipped

	err := p.db.Transaction(func(tx *gorm.DB) error {
		var movie database.Movie
		err := tx.Where("file_path = ?", file.Path).First(&movie).Error
		if err == nil {
			mediaID = movie.MediaID
			if !updateExisting {
				return nil
			}
			var media database.Media
			if err := tx.First(&media, "id = ?", movie.MediaID).Error; err != nil {
				return err
			}
			applyMetadata(&media, parsed.Title, meta)
			if err := tx.Save(&media).Error; err != nil {
				return err
			}
			movie.FileSize = file.Size
			if parsed.Year > 0 {
				movie.Year = parsed.Year
			}
			if meta != nil {
				if meta.Duration > 0 {
					movie.Duration = meta.Duration
				}
				if meta.Director != "" {
					movie.Director = meta.Director
				}
				if meta.TrailerURL != "" {
					movie.TrailerURL = meta.TrailerURL
				}
			}
			if err := tx.Save(&movie).Error; err != nil {
				return err
			}
			outcome = OutcomeUpdated
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		media := database.Media{Type: database.MediaTypeMovie}
		applyMetadata(&media, parsed.Title, meta)
		if err := tx.Create(&media).Error; err != nil {
			return err
		}

		movie = database.Movie{
			MediaID:  media.ID,
			FilePath: file.Path,
			FileSize: file.Size,
			Year:     parsed.Year,
		}
		if meta != nil {
			movie.Duration = meta.Duration
			movie.Director = meta.Director
			movie.TrailerURL = meta.TrailerURL
		}
		if err := tx.Create(&movie).Error; err != nil {
			return err
		}
		mediaID = media.ID
		outcome = OutcomeAdded
		return nil
	})
	return mediaID, outcome, err
}

// UpsertShow finds or creates the Media+TVShow pair for a show folder.
// Shows are keyed by the folder path so every episode under it attaches to
// the same hierarchy.
func (p *Persister) UpsertShow(showName, showPath string, meta *metadata.MediaMetadata, updateExisting bool) (*database.TVShow, error) {
	var show database.TVShow

	err := p.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("file_path = ?", showPath).First(&show).Error
		if err == nil {
			if !updateExisting || meta == nil {
				return nil
			}
			var media database.Media
			if err := tx.First(&media, "id = ?", show.MediaID).Error; err != nil {
				return err
			}
			applyMetadata(&media, showName, meta)
			if err := tx.Save(&media).Error; err != nil {
				return err
			}
			if meta.Creator != "" {
				show.Creator = meta.Creator
			}
			if meta.Network != "" {
				show.Network = meta.Network
			}
			if meta.SeasonCount > 0 {
				show.SeasonCount = meta.SeasonCount
			}
			if meta.EpisodeCount > 0 {
				show.EpisodeCount = meta.EpisodeCount
			}
			return tx.Save(&show).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		media := database.Media{Type: database.MediaTypeTVShow}
		applyMetadata(&media, showName, meta)
		if err := tx.Create(&media).Error; err != nil {
			return err
		}
		show = database.TVShow{
			MediaID:  media.ID,
			FilePath: showPath,
		}
		if meta != nil {
			show.Creator = meta.Creator
			show.Network = meta.Network
			show.SeasonCount = meta.SeasonCount
			show.EpisodeCount = meta.EpisodeCount
		}
		return tx.Create(&show).Error
	})
	if err != nil {
		return nil, err
	}
	return &show, nil
}

// FindOrCreateSeason returns the season row for (show, number). The season
// row always exists before its episodes reference it.
func (p *Persister) FindOrCreateSeason(showID string, number int) (*database.Season, error) {
	var season database.Season
	err := p.db.Where("tv_show_id = ? AND number = ?", showID, number).First(&season).Error
	if err == nil {
		return &season, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	season = database.Season{TVShowID: showID, Number: number}
	if err := p.db.Create(&season).Error; err != nil {
		// Lost a create race; re-read.
		if readErr := p.db.Where("tv_show_id = ? AND number = ?", showID, number).First(&season).Error; readErr == nil {
			return &season, nil
		}
		return nil, err
	}
	return &season, nil
}

// UpsertEpisode creates or refreshes an episode keyed by its file path.
func (p *Persister) UpsertEpisode(seasonID string, number int, title string, file ScannedFile, updateExisting bool) (UpsertOutcome, error) {
	var episode database.Episode
	err := p.db.Where("file_path = ?", file.Path).First(&episode).Error
	if err == nil {
		if !updateExisting {
			return OutcomeSkipped, nil
		}
		episode.SeasonID = seasonID
		episode.Number = number
		if title != "" {
			episode.Title = title
		}
		episode.FileSize = file.Size
		if err := p.db.Save(&episode).Error; err != nil {
			return OutcomeSkipped, err
		}
		return OutcomeUpdated, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return OutcomeSkipped, err
	}

	episode = database.Episode{
		SeasonID: seasonID,
		Number:   number,
		Title:    title,
		FilePath: file.Path,
		FileSize: file.Size,
	}
	if err := p.db.Create(&episode).Error; err != nil {
		return OutcomeSkipped, err
	}
	return OutcomeAdded, nil
}

// UpsertMusic creates or refreshes a track keyed by its file path.
func (p *Persister) UpsertMusic(parsed ParsedMediaInfo, meta *metadata.MediaMetadata, file ScannedFile, updateExisting bool) (string, UpsertOutcome, error) {
	var mediaID string
	outcome := OutcomeSkipped

	err := p.db.Transaction(func(tx *gorm.DB) error {
		var track database.Music
		err := tx.Where("file_path = ?", file.Path).First(&track).Error
		if err == nil {
			mediaID = track.MediaID
			if !updateExisting {
				return nil
			}
			var media database.Media
			if err := tx.First(&media, "id = ?", track.MediaID).Error; err != nil {
				return err
			}
			applyMetadata(&media, parsed.Title, meta)
			if err := tx.Save(&media).Error; err != nil {
				return err
			}
			track.FileSize = file.Size
			if parsed.Artist != "" {
				track.Artist = parsed.Artist
			}
			if parsed.Album != "" {
				track.Album = parsed.Album
			}
			if parsed.TrackNumber > 0 {
				track.TrackNumber = parsed.TrackNumber
			}
			if err := tx.Save(&track).Error; err != nil {
				return err
			}
			outcome = OutcomeUpdated
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		media := database.Media{Type: database.MediaTypeMusic}
		applyMetadata(&media, parsed.Title, meta)
		if err := tx.Create(&media).Error; err != nil {
			return err
		}
		track = database.Music{
			MediaID:     media.ID,
			FilePath:    file.Path,
			FileSize:    file.Size,
			Artist:      parsed.Artist,
			Album:       parsed.Album,
			TrackNumber: parsed.TrackNumber,
		}
		if err := tx.Create(&track).Error; err != nil {
			return err
		}
		mediaID = media.ID
		outcome = OutcomeAdded
		return nil
	})
	return mediaID, outcome, err
}

// UpsertComic creates or refreshes an issue keyed by its file path.
func (p *Persister) UpsertComic(parsed ParsedMediaInfo, meta *metadata.MediaMetadata, file ScannedFile, updateExisting bool) (string, UpsertOutcome, error) {
	var mediaID string
	outcome := OutcomeSkipped

	err := p.db.Transaction(func(tx *gorm.DB) error {
		var comic database.Comic
		err := tx.Where("file_path = ?", file.Path).First(&comic).Error
		if err == nil {
			mediaID = comic.MediaID
			if !updateExisting {
				return nil
			}
			var media database.Media
			if err := tx.First(&media, "id = ?", comic.MediaID).Error; err != nil {
				return err
			}
			applyMetadata(&media, parsed.Title, meta)
			if err := tx.Save(&media).Error; err != nil {
				return err
			}
			comic.FileSize = file.Size
			if parsed.Issue > 0 {
				comic.Issue = parsed.Issue
			}
			if parsed.Volume > 0 {
				comic.Volume = parsed.Volume
			}
			if parsed.Title != "" {
				comic.Series = parsed.Title
			}
			if err := tx.Save(&comic).Error; err != nil {
				return err
			}
			outcome = OutcomeUpdated
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		media := database.Media{Type: database.MediaTypeComic}
		applyMetadata(&media, parsed.Title, meta)
		if err := tx.Create(&media).Error; err != nil {
			return err
		}
		comic = database.Comic{
			MediaID:  media.ID,
			FilePath: file.Path,
			FileSize: file.Size,
			Series:   parsed.Title,
			Issue:    parsed.Issue,
			Volume:   parsed.Volume,
		}
		if err := tx.Create(&comic).Error; err != nil {
			return err
		}
		mediaID = media.ID
		outcome = OutcomeAdded
		return nil
	})
	return mediaID, outcome, err
}

// ApplyMetadataToMedia merges fetched provider metadata into an existing
// Media row and its subtype, normalizes genres, and records the provider's
// own external ID.
func (p *Persister) ApplyMetadataToMedia(mediaID, fallbackTitle string, meta *metadata.MediaMetadata) error {
	if meta == nil {
		return nil
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		var media database.Media
		if err := tx.First(&media, "id = ?", mediaID).Error; err != nil {
			return err
		}
		applyMetadata(&media, fallbackTitle, meta)
		if err := tx.Save(&media).Error; err != nil {
			return err
		}

		switch media.Type {
		case database.MediaTypeMovie:
			var movie database.Movie
			if err := tx.Where("media_id = ?", mediaID).First(&movie).Error; err != nil {
				return err
			}
			if meta.Duration > 0 {
				movie.Duration = meta.Duration
			}
			if meta.Director != "" {
				movie.Director = meta.Director
			}
			if meta.TrailerURL != "" {
				movie.TrailerURL = meta.TrailerURL
			}
			return tx.Save(&movie).Error
		case database.MediaTypeTVShow:
			var show database.TVShow
			if err := tx.Where("media_id = ?", mediaID).First(&show).Error; err != nil {
				return err
			}
			if meta.Creator != "" {
				show.Creator = meta.Creator
			}
			if meta.Network != "" {
				show.Network = meta.Network
			}
			if meta.SeasonCount > 0 {
				show.SeasonCount = meta.SeasonCount
			}
			if meta.EpisodeCount > 0 {
				show.EpisodeCount = meta.EpisodeCount
			}
			return tx.Save(&show).Error
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := p.ApplyGenres(mediaID, meta.Genres); err != nil {
		return err
	}
	if meta.ExternalID != "" {
		return p.AddExternalIDs(mediaID, []ExternalIDTag{{Source: meta.Source, ID: meta.ExternalID}})
	}
	return nil
}

// MediaExistsForPath reports whether any subtype row already claims the
// file path. Used by resume to derive remaining work.
func (p *Persister) MediaExistsForPath(path string, mediaType database.MediaType) (bool, error) {
	var count int64
	var err error
	switch mediaType {
	case database.MediaTypeMovie:
		err = p.db.Model(&database.Movie{}).Where("file_path = ?", path).Count(&count).Error
	case database.MediaTypeTVShow:
		err = p.db.Model(&database.Episode{}).Where("file_path = ?", path).Count(&count).Error
	case database.MediaTypeMusic:
		err = p.db.Model(&database.Music{}).Where("file_path = ?", path).Count(&count).Error
	case database.MediaTypeComic:
		err = p.db.Model(&database.Comic{}).Where("file_path = ?", path).Count(&count).Error
	default:
		logger.Warn("Unknown media type %s in existence check", mediaType)
	}
	return count > 0, err
}
