package scanner

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/dhowden/tag"

	"github.com/curatorapp/curator/internal/database"
	"github.com/curatorapp/curator/internal/logger"
)

// ErrUnparsable marks files that cannot be placed in the target hierarchy,
// e.g. a TV file with no season/episode pair. They are excluded from
// persistence and counted, never fatal.
var ErrUnparsable = errors.New("filename could not be parsed")

// SaveResult reports what persisting one file produced.
type SaveResult struct {
	MediaID string
	Outcome UpsertOutcome
}

// MediaProcessor is the closed set of per-media-type behaviors. Dispatch is
// by media type tag; there are exactly four implementations.
type MediaProcessor interface {
	MediaType() database.MediaType
	// ParseInfo extracts structured identity from a file. Pure, no I/O.
	ParseInfo(file ScannedFile) ParsedMediaInfo
	// SaveToDatabase persists one file idempotently and links it into the
	// collection. Returns ErrUnparsable for files that cannot be placed.
	SaveToDatabase(root string, file ScannedFile, parsed ParsedMediaInfo, collection *database.Collection, updateExisting bool) (SaveResult, error)
}

// ProcessorFor returns the processor for a media type.
func ProcessorFor(mediaType database.MediaType, persister *Persister) (MediaProcessor, error) {
	switch mediaType {
	case database.MediaTypeMovie:
		return &MovieProcessor{persister: persister}, nil
	case database.MediaTypeTVShow:
		return &TVShowProcessor{persister: persister}, nil
	case database.MediaTypeMusic:
		return &MusicProcessor{persister: persister}, nil
	case database.MediaTypeComic:
		return &ComicProcessor{persister: persister}, nil
	default:
		return nil, errors.New("unsupported media type: " + string(mediaType))
	}
}

// linkAndTag links the media row into the collection and records provider
// tags embedded in the file's path.
func linkAndTag(persister *Persister, mediaID string, file ScannedFile, collection *database.Collection) error {
	if mediaID == "" {
		return nil
	}
	if collection != nil {
		if err := persister.LinkToCollection(mediaID, collection.ID); err != nil {
			return err
		}
	}
	return persister.AddExternalIDs(mediaID, ParseExternalIDs(file.RelativePath))
}

// MovieProcessor handles movie libraries.
type MovieProcessor struct {
	persister *Persister
}

func (p *MovieProcessor) MediaType() database.MediaType { return database.MediaTypeMovie }


func (p *MovieProcessor) ParseInfo(file ScannedFile) ParsedMediaInfo {
	return ParseMovie(file.RelativePath, file.Name)
}

func (p *MovieProcessor) SaveToDatabase(root string, file ScannedFile, parsed ParsedMediaInfo, collection *database.Collection, updateExisting bool) (SaveResult, error) {
	mediaID, outcome, err := p.persister.UpsertMovie(parsed, nil, file, updateExisting)
	if err != nil {
		return SaveResult{}, err
	}
	if err := linkAndTag(p.persister, mediaID, file, collection); err != nil {
		return SaveResult{}, err
	}
	return SaveResult{MediaID: mediaID, Outcome: outcome}, nil
}

// TVShowProcessor handles TV libraries with the show, season, episode
// hierarchy. Persistence is depth-first so a season row always exists
// before its episodes reference it.
type TVShowProcessor struct {
	persister *Persister
}

func (p *TVShowProcessor) MediaType() database.MediaType { return database.MediaTypeTVShow }


func (p *TVShowProcessor) ParseInfo(file ScannedFile) ParsedMediaInfo {
	return ParseTVShow(file.RelativePath, file.Name)
}

func (p *TVShowProcessor) SaveToDatabase(root string, file ScannedFile, parsed ParsedMediaInfo, collection *database.Collection, updateExisting bool) (SaveResult, error) {
	if parsed.Episode == 0 {
		logger.Warn("Excluding unparsable TV file (no season/episode pattern): %s", file.RelativePath)
		return SaveResult{}, ErrUnparsable
	}

	showPath := root
	if top := topPathSegment(file.RelativePath); top != "" {
		showPath = filepath.Join(root, top)
	}

	show, err := p.persister.UpsertShow(parsed.ShowName, showPath, nil, updateExisting)
	if err != nil {
		return SaveResult{}, err
	}
	season, err := p.persister.FindOrCreateSeason(show.ID, parsed.Season)
	if err != nil {
		return SaveResult{}, err
	}
	outcome, err := p.persister.UpsertEpisode(season.ID, parsed.Episode, "", file, updateExisting)
	if err != nil {
		return SaveResult{}, err
	}
	if err := linkAndTag(p.persister, show.MediaID, file, collection); err != nil {
		return SaveResult{}, err
	}
	return SaveResult{MediaID: show.MediaID, Outcome: outcome}, nil
}

// MusicProcessor handles music libraries. Embedded audio tags, when
// readable, override the path-derived identity at persist time; the parser
// itself stays pure.
type MusicProcessor struct {
	persister *Persister
}

func (p *MusicProcessor) MediaType() database.MediaType { return database.MediaTypeMusic }


func (p *MusicProcessor) ParseInfo(file ScannedFile) ParsedMediaInfo {
	return ParseMusic(file.RelativePath, file.Name)
}

func (p *MusicProcessor) SaveToDatabase(root string, file ScannedFile, parsed ParsedMediaInfo, collection *database.Collection, updateExisting bool) (SaveResult, error) {
	enrichFromTags(file.Path, &parsed)

	mediaID, outcome, err := p.persister.UpsertMusic(parsed, nil, file, updateExisting)
	if err != nil {
		return SaveResult{}, err
	}
	if err := linkAndTag(p.persister, mediaID, file, collection); err != nil {
		return SaveResult{}, err
	}
	return SaveResult{MediaID: mediaID, Outcome: outcome}, nil
}

// enrichFromTags reads embedded metadata from the audio file and overrides
// the filename-derived fields where tags are present.
func enrichFromTags(path string, parsed *ParsedMediaInfo) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		logger.Debug("No readable audio tags in %s: %v", path, err)
		return
	}
	if t := m.Title(); t != "" {
		parsed.Title = t
	}
	if a := m.Artist(); a != "" {
		parsed.Artist = a
	}
	if al := m.Album(); al != "" {
		parsed.Album = al
	}
	if track, _ := m.Track(); track > 0 {
		parsed.TrackNumber = track
	}
}

// ComicProcessor handles comic libraries.
type ComicProcessor struct {
	persister *Persister
}

func (p *ComicProcessor) MediaType() database.MediaType { return database.MediaTypeComic }


func (p *ComicProcessor) ParseInfo(file ScannedFile) ParsedMediaInfo {
	return ParseComic(file.RelativePath, file.Name)
}

func (p *ComicProcessor) SaveToDatabase(root string, file ScannedFile, parsed ParsedMediaInfo, collection *database.Collection, updateExisting bool) (SaveResult, error) {
	mediaID, outcome, err := p.persister.UpsertComic(parsed, nil, file, updateExisting)
	if err != nil {
		return SaveResult{}, err
	}
	if err := linkAndTag(p.persister, mediaID, file, collection); err != nil {
		return SaveResult{}, err
	}
	return SaveResult{MediaID: mediaID, Outcome: outcome}, nil
}
