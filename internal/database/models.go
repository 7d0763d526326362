package database

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MediaType enum for media rows and scan jobs
type MediaType string

const (
	MediaTypeMovie  MediaType = "MOVIE"
	MediaTypeTVShow MediaType = "TV_SHOW"
	MediaTypeMusic  MediaType = "MUSIC"
	MediaTypeComic  MediaType = "COMIC"
)

func (mt MediaType) Value() (driver.Value, error) {
	return string(mt), nil
}

func (mt *MediaType) Scan(value interface{}) error {
	if value == nil {
		*mt = ""
		return nil
	}
	switch s := value.(type) {
	case string:
		*mt = MediaType(s)
	case []byte:
		*mt = MediaType(s)
	default:
		return fmt.Errorf("cannot scan %T into MediaType", value)
	}
	return nil
}

// Valid reports whether mt is one of the known media types.
func (mt MediaType) Valid() bool {
	switch mt {
	case MediaTypeMovie, MediaTypeTVShow, MediaTypeMusic, MediaTypeComic:
		return true
	}
	return false
}

// ScanJobStatus enum for scan_jobs.status
type ScanJobStatus string

const (
	ScanJobPending   ScanJobStatus = "PENDING"
	ScanJobRunning   ScanJobStatus = "RUNNING"
	ScanJobCompleted ScanJobStatus = "COMPLETED"
	ScanJobFailed    ScanJobStatus = "FAILED"
	ScanJobCancelled ScanJobStatus = "CANCELLED"
)

// MetadataStatus enum for scan_jobs.metadata_status
type MetadataStatus string

const (
	MetadataNotStarted MetadataStatus = "NOT_STARTED"
	MetadataPending    MetadataStatus = "PENDING"
	MetadataInProgress MetadataStatus = "IN_PROGRESS"
	MetadataCompleted  MetadataStatus = "COMPLETED"
	MetadataFailed     MetadataStatus = "FAILED"
)

// ScanJob is the durable record of one scan's lifecycle and progress counters
type ScanJob struct {
	ID                   uint32         `gorm:"primaryKey" json:"id"`
	CollectionID         *uint32        `gorm:"index" json:"collection_id,omitempty"`
	ScanPath             string         `gorm:"not null" json:"scan_path"`
	MediaType            MediaType      `gorm:"type:text;not null" json:"media_type"`
	Status               ScanJobStatus  `gorm:"type:text;not null;index;default:PENDING" json:"status"`
	MetadataStatus       MetadataStatus `gorm:"type:text;not null;default:NOT_STARTED" json:"metadata_status"`
	StatusMessage        string         `json:"status_message,omitempty"`
	ScannedCount         int            `gorm:"default:0" json:"scanned_count"`
	MetadataSuccessCount int            `gorm:"default:0" json:"metadata_success_count"`
	MetadataFailedCount  int            `gorm:"default:0" json:"metadata_failed_count"`
	StartedAt            *time.Time     `json:"started_at,omitempty"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
	MetadataStartedAt    *time.Time     `json:"metadata_started_at,omitempty"`
	MetadataCompletedAt  *time.Time     `json:"metadata_completed_at,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// Terminal reports whether the job can no longer make progress.
func (j *ScanJob) Terminal() bool {
	switch j.Status {
	case ScanJobCompleted, ScanJobFailed, ScanJobCancelled:
		return true
	}
	return false
}

// Collection is a named grouping of media. When IsLibrary is set it also
// carries the filesystem root and media type it was scanned from.
type Collection struct {
	ID          uint32    `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null;index" json:"name"`
	IsLibrary   bool      `gorm:"default:false;index" json:"is_library"`
	LibraryPath string    `json:"library_path,omitempty"`
	LibraryType MediaType `gorm:"type:text" json:"library_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Media is the type-erased parent row; exactly one subtype row exists per
// Media, keyed 1:1 through the subtype's MediaID.
type Media struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Type        MediaType  `gorm:"type:text;not null;index" json:"type"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	PosterURL   string     `json:"poster_url,omitempty"`
	BackdropURL string     `json:"backdrop_url,omitempty"`
	Rating      float64    `json:"rating,omitempty"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (m *Media) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// Movie subtype. FilePath is the idempotency key for "already scanned".
type Movie struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	MediaID    string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"media_id"`
	FilePath   string    `gorm:"not null;uniqueIndex" json:"file_path"`
	FileSize   int64     `json:"file_size"`
	Year       int       `json:"year,omitempty"`
	Duration   int       `json:"duration,omitempty"`
	Director   string    `json:"director,omitempty"`
	TrailerURL string    `json:"trailer_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (m *Movie) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// TVShow subtype. FilePath here is the show's folder, unique per show.
type TVShow struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	MediaID      string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"media_id"`
	FilePath     string    `gorm:"not null;uniqueIndex" json:"file_path"`
	Creator      string    `json:"creator,omitempty"`
	Network      string    `json:"network,omitempty"`
	FirstAirYear int       `json:"first_air_year,omitempty"`
	SeasonCount  int       `json:"season_count,omitempty"`
	EpisodeCount int       `json:"episode_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *TVShow) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// Season belongs to a TVShow; unique per (tv_show_id, number).
type Season struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	TVShowID  string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_show_season" json:"tv_show_id"`
	Number    int       `gorm:"not null;uniqueIndex:idx_show_season" json:"number"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Season) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// Episode belongs to a Season; its own FilePath is the idempotency key.
type Episode struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	SeasonID  string    `gorm:"type:varchar(36);not null;index" json:"season_id"`
	Number    int       `gorm:"not null" json:"number"`
	Title     string    `json:"title,omitempty"`
	FilePath  string    `gorm:"not null;uniqueIndex" json:"file_path"`
	FileSize  int64     `json:"file_size"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Episode) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// Music subtype (one row per track file).
type Music struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	MediaID     string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"media_id"`
	FilePath    string    `gorm:"not null;uniqueIndex" json:"file_path"`
	FileSize    int64     `json:"file_size"`
	Artist      string    `json:"artist,omitempty"`
	Album       string    `json:"album,omitempty"`
	TrackNumber int       `json:"track_number,omitempty"`
	Duration    int       `json:"duration,omitempty"`
	Year        int       `json:"year,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (m *Music) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// Comic subtype (one row per issue file).
type Comic struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	MediaID   string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"media_id"`
	FilePath  string    `gorm:"not null;uniqueIndex" json:"file_path"`
	FileSize  int64     `json:"file_size"`
	Series    string    `json:"series,omitempty"`
	Issue     int       `json:"issue,omitempty"`
	Volume    int       `json:"volume,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Comic) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// MediaCollection joins Media to Collection; unique on the pair so repeated
// scans never create duplicate memberships.
type MediaCollection struct {
	ID           uint32    `gorm:"primaryKey" json:"id"`
	MediaID      string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_media_collection" json:"media_id"`
	CollectionID uint32    `gorm:"not null;uniqueIndex:idx_media_collection" json:"collection_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// ExternalID associates a provider-specific identifier with a Media row.
// Unique on (source, media_id); duplicate insert attempts are no-ops.
type ExternalID struct {
	ID         uint32    `gorm:"primaryKey" json:"id"`
	Source     string    `gorm:"not null;uniqueIndex:idx_source_media" json:"source"`
	ExternalID string    `gorm:"not null" json:"external_id"`
	MediaID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_source_media;index" json:"media_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Genre is a normalized genre name.
type Genre struct {
	ID        uint32    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaGenre joins Media to Genre.
type MediaGenre struct {
	ID        uint32    `gorm:"primaryKey" json:"id"`
	MediaID   string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_media_genre" json:"media_id"`
	GenreID   uint32    `gorm:"not null;uniqueIndex:idx_media_genre" json:"genre_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Setting is a persisted application setting. Provider API keys live here so
// key rotation takes effect without a restart.
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
