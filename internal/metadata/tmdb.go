package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/curatorapp/curator/internal/config"
	"github.com/curatorapp/curator/internal/database"
)

const (
	SourceTMDB = "tmdb"

	tmdbImageBase  = "https://image.tmdb.org/t/p/original"
	tmdbAPIKeyName = "tmdb_api_key"
)

// tmdbBaseURL is a variable so tests can point the provider at a stub
// server.
var tmdbBaseURL = "https://api.themoviedb.org/3"

// TMDBProvider queries The Movie Database REST API.
type TMDBProvider struct {
	client   *client
	settings SettingsSource
}

func NewTMDBProvider(cfg config.MetadataConfig, settings SettingsSource) *TMDBProvider {
	return &TMDBProvider{
		client:   newClient(cfg),
		settings: settings,
	}
}

func (p *TMDBProvider) Name() string { return SourceTMDB }

func (p *TMDBProvider) IsAvailable() bool {
	key, ok := p.settings.GetSetting(tmdbAPIKeyName)
	return ok && key != ""
}

func (p *TMDBProvider) apiKey() (string, error) {
	key, ok := p.settings.GetSetting(tmdbAPIKeyName)
	if !ok || key == "" {
		return "", fmt.Errorf("tmdb api key not configured")
	}
	return key, nil
}

type tmdbSearchResponse struct {
	Results []struct {
		ID           int     `json:"id"`
		Title        string  `json:"title"`
		Name         string  `json:"name"`
		Overview     string  `json:"overview"`
		PosterPath   string  `json:"poster_path"`
		ReleaseDate  string  `json:"release_date"`
		FirstAirDate string  `json:"first_air_date"`
		VoteAverage  float64 `json:"vote_average"`
	} `json:"results"`
}

type tmdbDetailResponse struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	Name             string  `json:"name"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	VoteAverage      float64 `json:"vote_average"`
	ReleaseDate      string  `json:"release_date"`
	FirstAirDate     string  `json:"first_air_date"`
	Runtime          int     `json:"runtime"`
	NumberOfSeasons  int     `json:"number_of_seasons"`
	NumberOfEpisodes int     `json:"number_of_episodes"`
	Genres           []struct {
		Name string `json:"name"`
	} `json:"genres"`
	CreatedBy []struct {
		Name string `json:"name"`
	} `json:"created_by"`
	Networks []struct {
		Name string `json:"name"`
	} `json:"networks"`
	Credits struct {
		Cast []struct {
			Name string `json:"name"`
		} `json:"cast"`
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
	Videos struct {
		Results []struct {
			Key  string `json:"key"`
			Site string `json:"site"`
			Type string `json:"type"`
		} `json:"results"`
	} `json:"videos"`
}

func (p *TMDBProvider) Search(ctx context.Context, query string, mediaType database.MediaType) ([]SearchResult, error) {
	key, err := p.apiKey()
	if err != nil {
		return nil, err
	}

	endpoint := "search/movie"
	if mediaType == database.MediaTypeTVShow {
		endpoint = "search/tv"
	}
	reqURL := fmt.Sprintf("%s/%s?api_key=%s&query=%s", tmdbBaseURL, endpoint, url.QueryEscape(key), url.QueryEscape(query))

	var parsed tmdbSearchResponse
	if err := p.get(ctx, reqURL, &parsed); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		title := r.Title
		if title == "" {
			title = r.Name
		}
		date := r.ReleaseDate
		if date == "" {
			date = r.FirstAirDate
		}
		year := 0
		if t, err := time.Parse("2006-01-02", date); err == nil {
			year = t.Year()
		}
		results = append(results, SearchResult{
			ExternalID: fmt.Sprintf("%d", r.ID),
			Title:      title,
			Year:       year,
			Overview:   r.Overview,
			PosterURL:  tmdbImagePath(r.PosterPath),
		})
	}
	return results, nil
}

func (p *TMDBProvider) GetMetadata(ctx context.Context, externalID string, mediaType database.MediaType) (*MediaMetadata, error) {
	key, err := p.apiKey()
	if err != nil {
		return nil, err
	}

	endpoint := "movie"
	appendParam := "credits,videos"
	if mediaType == database.MediaTypeTVShow {
		endpoint = "tv"
		appendParam = "credits"
	}
	reqURL := fmt.Sprintf("%s/%s/%s?api_key=%s&append_to_response=%s",
		tmdbBaseURL, endpoint, url.PathEscape(externalID), url.QueryEscape(key), appendParam)

	var detail tmdbDetailResponse
	if err := p.get(ctx, reqURL, &detail); err != nil {
		if err == errNotFound {
			return nil, nil
		}
		return nil, err
	}

	meta := &MediaMetadata{
		Source:      SourceTMDB,
		ExternalID:  externalID,
		Title:       detail.Title,
		Description: detail.Overview,
		PosterURL:   tmdbImagePath(detail.PosterPath),
		BackdropURL: tmdbImagePath(detail.BackdropPath),
		Rating:      detail.VoteAverage,
	}
	if meta.Title == "" {
		meta.Title = detail.Name
	}

	date := detail.ReleaseDate
	if date == "" {
		date = detail.FirstAirDate
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		meta.ReleaseDate = &t
	}

	for _, g := range detail.Genres {
		meta.Genres = append(meta.Genres, g.Name)
	}
	for i, c := range detail.Credits.Cast {
		if i >= 10 {
			break
		}
		meta.Cast = append(meta.Cast, c.Name)
	}
	for _, c := range detail.Credits.Crew {
		meta.Crew = append(meta.Crew, c.Name)
		if c.Job == "Director" && meta.Director == "" {
			meta.Director = c.Name
		}
	}

	switch mediaType {
	case database.MediaTypeMovie:
		meta.Duration = detail.Runtime
		for _, v := range detail.Videos.Results {
			if v.Site == "YouTube" && v.Type == "Trailer" {
				meta.TrailerURL = "https://www.youtube.com/watch?v=" + v.Key
				break
			}
		}
	case database.MediaTypeTVShow:
		meta.SeasonCount = detail.NumberOfSeasons
		meta.EpisodeCount = detail.NumberOfEpisodes
		if len(detail.CreatedBy) > 0 {
			meta.Creator = detail.CreatedBy[0].Name
		}
		if len(detail.Networks) > 0 {
			meta.Network = detail.Networks[0].Name
		}
	}
	return meta, nil
}

func (p *TMDBProvider) get(ctx context.Context, reqURL string, out interface{}) error {
	resp, err := p.client.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tmdb returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func tmdbImagePath(path string) string {
	if path == "" {
		return ""
	}
	return tmdbImageBase + path
}
