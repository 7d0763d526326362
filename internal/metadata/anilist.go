package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/curatorapp/curator/internal/config"
	"github.com/curatorapp/curator/internal/database"
)

const (
	SourceAniList = "anilist"

	anilistEndpoint    = "https://graphql.anilist.co"
	anilistEnabledName = "anilist_enabled"
)

// AniListProvider queries the AniList GraphQL API for anime series. The API
// is public; the settings store can disable it explicitly.
type AniListProvider struct {
	client   *client
	settings SettingsSource
}

func NewAniListProvider(cfg config.MetadataConfig, settings SettingsSource) *AniListProvider {
	return &AniListProvider{
		client:   newClient(cfg),
		settings: settings,
	}
}

func (p *AniListProvider) Name() string { return SourceAniList }

func (p *AniListProvider) IsAvailable() bool {
	if v, ok := p.settings.GetSetting(anilistEnabledName); ok {
		return v != "false"
	}
	return true
}

const anilistSearchQuery = `query ($search: String) {
  Page(page: 1, perPage: 10) {
    media(search: $search, type: ANIME) {
      id
      title { romaji english }
      description
      coverImage { extraLarge }
      startDate { year }
    }
  }
}`

const anilistMediaQuery = `query ($id: Int) {
  Media(id: $id, type: ANIME) {
    id
    title { romaji english }
    description
    coverImage { extraLarge }
    bannerImage
    averageScore
    startDate { year month day }
    genres
    episodes
    duration
    studios(isMain: true) { nodes { name } }
  }
}`

type anilistMedia struct {
	ID    int `json:"id"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
	} `json:"title"`
	Description string `json:"description"`
	CoverImage  struct {
		ExtraLarge string `json:"extraLarge"`
	} `json:"coverImage"`
	BannerImage  string  `json:"bannerImage"`
	AverageScore float64 `json:"averageScore"`
	StartDate    struct {
		Year  int `json:"year"`
		Month int `json:"month"`
		Day   int `json:"day"`
	} `json:"startDate"`
	Genres   []string `json:"genres"`
	Episodes int      `json:"episodes"`
	Duration int      `json:"duration"`
	Studios  struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"studios"`
}

func (m *anilistMedia) preferredTitle() string {
	if m.Title.English != "" {
		return m.Title.English
	}
	return m.Title.Romaji
}

func (p *AniListProvider) Search(ctx context.Context, query string, mediaType database.MediaType) ([]SearchResult, error) {
	if mediaType != database.MediaTypeTVShow {
		return nil, fmt.Errorf("anilist does not support media type %s", mediaType)
	}

	var parsed struct {
		Data struct {
			Page struct {
				Media []anilistMedia `json:"media"`
			} `json:"Page"`
		} `json:"data"`
	}
	if err := p.post(ctx, anilistSearchQuery, map[string]interface{}{"search": query}, &parsed); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(parsed.Data.Page.Media))
	for _, m := range parsed.Data.Page.Media {
		results = append(results, SearchResult{
			ExternalID: strconv.Itoa(m.ID),
			Title:      m.preferredTitle(),
			Year:       m.StartDate.Year,
			Overview:   stripHTMLTags(m.Description),
			PosterURL:  m.CoverImage.ExtraLarge,
		})
	}
	return results, nil
}

func (p *AniListProvider) GetMetadata(ctx context.Context, externalID string, mediaType database.MediaType) (*MediaMetadata, error) {
	id, err := strconv.Atoi(externalID)
	if err != nil {
		return nil, fmt.Errorf("invalid anilist id %q: %w", externalID, err)
	}

	var parsed struct {
		Data struct {
			Media *anilistMedia `json:"Media"`
		} `json:"data"`
	}
	if err := p.post(ctx, anilistMediaQuery, map[string]interface{}{"id": id}, &parsed); err != nil {
		if err == errNotFound {
			return nil, nil
		}
		return nil, err
	}
	m := parsed.Data.Media
	if m == nil {
		return nil, nil
	}

	meta := &MediaMetadata{
		Source:       SourceAniList,
		ExternalID:   externalID,
		Title:        m.preferredTitle(),
		Description:  stripHTMLTags(m.Description),
		PosterURL:    m.CoverImage.ExtraLarge,
		BackdropURL:  m.BannerImage,
		Rating:       m.AverageScore / 10,
		Genres:       m.Genres,
		EpisodeCount: m.Episodes,
		Duration:     m.Duration,
	}
	if m.StartDate.Year > 0 {
		month := m.StartDate.Month
		if month == 0 {
			month = 1
		}
		day := m.StartDate.Day
		if day == 0 {
			day = 1
		}
		t := time.Date(m.StartDate.Year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		meta.ReleaseDate = &t
	}
	if len(m.Studios.Nodes) > 0 {
		meta.Network = m.Studios.Nodes[0].Name
	}
	return meta, nil
}

func (p *AniListProvider) post(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return err
	}

	resp, err := p.client.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, anilistEndpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
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
		return fmt.Errorf("anilist returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// stripHTMLTags removes the simple markup AniList embeds in descriptions.
func stripHTMLTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
