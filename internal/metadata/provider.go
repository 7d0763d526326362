// Package metadata fetches and normalizes remote metadata for scanned media.
// Providers share one capability set (search, getMetadata) and differ only in
// wire format and field mapping. All network calls pass through a per-provider
// token-bucket rate limiter and bounded exponential-backoff retries.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/curatorapp/curator/internal/config"
	"github.com/curatorapp/curator/internal/database"
	"github.com/curatorapp/curator/internal/logger"
)

// SettingsSource supplies provider configuration from the persisted settings
// store. Keys are read per call so rotation needs no restart.
type SettingsSource interface {
	GetSetting(key string) (string, bool)
}

// SearchResult is one candidate from a provider search.
type SearchResult struct {
	ExternalID string `json:"external_id"`
	Title      string `json:"title"`
	Year       int    `json:"year,omitempty"`
	Overview   string `json:"overview,omitempty"`
	PosterURL  string `json:"poster_url,omitempty"`
}

// MediaMetadata is the normalized shape every provider maps its responses
// into. Type-specific fields are populated only for the matching media type.
type MediaMetadata struct {
	Source      string     `json:"source"`
	ExternalID  string     `json:"external_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	PosterURL   string     `json:"poster_url,omitempty"`
	BackdropURL string     `json:"backdrop_url,omitempty"`
	Rating      float64    `json:"rating,omitempty"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	Genres      []string   `json:"genres,omitempty"`
	Cast        []string   `json:"cast,omitempty"`
	Crew        []string   `json:"crew,omitempty"`

	// Movie fields
	Duration   int    `json:"duration,omitempty"`
	Director   string `json:"director,omitempty"`
	TrailerURL string `json:"trailer_url,omitempty"`

	// TV fields
	Creator      string `json:"creator,omitempty"`
	Network      string `json:"network,omitempty"`
	SeasonCount  int    `json:"season_count,omitempty"`
	EpisodeCount int    `json:"episode_count,omitempty"`
}

// Provider is the capability set every metadata provider implements.
type Provider interface {
	Name() string
	// Search returns candidate matches for a query.
	Search(ctx context.Context, query string, mediaType database.MediaType) ([]SearchResult, error)
	// GetMetadata fetches full metadata for a provider-specific external ID.
	// Returns (nil, nil) when the provider has no record for the ID.
	GetMetadata(ctx context.Context, externalID string, mediaType database.MediaType) (*MediaMetadata, error)
	// IsAvailable reports whether the provider is configured for use. It
	// consults the settings store on every call.
	IsAvailable() bool
}

// errNotFound signals the provider has no record for the requested ID.
var errNotFound = errors.New("provider record not found")

// transientError marks provider errors worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// markTransient wraps status-code errors that indicate a retryable condition.
func markTransient(statusCode int, err error) error {
	if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
		return &transientError{err: err}
	}
	return err
}

// client bundles the shared HTTP plumbing: timeout, rate limiter, retries.
type client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries uint64
}

func newClient(cfg config.MetadataConfig) *client {
	return &client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		maxRetries: uint64(cfg.MaxRetries),
	}
}

// do executes an HTTP request under the rate limiter, retrying transient
// failures with exponential backoff up to the attempt ceiling.
func (c *client) do(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := build()
		if err != nil {
			return backoff.Permanent(err)
		}
		req = req.WithContext(ctx)

		r, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return &transientError{err: err}
		}
		if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500 {
			r.Body.Close()
			return markTransient(r.StatusCode, fmt.Errorf("provider returned status %d", r.StatusCode))
		}
		resp = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Debug("Retrying provider request in %s: %v", wait, err)
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries)
	err := backoff.RetryNotify(func() error {
		err := operation()
		if err == nil {
			return nil
		}
		var te *transientError
		if !errors.As(err, &te) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx), notify)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Manager resolves which provider serves a given media type.
type Manager struct {
	cfg       config.MetadataConfig
	providers []Provider
}

// NewManager builds the provider set from configuration and the settings
// store.
func NewManager(cfg config.MetadataConfig, settings SettingsSource) *Manager {
	return &Manager{
		cfg: cfg,
		providers: []Provider{
			NewTMDBProvider(cfg, settings),
			NewAniListProvider(cfg, settings),
		},
	}
}

// ProviderFor returns the first available provider for the media type, or
// nil when enrichment should be skipped. The configured preferred source is
// consulted before the rest.
func (m *Manager) ProviderFor(mediaType database.MediaType) Provider {
	if !m.cfg.Enabled {
		return nil
	}
	for _, p := range m.ordered() {
		if !p.IsAvailable() {
			continue
		}
		if providerSupports(p.Name(), mediaType) {
			return p
		}
	}
	return nil
}

// ordered returns the provider list with the preferred source first.
func (m *Manager) ordered() []Provider {
	if m.cfg.PreferredSource == "" {
		return m.providers
	}
	out := make([]Provider, 0, len(m.providers))
	for _, p := range m.providers {
		if p.Name() == m.cfg.PreferredSource {
			out = append(out, p)
		}
	}
	for _, p := range m.providers {
		if p.Name() != m.cfg.PreferredSource {
			out = append(out, p)
		}
	}
	return out
}

// AnimePreferAniList reports whether targets tagged with an AniList ID
// should be enriched from AniList even when another provider serves the
// media type.
func (m *Manager) AnimePreferAniList() bool {
	return m.cfg.Enabled && m.cfg.AnimePreferAniList
}

// ProviderByName returns the named provider if it is available.
func (m *Manager) ProviderByName(name string) Provider {
	for _, p := range m.providers {
		if p.Name() == name && p.IsAvailable() {
			return p
		}
	}
	return nil
}

func providerSupports(name string, mediaType database.MediaType) bool {
	switch name {
	case SourceTMDB:
		return mediaType == database.MediaTypeMovie || mediaType == database.MediaTypeTVShow
	case SourceAniList:
		return mediaType == database.MediaTypeTVShow
	}
	return false
}
