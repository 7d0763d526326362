package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/curatorapp/curator/internal/database"
)

func TestParseMovieWithYear(t *testing.T) {
	info := ParseMovie("Inception (2010).mkv", "Inception (2010).mkv")

	assert.Equal(t, database.MediaTypeMovie, info.MediaType)
	assert.Equal(t, "Inception", info.Title)
	assert.Equal(t, 2010, info.Year)
}

func TestParseMovieDotSeparated(t *testing.T) {
	info := ParseMovie("Blade.Runner.[1982].Final.Cut.mkv", "Blade.Runner.[1982].Final.Cut.mkv")

	assert.Equal(t, "Blade Runner", info.Title)
	assert.Equal(t, 1982, info.Year)
}

func TestParseMovieStripsQualityTags(t *testing.T) {
	info := ParseMovie("Heat (1995) 1080p BluRay x264.mkv", "Heat (1995) 1080p BluRay x264.mkv")

	assert.Equal(t, "Heat", info.Title)
	assert.Equal(t, 1995, info.Year)
}

func TestParseMovieNoYear(t *testing.T) {
	info := ParseMovie("Memento.mkv", "Memento.mkv")

	assert.Equal(t, "Memento", info.Title)
	assert.Zero(t, info.Year)
}

func TestParseMovieStripsExternalIDTags(t *testing.T) {
	info := ParseMovie("The Matrix (1999) {tmdb-603}.mkv", "The Matrix (1999) {tmdb-603}.mkv")

	assert.Equal(t, "The Matrix", info.Title)
	assert.Equal(t, 1999, info.Year)
	assert.NotContains(t, info.Title, "tmdb")
}

func TestParseMovieDeterministic(t *testing.T) {
	first := ParseMovie("Alien (1979).mkv", "Alien (1979).mkv")
	second := ParseMovie("Alien (1979).mkv", "Alien (1979).mkv")

	assert.Equal(t, first, second)
}

func TestParseTVShowSxxEyy(t *testing.T) {
	info := ParseTVShow("Breaking Bad/Season 1/Breaking.Bad.S01E03.720p.mkv", "Breaking.Bad.S01E03.720p.mkv")

	assert.Equal(t, database.MediaTypeTVShow, info.MediaType)
	assert.Equal(t, "Breaking Bad", info.ShowName)
	assert.Equal(t, 1, info.Season)
	assert.Equal(t, 3, info.Episode)
}

func TestParseTVShowNxNN(t *testing.T) {
	info := ParseTVShow("The Wire/1x05 - The Pager.mkv", "1x05 - The Pager.mkv")

	assert.Equal(t, 1, info.Season)
	assert.Equal(t, 5, info.Episode)
	assert.Equal(t, "The Wire", info.ShowName)
}

func TestParseTVShowSeasonEpisodeWords(t *testing.T) {
	info := ParseTVShow("Firefly/Firefly Season 1 Episode 11.mkv", "Firefly Season 1 Episode 11.mkv")

	assert.Equal(t, 1, info.Season)
	assert.Equal(t, 11, info.Episode)
}

func TestParseTVShowNameFromPathSegment(t *testing.T) {
	info := ParseTVShow("Severance (2022)/Season 1/S01E02.mkv", "S01E02.mkv")

	assert.Equal(t, "Severance", info.ShowName)
	assert.Equal(t, 1, info.Season)
	assert.Equal(t, 2, info.Episode)
}

func TestParseTVShowUnparsable(t *testing.T) {
	info := ParseTVShow("Random.mkv", "Random.mkv")

	assert.Zero(t, info.Season)
	assert.Zero(t, info.Episode)
}

func TestParseMusicFromPathSegments(t *testing.T) {
	info := ParseMusic("Pink Floyd/The Wall/01 - In the Flesh.flac", "01 - In the Flesh.flac")

	assert.Equal(t, database.MediaTypeMusic, info.MediaType)
	assert.Equal(t, "Pink Floyd", info.Artist)
	assert.Equal(t, "The Wall", info.Album)
	assert.Equal(t, 1, info.TrackNumber)
	assert.Equal(t, "In the Flesh", info.Title)
}

func TestParseMusicLooseFile(t *testing.T) {
	info := ParseMusic("some_song.mp3", "some_song.mp3")

	assert.Equal(t, "Unknown Artist", info.Artist)
	assert.Empty(t, info.Album)
	assert.Equal(t, "some song", info.Title)
}

func TestParseComicIssueAndVolume(t *testing.T) {
	info := ParseComic("Batman Vol. 2 #012.cbr", "Batman Vol. 2 #012.cbr")

	assert.Equal(t, database.MediaTypeComic, info.MediaType)
	assert.Equal(t, "Batman", info.Title)
	assert.Equal(t, 2, info.Volume)
	assert.Equal(t, 12, info.Issue)
}

func TestParseComicSeriesFromFolder(t *testing.T) {
	info := ParseComic("Saga/Saga #001 (2012).cbz", "Saga #001 (2012).cbz")

	assert.Equal(t, "Saga", info.Title)
	assert.Equal(t, 1, info.Issue)
}

func TestParsersDoNotLeakProviderTagsIntoFallbackTitles(t *testing.T) {
	movie := ParseMovie("{tmdb-123}.mkv", "{tmdb-123}.mkv")
	assert.NotContains(t, movie.Title, "tmdb")
	assert.NotContains(t, movie.Title, "123")

	show := ParseTVShow("[tvdbid-9].mkv", "[tvdbid-9].mkv")
	assert.NotContains(t, show.ShowName, "tvdb")

	music := ParseMusic("{musicbrainz-abc}.flac", "{musicbrainz-abc}.flac")
	assert.NotContains(t, music.Title, "musicbrainz")

	comic := ParseComic("{comicvine-7}.cbz", "{comicvine-7}.cbz")
	assert.NotContains(t, comic.Title, "comicvine")
}
