package scanner

import (
	"regexp"
	"strings"
)

// ExternalIDTag is one provider tag found embedded in a path or filename.
type ExternalIDTag struct {
	Source string `json:"source"`
	ID     string `json:"id"`
}

// Provider tags come in two conventions:
//
//	Plex style:     {tmdb-12345} {imdb-tt1234567}
//	Jellyfin style: [tmdbid-12345] [imdbid-tt1234567]
//
// Both are recognized anywhere in a path, in order of appearance.
var externalIDPattern = regexp.MustCompile(
	`(?i)[\[{](tmdb|imdb|tvdb|anilist|anidb|musicbrainz|comicvine)(?:id)?[=-]([A-Za-z0-9]+)[\]}]`)

var multiSpacePattern = regexp.MustCompile(`\s{2,}`)

// ParseExternalIDs returns all provider tags embedded in the string, in
// order of appearance. Sources are normalized to lower case.
func ParseExternalIDs(pathOrName string) []ExternalIDTag {
	matches := externalIDPattern.FindAllStringSubmatch(pathOrName, -1)
	if len(matches) == 0 {
		return nil
	}
	tags := make([]ExternalIDTag, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, ExternalIDTag{
			Source: strings.ToLower(m[1]),
			ID:     m[2],
		})
	}
	return tags
}

// RemoveExternalIDs strips all provider tags from the string and normalizes
// the whitespace left behind. Removing twice equals removing once.
func RemoveExternalIDs(pathOrName string) string {
	cleaned := externalIDPattern.ReplaceAllString(pathOrName, " ")
	cleaned = multiSpacePattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
