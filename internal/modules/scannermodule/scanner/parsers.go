package scanner

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/curatorapp/curator/internal/database"
	"github.com/curatorapp/curator/internal/utils"
)

// Parsers are pure functions from (relativePath, fileName) to a
// ParsedMediaInfo. They do no I/O and strip embedded provider tags before
// matching so IDs never leak into titles.

var (
	yearInBracketsPattern = regexp.MustCompile(`[\(\[]([12]\d{3})[\)\]]`)

	qualityTagPattern = regexp.MustCompile(`(?i)\b(2160p|1080p|720p|576p|480p|4k|uhd|hdtv|bluray|blu-ray|bdrip|brrip|web-?dl|webrip|dvdrip|hdrip|x264|x265|h264|h265|hevc|aac|ac3|dts|remux|proper|repack)\b`)

	// Episode patterns, tried in order; first match wins.
	sxxEyyPattern     = regexp.MustCompile(`(?i)(?:^|[\s._-])S(\d{1,3})\s*E(\d{1,3})`)
	nxnnPattern       = regexp.MustCompile(`(?i)(?:^|[\s._-])(\d{1,2})x(\d{1,3})(?:[\s._-]|$)`)
	seasonWordPattern = regexp.MustCompile(`(?i)Season[\s._-]*(\d{1,3}).*?Episode[\s._-]*(\d{1,3})`)

	// Show name is the segment preceding an SxxEyy suffix in the filename.
	showPrefixPattern = regexp.MustCompile(`(?i)^(.*?)[\s._-]+S\d{1,3}\s*E\d{1,3}`)

	trackPrefixPattern = regexp.MustCompile(`^(\d{1,3})[\s._-]+`)

	issueHashPattern = regexp.MustCompile(`#\s*(\d{1,4})`)
	issueBarePattern = regexp.MustCompile(`(?:^|[\s._-])(\d{1,4})(?:[\s._-]|$)`)
	volumePattern    = regexp.MustCompile(`(?i)\bVol(?:ume)?\.?[\s._-]*(\d{1,3})\b`)
)

// ParseMovie extracts {title, year} from a movie filename.
func ParseMovie(relativePath, fileName string) ParsedMediaInfo {
	cleanedName := RemoveExternalIDs(fileName)
	base := stripExtension(cleanedName)

	info := ParsedMediaInfo{MediaType: database.MediaTypeMovie}

	if m := yearInBracketsPattern.FindStringSubmatch(base); len(m) >= 2 {
		if y, err := strconv.Atoi(m[1]); err == nil && y >= 1900 && y <= 2100 {
			info.Year = y
		}
		if idx := strings.Index(base, m[0]); idx > 0 {
			base = base[:idx]
		} else {
			base = yearInBracketsPattern.ReplaceAllString(base, " ")
		}
	}

	base = qualityTagPattern.ReplaceAllString(base, " ")
	info.Title = cleanTitle(base)
	if info.Title == "" {
		info.Title = utils.SanitizeFilename(cleanedName)
	}
	return info
}

// ParseTVShow extracts {showName, season, episode} from a TV filename.
// Files with no recognizable season/episode pair return Season=0, Episode=0
// and are excluded from persistence by the TV processor.
func ParseTVShow(relativePath, fileName string) ParsedMediaInfo {
	cleanedName := RemoveExternalIDs(fileName)
	cleanedPath := RemoveExternalIDs(relativePath)
	base := stripExtension(cleanedName)

	info := ParsedMediaInfo{MediaType: database.MediaTypeTVShow}

	if m := sxxEyyPattern.FindStringSubmatch(base); len(m) >= 3 {
		info.Season, _ = strconv.Atoi(m[1])
		info.Episode, _ = strconv.Atoi(m[2])
	} else if m := nxnnPattern.FindStringSubmatch(base); len(m) >= 3 {
		info.Season, _ = strconv.Atoi(m[1])
		info.Episode, _ = strconv.Atoi(m[2])
	} else if m := seasonWordPattern.FindStringSubmatch(base); len(m) >= 3 {
		info.Season, _ = strconv.Atoi(m[1])
		info.Episode, _ = strconv.Atoi(m[2])
	}

	info.ShowName = extractShowName(base, cleanedPath)
	if info.ShowName == "" {
		info.ShowName = utils.SanitizeFilename(cleanedName)
	}
	info.Title = info.ShowName
	return info
}

// extractShowName takes the segment preceding the SxxEyy suffix in the
// filename, falling back to the top-level path segment, then the bare
// filename.
func extractShowName(base, relativePath string) string {
	if m := showPrefixPattern.FindStringSubmatch(base); len(m) >= 2 {
		if name := cleanTitle(m[1]); name != "" {
			return name
		}
	}
	if top := topPathSegment(relativePath); top != "" {
		if name := cleanTitle(stripYearSuffix(top)); name != "" {
			return name
		}
	}
	return cleanTitle(base)
}

// ParseMusic treats path segments as Artist/Album/Track.
func ParseMusic(relativePath, fileName string) ParsedMediaInfo {
	cleanedPath := RemoveExternalIDs(relativePath)
	cleanedName := RemoveExternalIDs(fileName)
	base := stripExtension(cleanedName)

	info := ParsedMediaInfo{
		MediaType: database.MediaTypeMusic,
		Artist:    "Unknown Artist",
	}

	segments := pathSegments(cleanedPath)
	// The final segment is the file itself.
	if len(segments) >= 2 {
		info.Artist = segments[0]
	}
	if len(segments) >= 3 {
		info.Album = segments[1]
	}

	if m := trackPrefixPattern.FindStringSubmatch(base); len(m) >= 2 {
		info.TrackNumber, _ = strconv.Atoi(m[1])
		base = trackPrefixPattern.ReplaceAllString(base, "")
	}

	info.Title = cleanTitle(base)
	if info.Title == "" {
		info.Title = utils.SanitizeFilename(cleanedName)
	}
	return info
}

// ParseComic extracts {title, issue, volume} from a comic filename. The
// top path segment is used as the series name when present.
func ParseComic(relativePath, fileName string) ParsedMediaInfo {
	cleanedPath := RemoveExternalIDs(relativePath)
	cleanedName := RemoveExternalIDs(fileName)
	base := stripExtension(cleanedName)

	info := ParsedMediaInfo{MediaType: database.MediaTypeComic}

	if m := volumePattern.FindStringSubmatch(base); len(m) >= 2 {
		info.Volume, _ = strconv.Atoi(m[1])
		base = volumePattern.ReplaceAllString(base, " ")
	}

	if m := issueHashPattern.FindStringSubmatch(base); len(m) >= 2 {
		info.Issue, _ = strconv.Atoi(m[1])
		base = issueHashPattern.ReplaceAllString(base, " ")
	} else if m := issueBarePattern.FindStringSubmatch(base); len(m) >= 2 {
		info.Issue, _ = strconv.Atoi(m[1])
	}

	if top := topPathSegment(cleanedPath); top != "" && pathSegmentCount(cleanedPath) >= 2 {
		info.Title = cleanTitle(top)
	}
	if info.Title == "" {
		info.Title = cleanTitle(issueBarePattern.ReplaceAllString(base, " "))
	}
	if info.Title == "" {
		info.Title = utils.SanitizeFilename(cleanedName)
	}
	return info
}

// ---- helpers ----

func stripExtension(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// cleanTitle converts separator punctuation to spaces and trims noise.
func cleanTitle(s string) string {
	s = strings.NewReplacer(".", " ", "_", " ").Replace(s)
	s = strings.Trim(s, " -–[](){}+,;")
	return strings.Join(strings.Fields(s), " ")
}

func stripYearSuffix(s string) string {
	return strings.TrimSpace(yearInBracketsPattern.ReplaceAllString(s, " "))
}

func pathSegments(relativePath string) []string {
	normalized := strings.ReplaceAll(relativePath, `\`, "/")
	parts := strings.Split(normalized, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" && p != "." {
			segments = append(segments, p)
		}
	}
	return segments
}

func pathSegmentCount(relativePath string) int {
	return len(pathSegments(relativePath))
}

func topPathSegment(relativePath string) string {
	segments := pathSegments(relativePath)
	if len(segments) < 2 {
		return ""
	}
	return segments[0]
}
