package scanner

import (
	"github.com/curatorapp/curator/internal/database"
	"github.com/curatorapp/curator/internal/utils"
)

// Extension tables per media type. Keys are lower-case with leading dot.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpg":  true,
	".mpeg": true,
	".ts":   true,
}

var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".aac":  true,
	".ogg":  true,
	".wma":  true,
	".m4a":  true,
	".opus": true,
	".aiff": true,
	".alac": true,
}

var comicExtensions = map[string]bool{
	".cbz":  true,
	".cbr":  true,
	".cb7":  true,
	".cbt":  true,
	".pdf":  true,
	".epub": true,
}

// skipDirNames lists directory names never descended into.
var skipDirNames = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"lost+found":   true,
	"@eaDir":       true,
	".git":         true,
}

// ExtensionsFor returns the extension table for a media type.
func ExtensionsFor(mediaType database.MediaType) map[string]bool {
	switch mediaType {
	case database.MediaTypeMusic:
		return audioExtensions
	case database.MediaTypeComic:
		return comicExtensions
	default:
		return videoExtensions
	}
}

// shouldSkipDir reports whether a directory entry should be pruned from the
// walk: dot-directories and build-artifact style names.
func shouldSkipDir(name string) bool {
	if utils.IsHiddenName(name) {
		return true
	}
	return skipDirNames[name]
}
